package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	apperrors "github.com/chartbagapp/chartbag-server/internal/errors"
	"github.com/chartbagapp/chartbag-server/internal/store"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	raise := func(h ComponentHealth) {
		if h.Status == "unhealthy" {
			overall = "unhealthy"
		} else if h.Status == "degraded" && overall == "healthy" {
			overall = "degraded"
		}
	}

	dbHealth := s.checkMetaStore()
	components["database"] = dbHealth
	raise(dbHealth)

	catalogHealth := s.checkCatalog()
	components["catalog"] = catalogHealth
	raise(catalogHealth)

	searchHealth := s.checkSearchIndex()
	components["search"] = searchHealth
	raise(searchHealth)

	sseHealth := s.checkSSEManager()
	components["sse"] = sseHealth
	raise(sseHealth)

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkMetaStore verifies the Badger meta store is accessible.
func (s *Server) checkMetaStore() ComponentHealth {
	if s.store == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "meta store not configured",
		}
	}

	start := time.Now()

	// A quick read proves the DB is up. Missing identity is fine; that
	// just means first start hasn't finished yet.
	_, err := s.store.GetInstance()
	latency := time.Since(start)

	if err != nil && !apperrors.Is(err, store.ErrInstanceNotFound) {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "meta store read failed",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// checkCatalog reports on the loaded catalog generation.
func (s *Server) checkCatalog() ComponentHealth {
	if s.catalog == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "catalog not configured",
		}
	}

	count := s.catalog.Len()
	if count == 0 {
		return ComponentHealth{
			Status:  "degraded",
			Message: "no charts cataloged yet",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Message: strconv.Itoa(count) + " charts",
	}
}

// checkSearchIndex verifies the Bleve index is accessible.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.search == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "search index not configured",
		}
	}

	start := time.Now()

	docCount, err := s.search.DocumentCount()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "search index unreachable",
		}
	}

	// Accessible but empty usually means pre-first-import or mid-rebuild.
	if docCount == 0 {
		return ComponentHealth{
			Status:  "degraded",
			Latency: latency.String(),
			Message: "search index empty",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// checkSSEManager reports the SSE event system state.
func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "SSE manager not configured",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Message: formatClientCount(s.sseManager.ClientCount()),
	}
}

func formatClientCount(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return strconv.Itoa(count) + " connected clients"
	}
}
