package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerInstanceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getInstance",
		Method:      http.MethodGet,
		Path:        "/api/instance",
		Summary:     "Get server instance",
		Description: "Returns the server identity and the loaded catalog generation",
		Tags:        []string{"Instance"},
	}, s.handleGetInstance)
}

// InstanceResponse contains server instance data in API responses.
type InstanceResponse struct {
	ID           string    `json:"id" doc:"Instance ID"`
	Name         string    `json:"name" doc:"Server name"`
	Version      string    `json:"version" doc:"Server version"`
	AIRAC        string    `json:"airac,omitempty" doc:"AIRAC cycle of the loaded catalog"`
	ChartCount   int       `json:"chart_count" doc:"Charts in the loaded catalog"`
	AirportCount int       `json:"airport_count" doc:"Airports in the loaded catalog"`
	CreatedAt    time.Time `json:"created_at" doc:"First start timestamp"`
}

// InstanceOutput wraps the instance response for Huma.
type InstanceOutput struct {
	Body InstanceResponse
}

func (s *Server) handleGetInstance(_ context.Context, _ *struct{}) (*InstanceOutput, error) {
	if s.store == nil {
		return nil, huma.Error404NotFound("Server instance not initialized")
	}

	instance, err := s.store.GetInstance()
	if err != nil {
		s.log.Error("Failed to get instance", "error", err)
		return nil, huma.Error404NotFound("Server instance not initialized")
	}

	resp := InstanceResponse{
		ID:        instance.ID,
		Name:      instance.Name,
		Version:   instance.Version,
		CreatedAt: instance.CreatedAt,
	}
	if s.catalog != nil {
		snap := s.catalog.Snapshot()
		resp.AIRAC = snap.AIRAC
		resp.ChartCount = len(snap.Charts)
		resp.AirportCount = len(snap.Airports)
	}

	return &InstanceOutput{Body: resp}, nil
}
