package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/chartbagapp/chartbag-server/internal/color"
	"github.com/chartbagapp/chartbag-server/internal/domain"
	apperrors "github.com/chartbagapp/chartbag-server/internal/errors"
	"github.com/chartbagapp/chartbag-server/internal/http/response"
)

// ChartResponse is the wire representation of a chart. File paths never
// leave the server; clients fetch content through the URLs instead.
type ChartResponse struct {
	ID           string `json:"id" doc:"Stable chart identifier"`
	Code         string `json:"code" doc:"Chart code from the source package"`
	Name         string `json:"name" doc:"Human-readable chart name"`
	Category     string `json:"category" doc:"Chart category (ADC, SID, STAR, IAC, ...)"`
	AirportCode  string `json:"airport_code" doc:"ICAO code of the owning airport"`
	SizeBytes    int64  `json:"size_bytes,omitempty" doc:"PDF size on disk in bytes"`
	Pinned       bool   `json:"pinned" doc:"True when the chart is pinned"`
	AccentColor  string `json:"accent_color" doc:"Category accent color as #RRGGBB"`
	BlurHash     string `json:"blur_hash,omitempty" doc:"Thumbnail placeholder hash, set once a thumbnail exists"`
	PDFURL       string `json:"pdf_url" doc:"Original PDF content"`
	ThumbnailURL string `json:"thumbnail_url" doc:"Small PNG preview"`
	RenderURL    string `json:"render_url" doc:"Full-resolution PNG render"`
}

// ChartInput identifies a chart by its catalog ID.
type ChartInput struct {
	ID string `path:"id" maxLength:"200" doc:"Chart ID"`
}

// ChartOutput wraps a single chart.
type ChartOutput struct {
	Body ChartResponse
}

// registerChartRoutes sets up chart metadata endpoints. Binary content
// (pdf, thumbnail, render) is served by raw routes in setupStreamRoutes.
func (s *Server) registerChartRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getChart",
		Method:      http.MethodGet,
		Path:        "/api/charts/{id}",
		Summary:     "Get chart",
		Description: "Returns one chart's metadata including content URLs.",
		Tags:        []string{"Charts"},
	}, s.handleGetChart)
}

// chartResponse converts a catalog chart to its wire form. BlurHash stays
// empty here; handlers that can afford the lookup attach it themselves.
func (s *Server) chartResponse(c domain.Chart) ChartResponse {
	return ChartResponse{
		ID:           c.ID,
		Code:         c.Code,
		Name:         c.Name,
		Category:     c.Category,
		AirportCode:  c.AirportCode,
		SizeBytes:    c.SizeBytes,
		Pinned:       s.pins != nil && s.pins.IsPinned(c.ID),
		AccentColor:  color.ForCategory(c.Category),
		PDFURL:       fmt.Sprintf("/api/charts/%s/pdf", c.ID),
		ThumbnailURL: fmt.Sprintf("/api/charts/%s/thumbnail", c.ID),
		RenderURL:    fmt.Sprintf("/api/charts/%s/render", c.ID),
	}
}

func (s *Server) handleGetChart(_ context.Context, input *ChartInput) (*ChartOutput, error) {
	chart, ok := s.catalog.Chart(input.ID)
	if !ok {
		return nil, apperrors.NotFoundf("chart %s not in catalog", input.ID)
	}

	resp := s.chartResponse(chart)
	if s.thumbs != nil {
		if thumb, ok := s.thumbs.Cached(chart); ok {
			resp.BlurHash = thumb.BlurHash
		}
	}
	return &ChartOutput{Body: resp}, nil
}

// handleChartPDF streams the original PDF from the charts directory.
func (s *Server) handleChartPDF(w http.ResponseWriter, r *http.Request) {
	chart, ok := s.catalog.Chart(chi.URLParam(r, "id"))
	if !ok {
		response.NotFound(w, "Chart not found", s.log.Logger)
		return
	}

	if _, err := os.Stat(chart.FilePath); err != nil {
		s.log.Error("Chart file missing on disk", "chart_id", chart.ID, "path", chart.FilePath, "error", err)
		response.NotFound(w, "Chart file not found on disk", s.log.Logger)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Cache-Control", CacheRevalidate)

	// http.ServeFile handles:
	// - Range requests (viewers fetch pages incrementally)
	// - If-Modified-Since / Last-Modified
	// - Content-Length
	http.ServeFile(w, r, chart.FilePath)
}

// handleChartThumbnail serves the chart's PNG thumbnail, generating it on
// first request.
func (s *Server) handleChartThumbnail(w http.ResponseWriter, r *http.Request) {
	chart, ok := s.catalog.Chart(chi.URLParam(r, "id"))
	if !ok {
		response.NotFound(w, "Chart not found", s.log.Logger)
		return
	}

	thumb, err := s.thumbs.Get(r.Context(), chart)
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", CacheOneDay)
	http.ServeFile(w, r, thumb.Path)
}

// renderQuery holds the validated render parameters.
type renderQuery struct {
	DPI  int `json:"dpi" validate:"gte=100,lte=300"`
	Page int `json:"page" validate:"gte=0"`
}

// handleChartRender serves a full-resolution PNG render of one PDF page,
// rasterizing on first request and caching the bitmap after.
func (s *Server) handleChartRender(w http.ResponseWriter, r *http.Request) {
	chart, ok := s.catalog.Chart(chi.URLParam(r, "id"))
	if !ok {
		response.NotFound(w, "Chart not found", s.log.Logger)
		return
	}

	q := renderQuery{DPI: s.cfg.Render.DPI, Page: 0}
	if raw := r.URL.Query().Get("dpi"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "dpi must be an integer", s.log.Logger)
			return
		}
		q.DPI = v
	}
	if raw := r.URL.Query().Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "page must be an integer", s.log.Logger)
			return
		}
		q.Page = v
	}
	if err := s.validator.Validate(q); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	path, err := s.renders.Get(r.Context(), chart.FilePath, domain.RenderParams{DPI: q.DPI, Page: q.Page})
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", CacheOneDay)
	http.ServeFile(w, r, path)
}
