package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chartbagapp/chartbag-server/internal/color"
	"github.com/chartbagapp/chartbag-server/internal/domain"
	apperrors "github.com/chartbagapp/chartbag-server/internal/errors"
	"github.com/chartbagapp/chartbag-server/internal/sse"
)

func (s *Server) registerPinRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listPins",
		Method:      http.MethodGet,
		Path:        "/api/pins",
		Summary:     "List pins",
		Description: "Returns pinned charts in the order they were added, with the list capacity.",
		Tags:        []string{"Pins"},
	}, s.handleListPins)

	huma.Register(s.api, huma.Operation{
		OperationID: "addPin",
		Method:      http.MethodPost,
		Path:        "/api/pins",
		Summary:     "Pin chart",
		Description: "Adds a chart to the pin list. A full list or an already pinned chart is rejected; existing pins are never evicted to make room.",
		Tags:        []string{"Pins"},
	}, s.handleAddPin)

	huma.Register(s.api, huma.Operation{
		OperationID: "removePin",
		Method:      http.MethodDelete,
		Path:        "/api/pins/{chartId}",
		Summary:     "Unpin chart",
		Description: "Removes a chart from the pin list.",
		Tags:        []string{"Pins"},
	}, s.handleRemovePin)
}

// PinResponse is one pinned chart. Pins snapshot chart fields at pin time,
// so they stay listable even when a catalog swap drops the chart.
type PinResponse struct {
	ChartID     string    `json:"chart_id" doc:"Pinned chart ID"`
	Name        string    `json:"name" doc:"Chart name at pin time"`
	AirportCode string    `json:"airport_code" doc:"Owning airport"`
	Category    string    `json:"category" doc:"Chart category"`
	AccentColor string    `json:"accent_color" doc:"Category accent color as #RRGGBB"`
	PinnedAt    time.Time `json:"pinned_at" doc:"When the chart was pinned"`
	InCatalog   bool      `json:"in_catalog" doc:"False when the current catalog no longer lists the chart"`
	PDFURL      string    `json:"pdf_url" doc:"Original PDF content"`
}

// PinListResponse is the full pin list with capacity.
type PinListResponse struct {
	Pins  []PinResponse `json:"pins" doc:"Pinned charts, oldest first"`
	Total int           `json:"total" doc:"Current pin count"`
	Max   int           `json:"max" doc:"Configured capacity"`
}

// PinListOutput wraps a pin list response.
type PinListOutput struct {
	Body PinListResponse
}

// AddPinRequest identifies the chart to pin.
type AddPinRequest struct {
	ChartID string `json:"chart_id" required:"true" minLength:"1" maxLength:"200" doc:"Chart ID from the catalog"`
}

// AddPinInput wraps the pin request body.
type AddPinInput struct {
	Body AddPinRequest
}

// PinOutput wraps a single pin.
type PinOutput struct {
	Body PinResponse
}

// RemovePinInput identifies the pin to remove.
type RemovePinInput struct {
	ChartID string `path:"chartId" maxLength:"200" doc:"Pinned chart ID"`
}

func (s *Server) pinResponse(e domain.PinEntry) PinResponse {
	_, inCatalog := s.catalog.Chart(e.ChartID)
	return PinResponse{
		ChartID:     e.ChartID,
		Name:        e.Name,
		AirportCode: e.AirportCode,
		Category:    e.Category,
		AccentColor: color.ForCategory(e.Category),
		PinnedAt:    e.PinnedAt,
		InCatalog:   inCatalog,
		PDFURL:      fmt.Sprintf("/api/charts/%s/pdf", e.ChartID),
	}
}

func (s *Server) handleListPins(_ context.Context, _ *struct{}) (*PinListOutput, error) {
	entries := s.pins.List()
	pins := make([]PinResponse, 0, len(entries))
	for _, e := range entries {
		pins = append(pins, s.pinResponse(e))
	}
	return &PinListOutput{Body: PinListResponse{
		Pins:  pins,
		Total: len(pins),
		Max:   s.pins.Max(),
	}}, nil
}

func (s *Server) handleAddPin(_ context.Context, input *AddPinInput) (*PinOutput, error) {
	chart, ok := s.catalog.Chart(input.Body.ChartID)
	if !ok {
		return nil, apperrors.NotFoundf("chart %s not in catalog", input.Body.ChartID)
	}

	// Pins snapshot the chart, so attach the thumbnail path while we can.
	if s.thumbs != nil {
		if thumb, ok := s.thumbs.Cached(chart); ok {
			chart.ThumbnailPath = thumb.Path
		}
	}

	entry, err := s.pins.Pin(chart)
	if err != nil {
		return nil, err
	}

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewPinAddedEvent(entry))
	}
	return &PinOutput{Body: s.pinResponse(entry)}, nil
}

func (s *Server) handleRemovePin(_ context.Context, input *RemovePinInput) (*MessageOutput, error) {
	if err := s.pins.Unpin(input.ChartID); err != nil {
		return nil, err
	}

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewPinRemovedEvent(input.ChartID, "unpinned"))
	}
	return &MessageOutput{Body: MessageResponse{Message: "Chart unpinned"}}, nil
}
