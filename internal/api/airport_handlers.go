package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chartbagapp/chartbag-server/internal/color"
	"github.com/chartbagapp/chartbag-server/internal/domain"
	apperrors "github.com/chartbagapp/chartbag-server/internal/errors"
)

func (s *Server) registerAirportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAirports",
		Method:      http.MethodGet,
		Path:        "/api/airports",
		Summary:     "List airports",
		Description: "Returns every airport in the loaded catalog",
		Tags:        []string{"Airports"},
	}, s.handleListAirports)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAirportCharts",
		Method:      http.MethodGet,
		Path:        "/api/airports/{code}/charts",
		Summary:     "List charts for an airport",
		Description: "Returns the charts cataloged for one airport, sorted by category then name",
		Tags:        []string{"Airports"},
	}, s.handleListAirportCharts)
}

// === DTOs ===

// AirportResponse contains one airport in API responses.
type AirportResponse struct {
	Code        string   `json:"code" doc:"ICAO location indicator"`
	Name        string   `json:"name" doc:"Display name"`
	NameForeign string   `json:"name_foreign,omitempty" doc:"Foreign-language name"`
	ChartCount  int      `json:"chart_count" doc:"Charts cataloged for this airport"`
	Categories  []string `json:"categories" doc:"Chart categories present"`
	AccentColor string   `json:"accent_color" doc:"Deterministic UI accent color"`
}

// AirportListResponse is the airport listing.
type AirportListResponse struct {
	Airports []AirportResponse `json:"airports" doc:"Airports, sorted by code"`
	Total    int               `json:"total" doc:"Airport count"`
	AIRAC    string            `json:"airac,omitempty" doc:"AIRAC cycle of the loaded catalog"`
}

// AirportListOutput wraps the airport listing for Huma.
type AirportListOutput struct {
	Body AirportListResponse
}

// AirportChartsInput identifies the airport whose charts to list.
type AirportChartsInput struct {
	Code     string `path:"code" maxLength:"8" doc:"ICAO location indicator"`
	Category string `query:"category" doc:"Restrict to one chart category"`
}

// AirportChartsResponse lists one airport's charts.
type AirportChartsResponse struct {
	Airport AirportResponse `json:"airport" doc:"The airport"`
	Charts  []ChartResponse `json:"charts" doc:"Charts, sorted by category then name"`
	Total   int             `json:"total" doc:"Chart count"`
}

// AirportChartsOutput wraps the airport charts listing for Huma.
type AirportChartsOutput struct {
	Body AirportChartsResponse
}

// airportCodeParams feeds the airport code through request validation.
type airportCodeParams struct {
	Code string `json:"code" validate:"required,airport_code"`
}

// === Handlers ===

func (s *Server) handleListAirports(_ context.Context, _ *struct{}) (*AirportListOutput, error) {
	snap := s.catalog.Snapshot()
	list := s.catalog.Airports()

	airports := make([]AirportResponse, 0, len(list))
	for i := range list {
		airports = append(airports, airportResponse(&list[i]))
	}

	return &AirportListOutput{
		Body: AirportListResponse{
			Airports: airports,
			Total:    len(airports),
			AIRAC:    snap.AIRAC,
		},
	}, nil
}

func (s *Server) handleListAirportCharts(_ context.Context, input *AirportChartsInput) (*AirportChartsOutput, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if err := s.validator.Validate(airportCodeParams{Code: code}); err != nil {
		return nil, err
	}

	airport, ok := s.catalog.Airport(code)
	if !ok {
		return nil, apperrors.NotFoundf("airport %s not in catalog", code)
	}

	all := s.catalog.ChartsForAirport(code)
	charts := make([]ChartResponse, 0, len(all))
	for _, c := range all {
		if input.Category != "" && !strings.EqualFold(c.Category, input.Category) {
			continue
		}
		charts = append(charts, s.chartResponse(c))
	}

	return &AirportChartsOutput{
		Body: AirportChartsResponse{
			Airport: airportResponse(&airport),
			Charts:  charts,
			Total:   len(charts),
		},
	}, nil
}

func airportResponse(a *domain.Airport) AirportResponse {
	return AirportResponse{
		Code:        a.Code,
		Name:        a.DisplayName(),
		NameForeign: a.NameForeign,
		ChartCount:  a.ChartCount,
		Categories:  a.Categories,
		AccentColor: color.ForAirport(a.Code),
	}
}
