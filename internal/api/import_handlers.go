package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/http/response"
	"github.com/chartbagapp/chartbag-server/internal/service"
)

// maxPackageUpload bounds uploaded chart packages. Full-cycle packages run
// to a few GB.
const maxPackageUpload = 4 << 30

func (s *Server) registerImportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "startImport",
		Method:        http.MethodPost,
		Path:          "/api/imports",
		Summary:       "Start import",
		Description:   "Starts an import job from a server-local package path and returns immediately. Progress is delivered over the SSE stream and by polling the job.",
		Tags:          []string{"Imports"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleStartImport)

	huma.Register(s.api, huma.Operation{
		OperationID: "getImport",
		Method:      http.MethodGet,
		Path:        "/api/imports/{id}",
		Summary:     "Get import job",
		Description: "Returns one import job with progress and any per-file errors.",
		Tags:        []string{"Imports"},
	}, s.handleGetImport)

	huma.Register(s.api, huma.Operation{
		OperationID: "listImports",
		Method:      http.MethodGet,
		Path:        "/api/imports",
		Summary:     "List import jobs",
		Description: "Returns recent import jobs, newest first.",
		Tags:        []string{"Imports"},
	}, s.handleListImports)

	// Package upload goes through chi directly; Huma doesn't do multipart.
	s.router.Post("/api/imports/upload", s.handleUploadPackage)
}

// StartImportRequest names the package to import.
type StartImportRequest struct {
	Path       string `json:"path" required:"true" minLength:"1" maxLength:"4096" doc:"Server-local path to a .zip chart package. Remote clients obtain one via the upload endpoint."`
	CleanRoot  bool   `json:"clean_root,omitempty" doc:"Delete the charts root before extraction instead of overlaying"`
	MaxWorkers string `json:"max_workers,omitempty" pattern:"^(auto|[1-9][0-9]*)$" doc:"Extraction workers, auto or a positive integer. Defaults to server config."`
}

// StartImportInput wraps the start request body.
type StartImportInput struct {
	Body StartImportRequest
}

// ImportJobResponse is the wire form of an import job.
type ImportJobResponse struct {
	ID           string               `json:"id" doc:"Job ID"`
	State        string               `json:"state" doc:"pending, extracting, cataloging, persisting, completed, or failed"`
	Progress     domain.ImportStatus  `json:"progress" doc:"Point-in-time progress snapshot"`
	ArchivePath  string               `json:"archive_path" doc:"Package the job was started from"`
	Checksum     string               `json:"checksum,omitempty" doc:"BLAKE2b-256 of the package file"`
	Workers      int                  `json:"workers,omitempty" doc:"Extraction pool size used"`
	ChartCount   int                  `json:"chart_count" doc:"Charts cataloged"`
	AirportCount int                  `json:"airport_count" doc:"Airports cataloged"`
	Errors       []domain.ImportError `json:"errors,omitempty" doc:"Per-file failures the job carried on past"`
	Error        string               `json:"error,omitempty" doc:"Fatal error for failed jobs"`
	StartedAt    time.Time            `json:"started_at" doc:"When the job started"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty" doc:"When the job reached a terminal state"`
}

// ImportJobOutput wraps a single job.
type ImportJobOutput struct {
	Body ImportJobResponse
}

// GetImportInput identifies a job by ID.
type GetImportInput struct {
	ID string `path:"id" maxLength:"64" doc:"Import job ID"`
}

// ListImportsInput holds paging for the job history.
type ListImportsInput struct {
	Limit int `query:"limit" minimum:"1" maximum:"100" doc:"Max jobs to return (default 20)"`
}

// ImportListResponse is the job history page.
type ImportListResponse struct {
	Jobs  []ImportJobResponse `json:"jobs" doc:"Jobs, newest first"`
	Total int                 `json:"total" doc:"Jobs in this page"`
}

// ImportListOutput wraps a job history page.
type ImportListOutput struct {
	Body ImportListResponse
}

func importJobResponse(job *domain.ImportJob) ImportJobResponse {
	resp := ImportJobResponse{
		ID:           job.ID,
		State:        string(job.State),
		Progress:     job.Progress,
		ArchivePath:  job.ArchivePath,
		Checksum:     job.Checksum,
		Workers:      job.Workers,
		ChartCount:   job.ChartCount,
		AirportCount: job.AirportCount,
		Errors:       job.Errors,
		Error:        job.Error,
		StartedAt:    job.StartedAt,
	}
	if !job.FinishedAt.IsZero() {
		finished := job.FinishedAt
		resp.FinishedAt = &finished
	}
	return resp
}

func (s *Server) handleStartImport(ctx context.Context, input *StartImportInput) (*ImportJobOutput, error) {
	job, err := s.imports.Start(ctx, input.Body.Path, service.ImportOptions{
		CleanRoot:  input.Body.CleanRoot,
		MaxWorkers: input.Body.MaxWorkers,
	})
	if err != nil {
		return nil, err
	}
	return &ImportJobOutput{Body: importJobResponse(job)}, nil
}

func (s *Server) handleGetImport(ctx context.Context, input *GetImportInput) (*ImportJobOutput, error) {
	job, err := s.imports.Job(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ImportJobOutput{Body: importJobResponse(job)}, nil
}

func (s *Server) handleListImports(ctx context.Context, input *ListImportsInput) (*ImportListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	jobs, err := s.imports.History(ctx, limit)
	if err != nil {
		return nil, err
	}

	resp := make([]ImportJobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, importJobResponse(job))
	}
	return &ImportListOutput{Body: ImportListResponse{Jobs: resp, Total: len(resp)}}, nil
}

// UploadResponse reports where an uploaded package landed. The path feeds
// straight into startImport.
type UploadResponse struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// handleUploadPackage receives a multipart chart package upload and stores
// it under the uploads directory.
func (s *Server) handleUploadPackage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPackageUpload)

	file, header, err := r.FormFile("package")
	if err != nil {
		response.BadRequest(w, "No file uploaded. Use 'package' field in multipart form", s.log.Logger)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".zip") {
		response.BadRequest(w, "Package must be a .zip file", s.log.Logger)
		return
	}

	uploadsDir := s.cfg.UploadsDir()
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		s.log.Error("Failed to create uploads directory", "path", uploadsDir, "error", err)
		response.InternalError(w, "Failed to store upload", s.log.Logger)
		return
	}

	destPath := filepath.Join(uploadsDir, fmt.Sprintf("package-%d.zip", time.Now().UnixNano()))
	dest, err := os.Create(destPath)
	if err != nil {
		s.log.Error("Failed to create upload destination", "path", destPath, "error", err)
		response.InternalError(w, "Failed to store upload", s.log.Logger)
		return
	}
	defer dest.Close()

	written, err := io.Copy(dest, file)
	if err != nil {
		os.Remove(destPath)
		s.log.Error("Failed to write upload", "path", destPath, "error", err)
		response.InternalError(w, "Failed to store upload", s.log.Logger)
		return
	}

	s.log.Info("Chart package uploaded", "path", destPath, "size_bytes", written, "original_filename", header.Filename)
	response.Created(w, UploadResponse{Path: destPath, SizeBytes: written}, s.log.Logger)
}
