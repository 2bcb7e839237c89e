package api

// Cache-Control header values for binary chart content. Rendered bitmaps
// and thumbnails are keyed by content, so clients may cache them hard.
// PDFs keep their URL across cycles and must revalidate; ServeFile's
// Last-Modified turns that into cheap 304s.
const (
	CacheOneDay     = "public, max-age=86400"
	CacheRevalidate = "no-cache"
)

// MessageResponse is a simple success message response.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps a message response for huma.
type MessageOutput struct {
	Body MessageResponse
}
