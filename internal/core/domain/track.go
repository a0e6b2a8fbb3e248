package domain

// Track is the catalog metadata the pipeline depends on.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
}
