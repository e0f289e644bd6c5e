package model

// Video is the inbound descriptor of an uploaded file. The file itself lives
// on local storage; adapters that need a publicly fetchable URL materialize
// one through the media URL resolver collaborator.
type Video struct {
	ID              string `json:"id"`
	FilePath        string `json:"file_path"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"duration_seconds"`
	MimeType        string `json:"mime_type"`
}

// EnhancedMetadata is the best-effort output of the external content
// optimization collaborator. Empty fields fall back to the video's own text.
type EnhancedMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
