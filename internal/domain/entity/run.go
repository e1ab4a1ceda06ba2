package entity

import "time"

// ProcessingRun is the append-only audit record of one pipeline invocation
type ProcessingRun struct {
	ID             string            `json:"id"`
	SourceImageRef string            `json:"source_image_ref"`
	ResourceKey    string            `json:"resource_key,omitempty"`
	WeekStart      string            `json:"week_start,omitempty"`
	Status         string            `json:"status"`
	ErrorKind      string            `json:"error_kind,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	EntryCount     int               `json:"entry_count"`
	Corrections    []CorrectionEvent `json:"corrections"`
	Warnings       []Warning         `json:"warnings"`
	ModelID        string            `json:"model_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
