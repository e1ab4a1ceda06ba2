package port

import (
	"context"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/reference"
)

// ExtractionResponse is the raw reply of the extraction service
type ExtractionResponse struct {
	Content          string
	ModelID          string
	PromptTokens     int
	CompletionTokens int
}

// Extractor reads a timesheet image and returns its JSON description.
// One request per call, no retry.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*ExtractionResponse, error)
}

// DocumentConverter turns an upload into an image the extractor accepts
type DocumentConverter interface {
	ToImage(ctx context.Context, data []byte, mimeType string) ([]byte, string, error)
}

// ReferenceProvider loads a fresh reference snapshot for one invocation
type ReferenceProvider interface {
	Load(ctx context.Context) (*reference.Snapshot, error)
}

// AuditSink receives the outcome of every invocation. Failures to record
// never change the outcome of the invocation itself.
type AuditSink interface {
	Record(ctx context.Context, run *entity.ProcessingRun) error
}
