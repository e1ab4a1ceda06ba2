package messaging

import (
	"context"
	"errors"

	"github.com/garyjia/timesheet-ocr/internal/application/port"
	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

// Fanout records a run in every sink. All sinks are tried; their errors are joined.
type Fanout struct {
	sinks []port.AuditSink
}

// NewFanout skips nil sinks
func NewFanout(sinks ...port.AuditSink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) Record(ctx context.Context, run *entity.ProcessingRun) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Record(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ port.AuditSink = (*Fanout)(nil)
