package entity

// CorrectionEvent records one change the pipeline made to the extraction
type CorrectionEvent struct {
	Kind       string `json:"kind"`
	Before     string `json:"before"`
	After      string `json:"after"`
	Confidence string `json:"confidence"`
	Project    string `json:"project,omitempty"`
	Day        string `json:"day,omitempty"`
}

// Warning is a non-fatal quality issue that did not stop processing
type Warning struct {
	Kind        string `json:"kind"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	ProjectCode string `json:"project_code,omitempty"`
}

// IsHigh reports whether the warning should send the run to review
func (w Warning) IsHigh() bool {
	return w.Severity == SeverityHigh || w.Kind == WarningAmbiguousCorrection
}
