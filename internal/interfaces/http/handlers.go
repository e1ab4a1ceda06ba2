package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/timesheet-ocr/internal/application/service"
	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/pipeline"
	"github.com/garyjia/timesheet-ocr/pkg/utils"
)

// HealthFunc reports overall health and per-component details
type HealthFunc func() (healthy bool, components interface{})

// Handlers contains all HTTP request handlers
type Handlers struct {
	timesheetService service.TimesheetService
	maxUploadBytes   int64
	health           HealthFunc
	logger           Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(timesheetService service.TimesheetService, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		timesheetService: timesheetService,
		maxUploadBytes:   maxUploadBytes,
		logger:           logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// ExtractionRequest is the body of POST /api/v1/extractions. Extraction is
// either the document itself or the model reply as a string.
type ExtractionRequest struct {
	SourceImageRef string          `json:"source_image_ref" binding:"required"`
	Extraction     json.RawMessage `json:"extraction" binding:"required"`
	DryRun         bool            `json:"dry_run"`
}

// ListRunsRequest represents query parameters for listing runs
type ListRunsRequest struct {
	Limit int `form:"limit"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy, components := true, interface{}(nil)
	if h.health != nil {
		healthy, components = h.health()
	}

	resp := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    "1.0.0",
		Components: components,
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, Response{Success: healthy, Data: resp})
}

// UploadTimesheet handles POST /api/v1/timesheets (multipart field "file")
func (h *Handlers) UploadTimesheet(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "multipart field \"file\" is required"})
		return
	}

	mimeType := utils.NormalizeMimeType(header.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = utils.MimeTypeFromExtension(header.Filename)
	}
	if err := utils.ValidateUpload(header.Filename, int(header.Size), mimeType, h.maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("Failed to open upload", "filename", header.Filename, "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read upload", "filename", header.Filename, "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "failed to read upload"})
		return
	}

	outcome, err := h.timesheetService.ProcessImage(c.Request.Context(), header.Filename, data, mimeType)
	h.respondOutcome(c, outcome, err)
}

// SubmitExtraction handles POST /api/v1/extractions. ?dry_run=true overrides the body flag.
func (h *Handlers) SubmitExtraction(c *gin.Context) {
	var req ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}
	if q := c.Query("dry_run"); q != "" {
		if dryRun, err := strconv.ParseBool(q); err == nil {
			req.DryRun = dryRun
		}
	}

	// The raw model reply may be sent as a JSON string
	content := []byte(req.Extraction)
	var text string
	if err := json.Unmarshal(req.Extraction, &text); err == nil {
		content = []byte(text)
	}

	outcome, err := h.timesheetService.ProcessExtraction(c.Request.Context(), req.SourceImageRef, content, req.DryRun)
	h.respondOutcome(c, outcome, err)
}

// GetRun handles GET /api/v1/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := h.timesheetService.GetRun(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get run", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to get run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "run not found"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}

// ListRuns handles GET /api/v1/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}

	runs, err := h.timesheetService.ListRuns(c.Request.Context(), req.Limit)
	if err != nil {
		h.logger.Error("Failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to list runs"})
		return
	}
	if runs == nil {
		runs = []*entity.ProcessingRun{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: runs})
}

// ListEntries handles GET /api/v1/resources/:resource/weeks/:week/entries
func (h *Handlers) ListEntries(c *gin.Context) {
	weekStart, err := time.Parse(entity.DateLayout, c.Param("week"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "week must be YYYY-MM-DD"})
		return
	}

	entries, err := h.timesheetService.ListEntries(c.Request.Context(), c.Param("resource"), weekStart)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
			return
		}
		h.logger.Error("Failed to list entries", "resource", c.Param("resource"), "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to list entries"})
		return
	}
	if entries == nil {
		entries = []entity.CanonicalEntry{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// respondOutcome maps service results to status codes. Failed runs are
// returned in Data so callers can see the audit record.
func (h *Handlers) respondOutcome(c *gin.Context, outcome *service.Outcome, err error) {
	if err == nil {
		c.JSON(http.StatusOK, Response{Success: true, Data: outcome})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case pipeline.KindOf(err) != "":
		status = http.StatusUnprocessableEntity
	case outcome != nil && outcome.Run != nil && outcome.Run.ErrorKind == service.KindExtractionRequest:
		status = http.StatusBadGateway
	}

	c.JSON(status, Response{Success: false, Data: outcome, Error: err.Error()})
}
