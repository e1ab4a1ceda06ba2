package openai

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the prompts and model parameters used by the extractor
type PromptConfig struct {
	TimesheetExtraction PromptSpec `yaml:"timesheet_extraction"`
}

// PromptSpec is one system/user prompt pair
type PromptSpec struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	System       string  `yaml:"system"`
	UserTemplate string  `yaml:"user_template"`
}

// PromptData is what the user template can reference
type PromptData struct {
	Holidays []string
}

// LoadPrompts loads prompt configuration from a YAML file. Fields left empty
// in the file keep their built-in defaults.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	var file PromptConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	extraction := &prompts.TimesheetExtraction
	override := file.TimesheetExtraction
	if override.Temperature != 0 {
		extraction.Temperature = override.Temperature
	}
	if override.MaxTokens != 0 {
		extraction.MaxTokens = override.MaxTokens
	}
	if strings.TrimSpace(override.System) != "" {
		extraction.System = override.System
	}
	if strings.TrimSpace(override.UserTemplate) != "" {
		extraction.UserTemplate = override.UserTemplate
	}

	if _, err := template.New("prompt").Parse(extraction.UserTemplate); err != nil {
		return nil, fmt.Errorf("invalid user_template in %s: %w", promptsPath, err)
	}
	return prompts, nil
}

// DefaultPrompts returns the built-in extraction prompt
func DefaultPrompts() *PromptConfig {
	return &PromptConfig{
		TimesheetExtraction: PromptSpec{
			Temperature:  0,
			MaxTokens:    4096,
			System:       defaultSystemPrompt,
			UserTemplate: defaultUserTemplate,
		},
	}
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

const defaultSystemPrompt = `You are an OCR system that reads weekly timesheet images. You copy what is printed exactly and never invent values. Always respond with a single valid JSON object.`

const defaultUserTemplate = `Extract this weekly timesheet.

1. resource_name: the person the timesheet belongs to.
2. date_range: the period printed at the top, copied exactly (for example "Mar 10 2025 - Mar 16 2025").
3. is_zero_hour_timesheet: true when no project time is logged at all. Then set zero_hour_reason to "ANNUAL_LEAVE" or "ABSENCE" and leave projects empty.
4. projects: one object per parent project in the order shown, with
   - project_name: the parent project name, not the subtask
   - project_code: the code shown next to the name, copied exactly
   - hours_by_day: seven strings, Monday to Sunday. Sum subtask hours into the parent. Empty cells and "-" are "0".
5. daily_totals: the seven printed daily totals if the sheet has a totals row.
6. weekly_total: the printed weekly total if present.
{{if .Holidays}}
These dates are bank holidays. Hours printed on them are usually a holiday marker, copy them as printed:
{{range .Holidays}}  - {{.}}
{{end}}{{end}}
Return JSON in exactly this shape:
{
  "resource_name": "Full Name",
  "date_range": "MMM DD YYYY - MMM DD YYYY",
  "is_zero_hour_timesheet": false,
  "zero_hour_reason": null,
  "projects": [
    {"project_name": "Project Name", "project_code": "PJ000000", "hours_by_day": ["0", "7.5", "7.5", "7.5", "7.5", "0", "0"]}
  ],
  "daily_totals": ["0", "7.5", "7.5", "7.5", "7.5", "0", "0"],
  "weekly_total": "30"
}`
