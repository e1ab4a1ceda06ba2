package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

// extractionSchema is the contract the extraction reply must satisfy
const extractionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["resource_name", "date_range"],
  "properties": {
    "resource_name": {"type": ["string", "null"]},
    "date_range": {"type": ["string", "null"]},
    "is_zero_hour": {"type": "boolean"},
    "is_zero_hour_timesheet": {"type": "boolean"},
    "zero_hour_reason": {"type": ["string", "null"]},
    "projects": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "project_name": {"type": ["string", "null"]},
          "project_code": {"type": ["string", "null"]},
          "hours_by_day": {
            "type": ["array", "null"],
            "items": {"$ref": "#/definitions/hours"}
          }
        }
      }
    },
    "daily_totals": {
      "type": ["array", "null"],
      "items": {"$ref": "#/definitions/hours"}
    },
    "weekly_total": {"$ref": "#/definitions/hours"}
  },
  "definitions": {
    "hours": {
      "type": ["string", "number", "null", "object"],
      "properties": {
        "hours": {"type": ["string", "number", "null"]}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func extractionValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("extraction.json", strings.NewReader(extractionSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("extraction.json")
	})
	return compiledSchema, schemaErr
}

// DecodeExtraction parses the extraction reply into a RawExtraction. The reply
// may be wrapped in Markdown fences or surrounded by prose; the first balanced
// JSON object is used. Anything else is an ExtractionParse error.
func DecodeExtraction(content []byte) (*entity.RawExtraction, error) {
	body := bytes.TrimSpace(content)
	if len(body) == 0 {
		return nil, extractionParseError("empty extraction response", nil)
	}

	if !json.Valid(body) {
		extracted := ExtractJSON(string(body))
		if extracted == "" {
			return nil, extractionParseError("no JSON object found in extraction response", nil)
		}
		body = []byte(extracted)
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, extractionParseError("invalid JSON", err)
	}
	if _, ok := doc.(map[string]interface{}); !ok {
		return nil, extractionParseError("extraction response is not a JSON object", nil)
	}

	schema, err := extractionValidator()
	if err != nil {
		return nil, extractionParseError("failed to compile extraction schema", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, extractionParseError("extraction does not match schema", err)
	}

	var raw entity.RawExtraction
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, extractionParseError("failed to decode extraction", err)
	}
	return &raw, nil
}

// ExtractJSON returns the first balanced JSON object in text, or "" when none exists.
// Braces inside string literals are ignored.
func ExtractJSON(text string) string {
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			if obj := balancedObject(rest[:end]); obj != "" {
				return obj
			}
		}
	}
	return balancedObject(text)
}

func balancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate
				}
				return ""
			}
		}
	}
	return ""
}
