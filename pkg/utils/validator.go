package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Upload MIME types accepted for extraction
var supportedUploadTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"application/pdf": true,
}

// ValidateUpload checks an uploaded timesheet before it is stored
func ValidateUpload(filename string, size int, mimeType string, maxBytes int64) error {
	if size == 0 {
		return fmt.Errorf("upload is empty: %s", filename)
	}
	if maxBytes > 0 && int64(size) > maxBytes {
		return fmt.Errorf("upload exceeds maximum size of %d bytes: %s", maxBytes, filename)
	}
	if !supportedUploadTypes[NormalizeMimeType(mimeType)] {
		return fmt.Errorf("unsupported upload type %q: %s", mimeType, filename)
	}
	return nil
}

// NormalizeMimeType strips parameters and lower-cases a content type
func NormalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// MimeTypeFromExtension guesses the upload type from a file name
func MimeTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".pdf":
		return "application/pdf"
	}
	return ""
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeFilename keeps the base name of a path and replaces anything
// outside [A-Za-z0-9._-]. Leading dots are removed and an empty result
// becomes "upload".
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload"
	}
	return name
}
