package storage

import (
	"mime"
	"path/filepath"
	"strings"
)

// contentTypeForFilename determines the MIME type for a stored asset from its
// extension. Stored assets are always JPEG or PDF, but extension lookup keeps
// this correct if further formats are added.
func contentTypeForFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".pdf":
		return "application/pdf"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
