// Package storage issues upload locations for QC photos and videos. The
// order core stores the returned media refs as opaque strings.
package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/domain/shared"
)

// allowedContentTypes lists the media accepted as QC evidence
var allowedContentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
}

// IsAllowedContentType reports whether QC media of this type is accepted
func IsAllowedContentType(contentType string) bool {
	_, ok := allowedContentTypes[strings.ToLower(contentType)]
	return ok
}

// MediaKey builds the object key for a QC upload:
// <prefix>qc/<order id>/<stage>/<random id>-<file name>
func MediaKey(prefix string, orderID uuid.UUID, stage order.Stage, fileName, contentType string) (string, error) {
	if !stage.IsValid() {
		return "", shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown QC stage: %s", stage))
	}
	ext, ok := allowedContentTypes[strings.ToLower(contentType)]
	if !ok {
		return "", shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Content type %q is not accepted for QC media", contentType))
	}

	name := sanitizeFileName(fileName)
	if name == "" {
		name = "media" + ext
	}
	return fmt.Sprintf("%sqc/%s/%s/%s-%s", prefix, orderID, stage, uuid.NewString(), name), nil
}

// sanitizeFileName keeps the base name and replaces characters that need
// escaping in URLs
func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}
