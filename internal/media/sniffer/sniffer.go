// Package sniffer decides whether an upload is an accepted video container.
package sniffer

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// HeadSize is how many leading bytes Classify needs to see.
const HeadSize = 3072

const octetStream = "application/octet-stream"

var ErrUnsupportedType = errors.New("unsupported video type")

var allowedPattern = regexp.MustCompile(`^video/(avi|mov|quicktime|x-msvideo)$`)

var extensionTypes = map[string]string{
	".avi": "video/x-msvideo",
	".mov": "video/quicktime",
	".qt":  "video/quicktime",
}

func Allowed(mimeType string) bool {
	return allowedPattern.MatchString(strings.ToLower(mimeType))
}

// Classify returns the MIME type to record for an upload, or ErrUnsupportedType.
//
// The sniffed type wins when it is recognised. Only when the content is opaque
// (application/octet-stream) do the declared part type and then the file extension count.
func Classify(head []byte, declared, filename string) (string, error) {
	detected := mimetype.Detect(head).String()
	if Allowed(detected) {
		return detected, nil
	}
	if detected != octetStream {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, detected)
	}

	if declared = normalize(declared); Allowed(declared) {
		return declared, nil
	}

	if byExt, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return byExt, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, octetStream)
}

func MimeTypeFromHTTP(header http.Header) string {
	return normalize(header.Get("Content-Type"))
}

func normalize(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
