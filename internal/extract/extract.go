package extract

import (
	"fmt"
	"strings"

	appErr "github.com/renliu0x/askdoc/internal/pkg/errors"
)

// Extractor turns raw uploaded bytes into plain text. Parsers for
// further formats register themselves by document type.
type Extractor interface {
	Extract(data []byte) (string, error)
}

type Factory func() Extractor

var registry = map[string]Factory{}

func Register(docType string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(docType))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

// ForType returns the extractor registered for docType, or
// ErrUnsupported when no parser handles the format.
func ForType(docType string) (Extractor, error) {
	key := strings.ToLower(strings.TrimSpace(docType))
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", appErr.ErrUnsupported, docType)
	}
	return factory(), nil
}

// Text runs the registered extractor and enforces the non-empty
// contract: a parse that yields no text is a failure, never a no-op.
func Text(data []byte, docType string) (string, error) {
	ex, err := ForType(docType)
	if err != nil {
		return "", err
	}
	text, err := ex.Extract(data)
	if err != nil {
		return "", err
	}
	text = normalize(text)
	if text == "" {
		return "", appErr.ErrEmptyText
	}
	return text, nil
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}
