package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedMIMEType is returned when no registered Extractor can
// handle a MIME type.
var ErrUnsupportedMIMEType = errors.New("extract: unsupported mime type")

// Extractor turns a raw content blob into text. Concrete non-text
// extractors (PDF, DOCX, OCR, vision-LLM) are external collaborators this
// module treats as a pass-through contract only -- unsupported modalities
// resolve to ErrUnsupportedMIMEType rather than a best-effort guess.
type Extractor interface {
	// Extract returns the text content of blob, or an error wrapping
	// ErrUnsupportedMIMEType if mimeType is not handled.
	Extract(ctx context.Context, blob []byte, mimeType string) (ExtractedContent, error)
	// Supports reports whether this extractor handles mimeType.
	Supports(mimeType string) bool
}

// TextExtractor handles plain-text and markdown content directly; it is
// the only concretely implemented Extractor in this module.
type TextExtractor struct{}

// NewTextExtractor returns a TextExtractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

var textMIMETypes = map[string]bool{
	"text/plain":    true,
	"text/markdown": true,
	"text/csv":      true,
}

func (e *TextExtractor) Supports(mimeType string) bool {
	return textMIMETypes[baseMIMEType(mimeType)]
}

func (e *TextExtractor) Extract(ctx context.Context, blob []byte, mimeType string) (ExtractedContent, error) {
	if !e.Supports(mimeType) {
		return ExtractedContent{}, fmt.Errorf("%w: %q", ErrUnsupportedMIMEType, mimeType)
	}
	return ExtractedContent{
		Text:     string(blob),
		Modality: ModalityText,
		Method:   "plain-text",
	}, nil
}

func baseMIMEType(mimeType string) string {
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.TrimSpace(strings.ToLower(mimeType))
}

// Pipeline dispatches to the first registered Extractor that supports a
// given MIME type.
type Pipeline struct {
	extractors []Extractor
}

// NewPipeline builds a Pipeline from the given extractors, tried in order.
func NewPipeline(extractors ...Extractor) *Pipeline {
	return &Pipeline{extractors: extractors}
}

// WithDefaults returns a Pipeline backed only by TextExtractor. Callers
// that need PDF/DOCX/image/audio support register additional Extractor
// implementations via NewPipeline.
func WithDefaults() *Pipeline {
	return NewPipeline(NewTextExtractor())
}

func (p *Pipeline) Extract(ctx context.Context, blob []byte, mimeType string) (ExtractedContent, error) {
	for _, ex := range p.extractors {
		if ex.Supports(mimeType) {
			return ex.Extract(ctx, blob, mimeType)
		}
	}
	return ExtractedContent{}, fmt.Errorf("%w: %q", ErrUnsupportedMIMEType, mimeType)
}

func (p *Pipeline) Supports(mimeType string) bool {
	for _, ex := range p.extractors {
		if ex.Supports(mimeType) {
			return true
		}
	}
	return false
}

// SupportedTypes returns the MIME types any registered extractor supports,
// probed against a fixed candidate list since Extractor exposes no
// enumeration method.
func (p *Pipeline) SupportedTypes() []string {
	candidates := []string{"text/plain", "text/markdown", "text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "image/png", "image/jpeg"}
	var supported []string
	for _, c := range candidates {
		if p.Supports(c) {
			supported = append(supported, c)
		}
	}
	return supported
}
