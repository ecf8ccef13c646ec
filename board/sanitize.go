package board

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans description HTML and converts it to markdown for reports.
// Board pages are hostile input; everything goes through the UGC policy first.
type Sanitizer struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewSanitizer creates a Sanitizer with the shared policy and converter.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Markdown sanitizes rawHTML and converts it to markdown. If conversion fails
// or produces empty output, the plain-text fallback is returned instead.
func (s *Sanitizer) Markdown(rawHTML, sourceURL, fallback string) string {
	if rawHTML == "" {
		return fallback
	}
	clean := s.policy.Sanitize(rawHTML)
	result, err := s.conv.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(result) == "" {
		return fallback
	}
	return strings.TrimSpace(result)
}
