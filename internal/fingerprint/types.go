package fingerprint

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Template is the fixed-length byte encoding of extracted fingerprint characteristics.
// Two templates are comparable only if they have the same length.
type Template []byte

// ComparisonResult is the outcome of comparing an input template against one enrolled template.
type ComparisonResult struct {
	Similarity float64 `json:"similarity"`
	Matched    bool    `json:"matched"`
}

// NewComparisonResult builds a result, marking it matched when similarity reaches the threshold.
func NewComparisonResult(similarity, threshold float64) ComparisonResult {
	return ComparisonResult{
		Similarity: similarity,
		Matched:    similarity >= threshold,
	}
}

// ErrEmptyTemplate is returned when decoding yields no bytes.
var ErrEmptyTemplate = errors.New("empty template")

// Clone returns an independent copy of the template.
func (t Template) Clone() Template {
	if t == nil {
		return nil
	}
	out := make(Template, len(t))
	copy(out, t)
	return out
}

// Hex returns the template encoded as lowercase hex.
func (t Template) Hex() string {
	return hex.EncodeToString(t)
}

// Base64 returns the template encoded as standard base64.
func (t Template) Base64() string {
	return base64.StdEncoding.EncodeToString(t)
}

// ParseHex decodes a hex encoded template. Whitespace is ignored so templates can be wrapped.
func ParseHex(s string) (Template, error) {
	cleaned := strings.Join(strings.Fields(s), "")
	if cleaned == "" {
		return nil, ErrEmptyTemplate
	}
	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode hex template: %w", err)
	}
	return Template(data), nil
}

// ParseBase64 decodes a standard base64 encoded template.
func ParseBase64(s string) (Template, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyTemplate
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64 template: %w", err)
	}
	return Template(data), nil
}
