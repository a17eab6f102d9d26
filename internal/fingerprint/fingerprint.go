package fingerprint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrLengthMismatch is returned when two templates of different lengths are compared.
var ErrLengthMismatch = errors.New("template length mismatch")

// Similarity computes the fraction of identical bytes between two templates.
// Bytes are XORed position by position and zero results are counted as matches.
// The upstream characteristic extraction is expected to have aligned both templates,
// so this is an exact Hamming similarity, not a tolerant biometric distance.
//
// Templates of different lengths yield 0 and ErrLengthMismatch.
func Similarity(a, b Template) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}

	matching := 0
	for i := range a {
		if a[i]^b[i] == 0 {
			matching++
		}
	}

	return float64(matching) / float64(len(a)), nil
}

// Score is Similarity without the error: mismatched lengths score 0.
func Score(a, b Template) float64 {
	s, _ := Similarity(a, b)
	return s
}

// ReadFile loads a template from disk. Files with a .hex extension are hex decoded,
// .b64 files are base64 decoded, anything else is read as raw bytes.
func ReadFile(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex":
		return ParseHex(string(data))
	case ".b64":
		return ParseBase64(string(data))
	}

	if len(data) == 0 {
		return nil, ErrEmptyTemplate
	}
	return Template(data), nil
}

// IsTemplateFile reports whether a file name looks like a template file.
func IsTemplateFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hex", ".b64", ".bin", ".tpl":
		return true
	}
	return false
}
