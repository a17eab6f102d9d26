package sensor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kozaktomas/fingerprint-matcher/internal/constants"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/kozaktomas/fingerprint-matcher/internal/matcher"
)

// BridgeClient talks to the sensor bridge daemon that owns the reader hardware.
// It is both a capture source and, for readers with on-chip matching, a scorer.
type BridgeClient struct {
	URL       string
	parsedURL *url.URL
	token     string
	http      *http.Client
}

type captureResponse struct {
	Template string `json:"template"` // base64
}

type compareRequest struct {
	Probe     string `json:"probe"`
	Candidate string `json:"candidate"`
}

type compareResponse struct {
	Similarity float64 `json:"similarity"`
}

type healthResponse struct {
	Status string `json:"status"`
	Device string `json:"device,omitempty"`
}

var (
	_ matcher.CaptureSource = (*BridgeClient)(nil)
	_ matcher.Scorer        = (*BridgeClient)(nil)
)

// NewBridgeClient creates a client for the bridge at rawURL. The timeout bounds
// every request, including a capture waiting for a finger.
func NewBridgeClient(rawURL, token string, timeout time.Duration) (*BridgeClient, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid bridge URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid bridge URL %q: scheme must be http or https", rawURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid bridge URL %q: missing host", rawURL)
	}

	return &BridgeClient{
		URL:       parsed.String(),
		parsedURL: parsed,
		token:     token,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

func (c *BridgeClient) resolveURL(endpoint string) string {
	return c.parsedURL.JoinPath(endpoint).String()
}

// AcquireTemplate asks the bridge for a fresh capture. A 204 means no finger was
// presented and yields a nil template. A busy reader (503) or an unreachable
// bridge is reported as ErrCaptureUnavailable.
func (c *BridgeClient) AcquireTemplate(ctx context.Context) (fingerprint.Template, error) {
	resp, err := doGetJSON[captureResponse](ctx, c, constants.BridgeCapturePath, http.StatusOK, http.StatusNoContent)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if IsStatus(err, http.StatusServiceUnavailable) || isTransportError(err) {
			return nil, fmt.Errorf("%w: %v", matcher.ErrCaptureUnavailable, err)
		}
		return nil, err
	}
	if resp == nil || strings.TrimSpace(resp.Template) == "" {
		return nil, nil
	}

	t, err := fingerprint.ParseBase64(resp.Template)
	if err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return t, nil
}

// isTransportError reports whether the request never got an HTTP answer:
// connection refused, DNS failure or a client timeout.
func isTransportError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Score runs the reader's native comparison of two templates.
func (c *BridgeClient) Score(ctx context.Context, probe, candidate fingerprint.Template) (float64, error) {
	if len(probe) != len(candidate) {
		return 0, fmt.Errorf("%w: %d != %d", fingerprint.ErrLengthMismatch, len(probe), len(candidate))
	}

	resp, err := doPostJSON[compareResponse](ctx, c, constants.BridgeComparePath, compareRequest{
		Probe:     probe.Base64(),
		Candidate: candidate.Base64(),
	})
	if err != nil {
		return 0, fmt.Errorf("native compare: %w", err)
	}
	if resp.Similarity < 0 || resp.Similarity > 1 {
		return 0, fmt.Errorf("native compare: similarity %v out of range", resp.Similarity)
	}
	return resp.Similarity, nil
}

// Health checks that the bridge is up and the reader is attached.
func (c *BridgeClient) Health(ctx context.Context) (string, error) {
	resp, err := doGetJSON[healthResponse](ctx, c, constants.BridgeHealthPath)
	if err != nil {
		return "", fmt.Errorf("bridge health: %w", err)
	}
	if resp.Status != "ok" {
		return resp.Device, fmt.Errorf("bridge health: status %q", resp.Status)
	}
	return resp.Device, nil
}
