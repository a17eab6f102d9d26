package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/kozaktomas/fingerprint-matcher/internal/scanner"
)

// Scanner runs one identification request.
type Scanner interface {
	Scan(ctx context.Context, req scanner.Request) (scanner.Result, error)
}

// IdentifyHandler handles fingerprint identification requests
type IdentifyHandler struct {
	scanner Scanner
	logger  *slog.Logger
}

// NewIdentifyHandler creates a new identify handler
func NewIdentifyHandler(s Scanner, logger *slog.Logger) *IdentifyHandler {
	return &IdentifyHandler{scanner: s, logger: logger}
}

// IdentifyRequest is the optional body of POST /identify.
type IdentifyRequest struct {
	Template string `json:"template"` // base64; empty reads from the sensor
}

// Identify runs a scan. Without a template in the body the configured sensor is used.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var body IdentifyRequest
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&body)
		if err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}

	req := scanner.Request{
		IPAddress:  clientIP(r),
		DeviceInfo: sanitizeForLog(r.UserAgent()),
	}
	if strings.TrimSpace(body.Template) != "" {
		t, err := fingerprint.ParseBase64(body.Template)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid template: "+err.Error())
			return
		}
		req.Template = t
	}

	result, err := h.scanner.Scan(r.Context(), req)
	switch {
	case errors.Is(err, scanner.ErrNoCaptureSource):
		respondError(w, http.StatusBadRequest, "template is required, no sensor is configured")
	case err != nil:
		h.logger.Error("identification failed",
			"scan_id", result.ScanID,
			"ip", req.IPAddress,
			"error", err)
		respondJSON(w, http.StatusInternalServerError, result)
	default:
		respondJSON(w, http.StatusOK, result)
	}
}
