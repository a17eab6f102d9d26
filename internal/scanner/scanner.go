// Package scanner runs identification requests end to end: capture and search
// through the matcher, scan log persistence and the client-facing result.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/kozaktomas/fingerprint-matcher/internal/constants"
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/kozaktomas/fingerprint-matcher/internal/matcher"
	"github.com/kozaktomas/fingerprint-matcher/internal/sensor"
)

// Runner executes one identification run.
type Runner interface {
	Run(ctx context.Context) matcher.Outcome
}

// RunnerFactory builds a runner reading from the given capture source.
type RunnerFactory func(capture matcher.CaptureSource) Runner

// Request describes who asked for a scan. A non-empty Template bypasses the sensor.
type Request struct {
	IPAddress  string
	DeviceInfo string
	Template   fingerprint.Template
}

// IdentityView is the presentation form of a matched identity.
type IdentityView struct {
	ID        int64  `json:"id"`
	FullName  string `json:"full_name"`
	BirthDate string `json:"birth_date"`
	Passport  string `json:"passport"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
}

// Result is returned to clients.
type Result struct {
	ScanID     string        `json:"scan_id"`
	Success    bool          `json:"success"`
	Status     string        `json:"status"`
	Message    string        `json:"message"`
	Identity   *IdentityView `json:"identity,omitempty"`
	Similarity float64       `json:"similarity"` // percent, rounded
	Attempts   int           `json:"attempts"`
}

// Service runs scans and records them in the scan log.
type Service struct {
	capture matcher.CaptureSource
	build   RunnerFactory
	logs    database.ScanLogWriter
	logger  *slog.Logger
}

// NewService creates a scan service. capture is used for requests without a
// template and may be nil when every request brings its own.
func NewService(capture matcher.CaptureSource, build RunnerFactory, logs database.ScanLogWriter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		capture: capture,
		build:   build,
		logs:    logs,
		logger:  logger,
	}
}

// ErrNoCaptureSource is returned when a request carries no template and the
// service has no sensor configured.
var ErrNoCaptureSource = errors.New("no capture source configured")

// Scan identifies the fingerprint and records the attempt. The returned error
// is non-nil only when the run failed; the Result is filled in either way.
func (s *Service) Scan(ctx context.Context, req Request) (Result, error) {
	capture := s.capture
	if len(req.Template) > 0 {
		capture = sensor.NewStaticSource(req.Template)
	}
	if capture == nil {
		return Result{Status: matcher.StatusError, Message: systemError(ErrNoCaptureSource)}, ErrNoCaptureSource
	}

	outcome := s.build(capture).Run(ctx)

	log := database.NewScanLog()
	log.Status = outcome.Status()
	log.Attempts = outcome.AttemptCount()
	log.IPAddress = req.IPAddress
	log.DeviceInfo = req.DeviceInfo

	result := Result{
		ScanID:   log.ID.String(),
		Status:   outcome.Status(),
		Attempts: outcome.AttemptCount(),
	}

	var runErr error
	switch out := outcome.(type) {
	case matcher.Matched:
		id := out.Identity.ID
		log.IdentityID = &id
		log.Success = true
		log.Similarity = out.Similarity

		result.Success = true
		result.Message = constants.MessageMatched
		result.Similarity = Percent(out.Similarity)
		result.Identity = viewOf(out.Identity)
	case matcher.NoMatch:
		log.Similarity = out.BestSimilarity

		result.Message = constants.MessageNotMatched
		result.Similarity = Percent(out.BestSimilarity)
	case matcher.Failed:
		runErr = out
		result.Message = systemError(out.Err)
	}

	// the scan log must be written even when the caller went away
	if err := s.logs.SaveScanLog(context.WithoutCancel(ctx), log); err != nil {
		s.logger.Error("failed to save scan log", "scan_id", log.ID, "error", err)
	}

	return result, runErr
}

// Percent converts a similarity in [0, 1] to a percentage rounded for display.
func Percent(similarity float64) float64 {
	scale := math.Pow10(constants.SimilarityPercentDecimals)
	return math.Round(similarity*100*scale) / scale
}

func viewOf(identity database.StoredIdentity) *IdentityView {
	return &IdentityView{
		ID:        identity.ID,
		FullName:  identity.FullName,
		BirthDate: identity.BirthDate.Format(constants.BirthDateLayout),
		Passport:  identity.Passport,
		Address:   identity.Address,
		Phone:     identity.Phone,
	}
}

func systemError(err error) string {
	return fmt.Sprintf("%s: %v", constants.MessageSystemError, err)
}
