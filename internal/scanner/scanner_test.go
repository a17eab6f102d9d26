package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/fingerprint-matcher/internal/constants"
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
	"github.com/kozaktomas/fingerprint-matcher/internal/database/mock"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/kozaktomas/fingerprint-matcher/internal/logging"
	"github.com/kozaktomas/fingerprint-matcher/internal/matcher"
	"github.com/kozaktomas/fingerprint-matcher/internal/sensor"
)

type fixedRunner struct {
	outcome matcher.Outcome
}

func (r fixedRunner) Run(context.Context) matcher.Outcome { return r.outcome }

func fixed(outcome matcher.Outcome, seen *matcher.CaptureSource) RunnerFactory {
	return func(capture matcher.CaptureSource) Runner {
		if seen != nil {
			*seen = capture
		}
		return fixedRunner{outcome: outcome}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1, 100},
		{0, 0},
		{0.9, 90},
		{510.0 / 512.0, 99.61},
		{307.0 / 512.0, 59.96},
		{0.123456, 12.35},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Percent(tc.in), "Percent(%v)", tc.in)
	}
}

func TestScan_Matched(t *testing.T) {
	store := mock.NewMockIdentityStore()
	identity := database.StoredIdentity{
		ID:        42,
		FullName:  "Jan Novak",
		BirthDate: time.Date(1985, 3, 7, 0, 0, 0, 0, time.UTC),
		Passport:  "AB1234567",
		Address:   "Brno",
		Phone:     "+420123456789",
	}
	svc := NewService(sensor.NewStaticSource(fingerprint.Template{1}),
		fixed(matcher.Matched{Identity: identity, Similarity: 0.9765, Attempts: 2}, nil),
		store, logging.Nop())

	res, err := svc.Scan(context.Background(), Request{IPAddress: "10.0.0.5", DeviceInfo: "kiosk-1"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, constants.MessageMatched, res.Message)
	assert.Equal(t, matcher.StatusMatched, res.Status)
	assert.Equal(t, 97.65, res.Similarity)
	assert.Equal(t, 2, res.Attempts)
	require.NotNil(t, res.Identity)
	assert.Equal(t, "07.03.1985", res.Identity.BirthDate)
	assert.Equal(t, "Jan Novak", res.Identity.FullName)

	logs := store.ScanLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, res.ScanID, logs[0].ID.String())
	require.NotNil(t, logs[0].IdentityID)
	assert.Equal(t, int64(42), *logs[0].IdentityID)
	assert.True(t, logs[0].Success)
	assert.Equal(t, "10.0.0.5", logs[0].IPAddress)
	assert.Equal(t, "kiosk-1", logs[0].DeviceInfo)
	assert.Equal(t, 2, logs[0].Attempts)
}

func TestScan_NoMatch(t *testing.T) {
	store := mock.NewMockIdentityStore()
	svc := NewService(sensor.NewStaticSource(fingerprint.Template{1}),
		fixed(matcher.NoMatch{BestSimilarity: 0.5996, Attempts: 3}, nil),
		store, logging.Nop())

	res, err := svc.Scan(context.Background(), Request{})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Nil(t, res.Identity)
	assert.Equal(t, constants.MessageNotMatched, res.Message)
	assert.Equal(t, 59.96, res.Similarity)

	logs := store.ScanLogs()
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].IdentityID)
	assert.Equal(t, matcher.StatusNoMatch, logs[0].Status)
	assert.Equal(t, 0.5996, logs[0].Similarity)
}

func TestScan_Failed(t *testing.T) {
	store := mock.NewMockIdentityStore()
	boom := errors.New("database unreachable")
	svc := NewService(sensor.NewStaticSource(fingerprint.Template{1}),
		fixed(matcher.Failed{Err: boom, Attempts: 1}, nil),
		store, logging.Nop())

	res, err := svc.Scan(context.Background(), Request{})
	require.ErrorIs(t, err, boom)

	assert.False(t, res.Success)
	assert.Equal(t, matcher.StatusError, res.Status)
	assert.Equal(t, "System error: database unreachable", res.Message)
	assert.Zero(t, res.Similarity)
	assert.Len(t, store.ScanLogs(), 1)
}

func TestScan_TemplateOverridesSensor(t *testing.T) {
	var seen matcher.CaptureSource
	svc := NewService(nil, fixed(matcher.NoMatch{Attempts: 1}, &seen), mock.NewMockIdentityStore(), logging.Nop())

	_, err := svc.Scan(context.Background(), Request{Template: fingerprint.Template{5, 6}})
	require.NoError(t, err)
	require.IsType(t, &sensor.StaticSource{}, seen)

	got, err := seen.AcquireTemplate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fingerprint.Template{5, 6}, got)
}

func TestScan_NoCaptureSource(t *testing.T) {
	store := mock.NewMockIdentityStore()
	svc := NewService(nil, fixed(matcher.NoMatch{}, nil), store, logging.Nop())

	_, err := svc.Scan(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoCaptureSource)
	assert.Empty(t, store.ScanLogs())
}

func TestScan_ScanLogFailureIsNotFatal(t *testing.T) {
	store := mock.NewMockIdentityStore()
	store.SaveError = errors.New("disk full")
	svc := NewService(sensor.NewStaticSource(fingerprint.Template{1}),
		fixed(matcher.NoMatch{Attempts: 1}, nil), store, logging.Nop())

	res, err := svc.Scan(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, matcher.StatusNoMatch, res.Status)
}

func TestScan_EndToEnd(t *testing.T) {
	enrolledTemplate := make(fingerprint.Template, 64)
	for i := range enrolledTemplate {
		enrolledTemplate[i] = byte(i * 7)
	}
	store := mock.NewMockIdentityStore()
	store.AddIdentity(database.StoredIdentity{
		ID:        7,
		FullName:  "Eva Svobodova",
		BirthDate: time.Date(1992, 12, 31, 0, 0, 0, 0, time.UTC),
		Template:  enrolledTemplate,
	})

	params := matcher.DefaultParams()
	build := func(capture matcher.CaptureSource) Runner {
		return matcher.New(capture, store, nil, nil, params, matcher.WithLogger(logging.Nop()))
	}
	svc := NewService(nil, build, store, logging.Nop())

	res, err := svc.Scan(context.Background(), Request{Template: enrolledTemplate})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 100.0, res.Similarity)
	assert.Equal(t, "31.12.1992", res.Identity.BirthDate)
}
