package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
)

// StoredIdentity represents an enrolled person with their fingerprint template
type StoredIdentity struct {
	ID        int64
	FullName  string
	BirthDate time.Time
	Passport  string
	Address   string
	Phone     string
	Template  fingerprint.Template
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScanLog records one identification run
type ScanLog struct {
	ID         uuid.UUID
	IdentityID *int64 // nil when nothing matched
	Success    bool
	Similarity float64
	Attempts   int
	Status     string // matched, no_match or error
	IPAddress  string
	DeviceInfo string
	ScannedAt  time.Time
}

// NewScanLog returns a scan log with a fresh id and the current time.
func NewScanLog() ScanLog {
	return ScanLog{
		ID:        uuid.New(),
		ScannedAt: time.Now().UTC(),
	}
}
