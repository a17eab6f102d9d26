package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/fingerprint-matcher/internal/database"
)

// ScanLogRepository provides PostgreSQL-backed scan log storage
type ScanLogRepository struct {
	pool *Pool
}

// NewScanLogRepository creates a new PostgreSQL scan log repository
func NewScanLogRepository(pool *Pool) *ScanLogRepository {
	return &ScanLogRepository{pool: pool}
}

// SaveScanLog stores a scan log row
func (r *ScanLogRepository) SaveScanLog(ctx context.Context, log database.ScanLog) error {
	query := `
		INSERT INTO scan_logs (id, identity_id, success, similarity, attempts, status, ip_address, device_info, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.db.ExecContext(ctx, query,
		log.ID,
		nullInt64(log.IdentityID),
		log.Success,
		log.Similarity,
		log.Attempts,
		log.Status,
		nullString(log.IPAddress),
		nullString(log.DeviceInfo),
		log.ScannedAt,
	)
	if err != nil {
		return fmt.Errorf("save scan log: %w", err)
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
