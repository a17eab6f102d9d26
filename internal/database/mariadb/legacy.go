package mariadb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kozaktomas/fingerprint-matcher/internal/database"
)

// The enrollment admin owns these tables; this backend only reads identities
// and appends scan logs.
const (
	identityTable = "users_fingerprintdata"
	scanLogTable  = "users_scanninglog"

	identityColumns = `id, full_name, birth_date, passport, address, phone, fingerprint_template, created_at, updated_at`
)

// ListEnrolledIDs returns all identity ids in ascending order
func (p *Pool) ListEnrolledIDs(ctx context.Context) ([]int64, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM `+identityTable+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list enrolled ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return ids, nil
}

// FetchByIDs loads identities for the given ids in a single query
func (p *Pool) FetchByIDs(ctx context.Context, ids []int64) (map[int64]database.StoredIdentity, error) {
	result := make(map[int64]database.StoredIdentity, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT ` + identityColumns + ` FROM ` + identityTable + ` WHERE id IN (` + placeholders + `)`
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch identities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		result[identity.ID] = identity
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// Count returns the number of enrolled identities
func (p *Pool) Count(ctx context.Context) (int, error) {
	var count int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+identityTable).Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// List returns a page of identities ordered by id
func (p *Pool) List(ctx context.Context, limit, offset int) ([]database.StoredIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM ` + identityTable + ` ORDER BY id LIMIT ? OFFSET ?`
	rows, err := p.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []database.StoredIdentity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return identities, nil
}

// SaveScanLog appends a row to the legacy scan log table.
// The legacy table has an auto-increment id and no status or attempts columns.
func (p *Pool) SaveScanLog(ctx context.Context, log database.ScanLog) error {
	query := `INSERT INTO ` + scanLogTable + ` (fingerprint_data_id, success, similarity, scanned_at, ip_address, device_info)
		VALUES (?, ?, ?, ?, ?, ?)`

	var identityID sql.NullInt64
	if log.IdentityID != nil {
		identityID = sql.NullInt64{Int64: *log.IdentityID, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, query,
		identityID,
		log.Success,
		log.Similarity,
		log.ScannedAt,
		sql.NullString{String: log.IPAddress, Valid: log.IPAddress != ""},
		sql.NullString{String: log.DeviceInfo, Valid: log.DeviceInfo != ""},
	)
	if err != nil {
		return fmt.Errorf("save scan log: %w", err)
	}
	return nil
}

func scanIdentity(rows *sql.Rows) (database.StoredIdentity, error) {
	var s database.StoredIdentity
	err := rows.Scan(
		&s.ID,
		&s.FullName,
		&s.BirthDate,
		&s.Passport,
		&s.Address,
		&s.Phone,
		&s.Template,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return s, fmt.Errorf("scan identity: %w", err)
	}
	return s, nil
}
