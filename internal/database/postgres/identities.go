package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/fingerprint-matcher/internal/database"
	"github.com/lib/pq"
)

const identityColumns = `id, full_name, birth_date, passport, address, phone, template, created_at, updated_at`

// IdentityRepository provides PostgreSQL-backed identity reads
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// ListEnrolledIDs returns all identity ids in ascending order
func (r *IdentityRepository) ListEnrolledIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.db.QueryContext(ctx, `SELECT id FROM identities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list enrolled ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan identity id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity ids: %w", err)
	}
	return ids, nil
}

// FetchByIDs loads identities for the given ids in a single query
func (r *IdentityRepository) FetchByIDs(ctx context.Context, ids []int64) (map[int64]database.StoredIdentity, error) {
	result := make(map[int64]database.StoredIdentity, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = ANY($1)`
	rows, err := r.pool.db.QueryContext(ctx, query, pq.Array(ids))
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
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return result, nil
}

// Count returns the number of enrolled identities
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// List returns a page of identities ordered by id
func (r *IdentityRepository) List(ctx context.Context, limit, offset int) ([]database.StoredIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := r.pool.db.QueryContext(ctx, query, limit, offset)
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
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
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
