package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/fingerprint-matcher/internal/config"
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "identities.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := range n {
		id, err := store.insertIdentity(context.Background(), database.StoredIdentity{
			FullName:  fmt.Sprintf("Person %d", i),
			BirthDate: time.Date(1980+i, time.March, 3, 0, 0, 0, 0, time.UTC),
			Passport:  fmt.Sprintf("AA%07d", i),
			Address:   "Somewhere",
			Phone:     "+998900000000",
			Template:  fingerprint.Template{byte(i), 1, 2, 3},
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestStore_ListAndFetch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ids := seed(t, store, 5)

	listed, err := store.ListEnrolledIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids, listed)

	got, err := store.FetchByIDs(ctx, []int64{ids[1], ids[3], 12345})
	require.NoError(t, err)
	require.Len(t, got, 2)

	person := got[ids[3]]
	assert.Equal(t, "Person 3", person.FullName)
	assert.Equal(t, fingerprint.Template{3, 1, 2, 3}, person.Template)
	assert.Equal(t, 1983, person.BirthDate.Year())
	assert.False(t, person.CreatedAt.IsZero())
}

func TestStore_FetchByIDs_Empty(t *testing.T) {
	store := openTestStore(t)
	got, err := store.FetchByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_CountAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ids := seed(t, store, 4)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	page, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)
}

func TestStore_SaveScanLog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ids := seed(t, store, 1)

	hit := database.NewScanLog()
	hit.IdentityID = &ids[0]
	hit.Success = true
	hit.Similarity = 0.98
	hit.Attempts = 2
	hit.Status = "matched"
	hit.IPAddress = "192.168.1.10"
	hit.DeviceInfo = "kiosk-1"
	require.NoError(t, store.SaveScanLog(ctx, hit))

	miss := database.NewScanLog()
	miss.Status = "no_match"
	require.NoError(t, store.SaveScanLog(ctx, miss))

	var (
		status   string
		attempts int
		ip       *string
	)
	err := store.db.QueryRowContext(ctx, `SELECT status, attempts, ip_address FROM scan_logs WHERE id = ?`, hit.ID.String()).
		Scan(&status, &attempts, &ip)
	require.NoError(t, err)
	assert.Equal(t, "matched", status)
	assert.Equal(t, 2, attempts)
	require.NotNil(t, ip)
	assert.Equal(t, "192.168.1.10", *ip)

	err = store.db.QueryRowContext(ctx, `SELECT ip_address FROM scan_logs WHERE id = ?`, miss.ID.String()).Scan(&ip)
	require.NoError(t, err)
	assert.Nil(t, ip)
}

func TestOpen_ReappliesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	seed(t, store, 2)
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var migrations int
	require.NoError(t, reopened.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&migrations))
	assert.Equal(t, 2, migrations)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestDatabaseOpen_Registered(t *testing.T) {
	store, err := database.Open(context.Background(), &config.DatabaseConfig{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "via-registry.db"),
	})
	require.NoError(t, err)
	defer store.Close()

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

// insertIdentity stores a fixture identity and returns its id.
func (s *Store) insertIdentity(ctx context.Context, identity database.StoredIdentity) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (full_name, birth_date, passport, address, phone, template, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		identity.FullName,
		identity.BirthDate.Format(dateLayout),
		identity.Passport,
		identity.Address,
		identity.Phone,
		[]byte(identity.Template),
		now,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert identity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}
