package database

import (
	"context"
)

// IdentityReader provides read-only access to enrolled identities
type IdentityReader interface {
	// ListEnrolledIDs returns the ids of all enrolled identities in ascending order
	ListEnrolledIDs(ctx context.Context) ([]int64, error)
	// FetchByIDs loads the identities for the given ids; unknown ids are absent from the map
	FetchByIDs(ctx context.Context, ids []int64) (map[int64]StoredIdentity, error)
	// Count returns the number of enrolled identities
	Count(ctx context.Context) (int, error)
	// List returns a page of identities ordered by id
	List(ctx context.Context, limit, offset int) ([]StoredIdentity, error)
}

// ScanLogWriter persists the outcome of identification runs
type ScanLogWriter interface {
	SaveScanLog(ctx context.Context, log ScanLog) error
}

// Store is a backend that serves both identity reads and scan log writes.
type Store interface {
	IdentityReader
	ScanLogWriter
	Close() error
}
