package sqlitestore

import (
	"context"
	"database/sql"
)

// SnapshotTx exposes the transaction Stats reads through.
func (s *Store) SnapshotTx(ctx context.Context) (*sql.Tx, error) {
	return s.snapshotTx(ctx)
}
