package seen

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/dbpg"
)

// Repository is the seen-item ledger: one row per (owner, alert, source,
// item), written at most once. There are no update or delete operations;
// once an item is recorded for an alert it stays seen.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new ledger repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// MarkSeen records the item for the alert if it is not recorded yet.
// It returns true when this call inserted a new row and false when the key
// already existed. The ON CONFLICT clause makes the insert-if-absent atomic,
// so concurrent scans of the same alert cannot both observe "new".
func (r *Repository) MarkSeen(ctx context.Context, userEmail string, alertID int64, source, itemID string, now int64) (bool, error) {
	query := `
		INSERT INTO alert_seen (user_email, alert_id, source, item_id, first_seen, last_sent)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_email, alert_id, source, item_id) DO NOTHING;
    `

	res, err := r.db.ExecContext(ctx, query, userEmail, alertID, source, itemID, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark item seen: %w", err)
	}

	rows, _ := res.RowsAffected()

	return rows > 0, nil
}

// HasSeen reports whether the item was already recorded for the alert.
func (r *Repository) HasSeen(ctx context.Context, userEmail string, alertID int64, source, itemID string) (bool, error) {
	query := `
		SELECT EXISTS (
		    SELECT 1 FROM alert_seen
		    WHERE user_email = $1 AND alert_id = $2 AND source = $3 AND item_id = $4
		);
    `

	var exists bool
	err := r.db.Master.QueryRowContext(ctx, query, userEmail, alertID, source, itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check seen item: %w", err)
	}

	return exists, nil
}
