package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/market-alerts/internal/model"
)

var ErrWatchedItemNotFound = errors.New("watched item not found")

// Repository provides access to watched items and their price snapshots.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new watch repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a watched item and returns its ID. Initial, current and
// lowest price all start at the price the item was added with.
func (r *Repository) Create(ctx context.Context, w model.WatchedItem) (int64, error) {
	query := `
		INSERT INTO watched_items (
		    user_id, item_id, title, url, image_url,
		    initial_price, current_price, lowest_price, currency,
		    notify_price_drop, notify_auction_ending, price_drop_threshold,
		    is_active, last_checked
		) VALUES ($1, $2, $3, $4, $5, $6, $6, $6, $7, $8, $9, $10, TRUE, NOW())
		RETURNING id;
    `

	var id int64
	err := r.db.Master.QueryRowContext(ctx, query,
		w.UserID, w.ItemID, w.Title, w.URL, w.ImageURL,
		w.InitialPrice, w.Currency,
		w.NotifyPriceDrop, w.NotifyAuctionEnding, w.PriceDropThreshold,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create watched item: %w", err)
	}

	return id, nil
}

// GetDue retrieves active items whose last check is older than the given
// cutoff. The price-watch cycle uses this as its staleness pre-filter.
func (r *Repository) GetDue(ctx context.Context, olderThan time.Time) ([]model.WatchedItem, error) {
	query := `
		SELECT id, user_id, item_id, title, url, image_url,
		       initial_price, current_price, lowest_price, currency,
		       notify_price_drop, notify_auction_ending, price_drop_threshold,
		       is_active, last_checked, created_at
		FROM watched_items
		WHERE is_active = TRUE AND last_checked < $1;
    `

	rows, err := r.db.QueryContext(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to get due watched items: %w", err)
	}
	defer rows.Close()

	var items []model.WatchedItem
	for rows.Next() {
		var w model.WatchedItem
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.ItemID, &w.Title, &w.URL, &w.ImageURL,
			&w.InitialPrice, &w.CurrentPrice, &w.LowestPrice, &w.Currency,
			&w.NotifyPriceDrop, &w.NotifyAuctionEnding, &w.PriceDropThreshold,
			&w.IsActive, &w.LastChecked, &w.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan watched item: %w", err)
		}

		items = append(items, w)
	}

	return items, rows.Err()
}

// ListByUser retrieves all active watched items for one user.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]model.WatchedItem, error) {
	query := `
		SELECT id, user_id, item_id, title, url, image_url,
		       initial_price, current_price, lowest_price, currency,
		       notify_price_drop, notify_auction_ending, price_drop_threshold,
		       is_active, last_checked, created_at
		FROM watched_items
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC;
    `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watched items: %w", err)
	}
	defer rows.Close()

	var items []model.WatchedItem
	for rows.Next() {
		var w model.WatchedItem
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.ItemID, &w.Title, &w.URL, &w.ImageURL,
			&w.InitialPrice, &w.CurrentPrice, &w.LowestPrice, &w.Currency,
			&w.NotifyPriceDrop, &w.NotifyAuctionEnding, &w.PriceDropThreshold,
			&w.IsActive, &w.LastChecked, &w.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan watched item: %w", err)
		}

		items = append(items, w)
	}

	return items, rows.Err()
}

// RecordSnapshot appends one immutable price snapshot.
func (r *Repository) RecordSnapshot(ctx context.Context, s model.PriceSnapshot) error {
	query := `
		INSERT INTO price_snapshots (watched_item_id, price, currency, available, bid_count)
		VALUES ($1, $2, $3, $4, $5);
    `

	_, err := r.db.ExecContext(ctx, query, s.WatchedItemID, s.Price, s.Currency, s.Available, s.BidCount)
	if err != nil {
		return fmt.Errorf("failed to record price snapshot: %w", err)
	}

	return nil
}

// UpdatePrices sets the current price, keeps the lowest price monotonic and
// bumps last_checked.
func (r *Repository) UpdatePrices(ctx context.Context, id int64, current float64, checkedAt time.Time) error {
	query := `
		UPDATE watched_items
		SET current_price = $1,
		    lowest_price = LEAST(lowest_price, $1),
		    last_checked = $2
		WHERE id = $3;
    `

	res, err := r.db.ExecContext(ctx, query, current, checkedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update watched item prices: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrWatchedItemNotFound
	}

	return nil
}

// UpdateNotifySettings changes the per-item notification flags.
func (r *Repository) UpdateNotifySettings(ctx context.Context, id, userID int64, priceDrop, auctionEnding bool, threshold int) error {
	query := `
		UPDATE watched_items
		SET notify_price_drop = $1, notify_auction_ending = $2, price_drop_threshold = $3
		WHERE id = $4 AND user_id = $5;
    `

	res, err := r.db.ExecContext(ctx, query, priceDrop, auctionEnding, threshold, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update watched item settings: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrWatchedItemNotFound
	}

	return nil
}

// Deactivate soft-deletes a watched item.
func (r *Repository) Deactivate(ctx context.Context, id, userID int64) error {
	query := `
		UPDATE watched_items
		SET is_active = FALSE
		WHERE id = $1 AND user_id = $2;
    `

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate watched item: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrWatchedItemNotFound
	}

	return nil
}

// History retrieves the item's price snapshots recorded at or after the
// given time, oldest first.
func (r *Repository) History(ctx context.Context, watchedItemID int64, since time.Time) ([]model.PriceSnapshot, error) {
	query := `
		SELECT id, watched_item_id, price, currency, available, bid_count, recorded_at
		FROM price_snapshots
		WHERE watched_item_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC;
    `

	rows, err := r.db.QueryContext(ctx, query, watchedItemID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	defer rows.Close()

	var snapshots []model.PriceSnapshot
	for rows.Next() {
		var s model.PriceSnapshot
		if err := rows.Scan(&s.ID, &s.WatchedItemID, &s.Price, &s.Currency, &s.Available, &s.BidCount, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price snapshot: %w", err)
		}

		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}
