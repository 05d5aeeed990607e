package model

import "time"

// SearchFilters narrows a marketplace search. Zero values mean "no filter".
type SearchFilters struct {
	PriceMin    float64 `json:"price_min,omitempty"`
	PriceMax    float64 `json:"price_max,omitempty"`
	Condition   string  `json:"condition,omitempty"`    // e.g. "new", "used"
	ListingType string  `json:"listing_type,omitempty"` // e.g. "auction", "buy_it_now"
	Location    string  `json:"location,omitempty"`
}

// Alert is a saved search owned by a user, re-run periodically by the scan
// cycle. Alerts are deactivated rather than deleted.
type Alert struct {
	ID        int64         `json:"id"`
	UserEmail string        `json:"user_email"` // owner identity
	Name      string        `json:"name"`       // user-defined label
	Terms     []string      `json:"terms"`      // ordered search terms
	Filters   SearchFilters `json:"filters"`
	Source    string        `json:"source"`      // marketplace, e.g. "ebay", "kleinanzeigen"
	IsActive  bool          `json:"is_active"`
	LastRunTS int64         `json:"last_run_ts"` // epoch seconds of the last scan, 0 if never run
	CreatedAt time.Time     `json:"created_at"`
}

// SeenItem is a ledger entry recording that a listing was observed for an
// alert. At most one row exists per (owner, alert, source, item); once
// recorded, the item is seen forever for that alert.
type SeenItem struct {
	UserEmail string `json:"user_email"`
	AlertID   int64  `json:"alert_id"`
	Source    string `json:"source"`
	ItemID    string `json:"item_id"`
	FirstSeen int64  `json:"first_seen"` // epoch seconds
	LastSent  int64  `json:"last_sent"`  // epoch seconds
}
