package model

import "time"

// WatchedItem is a single marketplace listing tracked for price changes,
// independent of any alert. Soft-deleted via IsActive.
type WatchedItem struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	ItemID    string `json:"item_id"` // marketplace item id
	Title     string `json:"title"`
	URL       string `json:"url"`
	ImageURL  string `json:"image_url,omitempty"`

	InitialPrice float64 `json:"initial_price"`
	CurrentPrice float64 `json:"current_price"`
	LowestPrice  float64 `json:"lowest_price"`
	Currency     string  `json:"currency"`

	NotifyPriceDrop     bool `json:"notify_price_drop"`
	NotifyAuctionEnding bool `json:"notify_auction_ending"`
	PriceDropThreshold  int  `json:"price_drop_threshold"` // percent

	IsActive    bool      `json:"is_active"`
	LastChecked time.Time `json:"last_checked"`
	CreatedAt   time.Time `json:"created_at"`
}

// PriceSnapshot is an immutable, append-only record of one price check.
// Snapshots form the time series behind price history and trends.
type PriceSnapshot struct {
	ID            int64     `json:"id"`
	WatchedItemID int64     `json:"watched_item_id"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	Available     bool      `json:"available"`
	BidCount      int       `json:"bid_count"` // auctions only
	RecordedAt    time.Time `json:"recorded_at"`
}

// PriceQuote is what the external price capability returns for one item.
type PriceQuote struct {
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Available bool    `json:"available"`
	BidCount  int     `json:"bid_count"`
}
