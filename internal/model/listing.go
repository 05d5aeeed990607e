package model

// Listing is the record every marketplace adapter returns from a search.
// Adapters normalize into this shape so downstream code never branches on
// missing keys.
type Listing struct {
	ID        string  `json:"id"`       // marketplace item id, may be empty when only a URL is known
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"` // e.g. "EUR"
	URL       string  `json:"url"`
	ImageURL  string  `json:"image_url,omitempty"`
	Condition string  `json:"condition,omitempty"`
	Location  string  `json:"location,omitempty"`
	Source    string  `json:"source"` // marketplace the listing came from
}

// ItemKey returns a stable de-duplication identifier for the listing: the
// explicit id when present, otherwise the URL, truncated to 200 characters
// to fit the ledger key column. Truncation is by rune so the key is always
// valid UTF-8.
func (l Listing) ItemKey() string {
	key := l.ID
	if key == "" {
		key = l.URL
	}
	if runes := []rune(key); len(runes) > 200 {
		key = string(runes[:200])
	}
	return key
}
