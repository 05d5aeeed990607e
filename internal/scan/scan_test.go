package scan

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/market-alerts/internal/config"
	"github.com/aliskhannn/market-alerts/internal/dispatch"
	"github.com/aliskhannn/market-alerts/internal/model"
)

type fakeAlertStore struct {
	alerts   []model.Alert
	lastRuns map[int64]int64
}

func (f *fakeAlertStore) GetActiveAlerts(_ context.Context) ([]model.Alert, error) {
	return f.alerts, nil
}

func (f *fakeAlertStore) UpdateLastRun(_ context.Context, id, ts int64) error {
	if f.lastRuns == nil {
		f.lastRuns = make(map[int64]int64)
	}
	f.lastRuns[id] = ts
	return nil
}

type fakeUserStore struct {
	users map[string]model.User
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := f.users[email]
	if !ok {
		return model.User{}, errors.New("user not found")
	}
	return u, nil
}

type fakeLedger struct {
	seen map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{seen: make(map[string]bool)}
}

func (f *fakeLedger) MarkSeen(_ context.Context, userEmail string, alertID int64, source, itemID string, _ int64) (bool, error) {
	key := fmt.Sprintf("%s|%d|%s|%s", userEmail, alertID, source, itemID)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type fakeSearcher struct {
	listings []model.Listing
	err      error
	calls    int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ []string, _ model.SearchFilters) ([]model.Listing, error) {
	f.calls++
	return f.listings, f.err
}

type fakeDispatcher struct {
	requests []dispatch.Request
	sent     bool
}

func (f *fakeDispatcher) Send(_ context.Context, req dispatch.Request) (dispatch.Result, error) {
	f.requests = append(f.requests, req)
	return dispatch.Result{Sent: f.sent}, nil
}

func testRunner(alerts *fakeAlertStore, users *fakeUserStore, ledger *fakeLedger, searcher Searcher, d *fakeDispatcher) *Runner {
	r := NewRunner(alerts, users, ledger, searcher, d, config.Scheduler{
		AlertInterval: 3 * time.Minute,
		NotifyCap:     5,
		NotifyPause:   5 * time.Second,
	}, retry.Strategy{Attempts: 1, Delay: time.Millisecond, Backoff: 1})
	r.sleep = func(time.Duration) {}
	return r
}

func readyUser() model.User {
	return model.User{
		ID:               1,
		Email:            "user@example.com",
		TelegramChatID:   "42",
		TelegramEnabled:  true,
		TelegramVerified: true,
	}
}

func listings(n int) []model.Listing {
	out := make([]model.Listing, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Listing{
			ID:    fmt.Sprintf("item-%d", i),
			Title: fmt.Sprintf("Listing %d", i),
			Price: 100,
			URL:   fmt.Sprintf("https://example.com/%d", i),
		})
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	alerts := &fakeAlertStore{alerts: []model.Alert{{
		ID:        7,
		UserEmail: "user@example.com",
		Name:      "iphone 13",
		Terms:     []string{"iphone 13"},
		Source:    "ebay",
	}}}
	users := &fakeUserStore{users: map[string]model.User{"user@example.com": readyUser()}}
	ledger := newFakeLedger()
	searcher := &fakeSearcher{listings: listings(3)}
	d := &fakeDispatcher{sent: true}

	r := testRunner(alerts, users, ledger, searcher, d)
	r.now = func() time.Time { return now }

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.AlertsChecked)
	assert.Equal(t, 3, stats.NewItems)
	assert.Equal(t, 3, stats.NotificationsSent)
	assert.Equal(t, 0, stats.Errors)
	assert.Len(t, ledger.seen, 3)
	assert.Equal(t, now.Unix(), alerts.lastRuns[7])
}

func TestRun_RatePreFilterSkipsSearch(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	alerts := &fakeAlertStore{alerts: []model.Alert{{
		ID:        7,
		UserEmail: "user@example.com",
		Source:    "ebay",
		LastRunTS: now.Unix() - 60, // ran 60s ago, interval is 180s
	}}}
	searcher := &fakeSearcher{}

	r := testRunner(alerts, &fakeUserStore{}, newFakeLedger(), searcher, &fakeDispatcher{})
	r.now = func() time.Time { return now }

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.AlertsChecked)
	assert.Equal(t, 0, searcher.calls, "no search may be performed for a recently run alert")
	assert.Empty(t, alerts.lastRuns, "skipped alerts keep their timestamp")
}

func TestRun_NotificationCap(t *testing.T) {
	alerts := &fakeAlertStore{alerts: []model.Alert{{
		ID:        7,
		UserEmail: "user@example.com",
		Source:    "ebay",
	}}}
	users := &fakeUserStore{users: map[string]model.User{"user@example.com": readyUser()}}
	ledger := newFakeLedger()
	searcher := &fakeSearcher{listings: listings(8)}
	d := &fakeDispatcher{sent: true}

	r := testRunner(alerts, users, ledger, searcher, d)

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	// All 8 become seen, but only 5 notifications go out.
	assert.Equal(t, 8, stats.NewItems)
	assert.Len(t, d.requests, 5)
	assert.Len(t, ledger.seen, 8)
	assert.Equal(t, 5, stats.NotificationsSent)
}

func TestRun_SecondCycleSendsNothing(t *testing.T) {
	base := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	alerts := &fakeAlertStore{alerts: []model.Alert{{
		ID:        7,
		UserEmail: "user@example.com",
		Source:    "ebay",
	}}}
	users := &fakeUserStore{users: map[string]model.User{"user@example.com": readyUser()}}
	ledger := newFakeLedger()
	searcher := &fakeSearcher{listings: listings(3)}
	d := &fakeDispatcher{sent: true}

	r := testRunner(alerts, users, ledger, searcher, d)
	r.now = func() time.Time { return base }

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, d.requests, 3)

	// Re-run past the pre-filter window: everything is already in the ledger.
	alerts.alerts[0].LastRunTS = alerts.lastRuns[7]
	r.now = func() time.Time { return base.Add(10 * time.Minute) }

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.NewItems)
	assert.Len(t, d.requests, 3, "no additional notifications on re-run")
}

func TestRun_SearchFailureIsolatedAndTimestampBumped(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	alerts := &fakeAlertStore{alerts: []model.Alert{
		{ID: 1, UserEmail: "broken@example.com", Source: "ebay"},
		{ID: 2, UserEmail: "user@example.com", Source: "ebay"},
	}}
	users := &fakeUserStore{users: map[string]model.User{
		"broken@example.com": readyUser(),
		"user@example.com":   readyUser(),
	}}

	failing := &failingSearcher{listings: listings(1)}
	d := &fakeDispatcher{sent: true}

	r := testRunner(alerts, users, newFakeLedger(), failing, d)
	r.now = func() time.Time { return now }

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.AlertsChecked)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.NotificationsSent, "second alert still processed")
	assert.Equal(t, now.Unix(), alerts.lastRuns[1], "failed alert timestamp bumped anyway")
	assert.Equal(t, now.Unix(), alerts.lastRuns[2])
}

// failingSearcher fails the first call and succeeds afterwards.
type failingSearcher struct {
	listings []model.Listing
	calls    int
}

func (f *failingSearcher) Search(_ context.Context, _ string, _ []string, _ model.SearchFilters) ([]model.Listing, error) {
	f.calls++
	if f.calls == 1 {
		return nil, errors.New("search: 429 too many requests")
	}
	return f.listings, nil
}

func TestRun_SearchRetriesTransientFailure(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	alerts := &fakeAlertStore{alerts: []model.Alert{{
		ID:        7,
		UserEmail: "user@example.com",
		Source:    "ebay",
	}}}
	users := &fakeUserStore{users: map[string]model.User{"user@example.com": readyUser()}}
	failing := &failingSearcher{listings: listings(1)}
	d := &fakeDispatcher{sent: true}

	r := NewRunner(alerts, users, newFakeLedger(), failing, d, config.Scheduler{
		AlertInterval: 3 * time.Minute,
		NotifyCap:     5,
		NotifyPause:   time.Second,
	}, retry.Strategy{Attempts: 2, Delay: time.Millisecond, Backoff: 1})
	r.sleep = func(time.Duration) {}
	r.now = func() time.Time { return now }

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, failing.calls, "failed search retried per the strategy")
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 1, stats.NotificationsSent)
}

func TestRun_MissingUserSkipsButBumpsTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	alerts := &fakeAlertStore{alerts: []model.Alert{{
		ID:        9,
		UserEmail: "ghost@example.com",
		Source:    "ebay",
	}}}
	searcher := &fakeSearcher{listings: listings(2)}

	r := testRunner(alerts, &fakeUserStore{users: map[string]model.User{}}, newFakeLedger(), searcher, &fakeDispatcher{})
	r.now = func() time.Time { return now }

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, searcher.calls)
	assert.Equal(t, 0, stats.NewItems)
	assert.Equal(t, now.Unix(), alerts.lastRuns[9])
}
