package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/market-alerts/internal/model"
)

type fakeStore struct {
	settings model.NotificationSettings
	counts   map[time.Time]int // returned per exact "since" argument
	sent     int               // fallback count when counts has no entry
}

func (f *fakeStore) GetOrCreateSettings(_ context.Context, userID int64) (model.NotificationSettings, error) {
	s := f.settings
	s.UserID = userID
	return s, nil
}

func (f *fakeStore) CountSentSince(_ context.Context, _ int64, since time.Time) (int, error) {
	if c, ok := f.counts[since]; ok {
		return c, nil
	}
	return f.sent, nil
}

func evaluatorAt(store *fakeStore, at time.Time) *Evaluator {
	e := NewEvaluator(store)
	e.now = func() time.Time { return at }
	return e
}

func TestCanSend_ChannelDisabled(t *testing.T) {
	settings := model.DefaultNotificationSettings(1)
	settings.EmailEnabled = false

	e := evaluatorAt(&fakeStore{settings: settings}, time.Now())

	d, err := e.CanSend(context.Background(), 1, model.ChannelEmail)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "email disabled", d.Reason)

	d, err = e.CanSend(context.Background(), 1, model.ChannelTelegram)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCanSend_QuietHoursWraparound(t *testing.T) {
	settings := model.DefaultNotificationSettings(1)
	settings.QuietHoursEnabled = true
	settings.QuietHoursStart = "22:00"
	settings.QuietHoursEnd = "08:00"

	store := &fakeStore{settings: settings}

	cases := []struct {
		hour    int
		allowed bool
	}{
		{23, false},
		{6, false},
		{12, true},
	}

	for _, tc := range cases {
		at := time.Date(2024, 5, 20, tc.hour, 0, 0, 0, time.UTC)
		d, err := evaluatorAt(store, at).CanSend(context.Background(), 1, model.ChannelEmail)
		require.NoError(t, err)
		assert.Equalf(t, tc.allowed, d.Allowed, "check at %02d:00", tc.hour)
		if !tc.allowed {
			assert.Equal(t, "quiet hours active", d.Reason)
		}
	}
}

func TestCanSend_QuietHoursSameDayWindow(t *testing.T) {
	settings := model.DefaultNotificationSettings(1)
	settings.QuietHoursEnabled = true
	settings.QuietHoursStart = "12:00"
	settings.QuietHoursEnd = "14:00"

	store := &fakeStore{settings: settings}

	at := time.Date(2024, 5, 20, 13, 0, 0, 0, time.UTC)
	d, err := evaluatorAt(store, at).CanSend(context.Background(), 1, model.ChannelEmail)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	at = time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	d, err = evaluatorAt(store, at).CanSend(context.Background(), 1, model.ChannelEmail)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCanSend_DailyCap(t *testing.T) {
	settings := model.DefaultNotificationSettings(1)
	settings.MaxPerDay = 2
	settings.MaxPerHour = 10

	at := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{settings: settings}
	e := evaluatorAt(store, at)

	// The third consecutive send of the day must be rejected.
	for i, wantAllowed := range []bool{true, true, false} {
		store.sent = i
		d, err := e.CanSend(context.Background(), 1, model.ChannelEmail)
		require.NoError(t, err)
		assert.Equalf(t, wantAllowed, d.Allowed, "call %d", i+1)
	}

	store.sent = 2
	d, err := e.CanSend(context.Background(), 1, model.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, "daily limit reached (2)", d.Reason)
}

func TestCanSend_HourlyCap(t *testing.T) {
	settings := model.DefaultNotificationSettings(1)
	settings.MaxPerDay = 50
	settings.MaxPerHour = 3

	at := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	dayStart := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{
		settings: settings,
		counts: map[time.Time]int{
			dayStart:           5, // below the daily cap
			at.Add(-time.Hour): 3, // at the hourly cap
		},
	}

	d, err := evaluatorAt(store, at).CanSend(context.Background(), 1, model.ChannelTelegram)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "hourly limit reached (3)", d.Reason)
}
