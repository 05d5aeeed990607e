package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/market-alerts/internal/lock"
	"github.com/aliskhannn/market-alerts/internal/pricewatch"
	"github.com/aliskhannn/market-alerts/internal/scan"
)

type fakeLock struct {
	err      error
	held     bool
	released bool
}

func (f *fakeLock) Acquire(_ context.Context, _ time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.held = true
	return func() { f.released = true }, nil
}

type fakeScan struct {
	stats scan.Stats
	err   error
	runs  int
}

func (f *fakeScan) Run(_ context.Context) (scan.Stats, error) {
	f.runs++
	return f.stats, f.err
}

type fakeWatch struct {
	stats pricewatch.Stats
	runs  int
}

func (f *fakeWatch) Run(_ context.Context) (pricewatch.Stats, error) {
	f.runs++
	return f.stats, nil
}

func TestRunOnce(t *testing.T) {
	l := &fakeLock{}
	sc := &fakeScan{stats: scan.Stats{AlertsChecked: 2, NotificationsSent: 1}}
	w := &fakeWatch{stats: pricewatch.Stats{ItemsChecked: 4}}

	s := New(l, sc, w, time.Minute, time.Second)

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scan.AlertsChecked)
	assert.Equal(t, 4, result.PriceWatch.ItemsChecked)
	assert.Equal(t, 1, sc.runs)
	assert.Equal(t, 1, w.runs)
	assert.True(t, l.released, "lock released after the invocation")
}

func TestRunOnce_LockTimeout(t *testing.T) {
	l := &fakeLock{err: lock.ErrLockTimeout}
	sc := &fakeScan{}
	w := &fakeWatch{}

	s := New(l, sc, w, time.Minute, time.Second)

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, lock.ErrLockTimeout)
	assert.Equal(t, 0, sc.runs, "no cycle runs without the lock")
	assert.Equal(t, 0, w.runs)
}

func TestRunOnce_ReleasesLockOnCycleFailure(t *testing.T) {
	l := &fakeLock{}
	sc := &fakeScan{err: assert.AnError}
	w := &fakeWatch{}

	s := New(l, sc, w, time.Minute, time.Second)

	_, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, l.released, "lock released on the failure path too")
	assert.Equal(t, 0, w.runs, "price-watch not run after scan failure")
}
