package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"

	"github.com/MrEthical07/goTrust/store"
	"github.com/MrEthical07/goTrust/store/memstore"
)

var base = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

// seedBanned creates an account with a permanent ban issued age ago, plus one
// row of every dependent kind.
func seedBanned(t *testing.T, m *memstore.Store, id string, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	created := base.Add(-age)

	require.NoError(t, m.CreateAccount(ctx, &store.Account{
		ID: id, Username: id, Email: id + "@x.com", Role: store.RoleUser, CreatedAt: created,
	}))
	require.NoError(t, m.UpsertTwoFactor(ctx, &store.TwoFactorSecret{AccountID: id, SecretEnc: "enc:x", CreatedAt: created}))
	require.NoError(t, m.InsertSession(ctx, &store.Session{
		ID: id + "-s", AccountID: id, TokenEnc: "enc:t", CreatedAt: created, ExpiresAt: base.Add(day),
	}))
	require.NoError(t, m.InsertTicket(ctx, &store.Ticket{
		Purpose: store.PurposePasswordReset, Key: id + "-k", AccountID: id, CreatedAt: base, ExpiresAt: base.Add(time.Hour),
	}))
	require.NoError(t, m.InsertWarning(ctx, &store.Warning{ID: id + "-w", AccountID: id, Reason: "spam", CreatedAt: created}))
	require.NoError(t, m.InsertBan(ctx, &store.Ban{ID: id + "-b", AccountID: id, Reason: "abuse", CreatedAt: created}))
}

func TestRunOnceRespectsRetention(t *testing.T) {
	m := memstore.New()
	seedBanned(t, m, "old", 181*day)
	seedBanned(t, m, "recent", 179*day)

	s := New(m, abtime.NewManualAtTime(base), Config{})
	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.AccountsPurged)
	assert.Empty(t, rep.Failed)
	for _, kind := range []store.Dependent{
		store.DependentSessions,
		store.DependentTickets,
		store.DependentTwoFactor,
		store.DependentWarningsReceived,
		store.DependentBans,
	} {
		assert.EqualValues(t, 1, rep.Rows[kind], "kind %s", kind)
	}

	ctx := context.Background()
	_, err = m.FindAccountByID(ctx, "old")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = m.FindAccountByID(ctx, "recent")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"accounts":   1,
		"two_factor": 1,
		"sessions":   1,
		"tickets":    1,
		"bans":       1,
		"warnings":   1,
	}, m.Counts())
}

func TestRunOnceIsIdempotent(t *testing.T) {
	m := memstore.New()
	seedBanned(t, m, "old", 200*day)

	s := New(m, abtime.NewManualAtTime(base), Config{})
	first, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.AccountsPurged)
	before := m.Counts()

	second, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.AccountsPurged)
	assert.Zero(t, second.TicketsPurged)
	assert.Equal(t, before, m.Counts())
}

func TestRunOnceIgnoresTemporaryAndRevokedBans(t *testing.T) {
	m := memstore.New()
	ctx := context.Background()
	seedBanned(t, m, "revoked", 300*day)
	revokedAt := base.Add(-day)
	ok, err := m.RevokeBan(ctx, "revoked-b", revokedAt)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.CreateAccount(ctx, &store.Account{ID: "temp", Username: "temp", Email: "temp@x.com", CreatedAt: base}))
	until := base.Add(-250 * day)
	require.NoError(t, m.InsertBan(ctx, &store.Ban{ID: "temp-b", AccountID: "temp", Until: &until, CreatedAt: base.Add(-300 * day)}))

	rep, err := New(m, abtime.NewManualAtTime(base), Config{}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.AccountsPurged)
	assert.Equal(t, 2, m.Counts()["accounts"])
}

func TestRunOncePurgesExpiredTickets(t *testing.T) {
	m := memstore.New()
	ctx := context.Background()
	require.NoError(t, m.CreateAccount(ctx, &store.Account{ID: "a1", Username: "a", Email: "a@x.com", CreatedAt: base}))
	require.NoError(t, m.InsertTicket(ctx, &store.Ticket{
		Purpose: store.PurposeLoginChallenge, Key: "stale", AccountID: "a1", CreatedAt: base.Add(-time.Hour), ExpiresAt: base.Add(-time.Minute),
	}))
	require.NoError(t, m.InsertTicket(ctx, &store.Ticket{
		Purpose: store.PurposeLoginChallenge, Key: "live", AccountID: "a1", CreatedAt: base, ExpiresAt: base.Add(time.Minute),
	}))

	rep, err := New(m, abtime.NewManualAtTime(base), Config{}).RunOnce(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.TicketsPurged)

	_, err = m.FindTicket(ctx, store.PurposeLoginChallenge, "live")
	require.NoError(t, err)
}

func TestStartRunsOnTick(t *testing.T) {
	m := memstore.New()
	seedBanned(t, m, "old", 365*day)

	clock := abtime.NewManualAtTime(base)
	runs := make(chan Report, 4)
	s := New(m, clock, Config{Interval: time.Hour}, WithOnRun(func(r Report) { runs <- r }))

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for {
		clock.Trigger(TickerID)
		select {
		case rep := <-runs:
			assert.Equal(t, 1, rep.AccountsPurged)
			return
		case <-deadline:
			t.Fatal("sweep did not run after tick")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := New(memstore.New(), nil, Config{})
	s.Stop()
}
