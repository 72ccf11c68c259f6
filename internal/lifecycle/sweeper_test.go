package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tourneyhost/internal/models"
	"tourneyhost/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore keeps tournaments in memory and applies the same rules as the
// SQL implementation.
type memoryStore struct {
	mu          sync.Mutex
	tournaments map[string]*models.Tournament
	deleteErr   error
}

func (m *memoryStore) StartDue(_ context.Context, now time.Time, ttlAfterStart time.Duration) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id, t := range m.tournaments {
		if Due(*t, now) {
			t.Status = models.TournamentOngoing
			ttl := t.StartDate.Add(ttlAfterStart)
			t.TTL = &ttl
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) DeleteExpired(_ context.Context, now time.Time) ([]string, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id, t := range m.tournaments {
		if Expired(t.TTL, now) {
			delete(m.tournaments, id)
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) NextTTL(_ context.Context, now time.Time) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next *time.Time
	for _, t := range m.tournaments {
		if t.TTL == nil || !t.TTL.After(now) {
			continue
		}
		if next == nil || t.TTL.Before(*next) {
			ttl := *t.TTL
			next = &ttl
		}
	}
	return next, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingAudit) Log(_ context.Context, _ store.Execer, _, action, _, entityID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action+":"+entityID)
	return nil
}

func newTestSweeper(t *testing.T, st Store, now time.Time, audit AuditLogger) *Sweeper {
	t.Helper()
	sweeper, err := NewSweeper(st, Options{
		Audit:   audit,
		AuditDB: noopExecer{},
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sweeper.Shutdown() })
	return sweeper
}

func TestSweepRemovesOnlyExpiredTournaments(t *testing.T) {
	now := time.Now().UTC()
	expiredTTL := now.Add(-time.Second)
	laterTTL := now.Add(time.Hour)
	st := &memoryStore{tournaments: map[string]*models.Tournament{
		"expired": {ID: "expired", Status: models.TournamentOngoing, StartDate: now.Add(-3 * time.Hour), TTL: &expiredTTL},
		"later":   {ID: "later", Status: models.TournamentOngoing, StartDate: now.Add(-time.Hour), TTL: &laterTTL},
	}}
	audit := &recordingAudit{}
	sweeper := newTestSweeper(t, st, now, audit)

	result, err := sweeper.Sweep(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"expired"}, result.Expired)
	assert.Contains(t, st.tournaments, "later")
	assert.NotContains(t, st.tournaments, "expired")
	assert.Equal(t, []string{"tournament.expired:expired"}, audit.actions)
	assert.Equal(t, 0, sweeper.PendingUrgent())
}

func TestSweepStartsDueTournaments(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(-time.Minute)
	st := &memoryStore{tournaments: map[string]*models.Tournament{
		"due":    {ID: "due", Status: models.TournamentActive, StartDate: start},
		"future": {ID: "future", Status: models.TournamentActive, StartDate: now.Add(time.Hour)},
	}}
	sweeper := newTestSweeper(t, st, now, nil)

	result, err := sweeper.Sweep(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"due"}, result.Started)
	assert.Equal(t, models.TournamentOngoing, st.tournaments["due"].Status)
	require.NotNil(t, st.tournaments["due"].TTL)
	assert.Equal(t, start.Add(StartTTL), *st.tournaments["due"].TTL)
	assert.Equal(t, models.TournamentActive, st.tournaments["future"].Status)
}

func TestSweepSchedulesUrgentRunOnce(t *testing.T) {
	now := time.Now().UTC()
	soon := now.Add(20 * time.Second)
	st := &memoryStore{tournaments: map[string]*models.Tournament{
		"soon": {ID: "soon", Status: models.TournamentEnded, TTL: &soon},
	}}
	sweeper := newTestSweeper(t, st, now, nil)

	_, err := sweeper.Sweep(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, 1, sweeper.PendingUrgent())

	_, err = sweeper.Sweep(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, 1, sweeper.PendingUrgent())
}

func TestSweepReportsStoreFailure(t *testing.T) {
	st := &memoryStore{tournaments: map[string]*models.Tournament{}, deleteErr: errors.New("db down")}
	sweeper := newTestSweeper(t, st, time.Now(), nil)

	_, err := sweeper.Sweep(context.Background(), "test")
	assert.EqualError(t, err, "db down")
}

type countingReconciler struct{}

func (countingReconciler) Run(context.Context) error { return nil }

func TestStartRegistersJobs(t *testing.T) {
	st := &memoryStore{tournaments: map[string]*models.Tournament{}}
	sweeper, err := NewSweeper(st, Options{
		Interval:      time.Hour,
		ReconcileCron: "0 3 * * *",
		Reconciler:    countingReconciler{},
	})
	require.NoError(t, err)
	defer func() { _ = sweeper.Shutdown() }()

	require.NoError(t, sweeper.Start())
	assert.Len(t, sweeper.scheduler.Jobs(), 2)
}

func TestStartRejectsBadCron(t *testing.T) {
	st := &memoryStore{tournaments: map[string]*models.Tournament{}}
	sweeper, err := NewSweeper(st, Options{
		Interval:      time.Hour,
		ReconcileCron: "not a cron",
		Reconciler:    countingReconciler{},
	})
	require.NoError(t, err)
	defer func() { _ = sweeper.Shutdown() }()

	assert.Error(t, sweeper.Start())
}
