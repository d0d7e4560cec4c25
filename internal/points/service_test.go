package points

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"engagement-service/internal/mocks"
	"engagement-service/internal/models"
	"engagement-service/internal/repositories"
)

// memLedger is an in-memory stand-in honoring the PointsRepository contract,
// including the atomic throttle-check-then-insert of InsertAward.
type memLedger struct {
	mu   sync.Mutex
	rows []models.PointAward
	now  func() time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{now: time.Now}
}

func (l *memLedger) last(userID int, actionID string) (models.PointAward, bool) {
	for i := len(l.rows) - 1; i >= 0; i-- {
		if l.rows[i].UserID == userID && l.rows[i].ActionID == actionID {
			return l.rows[i], true
		}
	}
	return models.PointAward{}, false
}

func (l *memLedger) LastAward(ctx context.Context, userID int, actionID string) (models.PointAward, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	award, ok := l.last(userID, actionID)
	if !ok {
		return models.PointAward{}, repositories.ErrNoAwards
	}
	return award, nil
}

func (l *memLedger) InsertAward(ctx context.Context, userID int, actionID string, points int, throttle time.Duration) (models.PointAward, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if last, ok := l.last(userID, actionID); ok {
		if now.Sub(last.CreatedAt) <= throttle {
			return models.PointAward{}, repositories.ErrThrottled
		}
	}
	award := models.PointAward{
		ID:        len(l.rows) + 1,
		UserID:    userID,
		ActionID:  actionID,
		Points:    points,
		CreatedAt: now,
	}
	l.rows = append(l.rows, award)
	return award, nil
}

func (l *memLedger) TotalPoints(ctx context.Context, userID int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, row := range l.rows {
		if row.UserID == userID {
			total += row.Points
		}
	}
	return total, nil
}

func (l *memLedger) History(ctx context.Context, userID int, limit int, offset int) ([]models.PointsHistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var entries []models.PointsHistoryEntry
	for i := len(l.rows) - 1; i >= 0; i-- {
		if l.rows[i].UserID == userID {
			entries = append(entries, models.PointsHistoryEntry{
				Points:    l.rows[i].Points,
				ActionID:  l.rows[i].ActionID,
				CreatedAt: l.rows[i].CreatedAt,
			})
		}
	}
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (l *memLedger) CountAwards(ctx context.Context, userID int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, row := range l.rows {
		if row.UserID == userID {
			count++
		}
	}
	return count, nil
}

var _ repositories.PointsRepository = (*memLedger)(nil)

func actionRepoWith(actions ...models.Action) *mocks.ActionRepositoryMock {
	repo := new(mocks.ActionRepositoryMock)
	for _, a := range actions {
		repo.On("GetAction", mock.Anything, a.ID).Return(a, nil)
	}
	return repo
}

func TestAwardBackToBackWithoutThrottle(t *testing.T) {
	ledger := newMemLedger()
	actions := actionRepoWith(models.Action{ID: "create_store", Points: 10, ThrottleSeconds: 0})
	svc := NewService(actions, ledger, nil)

	for i := 0; i < 3; i++ {
		award, err := svc.Award(context.Background(), 1, "create_store")
		require.NoError(t, err)
		assert.Equal(t, 10, award.Points)
	}

	require.Len(t, ledger.rows, 3)
	total, err := svc.TotalPoints(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 30, total)
}

func TestAwardThrottledWithinWindow(t *testing.T) {
	ledger := newMemLedger()
	clock := time.Now()
	ledger.now = func() time.Time { return clock }

	actions := actionRepoWith(models.Action{ID: "create_store", Points: 10, ThrottleSeconds: 3600})
	svc := NewService(actions, ledger, nil)

	_, err := svc.Award(context.Background(), 1, "create_store")
	require.NoError(t, err)

	clock = clock.Add(10 * time.Second)
	_, err = svc.Award(context.Background(), 1, "create_store")
	require.ErrorIs(t, err, ErrThrottled)
	require.Len(t, ledger.rows, 1)

	// exactly on the boundary is still throttled
	clock = clock.Add(3590 * time.Second)
	_, err = svc.Award(context.Background(), 1, "create_store")
	require.ErrorIs(t, err, ErrThrottled)

	clock = clock.Add(time.Second)
	_, err = svc.Award(context.Background(), 1, "create_store")
	require.NoError(t, err)
	require.Len(t, ledger.rows, 2)
}

func TestAwardUnknownAction(t *testing.T) {
	ledger := newMemLedger()
	actions := new(mocks.ActionRepositoryMock)
	actions.On("GetAction", mock.Anything, "nonexistent_action").
		Return(models.Action{}, repositories.ErrActionNotFound)

	svc := NewService(actions, ledger, nil)
	_, err := svc.Award(context.Background(), 1, "nonexistent_action")
	require.ErrorIs(t, err, ErrActionNotFound)
	assert.Empty(t, ledger.rows)
}

func TestAwardEmptyActionID(t *testing.T) {
	svc := NewService(new(mocks.ActionRepositoryMock), newMemLedger(), nil)
	_, err := svc.Award(context.Background(), 1, "")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAwardSnapshotsRuleValue(t *testing.T) {
	ledger := newMemLedger()
	actions := actionRepoWith(models.Action{ID: "create_supply_comment", Points: 7})
	svc := NewService(actions, ledger, nil)

	award, err := svc.Award(context.Background(), 3, "create_supply_comment")
	require.NoError(t, err)
	assert.Equal(t, 7, award.Points)
	assert.Equal(t, 7, ledger.rows[0].Points)
}

func TestTotalPointsZeroWithoutRows(t *testing.T) {
	svc := NewService(new(mocks.ActionRepositoryMock), newMemLedger(), nil)
	total, err := svc.TotalPoints(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestHistoryPagination(t *testing.T) {
	ledger := newMemLedger()
	actions := actionRepoWith(models.Action{ID: "create_store", Points: 10, ThrottleSeconds: 0})
	svc := NewService(actions, ledger, nil)

	for i := 0; i < 5; i++ {
		_, err := svc.Award(context.Background(), 1, "create_store")
		require.NoError(t, err)
	}

	entries, count, err := svc.History(context.Background(), 1, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Len(t, entries, 3)

	entries, _, err = svc.History(context.Background(), 1, 2, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestHistoryRejectsBadPagination(t *testing.T) {
	svc := NewService(new(mocks.ActionRepositoryMock), newMemLedger(), nil)

	_, _, err := svc.History(context.Background(), 1, 0, 10)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = svc.History(context.Background(), 1, 1, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIsEligibleNoHistory(t *testing.T) {
	ledger := new(mocks.PointsRepositoryMock)
	ledger.On("LastAward", mock.Anything, 1, "create_store").
		Return(models.PointAward{}, repositories.ErrNoAwards)

	svc := NewService(new(mocks.ActionRepositoryMock), ledger, nil)
	assert.True(t, svc.IsEligible(context.Background(), 1, "create_store"))
}

func TestIsEligibleFailsClosed(t *testing.T) {
	ledger := new(mocks.PointsRepositoryMock)
	ledger.On("LastAward", mock.Anything, 1, "create_store").
		Return(models.PointAward{}, assert.AnError)

	svc := NewService(new(mocks.ActionRepositoryMock), ledger, nil)
	assert.False(t, svc.IsEligible(context.Background(), 1, "create_store"))

	// known award but the rule lookup fails: still closed
	ledger2 := new(mocks.PointsRepositoryMock)
	ledger2.On("LastAward", mock.Anything, 1, "create_store").
		Return(models.PointAward{CreatedAt: time.Now().Add(-time.Hour)}, nil)
	actions := new(mocks.ActionRepositoryMock)
	actions.On("GetAction", mock.Anything, "create_store").
		Return(models.Action{}, assert.AnError)

	svc2 := NewService(actions, ledger2, nil)
	assert.False(t, svc2.IsEligible(context.Background(), 1, "create_store"))
}

func TestIsEligibleRespectsWindow(t *testing.T) {
	actions := actionRepoWith(models.Action{ID: "create_advertisement", Points: 5, ThrottleSeconds: 3600})

	recent := new(mocks.PointsRepositoryMock)
	recent.On("LastAward", mock.Anything, 1, "create_advertisement").
		Return(models.PointAward{CreatedAt: time.Now().Add(-10 * time.Second)}, nil)
	svc := NewService(actions, recent, nil)
	assert.False(t, svc.IsEligible(context.Background(), 1, "create_advertisement"))

	old := new(mocks.PointsRepositoryMock)
	old.On("LastAward", mock.Anything, 1, "create_advertisement").
		Return(models.PointAward{CreatedAt: time.Now().Add(-2 * time.Hour)}, nil)
	svc = NewService(actions, old, nil)
	assert.True(t, svc.IsEligible(context.Background(), 1, "create_advertisement"))
}
