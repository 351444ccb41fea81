// Package repository integration tests. They use testcontainers-go to
// spin up a PostgreSQL container and skip when Docker is unavailable.
package repository

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"focus-ledger/internal/model"
)

// checkDockerAvailable checks if Docker is available and running.
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB creates a PostgreSQL container, runs migrations, and
// returns a connection pool. Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return pool, cleanup
}

// ============================================================================
// ProgressRepository Tests
// ============================================================================

func TestProgressRepository_GetMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProgressRepository(pool)
	_, err := repo.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestProgressRepository_CreateWithEarn(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProgressRepository(pool)
	ctx := context.Background()

	p, err := repo.CreateWithEarn(ctx, "user-1", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), p.Coins)
	assert.Equal(t, int64(500), p.TotalCoinsEarned)
	assert.Equal(t, int64(0), p.TotalCoinsSpent)

	// Creating again loses the insert race and reports a conflict.
	_, err = repo.CreateWithEarn(ctx, "user-1", 100)
	require.ErrorIs(t, err, ErrConflict)

	// The original row is untouched.
	p, err = repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), p.Coins)
}

func TestProgressRepository_ApplyEarnConditioned(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProgressRepository(pool)
	ctx := context.Background()

	_, err := repo.CreateWithEarn(ctx, "user-1", 100)
	require.NoError(t, err)

	// Conditioned on the current balance: succeeds.
	p, err := repo.ApplyEarn(ctx, "user-1", 50, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(150), p.Coins)
	assert.Equal(t, int64(150), p.TotalCoinsEarned)

	// Conditioned on a stale balance: fails closed, no change.
	_, err = repo.ApplyEarn(ctx, "user-1", 50, 100)
	require.ErrorIs(t, err, ErrConflict)

	p, err = repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), p.Coins)
}

func TestProgressRepository_ApplySpendConditioned(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProgressRepository(pool)
	ctx := context.Background()

	_, err := repo.CreateWithEarn(ctx, "user-1", 200)
	require.NoError(t, err)

	p, err := repo.ApplySpend(ctx, "user-1", 80, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(120), p.Coins)
	assert.Equal(t, int64(80), p.TotalCoinsSpent)
	assert.Equal(t, p.Coins, p.TotalCoinsEarned-p.TotalCoinsSpent)

	_, err = repo.ApplySpend(ctx, "user-1", 80, 200)
	require.ErrorIs(t, err, ErrConflict)
}

func TestProgressRepository_ConcurrentEarnsSingleWinner(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProgressRepository(pool)
	ctx := context.Background()

	_, err := repo.CreateWithEarn(ctx, "user-1", 100)
	require.NoError(t, err)

	// Many writers conditioned on the same read balance: at most one
	// can commit.
	const writers = 8
	var wg sync.WaitGroup
	results := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = repo.ApplyEarn(ctx, "user-1", 10, 100)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, wins, "exactly one conditioned write should commit")

	p, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(110), p.Coins)
}

func TestProgressRepository_ApplySessionXP(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProgressRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.EnsureExists(ctx, "user-1"))

	upd := SessionXPUpdate{
		UserID:          "user-1",
		ExpectedTotalXP: 0,
		NewTotalXP:      60,
		NewLevel:        3,
		CurrentStreak:   1,
		LongestStreak:   1,
		SessionDate:     "2026-03-01",
		DurationMinutes: 125,
		XPEarned:        60,
		SessionType:     "focus",
	}
	p, err := repo.ApplySessionXP(ctx, upd)
	require.NoError(t, err)
	assert.Equal(t, int64(60), p.TotalXP)
	assert.Equal(t, 3, p.CurrentLevel)
	assert.Equal(t, int64(1), p.TotalSessions)
	require.NotNil(t, p.LastSessionDate)
	assert.Equal(t, "2026-03-01", p.LastSessionDate.Format("2006-01-02"))

	// The session row committed with the progress update.
	sessions, err := repo.ListSessions(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 125, sessions[0].DurationMinutes)
	assert.Equal(t, int64(60), sessions[0].XPEarned)

	// A stale expected XP fails the whole bundle: no second session row.
	_, err = repo.ApplySessionXP(ctx, upd)
	require.ErrorIs(t, err, ErrConflict)
	sessions, err = repo.ListSessions(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestProgressRepository_EraseUser(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	progressRepo := NewProgressRepository(pool)
	txRepo := NewTransactionRepository(pool)
	ctx := context.Background()

	_, err := progressRepo.CreateWithEarn(ctx, "user-1", 300)
	require.NoError(t, err)
	_, err = txRepo.Create(ctx, &model.CoinTransaction{
		UserID:       "user-1",
		Operation:    model.OpEarn,
		Amount:       300,
		Source:       model.SourceReferral,
		BalanceAfter: 300,
	})
	require.NoError(t, err)

	require.NoError(t, progressRepo.EraseUser(ctx, "user-1"))

	_, err = progressRepo.Get(ctx, "user-1")
	require.ErrorIs(t, err, ErrUserNotFound)
	transactions, err := txRepo.ListByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Empty(t, transactions)

	// Erasing a missing account reports not found.
	require.ErrorIs(t, progressRepo.EraseUser(ctx, "user-1"), ErrUserNotFound)
}

// ============================================================================
// TransactionRepository Tests
// ============================================================================

func TestTransactionRepository_SessionRewardUnique(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTransactionRepository(pool)
	ctx := context.Background()

	sessionID := "session-abc"
	_, err := repo.Create(ctx, &model.CoinTransaction{
		UserID:       "user-1",
		Operation:    model.OpEarn,
		Amount:       100,
		Source:       model.SourceFocusSession,
		BalanceAfter: 100,
		SessionID:    &sessionID,
	})
	require.NoError(t, err)

	exists, err := repo.HasSessionReward(ctx, "user-1", sessionID)
	require.NoError(t, err)
	assert.True(t, exists)

	// The unique index backstops the probe: a duplicate insert fails.
	_, err = repo.Create(ctx, &model.CoinTransaction{
		UserID:        "user-1",
		Operation:     model.OpEarn,
		Amount:        100,
		Source:        model.SourceFocusSession,
		BalanceBefore: 100,
		BalanceAfter:  200,
		SessionID:     &sessionID,
	})
	require.ErrorIs(t, err, ErrDuplicateSession)

	// A different user may claim the same session id.
	exists, err = repo.HasSessionReward(ctx, "user-2", sessionID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTransactionRepository_ListByUser(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTransactionRepository(pool)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		_, err := repo.Create(ctx, &model.CoinTransaction{
			UserID:        "user-1",
			Operation:     model.OpEarn,
			Amount:        i * 10,
			Source:        model.SourceLuckyWheel,
			BalanceBefore: 0,
			BalanceAfter:  i * 10,
			Metadata:      map[string]string{"spin": "true"},
		})
		require.NoError(t, err)
	}

	transactions, err := repo.ListByUser(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	// Newest first.
	assert.Equal(t, int64(30), transactions[0].Amount)
	assert.Equal(t, int64(20), transactions[1].Amount)
	assert.Equal(t, "true", transactions[0].Metadata["spin"])
}
