package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nlquery/dbagent/pkg/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.MemoryRepo, *storage.ProfileRepo) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := storage.NewClient(ctx, storage.Config{DSN: dsn, MaxOpenConns: 10, MaxIdleConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	memory := storage.NewMemoryRepo(client.DB)
	profiles := storage.NewProfileRepo(client.DB)
	return New(memory, profiles), memory, profiles
}

func TestRecordTurnSuccessUpdatesCountersAndCollections(t *testing.T) {
	store, _, profiles := newTestStore(t)
	ctx := context.Background()

	outcome := TurnOutcome{
		UserID: "user-1", DBKey: "dbkey", OriginalText: "count orders",
		GeneratedQueryDescription: "count orders", QueryKind: storage.QueryKindCount,
		CollectionsOrTables: []string{"orders"}, Succeeded: true, PatternLabel: "count_orders",
	}
	_, err := store.RecordTurn(ctx, outcome)
	require.NoError(t, err)

	profile, err := profiles.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	collections := storage.DecodeStringSlice(profile.FrequentCollections)
	require.Contains(t, collections, "orders")
	counters := decodeCounters(profile.PatternCounters)
	require.Len(t, counters, 1)
	require.Equal(t, "count_orders", counters[0].Label)
	require.Equal(t, 1, counters[0].Count)
	require.Equal(t, storage.SkillBeginner, profile.SkillLevel)
}

func TestRecordTurnFailureRecordsCommonMistake(t *testing.T) {
	store, _, profiles := newTestStore(t)
	ctx := context.Background()

	outcome := TurnOutcome{
		UserID: "user-2", DBKey: "dbkey", OriginalText: "drop everything",
		QueryKind: storage.QueryKindSQL, Succeeded: false, PatternLabel: "unsafe_write",
	}
	_, err := store.RecordTurn(ctx, outcome)
	require.NoError(t, err)
	_, err = store.RecordTurn(ctx, outcome)
	require.NoError(t, err)

	profile, err := profiles.GetOrCreate(ctx, "user-2")
	require.NoError(t, err)
	mistakes := storage.DecodeStringSlice(profile.CommonMistakes)
	require.Equal(t, []string{"unsafe_write"}, mistakes)
}

func TestSkillLevelTransitionsAtThresholds(t *testing.T) {
	store, _, profiles := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 51; i++ {
		outcome := TurnOutcome{UserID: "user-3", Succeeded: true, PatternLabel: "count_orders"}
		_, err := store.RecordTurn(ctx, outcome)
		require.NoError(t, err)
	}
	profile, err := profiles.GetOrCreate(ctx, "user-3")
	require.NoError(t, err)
	require.Equal(t, storage.SkillIntermediate, profile.SkillLevel)
}

func TestInsightsForReportsSimilarQueryCount(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		outcome := TurnOutcome{UserID: "user-4", Succeeded: true, PatternLabel: "top_products"}
		_, err := store.RecordTurn(ctx, outcome)
		require.NoError(t, err)
	}

	insights, err := store.InsightsFor(ctx, "user-4", "top_products")
	require.NoError(t, err)
	require.Equal(t, int64(3), insights.SimilarQueries)
}
