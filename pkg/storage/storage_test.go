package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nlquery/dbagent/pkg/schema"
)

// newTestClient starts a throwaway Postgres container and returns a
// storage Client with migrations applied, mirroring the teacher's
// newTestClient in pkg/database/client_test.go.
func newTestClient(t *testing.T) *Client {
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

	client, err := NewClient(ctx, Config{DSN: dsn, MaxOpenConns: 10, MaxIdleConns: 5})
	require.NoError(t, err)

	t.Cleanup(func() { client.Close() })

	return client
}

func TestSessionRepoCreateJoinAndOwnership(t *testing.T) {
	client := newTestClient(t)
	repo := NewSessionRepo(client.DB)
	ctx := context.Background()
	now := time.Now().UTC()

	row, err := repo.Create(ctx, "sess-1", "user-1", "first session", now)
	require.NoError(t, err)
	require.Equal(t, "user-1", row.UserID)

	fetched, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "sess-1", fetched.ID)

	_, err = repo.CheckOwnership(ctx, "sess-1", "other-user")
	require.ErrorIs(t, err, ErrSessionOwnership)

	err = repo.Delete(ctx, "sess-1", "user-1")
	require.NoError(t, err)

	deleted, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, StateDeleted, deleted.State)
}

func TestSessionRepoListExcludesDeleted(t *testing.T) {
	client := newTestClient(t)
	repo := NewSessionRepo(client.DB)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.Create(ctx, "sess-a", "user-2", "a", now)
	require.NoError(t, err)
	_, err = repo.Create(ctx, "sess-b", "user-2", "b", now)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "sess-b", "user-2"))

	sessions, err := repo.ListForUser(ctx, "user-2")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "sess-a", sessions[0].ID)
}

func TestSessionRepoMarkIdleAndExpired(t *testing.T) {
	client := newTestClient(t)
	repo := NewSessionRepo(client.DB)
	ctx := context.Background()
	stale := time.Now().UTC().Add(-48 * time.Hour)

	_, err := repo.Create(ctx, "sess-stale", "user-3", "stale", stale)
	require.NoError(t, err)

	n, err := repo.MarkIdle(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	row, err := repo.Get(ctx, "sess-stale")
	require.NoError(t, err)
	require.Equal(t, StateIdle, row.State)

	n, err = repo.MarkExpired(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestMessageRepoAppendAndListBounded(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionRepo(client.DB)
	messages := NewMessageRepo(client.DB)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := sessions.Create(ctx, "sess-msg", "user-4", "chat", now)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := messages.Append(ctx, idFor(i), "sess-msg", "user-4", "hello", RoleUser, MessageMetadata{}, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	all, err := messages.ListForSession(ctx, "sess-msg", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.True(t, all[0].Timestamp.Before(all[2].Timestamp) || all[0].Timestamp.Equal(all[2].Timestamp))

	bounded, err := messages.ListForSession(ctx, "sess-msg", 2)
	require.NoError(t, err)
	require.Len(t, bounded, 2)
}

func idFor(i int) string {
	return "msg-" + string(rune('a'+i))
}

func TestMemoryRepoCountSuccessfulAndSimilar(t *testing.T) {
	client := newTestClient(t)
	repo := NewMemoryRepo(client.DB)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		rec := MemoryRecordRow{
			ID: idFor(i), UserID: "user-5", DBKey: "dbkey-1",
			OriginalText: "how many orders", GeneratedQueryDescription: "count orders",
			QueryKind: QueryKindCount, CollectionsOrTables: EncodeStringSlice([]string{"orders"}),
			Succeeded: true, PatternLabel: "count_orders",
			ContextTags: EncodeStringSlice(nil), Timestamp: now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Insert(ctx, rec))
	}

	n, err := repo.CountSuccessful(ctx, "user-5")
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	similar, err := repo.CountSimilar(ctx, "user-5", "count_orders")
	require.NoError(t, err)
	require.Equal(t, int64(3), similar)
}

func TestProfileRepoGetOrCreateDefaultsToBeginner(t *testing.T) {
	client := newTestClient(t)
	repo := NewProfileRepo(client.DB)
	ctx := context.Background()

	row, err := repo.GetOrCreate(ctx, "user-6")
	require.NoError(t, err)
	require.Equal(t, SkillBeginner, row.SkillLevel)

	row.SkillLevel = SkillIntermediate
	require.NoError(t, repo.Update(ctx, row))

	again, err := repo.GetOrCreate(ctx, "user-6")
	require.NoError(t, err)
	require.Equal(t, SkillIntermediate, again.SkillLevel)
}

func TestSchemaRegistryRepoRoundTrip(t *testing.T) {
	client := newTestClient(t)
	repo := NewSchemaRegistryRepo(client.DB)
	ctx := context.Background()

	snap := schema.Snapshot{
		Tables:    []schema.RelationalTable{{QualifiedTable: "orders"}},
		LastBuilt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.PutSnapshot(ctx, "dbkey-xyz", snap))

	got, ok, err := repo.GetSnapshot(ctx, "dbkey-xyz")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Tables, 1)
	require.Equal(t, "orders", got.Tables[0].QualifiedTable)

	_, ok, err = repo.GetSnapshot(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}
