package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"dyfl-backend/internal/database"
	"dyfl-backend/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func TestPlayerCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewPlayerRepository(newTestDB(t), zerolog.Nop())

	player := &domain.TrackedPlayer{
		DisplayID:       "Faker#KR1",
		AccountID:       "acc-faker",
		SoloRank:        &domain.Rank{Tier: domain.TierChallenger, Division: domain.DivisionI, Points: 100},
		LastMatchID:     "KR_1",
		LastMatchIDSolo: "KR_1",
	}
	require.NoError(t, repo.Create(ctx, player))

	got, err := repo.GetByDisplayID(ctx, "Faker#KR1")
	require.NoError(t, err)
	assert.Equal(t, "acc-faker", got.AccountID)
	assert.Equal(t, player.SoloRank, got.SoloRank)
	assert.Nil(t, got.FlexRank)
	assert.Equal(t, "KR_1", got.LastMatchIDSolo)
	assert.Empty(t, got.LastMatchIDFlex)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repo.GetByDisplayID(ctx, "Nobody#000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlayerCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewPlayerRepository(newTestDB(t), zerolog.Nop())

	require.NoError(t, repo.Create(ctx, &domain.TrackedPlayer{DisplayID: "A#1", AccountID: "acc-a"}))
	err := repo.Create(ctx, &domain.TrackedPlayer{DisplayID: "A#1", AccountID: "acc-b"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	err = repo.Create(ctx, &domain.TrackedPlayer{DisplayID: "B#1", AccountID: "acc-a"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestPlayerListAllOldestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewPlayerRepository(newTestDB(t), zerolog.Nop())

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &domain.TrackedPlayer{DisplayID: "New#1", AccountID: "a1", LastUpdated: base.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &domain.TrackedPlayer{DisplayID: "Old#1", AccountID: "a2", LastUpdated: base}))
	require.NoError(t, repo.Create(ctx, &domain.TrackedPlayer{DisplayID: "Mid#1", AccountID: "a3", LastUpdated: base.Add(time.Minute)}))

	players, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, players, 3)
	assert.Equal(t, "Old#1", players[0].DisplayID)
	assert.Equal(t, "Mid#1", players[1].DisplayID)
	assert.Equal(t, "New#1", players[2].DisplayID)
}

func TestPlayerUpdateOnlyTouchesGivenFields(t *testing.T) {
	ctx := context.Background()
	repo := NewPlayerRepository(newTestDB(t), zerolog.Nop())

	flex := &domain.Rank{Tier: domain.TierSilver, Division: domain.DivisionII, Points: 40}
	require.NoError(t, repo.Create(ctx, &domain.TrackedPlayer{
		DisplayID:       "P#1",
		AccountID:       "acc",
		FlexRank:        flex,
		LastMatchID:     "EUW1_1",
		LastMatchIDFlex: "EUW1_1",
		LastUpdated:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	solo := &domain.Rank{Tier: domain.TierGold, Division: domain.DivisionIV, Points: 12}
	require.NoError(t, repo.Update(ctx, "P#1", domain.PlayerUpdate{
		LastMatchID:     strPtr("EUW1_2"),
		LastMatchIDSolo: strPtr("EUW1_2"),
		SoloRank:        solo,
	}))

	got, err := repo.GetByDisplayID(ctx, "P#1")
	require.NoError(t, err)
	assert.Equal(t, "EUW1_2", got.LastMatchID)
	assert.Equal(t, "EUW1_2", got.LastMatchIDSolo)
	assert.Equal(t, "EUW1_1", got.LastMatchIDFlex)
	assert.Equal(t, solo, got.SoloRank)
	assert.Equal(t, flex, got.FlexRank)
	assert.True(t, got.LastUpdated.After(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	err = repo.Update(ctx, "Ghost#1", domain.PlayerUpdate{LastMatchID: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlayerDeleteIfUnreferenced(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	players := NewPlayerRepository(db, zerolog.Nop())
	users := NewUserRepository(db, zerolog.Nop())
	friends := NewFriendRepository(db, zerolog.Nop())

	require.NoError(t, players.Create(ctx, &domain.TrackedPlayer{DisplayID: "P#1", AccountID: "acc"}))
	u, err := users.Create(ctx, "device-1")
	require.NoError(t, err)
	_, err = friends.Add(ctx, u.ID, "P#1")
	require.NoError(t, err)

	deleted, err := players.DeleteIfUnreferenced(ctx, "P#1")
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, friends.Remove(ctx, u.ID, "P#1"))
	deleted, err = players.DeleteIfUnreferenced(ctx, "P#1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = players.GetByDisplayID(ctx, "P#1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlayerForceDeleteAndUpdateAccountID(t *testing.T) {
	ctx := context.Background()
	repo := NewPlayerRepository(newTestDB(t), zerolog.Nop())

	require.NoError(t, repo.Create(ctx, &domain.TrackedPlayer{DisplayID: "P#1", AccountID: "bad"}))
	require.NoError(t, repo.UpdateAccountID(ctx, "P#1", "good"))
	got, err := repo.GetByDisplayID(ctx, "P#1")
	require.NoError(t, err)
	assert.Equal(t, "good", got.AccountID)

	db := repo.db
	users := NewUserRepository(db, zerolog.Nop())
	friends := NewFriendRepository(db, zerolog.Nop())
	u, err := users.Create(ctx, "device-force")
	require.NoError(t, err)
	_, err = friends.Add(ctx, u.ID, "P#1")
	require.NoError(t, err)

	require.NoError(t, repo.ForceDelete(ctx, "P#1"))
	assert.ErrorIs(t, repo.ForceDelete(ctx, "P#1"), ErrNotFound)

	n, err := friends.CountFollowers(ctx, "P#1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPlayerListAllQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectQuery(regexp.QuoteMeta("FROM tracked_players ORDER BY last_updated ASC")).WillReturnError(boom)

	repo := NewPlayerRepository(db, zerolog.Nop())
	_, err = repo.ListAll(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlayerUpdateExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("database is locked")
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tracked_players SET last_updated = ?, last_match_id = ?")).
		WillReturnError(boom)

	repo := NewPlayerRepository(db, zerolog.Nop())
	err = repo.Update(context.Background(), "P#1", domain.PlayerUpdate{LastMatchID: strPtr("EUW1_9")})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersAndFriends(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db, zerolog.Nop())
	friends := NewFriendRepository(db, zerolog.Nop())

	alice, err := users.Create(ctx, "device-alice")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "device-bob")
	require.NoError(t, err)
	_, err = users.Create(ctx, "device-alice")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, users.SetPushToken(ctx, bob.ID, "ExponentPushToken[bob]"))
	seen := time.Now().Add(time.Hour)
	require.NoError(t, users.Touch(ctx, alice.ID, seen))

	got, err := users.GetByDeviceID(ctx, "device-alice")
	require.NoError(t, err)
	assert.WithinDuration(t, seen, got.LastSeen, time.Second)

	_, err = friends.Add(ctx, alice.ID, "P#1")
	require.NoError(t, err)
	_, err = friends.Add(ctx, alice.ID, "Q#1")
	require.NoError(t, err)
	_, err = friends.Add(ctx, bob.ID, "P#1")
	require.NoError(t, err)
	_, err = friends.Add(ctx, bob.ID, "P#1")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	list, err := friends.ListByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	n, err := friends.CountFollowers(ctx, "P#1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	followers, err := friends.ListFollowers(ctx, "P#1")
	require.NoError(t, err)
	require.Len(t, followers, 2)
	devices := []string{followers[0].DeviceID, followers[1].DeviceID}
	assert.ElementsMatch(t, []string{"device-alice", "device-bob"}, devices)

	assert.ErrorIs(t, friends.Remove(ctx, bob.ID, "Q#1"), ErrNotFound)

	followed, err := users.Delete(ctx, "device-alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"P#1", "Q#1"}, followed)

	n, err = friends.CountFollowers(ctx, "Q#1")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = users.Delete(ctx, "device-alice")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = users.GetByDeviceID(ctx, "device-alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRankHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewRankHistoryRepository(newTestDB(t), zerolog.Nop())

	loss := false
	first := domain.RankHistory{
		MatchID:    "EUW1_1",
		AccountID:  "acc",
		Queue:      domain.QueueSolo,
		Win:        &loss,
		LPDelta:    -25,
		OldRank:    &domain.Rank{Tier: domain.TierGold, Division: domain.DivisionIV, Points: 0},
		NewRank:    &domain.Rank{Tier: domain.TierSilver, Division: domain.DivisionI, Points: 75},
		RecordedAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, repo.Record(ctx, first))
	require.NoError(t, repo.Record(ctx, first), "duplicate match is ignored")
	require.NoError(t, repo.Record(ctx, domain.RankHistory{
		MatchID:   "EUW1_2",
		AccountID: "acc",
		Queue:     domain.QueueFlex,
	}))

	history, err := repo.ListByAccountID(ctx, "acc", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, "EUW1_2", history[0].MatchID)
	assert.Nil(t, history[0].Win)
	assert.Nil(t, history[0].OldRank)

	assert.Equal(t, "EUW1_1", history[1].MatchID)
	require.NotNil(t, history[1].Win)
	assert.False(t, *history[1].Win)
	assert.Equal(t, -25, history[1].LPDelta)
	assert.Equal(t, first.NewRank, history[1].NewRank)
	assert.NotEmpty(t, history[1].ID)
}
