package database

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreTests checks the DB contract against any implementation. Guild ids
// are offset by base so runs against a shared database do not collide.
func runStoreTests(t *testing.T, db DB, base int64) {
	ctx := context.Background()

	t.Run("duplicate word leaves one row", func(t *testing.T) {
		added, err := db.AddProfaneWord(ctx, "Heck")
		require.NoError(t, err)
		assert.True(t, added)

		added, err = db.AddProfaneWord(ctx, "  heck ")
		require.NoError(t, err)
		assert.False(t, added)

		words, err := db.ProfaneWords(ctx)
		require.NoError(t, err)
		count := 0
		for _, w := range words {
			if w.Word == "heck" {
				count++
			}
		}
		assert.Equal(t, 1, count)

		_, err = db.RemoveProfaneWord(ctx, "heck")
		require.NoError(t, err)
	})

	t.Run("empty word is rejected", func(t *testing.T) {
		_, err := db.AddProfaneWord(ctx, "   ")
		assert.ErrorIs(t, err, ErrEmptyWord)
	})

	t.Run("removing missing word is a no-op", func(t *testing.T) {
		before, err := db.ProfaneWords(ctx)
		require.NoError(t, err)

		removed, err := db.RemoveProfaneWord(ctx, "never-added")
		require.NoError(t, err)
		assert.False(t, removed)

		after, err := db.ProfaneWords(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(before), len(after))
	})

	t.Run("remove existing word", func(t *testing.T) {
		_, err := db.AddProfaneWord(ctx, "darn")
		require.NoError(t, err)

		removed, err := db.RemoveProfaneWord(ctx, "DARN")
		require.NoError(t, err)
		assert.True(t, removed)
	})

	t.Run("unknown guild reads as defaults", func(t *testing.T) {
		gs, err := db.GetGuildSettings(ctx, base+1)
		require.NoError(t, err)
		assert.Equal(t, base+1, gs.GuildID)
		assert.Nil(t, gs.NotificationChannelID)
		assert.NotNil(t, gs.Moderators)
		assert.Empty(t, gs.Moderators)
		assert.Empty(t, gs.ModeratorRoleIDs)
		assert.Empty(t, gs.ValidLinks)
		assert.Empty(t, gs.IgnoredChannelIDs)
	})

	t.Run("partial upsert keeps other fields", func(t *testing.T) {
		gid := base + 2
		_, err := db.UpsertGuildSettings(ctx, gid,
			WithNotificationChannel(77),
			WithModerators(3, 1),
			WithModeratorRoles(10),
			WithValidLinks("https://example.com"),
			WithIgnoredChannels(20, 21),
		)
		require.NoError(t, err)

		gs, err := db.UpsertGuildSettings(ctx, gid, WithModerators(5, 5, 4))
		require.NoError(t, err)
		assert.Equal(t, pq.Int64Array{4, 5}, gs.Moderators)
		assert.Equal(t, pq.Int64Array{10}, gs.ModeratorRoleIDs)
		assert.Equal(t, pq.StringArray{"https://example.com"}, gs.ValidLinks)
		assert.Equal(t, pq.Int64Array{20, 21}, gs.IgnoredChannelIDs)
		require.NotNil(t, gs.NotificationChannelID)
		assert.Equal(t, int64(77), *gs.NotificationChannelID)

		stored, err := db.GetGuildSettings(ctx, gid)
		require.NoError(t, err)
		assert.Equal(t, gs, stored)
	})

	t.Run("upsert without options creates the row", func(t *testing.T) {
		gid := base + 3
		gs, err := db.UpsertGuildSettings(ctx, gid)
		require.NoError(t, err)
		assert.Equal(t, DefaultGuildSettings(gid), gs)

		deleted, err := db.DeleteGuildSettings(ctx, gid)
		require.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("clear notification channel", func(t *testing.T) {
		gid := base + 4
		_, err := db.UpsertGuildSettings(ctx, gid, WithNotificationChannel(9), WithModerators(1))
		require.NoError(t, err)

		gs, err := db.UpsertGuildSettings(ctx, gid, WithoutNotificationChannel())
		require.NoError(t, err)
		assert.Nil(t, gs.NotificationChannelID)
		assert.Equal(t, pq.Int64Array{1}, gs.Moderators)
	})

	t.Run("update guild settings", func(t *testing.T) {
		gid := base + 5
		gs, err := db.UpdateGuildSettings(ctx, gid, func(gs *GuildSettings) error {
			gs.Moderators = AddIDs(gs.Moderators, 8, 2)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, pq.Int64Array{2, 8}, gs.Moderators)

		gs, err = db.UpdateGuildSettings(ctx, gid, func(gs *GuildSettings) error {
			gs.Moderators = RemoveIDs(gs.Moderators, 8)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, pq.Int64Array{2}, gs.Moderators)
	})

	t.Run("update aborts on error", func(t *testing.T) {
		gid := base + 6
		_, err := db.UpsertGuildSettings(ctx, gid, WithModerators(1))
		require.NoError(t, err)

		abort := errors.New("abort")
		_, err = db.UpdateGuildSettings(ctx, gid, func(gs *GuildSettings) error {
			gs.Moderators = nil
			return abort
		})
		assert.ErrorIs(t, err, abort)

		gs, err := db.GetGuildSettings(ctx, gid)
		require.NoError(t, err)
		assert.Equal(t, pq.Int64Array{1}, gs.Moderators)
	})

	t.Run("delete missing settings", func(t *testing.T) {
		deleted, err := db.DeleteGuildSettings(ctx, base+7)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("infraction policy", func(t *testing.T) {
		gid := base + 8
		unset, err := db.GetInfractionPolicy(ctx, gid)
		require.NoError(t, err)
		assert.Equal(t, DefaultInfractionPolicy(gid), unset)
		assert.False(t, unset.IsSet())

		p, err := db.SetInfractionPolicy(ctx, gid, "profanity", 3600)
		require.NoError(t, err)
		assert.Equal(t, &InfractionPolicy{GuildID: gid, Type: "profanity", Time: 3600}, p)

		p, err = db.SetInfractionPolicy(ctx, gid, "spam", 60)
		require.NoError(t, err)

		got, err := db.GetInfractionPolicy(ctx, gid)
		require.NoError(t, err)
		assert.Equal(t, p, got)
		assert.Equal(t, "spam", got.Type)

		deleted, err := db.DeleteInfractionPolicy(ctx, gid)
		require.NoError(t, err)
		assert.True(t, deleted)
		deleted, err = db.DeleteInfractionPolicy(ctx, gid)
		require.NoError(t, err)
		assert.False(t, deleted)

		got, err = db.GetInfractionPolicy(ctx, gid)
		require.NoError(t, err)
		assert.False(t, got.IsSet())
	})

	t.Run("invalid infraction policy", func(t *testing.T) {
		_, err := db.SetInfractionPolicy(ctx, base+9, "spam", -1)
		assert.ErrorIs(t, err, ErrInvalidDuration)
		_, err = db.SetInfractionPolicy(ctx, base+9, " ", 10)
		assert.ErrorIs(t, err, ErrEmptyPolicyType)
		_, err = db.SetInfractionPolicy(ctx, base+9, "spam", MaxPolicySeconds+1)
		assert.ErrorIs(t, err, ErrInvalidDuration)

		p, err := db.SetInfractionPolicy(ctx, base+9, "spam", MaxPolicySeconds)
		require.NoError(t, err)
		assert.Equal(t, MaxPolicySeconds, p.Time)
	})
}
