package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDB(t *testing.T) {
	db, err := NewMemoryDatabase("", nil)
	require.NoError(t, err)
	defer db.Close()

	runStoreTests(t, db, 1000)
}

func TestMemoryDB_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")

	db, err := NewMemoryDatabase(path, nil)
	require.NoError(t, err)

	_, err = db.AddProfaneWord(ctx, "heck")
	require.NoError(t, err)
	_, err = db.UpsertGuildSettings(ctx, 1, WithNotificationChannel(2), WithValidLinks("https://a.example"))
	require.NoError(t, err)
	_, err = db.SetInfractionPolicy(ctx, 1, "spam", 30)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := NewMemoryDatabase(path, nil)
	require.NoError(t, err)

	words, err := reopened.ProfaneWords(ctx)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "heck", words[0].Word)

	// ids keep counting after a reload
	_, err = reopened.AddProfaneWord(ctx, "darn")
	require.NoError(t, err)
	words, err = reopened.ProfaneWords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), words[0].ID)

	gs, err := reopened.GetGuildSettings(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, gs.NotificationChannelID)
	assert.Equal(t, int64(2), *gs.NotificationChannelID)
	assert.Equal(t, pq.StringArray{"https://a.example"}, gs.ValidLinks)
	assert.NotNil(t, gs.Moderators)

	p, err := reopened.GetInfractionPolicy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, p.Time)
}

func TestMemoryDB_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	db, err := NewMemoryDatabase("", nil)
	require.NoError(t, err)

	gs, err := db.UpsertGuildSettings(ctx, 1, WithModerators(1))
	require.NoError(t, err)
	gs.Moderators[0] = 99

	stored, err := db.GetGuildSettings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, pq.Int64Array{1}, stored.Moderators)
}

func TestMemoryDB_LoadNullMaps(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")
	data := `{"next_word_id": 0, "words": null, "settings": {"1": null, "2": {"moderators": null}}, "policies": null}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	db, err := NewMemoryDatabase(path, nil)
	require.NoError(t, err)

	added, err := db.AddProfaneWord(ctx, "heck")
	require.NoError(t, err)
	assert.True(t, added)
	words, err := db.ProfaneWords(ctx)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, int64(1), words[0].ID)

	gs, err := db.GetGuildSettings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, DefaultGuildSettings(1), gs)

	gs, err = db.GetGuildSettings(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gs.GuildID)
	assert.NotNil(t, gs.Moderators)

	_, err = db.SetInfractionPolicy(ctx, 2, "spam", 30)
	require.NoError(t, err)
	_, err = db.UpsertGuildSettings(ctx, 3, WithModerators(4))
	require.NoError(t, err)
}

func TestMemoryDB_LoadContinuesWordIDs(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")
	data := `{"next_word_id": 1, "words": {"darn": 7}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	db, err := NewMemoryDatabase(path, nil)
	require.NoError(t, err)

	_, err = db.AddProfaneWord(ctx, "heck")
	require.NoError(t, err)
	words, err := db.ProfaneWords(ctx)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "heck", words[1].Word)
	assert.Equal(t, int64(8), words[1].ID)
}
