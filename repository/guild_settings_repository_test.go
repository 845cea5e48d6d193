package repository

import (
	"context"
	"testing"

	"gamechannels/domain/entities"
	"gamechannels/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuildSettingsRepository_GetOrCreateGuildSettings(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewGuildSettingsRepository(testDB.DB)
	ctx := context.Background()

	t.Run("materializes defaults on first access", func(t *testing.T) {
		settings, err := repo.GetOrCreateGuildSettings(ctx, 111)
		require.NoError(t, err)

		assert.Equal(t, int64(111), settings.GuildID)
		assert.False(t, settings.Enabled)
		assert.Equal(t, entities.DefaultPlayerThreshold, settings.PlayerThreshold)
		assert.Empty(t, settings.Subcommunities)

		// The default document is persisted, not just returned
		again, err := repo.GetOrCreateGuildSettings(ctx, 111)
		require.NoError(t, err)
		assert.Equal(t, settings.GuildID, again.GuildID)
	})

	t.Run("round-trips a full document", func(t *testing.T) {
		settings, err := repo.GetOrCreateGuildSettings(ctx, 222)
		require.NoError(t, err)

		roleID := int64(777)
		settings.Enabled = true
		settings.PlayerThreshold = 2
		settings.RequiredRoleID = &roleID
		settings.Add(&entities.Subcommunity{
			Name:          "Factorio",
			RoleID:        100,
			ChannelID:     200,
			Aliases:       []string{"Factorio", "fact"},
			ExcludedUsers: []int64{42},
		})
		require.NoError(t, repo.UpdateGuildSettings(ctx, settings))

		loaded, err := repo.GetOrCreateGuildSettings(ctx, 222)
		require.NoError(t, err)
		assert.True(t, loaded.Enabled)
		assert.Equal(t, 2, loaded.PlayerThreshold)
		require.NotNil(t, loaded.RequiredRoleID)
		assert.Equal(t, int64(777), *loaded.RequiredRoleID)

		sc := loaded.FindByKeyword("fact")
		require.NotNil(t, sc)
		assert.Equal(t, int64(100), sc.RoleID)
		assert.Equal(t, int64(200), sc.ChannelID)
		assert.True(t, sc.IsExcluded(42))
	})

	t.Run("guilds are isolated", func(t *testing.T) {
		a, err := repo.GetOrCreateGuildSettings(ctx, 333)
		require.NoError(t, err)
		a.Enabled = true
		require.NoError(t, repo.UpdateGuildSettings(ctx, a))

		b, err := repo.GetOrCreateGuildSettings(ctx, 444)
		require.NoError(t, err)
		assert.False(t, b.Enabled)
	})
}

func TestGuildSettingsRepository_MigratesLegacyDocument(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewGuildSettingsRepository(testDB.DB)
	ctx := context.Background()

	// Seed a row in the shape the previous bot generation wrote
	legacy := []byte(`{
		"enabled": true,
		"playerthreshold": 5,
		"subcommunities": {
			"Factorio": {
				"role_id": 100,
				"channel_id": 200,
				"games": ["Factorio"],
				"users": [1, 2],
				"users_who_left": [42]
			}
		}
	}`)
	_, err := testDB.DB.Pool.Exec(ctx,
		`INSERT INTO guild_settings (guild_id, document) VALUES ($1, $2)`, int64(555), legacy)
	require.NoError(t, err)

	settings, err := repo.GetOrCreateGuildSettings(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, entities.CurrentSchemaVersion, settings.SchemaVersion)
	assert.True(t, settings.Enabled)
	assert.Equal(t, 5, settings.PlayerThreshold)

	sc := settings.FindByKeyword("Factorio")
	require.NotNil(t, sc)
	assert.True(t, sc.IsExcluded(42))

	// The migrated form was written back: the stored document now carries
	// the current schema version
	var raw []byte
	err = testDB.DB.Pool.QueryRow(ctx,
		`SELECT document FROM guild_settings WHERE guild_id = $1`, int64(555)).Scan(&raw)
	require.NoError(t, err)
	reloaded, migrated, err := decodeDocument(555, raw)
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Equal(t, entities.CurrentSchemaVersion, reloaded.SchemaVersion)
}

func TestGuildSettingsRepository_UpdateReplacesDocument(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewGuildSettingsRepository(testDB.DB)
	ctx := context.Background()

	settings, err := repo.GetOrCreateGuildSettings(ctx, 666)
	require.NoError(t, err)
	settings.Add(&entities.Subcommunity{Name: "Factorio", RoleID: 1, ChannelID: 2, Aliases: []string{"Factorio"}})
	require.NoError(t, repo.UpdateGuildSettings(ctx, settings))

	settings.Remove("Factorio")
	require.NoError(t, repo.UpdateGuildSettings(ctx, settings))

	loaded, err := repo.GetOrCreateGuildSettings(ctx, 666)
	require.NoError(t, err)
	assert.Empty(t, loaded.Subcommunities)
}
