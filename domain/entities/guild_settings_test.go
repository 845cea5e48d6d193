package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGuildSettings_Defaults(t *testing.T) {
	t.Parallel()

	gs := NewGuildSettings(123)

	assert.Equal(t, CurrentSchemaVersion, gs.SchemaVersion)
	assert.Equal(t, int64(123), gs.GuildID)
	assert.False(t, gs.Enabled)
	assert.Equal(t, DefaultPlayerThreshold, gs.PlayerThreshold)
	assert.Nil(t, gs.RequiredRoleID)
	assert.Empty(t, gs.Subcommunities)
}

func TestGuildSettings_FindByKeyword_InsertionOrder(t *testing.T) {
	t.Parallel()

	// Two records sharing an alias should not exist by construction, but a
	// stale document may still carry one. The earliest-inserted record wins.
	gs := NewGuildSettings(1)
	first := &Subcommunity{Name: "Factorio", RoleID: 1, ChannelID: 10, Aliases: []string{"Factorio", "fact"}}
	second := &Subcommunity{Name: "Satisfactory", RoleID: 2, ChannelID: 20, Aliases: []string{"Satisfactory", "fact"}}
	gs.Subcommunities = []*Subcommunity{first, second}

	assert.Same(t, first, gs.FindByKeyword("fact"))
	assert.Same(t, second, gs.FindByKeyword("satisfactory"))
	assert.Nil(t, gs.FindByKeyword("dyson sphere program"))
}

func TestGuildSettings_Add(t *testing.T) {
	t.Parallel()

	gs := NewGuildSettings(1)
	require.True(t, gs.Add(&Subcommunity{Name: "Factorio", Aliases: []string{"Factorio"}}))

	tests := []struct {
		name string
		sc   *Subcommunity
		want bool
	}{
		{
			name: "duplicate name rejected",
			sc:   &Subcommunity{Name: "Factorio", Aliases: []string{"Factorio"}},
			want: false,
		},
		{
			name: "duplicate name rejected case-insensitively",
			sc:   &Subcommunity{Name: "FACTORIO", Aliases: []string{"FACTORIO"}},
			want: false,
		},
		{
			name: "alias claimed by live record rejected",
			sc:   &Subcommunity{Name: "Factory Game", Aliases: []string{"Factory Game", "factorio"}},
			want: false,
		},
		{
			name: "unclaimed name accepted",
			sc:   &Subcommunity{Name: "Satisfactory", Aliases: []string{"Satisfactory"}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gs.Add(tt.sc))
		})
	}
}

func TestGuildSettings_Remove(t *testing.T) {
	t.Parallel()

	gs := NewGuildSettings(1)
	gs.Add(&Subcommunity{Name: "Factorio", Aliases: []string{"Factorio"}})
	gs.Add(&Subcommunity{Name: "Satisfactory", Aliases: []string{"Satisfactory"}})

	assert.True(t, gs.Remove("factorio"))
	assert.Len(t, gs.Subcommunities, 1)
	assert.Nil(t, gs.FindByKeyword("Factorio"))
	assert.False(t, gs.Remove("Factorio"))
}

func TestGuildSettings_FindByChannelID(t *testing.T) {
	t.Parallel()

	gs := NewGuildSettings(1)
	sc := &Subcommunity{Name: "Factorio", ChannelID: 555, Aliases: []string{"Factorio"}}
	gs.Add(sc)

	assert.Same(t, sc, gs.FindByChannelID(555))
	assert.Nil(t, gs.FindByChannelID(556))
}

func TestGuildSettings_HasRequiredRole(t *testing.T) {
	t.Parallel()

	roleID := int64(777)

	tests := []struct {
		name         string
		requiredRole *int64
		roleIDs      []int64
		want         bool
	}{
		{name: "no required role configured", requiredRole: nil, roleIDs: nil, want: true},
		{name: "caller holds the role", requiredRole: &roleID, roleIDs: []int64{111, 777}, want: true},
		{name: "caller lacks the role", requiredRole: &roleID, roleIDs: []int64{111, 222}, want: false},
		{name: "caller has no roles", requiredRole: &roleID, roleIDs: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gs := NewGuildSettings(1)
			gs.RequiredRoleID = tt.requiredRole
			assert.Equal(t, tt.want, gs.HasRequiredRole(tt.roleIDs))
		})
	}
}

func TestGuildSettings_SortedNames(t *testing.T) {
	t.Parallel()

	gs := NewGuildSettings(1)
	gs.Add(&Subcommunity{Name: "satisfactory", Aliases: []string{"satisfactory"}})
	gs.Add(&Subcommunity{Name: "Factorio", Aliases: []string{"Factorio"}})
	gs.Add(&Subcommunity{Name: "Dyson Sphere Program", Aliases: []string{"Dyson Sphere Program"}})

	assert.Equal(t, []string{"Dyson Sphere Program", "Factorio", "satisfactory"}, gs.SortedNames())
}

func TestGuildSettings_AnnouncementFor(t *testing.T) {
	t.Parallel()

	gs := NewGuildSettings(1)
	assert.Equal(t,
		"This channel for **Factorio** was just created automatically, have fun! :)",
		gs.AnnouncementFor("Factorio"))

	gs.AnnouncementTemplate = "Welcome to ##game_name##!"
	assert.Equal(t, "Welcome to Factorio!", gs.AnnouncementFor("Factorio"))
}

func TestGuildSettings_WelcomeFor(t *testing.T) {
	t.Parallel()

	gs := NewGuildSettings(1)
	assert.Empty(t, gs.WelcomeFor("Factorio"), "no template configured means no welcome")

	gs.WelcomeTemplate = "A new engineer has joined ##game_name##."
	assert.Equal(t, "A new engineer has joined Factorio.", gs.WelcomeFor("Factorio"))
}
