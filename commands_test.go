package warden

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/meido/pkg/mio/bot"
	"github.com/intrntsrfr/meido/pkg/mio/discord"
	"github.com/intrntsrfr/meido/pkg/utils"
	"github.com/intrntsrfr/warden/database"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldValues(t *testing.T, gs *database.GuildSettings, p *database.InfractionPolicy) map[string]string {
	t.Helper()
	embed := generateSettingsEmbed(gs, p)
	out := make(map[string]string, len(embed.Fields))
	for _, f := range embed.Fields {
		out[f.Name] = f.Value
	}
	return out
}

func TestGenerateSettingsEmbed_Defaults(t *testing.T) {
	fields := fieldValues(t, database.DefaultGuildSettings(1), nil)

	assert.Equal(t, "None", fields["Notification channel"])
	assert.Equal(t, "None", fields["Infraction policy"])
	assert.Equal(t, "None", fields["Moderators"])
	assert.Equal(t, "None", fields["Moderator roles"])
	assert.Equal(t, "None", fields["Allowed links"])
	assert.Equal(t, "None", fields["Ignored channels"])

	fields = fieldValues(t, database.DefaultGuildSettings(1), database.DefaultInfractionPolicy(1))
	assert.Equal(t, "None", fields["Infraction policy"])
}

func TestGenerateSettingsEmbed_Populated(t *testing.T) {
	ch := int64(30)
	gs := &database.GuildSettings{
		GuildID:               1,
		NotificationChannelID: &ch,
		Moderators:            pq.Int64Array{10, 11},
		ModeratorRoleIDs:      pq.Int64Array{20},
		ValidLinks:            pq.StringArray{"https://example.com"},
		IgnoredChannelIDs:     pq.Int64Array{40},
	}
	p := &database.InfractionPolicy{GuildID: 1, Type: "spam", Time: 90}

	fields := fieldValues(t, gs, p)
	assert.Equal(t, "<#30>", fields["Notification channel"])
	assert.Equal(t, "spam, 1m30s", fields["Infraction policy"])
	assert.Equal(t, "<@10>, <@11>", fields["Moderators"])
	assert.Equal(t, "<@&20>", fields["Moderator roles"])
	assert.Equal(t, "https://example.com", fields["Allowed links"])
	assert.Equal(t, "<#40>", fields["Ignored channels"])
}

func TestJoinLimited(t *testing.T) {
	assert.Equal(t, "None", joinLimited(nil, 10))
	assert.Equal(t, "a, b", joinLimited([]string{"a", "b"}, 10))
	assert.Equal(t, "aaaa and 2 more", joinLimited([]string{"aaaa", "bbbb", "cccc"}, 8))
	assert.Equal(t, "1 more", joinLimited([]string{"too long"}, 3))
	assert.Equal(t, "2 more", joinLimited([]string{"too long", "a"}, 3))
}

func TestFormatWordList(t *testing.T) {
	assert.Equal(t, "None", formatWordList(nil))

	words := []*database.ProfaneWord{{ID: 1, Word: "darn"}, {ID: 2, Word: "heck"}}
	assert.Equal(t, "darn\nheck", formatWordList(words))

	long := make([]*database.ProfaneWord, 0, 300)
	for i := 0; i < 300; i++ {
		long = append(long, &database.ProfaneWord{ID: int64(i), Word: "word"})
	}
	text := formatWordList(long)
	require.Greater(t, len(text), maxInlineList)
	assert.Equal(t, 300, len(strings.Split(text, "\n")))
}

func newTestModule(t *testing.T, owners ...string) *module {
	t.Helper()
	conf := utils.NewConfig()
	conf.Set("token", "asdf")
	conf.Set("shards", 1)
	conf.Set("owner_ids", owners)

	b := bot.NewBotBuilder(conf).WithLogger(NewNopLogger()).Build()
	s, _ := newTestStore(t, false)
	return NewModule(b, s, NewNopLogger())
}

func TestModule_WordListOwnersOnly(t *testing.T) {
	m := newTestModule(t, "100")
	assert.True(t, m.canEditWordList("100"))
	assert.False(t, m.canEditWordList("200"))
	assert.False(t, m.canEditWordList(""))

	// without configured owners nobody may edit the shared list
	m = newTestModule(t)
	assert.False(t, m.canEditWordList("100"))
}

func TestCommandPath(t *testing.T) {
	tests := []struct {
		name string
		data discordgo.ApplicationCommandInteractionData
		want string
	}{
		{
			name: "no options",
			data: discordgo.ApplicationCommandInteractionData{Name: "info"},
			want: "info",
		},
		{
			name: "subcommand with options",
			data: discordgo.ApplicationCommandInteractionData{
				Name: "infractions",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{{
					Name: "moderator",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandInteractionDataOption{
						{Name: "action", Type: discordgo.ApplicationCommandOptionString, Value: "add"},
					},
				}},
			},
			want: "infractions moderator",
		},
		{
			name: "plain option",
			data: discordgo.ApplicationCommandInteractionData{
				Name: "profanity",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "word", Type: discordgo.ApplicationCommandOptionString, Value: "heck"},
				},
			},
			want: "profanity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &discord.DiscordApplicationCommand{Data: tt.data}
			assert.Equal(t, tt.want, commandPath(d))
		})
	}
}
