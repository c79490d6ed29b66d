package warden

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/meido/pkg/mio"
	"github.com/intrntsrfr/meido/pkg/mio/bot"
	"github.com/intrntsrfr/meido/pkg/mio/discord"
	"github.com/intrntsrfr/meido/pkg/utils/builders"
	"github.com/intrntsrfr/warden/database"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	commandTimeout = 5 * time.Second
	// longest list shown inline before it is attached as a file
	maxInlineList = 1024
)

type module struct {
	*bot.ModuleBase
	startTime time.Time
	store     *Store
	logger    mio.Logger
}

func NewModule(b *bot.Bot, store *Store, logger mio.Logger) *module {
	logger = logger.Named("commands")
	return &module{
		ModuleBase: bot.NewModule(b, "commands", logger),
		store:      store,
		logger:     logger,
		startTime:  time.Now(),
	}
}

func (m *module) Hook() error {
	if err := m.RegisterCommands(); err != nil {
		return err
	}
	if err := m.RegisterApplicationCommands(
		newInfoSlash(m),
		newHelpSlash(m),
		newInfractionsSlash(m),
		newProfanitySlash(m),
	); err != nil {
		return err
	}

	return nil
}

func newHelpSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "help").
		Type(discordgo.ChatApplicationCommand).
		Description("Get help on how to use the bot")

	run := func(d *discord.DiscordApplicationCommand) {
		text := strings.Builder{}
		text.WriteString("Moderation settings, per server:\n")
		text.WriteString("1. Notification channel for infractions\n")
		text.WriteString("1. Moderators and moderator roles\n")
		text.WriteString("1. Links that are allowed to be posted\n")
		text.WriteString("1. Channels that are ignored\n")
		text.WriteString("1. The infraction type and timeout\n")
		text.WriteString("\n")
		text.WriteString("To view the current settings, use the `/infractions view` command\n")
		text.WriteString("To manage the profanity list, use the `/profanity` commands\n")
		text.WriteString("\n")

		embed := builders.NewEmbedBuilder().
			WithTitle("Help").
			WithOkColor().
			WithDescription(text.String())
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newInfoSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "info").
		Type(discordgo.ChatApplicationCommand).
		Description("Get information about the bot")

	run := func(d *discord.DiscordApplicationCommand) {
		embed := builders.NewEmbedBuilder().
			WithTitle("Info").
			WithOkColor().
			AddField("Golang version", runtime.Version(), false).
			AddField("Running since", fmt.Sprintf("<t:%v:R>", m.startTime.Unix()), false).
			AddField("Total guilds", fmt.Sprintf("%v", d.Discord.GuildCount()), false)
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

var minPolicySeconds float64

var actionChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "Add", Value: "add"},
	{Name: "Remove", Value: "remove"},
}

func actionOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "action",
		Description: "Add or remove",
		Required:    true,
		Choices:     actionChoices,
	}
}

func newInfractionsSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "infractions").
		Type(discordgo.ChatApplicationCommand).
		Description("View or change the moderation settings").
		NoDM().
		Permissions(discordgo.PermissionAdministrator).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "view",
			Description: "View the current settings",
		}).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "channel",
			Description: "Set or clear the notification channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "The channel to notify in, leave empty to clear",
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		}).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "moderator",
			Description: "Add or remove a moderator",
			Options: []*discordgo.ApplicationCommandOption{
				actionOption(),
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The moderator",
					Required:    true,
				},
			},
		}).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "role",
			Description: "Add or remove a moderator role",
			Options: []*discordgo.ApplicationCommandOption{
				actionOption(),
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "The moderator role",
					Required:    true,
				},
			},
		}).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "link",
			Description: "Add or remove an allowed link",
			Options: []*discordgo.ApplicationCommandOption{
				actionOption(),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "link",
					Description: "The link",
					Required:    true,
				},
			},
		}).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "ignore",
			Description: "Add or remove an ignored channel",
			Options: []*discordgo.ApplicationCommandOption{
				actionOption(),
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "The channel",
					Required:    true,
				},
			},
		}).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "policy",
			Description: "Set the infraction type and timeout",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "The infraction type",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "seconds",
					Description: "Timeout in seconds",
					Required:    true,
					MinValue:    &minPolicySeconds,
					MaxValue:    database.MaxPolicySeconds,
				},
			},
		}).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "reset",
			Description: "Remove all settings for this server",
		})

	run := func(d *discord.DiscordApplicationCommand) {
		gid, err := ParseID(d.GuildID())
		if err != nil {
			d.Respond("This command can only be used in a server")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		var (
			gs    *database.GuildSettings
			title = "Updated settings"
		)

		switch {
		case hasOption(d, "view"):
			gs, err = m.store.GuildSettings(ctx, gid)
			title = "Settings"
		case hasOption(d, "channel"):
			gs, err = m.setNotificationChannel(ctx, d, gid)
		case hasOption(d, "moderator"):
			var uid int64
			if uid, err = optionID(d, "moderator:user"); err == nil {
				if optionString(d, "moderator:action") == "remove" {
					gs, err = m.store.RemoveModerators(ctx, gid, uid)
				} else {
					gs, err = m.store.AddModerators(ctx, gid, uid)
				}
			}
		case hasOption(d, "role"):
			var rid int64
			if rid, err = optionID(d, "role:role"); err == nil {
				if optionString(d, "role:action") == "remove" {
					gs, err = m.store.RemoveModeratorRoles(ctx, gid, rid)
				} else {
					gs, err = m.store.AddModeratorRoles(ctx, gid, rid)
				}
			}
		case hasOption(d, "link"):
			link := optionString(d, "link:link")
			if optionString(d, "link:action") == "remove" {
				gs, err = m.store.RemoveValidLinks(ctx, gid, link)
			} else {
				gs, err = m.store.AddValidLinks(ctx, gid, link)
			}
		case hasOption(d, "ignore"):
			var cid int64
			if cid, err = optionID(d, "ignore:channel"); err == nil {
				if optionString(d, "ignore:action") == "remove" {
					gs, err = m.store.UnignoreChannels(ctx, gid, cid)
				} else {
					gs, err = m.store.IgnoreChannels(ctx, gid, cid)
				}
			}
		case hasOption(d, "policy"):
			seconds := 0
			if opt, ok := d.Options("policy:seconds"); ok {
				seconds = int(opt.IntValue())
			}
			if _, err = m.store.SetInfractionPolicy(ctx, gid, optionString(d, "policy:type"), seconds); err == nil {
				gs, err = m.store.GuildSettings(ctx, gid)
			}
		case hasOption(d, "reset"):
			if err = m.store.ResetGuild(ctx, gid); err == nil {
				gs = database.DefaultGuildSettings(gid)
				title = "Settings reset"
			}
		default:
			return
		}

		if err != nil {
			d.Respond(m.describeError(err, gid))
			return
		}

		policy, err := m.store.InfractionPolicy(ctx, gid)
		if err != nil {
			m.logger.Error("failed to get infraction policy", zap.Int64("guildID", gid), zap.Error(err))
			policy = database.DefaultInfractionPolicy(gid)
		}

		embed := generateSettingsEmbed(gs, policy)
		embed.Title = title

		resp := &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		}
		d.RespondComplex(resp, discordgo.InteractionResponseChannelMessageWithSource)
	}

	return cmd.Execute(run).Build()
}

func (m *module) setNotificationChannel(ctx context.Context, d *discord.DiscordApplicationCommand, gid int64) (*database.GuildSettings, error) {
	chOpt, ok := d.Options("channel:channel")
	if !ok {
		return m.store.UpsertGuildSettings(ctx, gid, database.WithoutNotificationChannel())
	}
	ch := chOpt.ChannelValue(d.Sess.Real())
	if ch == nil {
		return nil, ErrInvalidSnowflake
	}
	cid, err := ParseID(ch.ID)
	if err != nil {
		return nil, err
	}
	return m.store.UpsertGuildSettings(ctx, gid, database.WithNotificationChannel(cid))
}

// describeError turns a store error into something a moderator can act on.
// Anything unexpected is logged and reported generically.
func (m *module) describeError(err error, gid int64) string {
	switch {
	case errors.Is(err, database.ErrEmptyWord):
		return "The word cannot be empty"
	case errors.Is(err, database.ErrEmptyPolicyType):
		return "The infraction type cannot be empty"
	case errors.Is(err, database.ErrInvalidDuration):
		return fmt.Sprintf("The timeout must be between 0 and %v seconds", database.MaxPolicySeconds)
	case errors.Is(err, ErrInvalidSnowflake):
		return "That does not look like a valid target"
	}
	m.logger.Error("command failed", zap.Int64("guildID", gid), zap.Error(err))
	return "Failed to update server config"
}

func newProfanitySlash(m *module) *bot.ModuleApplicationCommand {
	wordOption := []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "word",
			Description: "The word",
			Required:    true,
		},
	}

	cmd := bot.NewModuleApplicationCommandBuilder(m, "profanity").
		Type(discordgo.ChatApplicationCommand).
		Description("Manage the profanity list shared by every server").
		NoDM().
		Permissions(discordgo.PermissionAdministrator).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "add",
			Description: "Add a word to the list",
			Options:     wordOption,
		}).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "remove",
			Description: "Remove a word from the list",
			Options:     wordOption,
		}).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "list",
			Description: "Show the list",
		})

	run := func(d *discord.DiscordApplicationCommand) {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		switch {
		case hasOption(d, "add"):
			if !m.canEditWordList(d.AuthorID()) {
				d.Respond(wordListOwnerOnly)
				return
			}
			word := database.NormalizeWord(optionString(d, "add:word"))
			added, err := m.store.AddProfaneWord(ctx, word)
			if err != nil {
				d.Respond(m.describeError(err, 0))
				return
			}
			if !added {
				d.Respond(fmt.Sprintf("`%v` is already on the list", word))
				return
			}
			d.Respond(fmt.Sprintf("Added `%v` to the list", word))
		case hasOption(d, "remove"):
			if !m.canEditWordList(d.AuthorID()) {
				d.Respond(wordListOwnerOnly)
				return
			}
			word := database.NormalizeWord(optionString(d, "remove:word"))
			removed, err := m.store.RemoveProfaneWord(ctx, word)
			if err != nil {
				d.Respond(m.describeError(err, 0))
				return
			}
			if !removed {
				d.Respond(fmt.Sprintf("`%v` is not on the list", word))
				return
			}
			d.Respond(fmt.Sprintf("Removed `%v` from the list", word))
		case hasOption(d, "list"):
			words, err := m.store.ProfaneWords(ctx)
			if err != nil {
				d.Respond(m.describeError(err, 0))
				return
			}

			text := formatWordList(words)
			embed := builders.NewEmbedBuilder().
				WithTitle(fmt.Sprintf("Profanity list - (%v) words", len(words))).
				WithOkColor()
			resp := &discordgo.InteractionResponseData{
				Flags: discordgo.MessageFlagsEphemeral,
			}

			if len(text) > maxInlineList {
				embed.WithDescription("List too long, so it's put in the attached .txt file")
				resp.Files = []*discordgo.File{{
					Name:        fmt.Sprintf("profanity_%v.txt", time.Now().Unix()),
					ContentType: "text/plain",
					Reader:      strings.NewReader(text),
				}}
			} else {
				embed.WithDescription(text)
			}
			resp.Embeds = []*discordgo.MessageEmbed{embed.Build()}
			d.RespondComplex(resp, discordgo.InteractionResponseChannelMessageWithSource)
		}
	}

	return cmd.Execute(run).Build()
}

const wordListOwnerOnly = "The profanity list is shared by every server, only bot owners can change it"

// canEditWordList gates changes to the word list, which has no guild scope.
func (m *module) canEditWordList(userID string) bool {
	return m.Bot.IsOwner(userID)
}

func hasOption(d *discord.DiscordApplicationCommand, name string) bool {
	_, ok := d.Options(name)
	return ok
}

func optionString(d *discord.DiscordApplicationCommand, name string) string {
	opt, ok := d.Options(name)
	if !ok {
		return ""
	}
	return opt.StringValue()
}

// optionID reads the snowflake out of a user, role or channel option
// without resolving it.
func optionID(d *discord.DiscordApplicationCommand, name string) (int64, error) {
	opt, ok := d.Options(name)
	if !ok {
		return 0, ErrInvalidSnowflake
	}
	id, ok := opt.Value.(string)
	if !ok {
		return 0, ErrInvalidSnowflake
	}
	return ParseID(id)
}

func generateSettingsEmbed(gs *database.GuildSettings, policy *database.InfractionPolicy) *discordgo.MessageEmbed {
	channel := "None"
	if gs.NotificationChannelID != nil {
		channel = fmt.Sprintf("<#%v>", *gs.NotificationChannelID)
	}

	policyText := "None"
	if policy != nil && policy.IsSet() {
		policyText = fmt.Sprintf("%v, %v", policy.Type, policy.Duration())
	}

	embed := builders.NewEmbedBuilder().
		WithTitle("Settings").
		WithOkColor().
		AddField("Notification channel", channel, true).
		AddField("Infraction policy", policyText, true).
		AddField("Moderators", joinLimited(mentions("<@%v>", gs.Moderators), 760), false).
		AddField("Moderator roles", joinLimited(mentions("<@&%v>", gs.ModeratorRoleIDs), 760), false).
		AddField("Allowed links", joinLimited(gs.ValidLinks, 760), false).
		AddField("Ignored channels", joinLimited(mentions("<#%v>", gs.IgnoredChannelIDs), 760), false).
		WithFooter(fmt.Sprintf("Server ID: %v", gs.GuildID), "")

	return embed.Build()
}

func mentions(format string, ids pq.Int64Array) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fmt.Sprintf(format, id))
	}
	return out
}

// joinLimited joins items until the result would exceed limit bytes and
// notes how many were left out.
func joinLimited(items []string, limit int) string {
	if len(items) == 0 {
		return "None"
	}

	var shown []string
	for _, it := range items {
		if len(strings.Join(append(shown, it), ", ")) > limit {
			break
		}
		shown = append(shown, it)
	}

	if len(shown) == 0 {
		return fmt.Sprintf("%v more", len(items))
	}

	text := strings.Join(shown, ", ")
	if len(shown) != len(items) {
		text += fmt.Sprintf(" and %v more", len(items)-len(shown))
	}
	return text
}

func formatWordList(words []*database.ProfaneWord) string {
	if len(words) == 0 {
		return "None"
	}
	builder := strings.Builder{}
	for i, w := range words {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(w.Word)
	}
	return builder.String()
}
