package warden

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/meido/pkg/mio/bot"
	"github.com/intrntsrfr/meido/pkg/mio/discord"
	"go.uber.org/zap"
)

// logApplicationCommandRan logs every slash command with the guild it ran in.
func logApplicationCommandRan(b *Bot) func(cmd *bot.ApplicationCommandRan) {
	return func(cmd *bot.ApplicationCommandRan) {
		b.logger.Info("Slash",
			zap.String("command", commandPath(cmd.Interaction)),
			zap.String("id", cmd.Interaction.ID()),
			zap.String("guildID", cmd.Interaction.GuildID()),
			zap.String("channelID", cmd.Interaction.ChannelID()),
			zap.String("userID", cmd.Interaction.AuthorID()),
		)
	}
}

func logApplicationCommandPanicked(b *Bot) func(cmd *bot.ApplicationCommandPanicked) {
	return func(cmd *bot.ApplicationCommandPanicked) {
		b.logger.Error("Slash panic",
			zap.String("command", commandPath(cmd.Interaction)),
			zap.String("guildID", cmd.Interaction.GuildID()),
			zap.Any("reason", cmd.Reason),
		)
	}
}

// commandPath is the command name followed by its subcommand names, such as
// "infractions moderator".
func commandPath(d *discord.DiscordApplicationCommand) string {
	path := []string{d.Name()}
	opts := d.Data.Options
	for len(opts) > 0 {
		opt := opts[0]
		if opt.Type != discordgo.ApplicationCommandOptionSubCommand &&
			opt.Type != discordgo.ApplicationCommandOptionSubCommandGroup {
			break
		}
		path = append(path, opt.Name)
		opts = opt.Options
	}
	return strings.Join(path, " ")
}
