package warden

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const eventTimeout = 5 * time.Second

func disconnectHandler(b *Bot) func(*discordgo.Session, *discordgo.Disconnect) {
	return func(s *discordgo.Session, d *discordgo.Disconnect) {
		b.logger.Info("disconnected")
	}
}

// channelDeleteHandler drops a deleted channel from the notification channel
// and the ignored channels.
func channelDeleteHandler(b *Bot) func(*discordgo.Session, *discordgo.ChannelDelete) {
	return func(s *discordgo.Session, d *discordgo.ChannelDelete) {
		if d.Channel == nil || d.GuildID == "" {
			return
		}
		gid, cid, ok := b.parseIDs(d.GuildID, d.ID)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		changed, err := b.store.ForgetChannel(ctx, gid, cid)
		if err != nil {
			b.logger.Error("failed to forget channel", zap.Int64("guildID", gid), zap.Int64("channelID", cid), zap.Error(err))
			return
		}
		if changed {
			b.logger.Info("forgot deleted channel", zap.Int64("guildID", gid), zap.Int64("channelID", cid))
		}
	}
}

func guildRoleDeleteHandler(b *Bot) func(*discordgo.Session, *discordgo.GuildRoleDelete) {
	return func(s *discordgo.Session, d *discordgo.GuildRoleDelete) {
		gid, rid, ok := b.parseIDs(d.GuildID, d.RoleID)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		changed, err := b.store.ForgetRole(ctx, gid, rid)
		if err != nil {
			b.logger.Error("failed to forget role", zap.Int64("guildID", gid), zap.Int64("roleID", rid), zap.Error(err))
			return
		}
		if changed {
			b.logger.Info("forgot deleted role", zap.Int64("guildID", gid), zap.Int64("roleID", rid))
		}
	}
}

func guildMemberRemoveHandler(b *Bot) func(*discordgo.Session, *discordgo.GuildMemberRemove) {
	return func(s *discordgo.Session, d *discordgo.GuildMemberRemove) {
		if d.Member == nil || d.User == nil {
			return
		}
		gid, uid, ok := b.parseIDs(d.GuildID, d.User.ID)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		changed, err := b.store.ForgetMember(ctx, gid, uid)
		if err != nil {
			b.logger.Error("failed to forget member", zap.Int64("guildID", gid), zap.Int64("userID", uid), zap.Error(err))
			return
		}
		if changed {
			b.logger.Info("removed departed moderator", zap.Int64("guildID", gid), zap.Int64("userID", uid))
		}
	}
}

// guildDeleteHandler only evicts the cache. Stored settings are kept so they
// survive the bot being re-added.
func guildDeleteHandler(b *Bot) func(*discordgo.Session, *discordgo.GuildDelete) {
	return func(s *discordgo.Session, d *discordgo.GuildDelete) {
		if d.Guild == nil || d.Unavailable {
			return
		}
		gid, err := ParseID(d.ID)
		if err != nil {
			return
		}
		b.store.Evict(gid)
		b.logger.Info("left guild", zap.Int64("guildID", gid))
	}
}

func (b *Bot) parseIDs(guildID, targetID string) (int64, int64, bool) {
	gid, err := ParseID(guildID)
	if err != nil {
		return 0, 0, false
	}
	tid, err := ParseID(targetID)
	if err != nil {
		b.logger.Error("bad id in event", zap.String("guildID", guildID), zap.Error(err))
		return 0, 0, false
	}
	return gid, tid, true
}
