package database

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

type ProfaneWord struct {
	ID   int64  `json:"id" db:"id"`
	Word string `json:"word" db:"word"`
}

// InfractionPolicy is the expiry applied to a guild's infractions. Time is in
// seconds.
type InfractionPolicy struct {
	GuildID int64  `json:"guild_id" db:"guild_id"`
	Type    string `json:"type" db:"type"`
	Time    int    `json:"time" db:"time"`
}

// DefaultInfractionPolicy is what a guild without a stored policy reads as:
// no type and no timeout.
func DefaultInfractionPolicy(guildID int64) *InfractionPolicy {
	return &InfractionPolicy{GuildID: guildID}
}

func (p *InfractionPolicy) Duration() time.Duration {
	return time.Duration(p.Time) * time.Second
}

// IsSet reports whether the policy was ever configured.
func (p *InfractionPolicy) IsSet() bool {
	return p.Type != ""
}

type GuildSettings struct {
	GuildID               int64          `json:"guild_id" db:"guild_id"`
	NotificationChannelID *int64         `json:"notification_channel_id" db:"notification_channel_id"`
	Moderators            pq.Int64Array  `json:"moderators" db:"moderators"`
	ModeratorRoleIDs      pq.Int64Array  `json:"moderator_role_ids" db:"moderator_role_ids"`
	ValidLinks            pq.StringArray `json:"valid_links" db:"valid_links"`
	IgnoredChannelIDs     pq.Int64Array  `json:"ignored_channel_ids" db:"ignored_channel_ids"`
}

// DefaultGuildSettings is what a guild without a stored row reads as.
func DefaultGuildSettings(guildID int64) *GuildSettings {
	gs := &GuildSettings{GuildID: guildID}
	gs.Normalize()
	return gs
}

// Normalize replaces nil sets with empty ones and puts every set into its
// canonical sorted, de-duplicated form.
func (gs *GuildSettings) Normalize() {
	gs.Moderators = normalizeIDs(gs.Moderators)
	gs.ModeratorRoleIDs = normalizeIDs(gs.ModeratorRoleIDs)
	gs.ValidLinks = normalizeLinks(gs.ValidLinks)
	gs.IgnoredChannelIDs = normalizeIDs(gs.IgnoredChannelIDs)
}

func (gs *GuildSettings) Clone() *GuildSettings {
	c := &GuildSettings{
		GuildID:           gs.GuildID,
		Moderators:        append(pq.Int64Array{}, gs.Moderators...),
		ModeratorRoleIDs:  append(pq.Int64Array{}, gs.ModeratorRoleIDs...),
		ValidLinks:        append(pq.StringArray{}, gs.ValidLinks...),
		IgnoredChannelIDs: append(pq.Int64Array{}, gs.IgnoredChannelIDs...),
	}
	if gs.NotificationChannelID != nil {
		id := *gs.NotificationChannelID
		c.NotificationChannelID = &id
	}
	return c
}

// References reports whether the channel is used anywhere in the settings.
func (gs *GuildSettings) References(channelID int64) bool {
	if gs.NotificationChannelID != nil && *gs.NotificationChannelID == channelID {
		return true
	}
	return ContainsID(gs.IgnoredChannelIDs, channelID)
}

// NormalizeWord is the stored form of a profane word.
func NormalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
