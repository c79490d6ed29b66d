package database

import "github.com/lib/pq"

// SettingsOption selects one field to write in UpsertGuildSettings. Fields
// without an option keep their stored value.
type SettingsOption func(*settingsUpdate)

type settingsUpdate struct {
	channelSet bool
	channel    *int64
	moderators pq.Int64Array
	roles      pq.Int64Array
	links      pq.StringArray
	ignored    pq.Int64Array
}

func WithNotificationChannel(channelID int64) SettingsOption {
	return func(u *settingsUpdate) {
		u.channelSet = true
		u.channel = &channelID
	}
}

func WithoutNotificationChannel() SettingsOption {
	return func(u *settingsUpdate) {
		u.channelSet = true
		u.channel = nil
	}
}

func WithModerators(ids ...int64) SettingsOption {
	return func(u *settingsUpdate) { u.moderators = normalizeIDs(ids) }
}

func WithModeratorRoles(ids ...int64) SettingsOption {
	return func(u *settingsUpdate) { u.roles = normalizeIDs(ids) }
}

func WithValidLinks(links ...string) SettingsOption {
	return func(u *settingsUpdate) { u.links = normalizeLinks(links) }
}

func WithIgnoredChannels(ids ...int64) SettingsOption {
	return func(u *settingsUpdate) { u.ignored = normalizeIDs(ids) }
}

func newSettingsUpdate(opts []SettingsOption) *settingsUpdate {
	u := &settingsUpdate{}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *settingsUpdate) apply(gs *GuildSettings) {
	if u.channelSet {
		gs.NotificationChannelID = nil
		if u.channel != nil {
			id := *u.channel
			gs.NotificationChannelID = &id
		}
	}
	if u.moderators != nil {
		gs.Moderators = append(pq.Int64Array{}, u.moderators...)
	}
	if u.roles != nil {
		gs.ModeratorRoleIDs = append(pq.Int64Array{}, u.roles...)
	}
	if u.links != nil {
		gs.ValidLinks = append(pq.StringArray{}, u.links...)
	}
	if u.ignored != nil {
		gs.IgnoredChannelIDs = append(pq.Int64Array{}, u.ignored...)
	}
}

// columns lists the settings columns touched by the update, in a fixed order,
// with their bind values.
func (u *settingsUpdate) columns() ([]string, []interface{}) {
	var cols []string
	var args []interface{}
	if u.channelSet {
		cols = append(cols, "notification_channel_id")
		args = append(args, u.channel)
	}
	if u.moderators != nil {
		cols = append(cols, "moderators")
		args = append(args, u.moderators)
	}
	if u.roles != nil {
		cols = append(cols, "moderator_role_ids")
		args = append(args, u.roles)
	}
	if u.links != nil {
		cols = append(cols, "valid_links")
		args = append(args, u.links)
	}
	if u.ignored != nil {
		cols = append(cols, "ignored_channel_ids")
		args = append(args, u.ignored)
	}
	return cols, args
}
