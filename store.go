package warden

import (
	"context"
	"errors"
	"sync"

	"github.com/intrntsrfr/meido/pkg/mio"
	"github.com/intrntsrfr/warden/database"
	"github.com/intrntsrfr/warden/kvstore"
	"go.uber.org/zap"
)

// Store is the configuration access layer used by the bot. Reads are served
// from the cache when possible; every write goes to the database first and
// then evicts what it changed.
type Store struct {
	db     database.DB
	cache  *kvstore.Cache
	logger mio.Logger

	// gens counts evictions per guild. A read only populates the cache if no
	// eviction happened while it was loading. Key 0 is the word list.
	mu   sync.Mutex
	gens map[int64]uint64
}

// NewStore wraps db. cache may be nil, in which case every read hits db.
func NewStore(db database.DB, cache *kvstore.Cache, logger mio.Logger) *Store {
	return &Store{
		db:     db,
		cache:  cache,
		logger: logger.Named("store"),
		gens:   make(map[int64]uint64),
	}
}

const wordsGen = 0

func (s *Store) generation(key int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[key]
}

// fill runs set unless key was evicted since gen was read.
func (s *Store) fill(key int64, gen uint64, set func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[key] != gen {
		return nil
	}
	return set()
}

// evict bumps the generation before deleting, so a read that loaded the old
// value either sees the bump or has its entry removed by del.
func (s *Store) evict(key int64, del func() error) error {
	s.mu.Lock()
	s.gens[key]++
	s.mu.Unlock()
	return del()
}

func (s *Store) DB() database.DB {
	return s.db
}

func (s *Store) cacheErr(op string, guildID int64, err error) {
	if err != nil && !errors.Is(err, kvstore.ErrMiss) {
		s.logger.Error("cache "+op+" failed", zap.Int64("guildID", guildID), zap.Error(err))
	}
}

func (s *Store) ProfaneWords(ctx context.Context) ([]*database.ProfaneWord, error) {
	if s.cache != nil {
		words, err := s.cache.GetWords()
		if err == nil {
			return words, nil
		}
		s.cacheErr("read words", 0, err)
	}

	gen := s.generation(wordsGen)
	words, err := s.db.ProfaneWords(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cacheErr("write words", 0, s.fill(wordsGen, gen, func() error {
			return s.cache.SetWords(words)
		}))
	}
	return words, nil
}

func (s *Store) AddProfaneWord(ctx context.Context, word string) (bool, error) {
	added, err := s.db.AddProfaneWord(ctx, word)
	if err != nil {
		return false, err
	}
	if added && s.cache != nil {
		s.cacheErr("evict words", 0, s.evict(wordsGen, s.cache.DeleteWords))
	}
	return added, nil
}

func (s *Store) RemoveProfaneWord(ctx context.Context, word string) (bool, error) {
	removed, err := s.db.RemoveProfaneWord(ctx, word)
	if err != nil {
		return false, err
	}
	if removed && s.cache != nil {
		s.cacheErr("evict words", 0, s.evict(wordsGen, s.cache.DeleteWords))
	}
	return removed, nil
}

func (s *Store) GuildSettings(ctx context.Context, guildID int64) (*database.GuildSettings, error) {
	if s.cache != nil {
		gs, err := s.cache.GetSettings(guildID)
		if err == nil {
			return gs, nil
		}
		s.cacheErr("read settings", guildID, err)
	}

	gen := s.generation(guildID)
	gs, err := s.db.GetGuildSettings(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cacheErr("write settings", guildID, s.fill(guildID, gen, func() error {
			return s.cache.SetSettings(gs)
		}))
	}
	return gs, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, guildID int64, opts ...database.SettingsOption) (*database.GuildSettings, error) {
	gs, err := s.db.UpsertGuildSettings(ctx, guildID, opts...)
	if err != nil {
		return nil, err
	}
	s.evictSettings(guildID)
	return gs, nil
}

func (s *Store) UpdateGuildSettings(ctx context.Context, guildID int64, fn func(*database.GuildSettings) error) (*database.GuildSettings, error) {
	gs, err := s.db.UpdateGuildSettings(ctx, guildID, fn)
	if err != nil {
		return nil, err
	}
	s.evictSettings(guildID)
	return gs, nil
}

func (s *Store) DeleteGuildSettings(ctx context.Context, guildID int64) (bool, error) {
	deleted, err := s.db.DeleteGuildSettings(ctx, guildID)
	if err != nil {
		return false, err
	}
	s.evictSettings(guildID)
	return deleted, nil
}

func (s *Store) evictSettings(guildID int64) {
	if s.cache != nil {
		s.cacheErr("evict settings", guildID, s.evict(guildID, func() error {
			return s.cache.DeleteSettings(guildID)
		}))
	}
}

func (s *Store) evictPolicy(guildID int64) {
	s.cacheErr("evict policy", guildID, s.evict(guildID, func() error {
		return s.cache.DeletePolicy(guildID)
	}))
}

func (s *Store) InfractionPolicy(ctx context.Context, guildID int64) (*database.InfractionPolicy, error) {
	if s.cache != nil {
		p, err := s.cache.GetPolicy(guildID)
		if err == nil {
			return p, nil
		}
		s.cacheErr("read policy", guildID, err)
	}

	gen := s.generation(guildID)
	p, err := s.db.GetInfractionPolicy(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cacheErr("write policy", guildID, s.fill(guildID, gen, func() error {
			return s.cache.SetPolicy(p)
		}))
	}
	return p, nil
}

func (s *Store) SetInfractionPolicy(ctx context.Context, guildID int64, infractionType string, seconds int) (*database.InfractionPolicy, error) {
	p, err := s.db.SetInfractionPolicy(ctx, guildID, infractionType, seconds)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.evictPolicy(guildID)
	}
	return p, nil
}

func (s *Store) DeleteInfractionPolicy(ctx context.Context, guildID int64) (bool, error) {
	deleted, err := s.db.DeleteInfractionPolicy(ctx, guildID)
	if err != nil {
		return false, err
	}
	if s.cache != nil {
		s.evictPolicy(guildID)
	}
	return deleted, nil
}

// ResetGuild removes both the settings row and the policy row.
func (s *Store) ResetGuild(ctx context.Context, guildID int64) error {
	if _, err := s.db.DeleteGuildSettings(ctx, guildID); err != nil {
		return err
	}
	if _, err := s.db.DeleteInfractionPolicy(ctx, guildID); err != nil {
		return err
	}
	s.Evict(guildID)
	return nil
}

// Evict drops cached entries for a guild without touching the database.
func (s *Store) Evict(guildID int64) {
	if s.cache != nil {
		s.cacheErr("evict guild", guildID, s.evict(guildID, func() error {
			return s.cache.DeleteGuild(guildID)
		}))
	}
}

func (s *Store) AddModerators(ctx context.Context, guildID int64, userIDs ...int64) (*database.GuildSettings, error) {
	return s.UpdateGuildSettings(ctx, guildID, func(gs *database.GuildSettings) error {
		gs.Moderators = database.AddIDs(gs.Moderators, userIDs...)
		return nil
	})
}

func (s *Store) RemoveModerators(ctx context.Context, guildID int64, userIDs ...int64) (*database.GuildSettings, error) {
	return s.UpdateGuildSettings(ctx, guildID, func(gs *database.GuildSettings) error {
		gs.Moderators = database.RemoveIDs(gs.Moderators, userIDs...)
		return nil
	})
}

func (s *Store) AddModeratorRoles(ctx context.Context, guildID int64, roleIDs ...int64) (*database.GuildSettings, error) {
	return s.UpdateGuildSettings(ctx, guildID, func(gs *database.GuildSettings) error {
		gs.ModeratorRoleIDs = database.AddIDs(gs.ModeratorRoleIDs, roleIDs...)
		return nil
	})
}

func (s *Store) RemoveModeratorRoles(ctx context.Context, guildID int64, roleIDs ...int64) (*database.GuildSettings, error) {
	return s.UpdateGuildSettings(ctx, guildID, func(gs *database.GuildSettings) error {
		gs.ModeratorRoleIDs = database.RemoveIDs(gs.ModeratorRoleIDs, roleIDs...)
		return nil
	})
}

func (s *Store) AddValidLinks(ctx context.Context, guildID int64, links ...string) (*database.GuildSettings, error) {
	return s.UpdateGuildSettings(ctx, guildID, func(gs *database.GuildSettings) error {
		gs.ValidLinks = database.AddLinks(gs.ValidLinks, links...)
		return nil
	})
}

func (s *Store) RemoveValidLinks(ctx context.Context, guildID int64, links ...string) (*database.GuildSettings, error) {
	return s.UpdateGuildSettings(ctx, guildID, func(gs *database.GuildSettings) error {
		gs.ValidLinks = database.RemoveLinks(gs.ValidLinks, links...)
		return nil
	})
}

func (s *Store) IgnoreChannels(ctx context.Context, guildID int64, channelIDs ...int64) (*database.GuildSettings, error) {
	return s.UpdateGuildSettings(ctx, guildID, func(gs *database.GuildSettings) error {
		gs.IgnoredChannelIDs = database.AddIDs(gs.IgnoredChannelIDs, channelIDs...)
		return nil
	})
}

func (s *Store) UnignoreChannels(ctx context.Context, guildID int64, channelIDs ...int64) (*database.GuildSettings, error) {
	return s.UpdateGuildSettings(ctx, guildID, func(gs *database.GuildSettings) error {
		gs.IgnoredChannelIDs = database.RemoveIDs(gs.IgnoredChannelIDs, channelIDs...)
		return nil
	})
}

// ForgetChannel removes a deleted channel from the guild's settings. It
// reports whether anything changed; guilds that never referenced the channel
// are left without a row.
func (s *Store) ForgetChannel(ctx context.Context, guildID, channelID int64) (bool, error) {
	gs, err := s.GuildSettings(ctx, guildID)
	if err != nil {
		return false, err
	}
	if !gs.References(channelID) {
		return false, nil
	}

	_, err = s.UpdateGuildSettings(ctx, guildID, func(gs *database.GuildSettings) error {
		if gs.NotificationChannelID != nil && *gs.NotificationChannelID == channelID {
			gs.NotificationChannelID = nil
		}
		gs.IgnoredChannelIDs = database.RemoveIDs(gs.IgnoredChannelIDs, channelID)
		return nil
	})
	return err == nil, err
}

// ForgetRole removes a deleted role from the moderator roles.
func (s *Store) ForgetRole(ctx context.Context, guildID, roleID int64) (bool, error) {
	gs, err := s.GuildSettings(ctx, guildID)
	if err != nil {
		return false, err
	}
	if !database.ContainsID(gs.ModeratorRoleIDs, roleID) {
		return false, nil
	}
	_, err = s.RemoveModeratorRoles(ctx, guildID, roleID)
	return err == nil, err
}

// ForgetMember removes a member that left the guild from the moderators.
func (s *Store) ForgetMember(ctx context.Context, guildID, userID int64) (bool, error) {
	gs, err := s.GuildSettings(ctx, guildID)
	if err != nil {
		return false, err
	}
	if !database.ContainsID(gs.Moderators, userID) {
		return false, nil
	}
	_, err = s.RemoveModerators(ctx, guildID, userID)
	return err == nil, err
}
