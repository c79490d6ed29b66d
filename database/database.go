package database

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"
)

var (
	ErrEmptyWord       = errors.New("database: empty word")
	ErrEmptyPolicyType = errors.New("database: empty infraction type")
	ErrInvalidDuration = errors.New("database: infraction time out of range")
)

// MaxPolicySeconds is the largest timeout the infractions.time column holds.
const MaxPolicySeconds = math.MaxInt32

// DB is the moderation configuration store. Lookups never fail with a
// not-found error; a guild without a row reads as DefaultGuildSettings or
// DefaultInfractionPolicy.
type DB interface {
	Migrate(ctx context.Context) error
	Close() error

	AddProfaneWord(ctx context.Context, word string) (bool, error)
	RemoveProfaneWord(ctx context.Context, word string) (bool, error)
	ProfaneWords(ctx context.Context) ([]*ProfaneWord, error)

	GetGuildSettings(ctx context.Context, guildID int64) (*GuildSettings, error)
	UpsertGuildSettings(ctx context.Context, guildID int64, opts ...SettingsOption) (*GuildSettings, error)
	UpdateGuildSettings(ctx context.Context, guildID int64, fn func(*GuildSettings) error) (*GuildSettings, error)
	DeleteGuildSettings(ctx context.Context, guildID int64) (bool, error)

	GetInfractionPolicy(ctx context.Context, guildID int64) (*InfractionPolicy, error)
	SetInfractionPolicy(ctx context.Context, guildID int64, infractionType string, seconds int) (*InfractionPolicy, error)
	DeleteInfractionPolicy(ctx context.Context, guildID int64) (bool, error)
}

type Config struct {
	Log          *zap.Logger
	ConnStr      string
	MaxOpenConns int
}
