package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const settingsColumns = "guild_id, notification_channel_id, moderators, moderator_role_ids, valid_links, ignored_channel_ids"

type PsqlDB struct {
	pool *sqlx.DB
	log  *zap.Logger
}

func NewPSQLDatabase(c *Config) (*PsqlDB, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}

	pool, err := sqlx.Connect("postgres", c.ConnStr)
	if err != nil {
		log.Error("unable to connect to db", zap.Error(err))
		return nil, err
	}
	if c.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(c.MaxOpenConns)
	}

	return &PsqlDB{
		pool: pool,
		log:  log,
	}, nil
}

func (p *PsqlDB) GetConn() *sqlx.DB {
	return p.pool
}

func (p *PsqlDB) Close() error {
	return p.pool.Close()
}

func (p *PsqlDB) Migrate(ctx context.Context) error {
	tx, err := p.pool.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1);", migrationLockKey); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaMigrations); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var applied []int
	if err := tx.SelectContext(ctx, &applied, "SELECT version FROM warden_migrations;"); err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.version] {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO warden_migrations (version, name) VALUES ($1, $2);", m.version, m.name); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		p.log.Info("applied migration", zap.Int("version", m.version), zap.String("name", m.name))
	}

	return tx.Commit()
}

func (p *PsqlDB) AddProfaneWord(ctx context.Context, word string) (bool, error) {
	word = NormalizeWord(word)
	if word == "" {
		return false, ErrEmptyWord
	}

	_, err := p.pool.ExecContext(ctx, "INSERT INTO profane_words (word) VALUES ($1);", word)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *PsqlDB) RemoveProfaneWord(ctx context.Context, word string) (bool, error) {
	word = NormalizeWord(word)
	if word == "" {
		return false, nil
	}

	res, err := p.pool.ExecContext(ctx, "DELETE FROM profane_words WHERE word = $1;", word)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *PsqlDB) ProfaneWords(ctx context.Context) ([]*ProfaneWord, error) {
	var words []*ProfaneWord
	err := p.pool.SelectContext(ctx, &words, "SELECT id, word FROM profane_words ORDER BY word;")
	return words, err
}

func (p *PsqlDB) GetGuildSettings(ctx context.Context, guildID int64) (*GuildSettings, error) {
	var gs GuildSettings
	err := p.pool.GetContext(ctx, &gs, "SELECT "+settingsColumns+" FROM infractions.settings WHERE guild_id = $1;", guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultGuildSettings(guildID), nil
	}
	if err != nil {
		return nil, err
	}
	gs.Normalize()
	return &gs, nil
}

func (p *PsqlDB) UpsertGuildSettings(ctx context.Context, guildID int64, opts ...SettingsOption) (*GuildSettings, error) {
	cols, args := newSettingsUpdate(opts).columns()
	query := upsertSettingsQuery(cols)

	var gs GuildSettings
	if err := p.pool.GetContext(ctx, &gs, query, append([]interface{}{guildID}, args...)...); err != nil {
		return nil, err
	}
	gs.Normalize()
	return &gs, nil
}

// upsertSettingsQuery inserts a settings row and, on conflict, overwrites only
// cols. With no cols the conflict update is a no-op so RETURNING still yields
// the stored row.
func upsertSettingsQuery(cols []string) string {
	insertCols := append([]string{"guild_id"}, cols...)
	binds := make([]string, len(insertCols))
	for i := range insertCols {
		binds[i] = fmt.Sprintf("$%d", i+1)
	}

	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	if len(sets) == 0 {
		sets = append(sets, "guild_id = EXCLUDED.guild_id")
	}

	return fmt.Sprintf(
		"INSERT INTO infractions.settings (%s) VALUES (%s) ON CONFLICT (guild_id) DO UPDATE SET %s RETURNING %s;",
		strings.Join(insertCols, ", "),
		strings.Join(binds, ", "),
		strings.Join(sets, ", "),
		settingsColumns,
	)
}

func (p *PsqlDB) UpdateGuildSettings(ctx context.Context, guildID int64, fn func(*GuildSettings) error) (*GuildSettings, error) {
	tx, err := p.pool.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "INSERT INTO infractions.settings (guild_id) VALUES ($1) ON CONFLICT (guild_id) DO NOTHING;", guildID); err != nil {
		return nil, err
	}

	var gs GuildSettings
	if err := tx.GetContext(ctx, &gs, "SELECT "+settingsColumns+" FROM infractions.settings WHERE guild_id = $1 FOR UPDATE;", guildID); err != nil {
		return nil, err
	}
	gs.Normalize()

	if err := fn(&gs); err != nil {
		return nil, err
	}
	gs.GuildID = guildID
	gs.Normalize()

	_, err = tx.ExecContext(ctx, `UPDATE infractions.settings SET
		notification_channel_id = $2,
		moderators = $3,
		moderator_role_ids = $4,
		valid_links = $5,
		ignored_channel_ids = $6
		WHERE guild_id = $1;`,
		guildID, gs.NotificationChannelID, gs.Moderators, gs.ModeratorRoleIDs, gs.ValidLinks, gs.IgnoredChannelIDs)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &gs, nil
}

func (p *PsqlDB) DeleteGuildSettings(ctx context.Context, guildID int64) (bool, error) {
	res, err := p.pool.ExecContext(ctx, "DELETE FROM infractions.settings WHERE guild_id = $1;", guildID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (p *PsqlDB) GetInfractionPolicy(ctx context.Context, guildID int64) (*InfractionPolicy, error) {
	var pol InfractionPolicy
	err := p.pool.GetContext(ctx, &pol, "SELECT guild_id, type, time FROM infractions.time WHERE guild_id = $1;", guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultInfractionPolicy(guildID), nil
	}
	if err != nil {
		return nil, err
	}
	return &pol, nil
}

func (p *PsqlDB) SetInfractionPolicy(ctx context.Context, guildID int64, infractionType string, seconds int) (*InfractionPolicy, error) {
	infractionType = strings.TrimSpace(infractionType)
	if err := validatePolicy(infractionType, seconds); err != nil {
		return nil, err
	}

	var pol InfractionPolicy
	err := p.pool.GetContext(ctx, &pol, `INSERT INTO infractions.time (guild_id, type, time) VALUES ($1, $2, $3)
		ON CONFLICT (guild_id) DO UPDATE SET type = EXCLUDED.type, time = EXCLUDED.time
		RETURNING guild_id, type, time;`, guildID, infractionType, seconds)
	if err != nil {
		return nil, err
	}
	return &pol, nil
}

func (p *PsqlDB) DeleteInfractionPolicy(ctx context.Context, guildID int64) (bool, error) {
	res, err := p.pool.ExecContext(ctx, "DELETE FROM infractions.time WHERE guild_id = $1;", guildID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func validatePolicy(infractionType string, seconds int) error {
	if infractionType == "" {
		return ErrEmptyPolicyType
	}
	if seconds < 0 || seconds > MaxPolicySeconds {
		return ErrInvalidDuration
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
