package kvstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/dgraph-io/badger/options"
	"github.com/intrntsrfr/warden/database"
	"go.uber.org/zap"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("kvstore: cache miss")

const (
	DefaultTTL = 10 * time.Minute
	wordsKey   = "profanity:words"
)

type Config struct {
	Dir string
	TTL time.Duration
	Log *zap.Logger
	// BadgerLogger receives badger's own logs. Nil keeps badger's default.
	BadgerLogger badger.Logger
}

// Cache keeps recently read configuration in badger so hot paths do not hit
// Postgres on every event.
type Cache struct {
	db  *badger.DB
	log *zap.Logger
	ttl time.Duration
}

func NewCache(c *Config) (*Cache, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	opts := badger.DefaultOptions(c.Dir)
	opts.Truncate = true
	opts.ValueLogLoadingMode = options.FileIO
	opts.NumVersionsToKeep = 1
	if c.BadgerLogger != nil {
		opts.Logger = c.BadgerLogger
	}

	db, err := badger.Open(opts)
	if err != nil {
		log.Error("failed to open cache", zap.Error(err))
		return nil, err
	}

	return &Cache{
		db:  db,
		log: log,
		ttl: ttl,
	}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(v)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func settingsKey(guildID int64) string {
	return fmt.Sprintf("settings:%v", guildID)
}

func policyKey(guildID int64) string {
	return fmt.Sprintf("policy:%v", guildID)
}

func (c *Cache) set(key string, v interface{}) error {
	enc, err := encodeGob(v)
	if err != nil {
		return fmt.Errorf("failed to encode %v: %w", key, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), enc).WithTTL(c.ttl))
	})
}

func (c *Cache) get(key string, v interface{}) error {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return decodeGob(value, v)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrMiss
	}
	if err != nil {
		c.log.Error("failed to read value", zap.String("key", key), zap.Error(err))
	}
	return err
}

func (c *Cache) delete(keys ...string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Cache) SetSettings(gs *database.GuildSettings) error {
	return c.set(settingsKey(gs.GuildID), gs)
}

func (c *Cache) GetSettings(guildID int64) (*database.GuildSettings, error) {
	var gs database.GuildSettings
	if err := c.get(settingsKey(guildID), &gs); err != nil {
		return nil, err
	}
	// gob drops empty slices
	gs.Normalize()
	return &gs, nil
}

func (c *Cache) DeleteSettings(guildID int64) error {
	return c.delete(settingsKey(guildID))
}

func (c *Cache) SetPolicy(p *database.InfractionPolicy) error {
	return c.set(policyKey(p.GuildID), p)
}

func (c *Cache) GetPolicy(guildID int64) (*database.InfractionPolicy, error) {
	var p database.InfractionPolicy
	if err := c.get(policyKey(guildID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Cache) DeletePolicy(guildID int64) error {
	return c.delete(policyKey(guildID))
}

// DeleteGuild drops every cached entry for the guild.
func (c *Cache) DeleteGuild(guildID int64) error {
	return c.delete(settingsKey(guildID), policyKey(guildID))
}

func (c *Cache) SetWords(words []*database.ProfaneWord) error {
	return c.set(wordsKey, words)
}

func (c *Cache) GetWords() ([]*database.ProfaneWord, error) {
	var words []*database.ProfaneWord
	if err := c.get(wordsKey, &words); err != nil {
		return nil, err
	}
	return words, nil
}

func (c *Cache) DeleteWords() error {
	return c.delete(wordsKey)
}

// RunGC reclaims value log space every interval until ctx is done.
func (c *Cache) RunGC(ctx context.Context, interval time.Duration) {
	gcTicker := time.NewTicker(interval)
	defer gcTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-gcTicker.C:
			for {
				err := c.db.RunValueLogGC(0.7)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						c.log.Debug("value log gc stopped", zap.Error(err))
					}
					break
				}
			}
		}
	}
}
