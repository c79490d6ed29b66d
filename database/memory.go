package database

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

//
// In-memory implementation of DB, optionally persisted to a JSON file
//

type MemoryDB struct {
	path  string
	log   *zap.Logger
	state *state
}

type state struct {
	sync.Mutex
	NextWordID int64                       `json:"next_word_id"`
	Words      map[string]int64            `json:"words"`
	Settings   map[int64]*GuildSettings    `json:"settings"`
	Policies   map[int64]*InfractionPolicy `json:"policies"`
}

func newState() *state {
	return &state{
		NextWordID: 1,
		Words:      make(map[string]int64),
		Settings:   make(map[int64]*GuildSettings),
		Policies:   make(map[int64]*InfractionPolicy),
	}
}

// NewMemoryDatabase creates a MemoryDB. With a non-empty path the state is
// loaded from it, if it exists, and written back on Close.
func NewMemoryDatabase(path string, log *zap.Logger) (*MemoryDB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db := &MemoryDB{
		path:  path,
		log:   log,
		state: newState(),
	}
	if path == "" {
		return db, nil
	}
	err := db.load()
	return db, err
}

func (m *MemoryDB) load() error {
	if _, err := os.Stat(m.path); err != nil {
		m.log.Info("no data file found, using default", zap.String("path", m.path))
		return nil
	}

	d, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}

	st := newState()
	if err := json.Unmarshal(d, st); err != nil {
		return err
	}
	st.repair()
	m.state = st
	return nil
}

// repair makes a decoded state usable: null maps and entries from a hand
// edited file are replaced or dropped, and ids continue past the highest one
// in use.
func (st *state) repair() {
	if st.Words == nil {
		st.Words = make(map[string]int64)
	}
	if st.Settings == nil {
		st.Settings = make(map[int64]*GuildSettings)
	}
	if st.Policies == nil {
		st.Policies = make(map[int64]*InfractionPolicy)
	}

	for gid, gs := range st.Settings {
		if gs == nil {
			delete(st.Settings, gid)
			continue
		}
		gs.GuildID = gid
		gs.Normalize()
	}
	for gid, p := range st.Policies {
		if p == nil {
			delete(st.Policies, gid)
			continue
		}
		p.GuildID = gid
	}

	if st.NextWordID < 1 {
		st.NextWordID = 1
	}
	for _, id := range st.Words {
		if id >= st.NextWordID {
			st.NextWordID = id + 1
		}
	}
}

func (m *MemoryDB) save() error {
	m.state.Lock()
	d, err := json.Marshal(m.state)
	m.state.Unlock()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(d)
	return err
}

func (m *MemoryDB) Migrate(_ context.Context) error {
	return nil
}

func (m *MemoryDB) Close() error {
	if m.path == "" {
		return nil
	}
	return m.save()
}

func (m *MemoryDB) AddProfaneWord(_ context.Context, word string) (bool, error) {
	word = NormalizeWord(word)
	if word == "" {
		return false, ErrEmptyWord
	}

	m.state.Lock()
	defer m.state.Unlock()
	if _, ok := m.state.Words[word]; ok {
		return false, nil
	}
	m.state.Words[word] = m.state.NextWordID
	m.state.NextWordID++
	return true, nil
}

func (m *MemoryDB) RemoveProfaneWord(_ context.Context, word string) (bool, error) {
	word = NormalizeWord(word)

	m.state.Lock()
	defer m.state.Unlock()
	if _, ok := m.state.Words[word]; !ok {
		return false, nil
	}
	delete(m.state.Words, word)
	return true, nil
}

func (m *MemoryDB) ProfaneWords(_ context.Context) ([]*ProfaneWord, error) {
	m.state.Lock()
	defer m.state.Unlock()

	words := make([]*ProfaneWord, 0, len(m.state.Words))
	for w, id := range m.state.Words {
		words = append(words, &ProfaneWord{ID: id, Word: w})
	}
	sort.Slice(words, func(i, j int) bool {
		return words[i].Word < words[j].Word
	})
	return words, nil
}

func (m *MemoryDB) GetGuildSettings(_ context.Context, guildID int64) (*GuildSettings, error) {
	m.state.Lock()
	defer m.state.Unlock()
	if gs, ok := m.state.Settings[guildID]; ok {
		return gs.Clone(), nil
	}
	return DefaultGuildSettings(guildID), nil
}

func (m *MemoryDB) UpsertGuildSettings(_ context.Context, guildID int64, opts ...SettingsOption) (*GuildSettings, error) {
	u := newSettingsUpdate(opts)

	m.state.Lock()
	defer m.state.Unlock()
	gs, ok := m.state.Settings[guildID]
	if !ok {
		gs = DefaultGuildSettings(guildID)
		m.state.Settings[guildID] = gs
	}
	u.apply(gs)
	return gs.Clone(), nil
}

func (m *MemoryDB) UpdateGuildSettings(_ context.Context, guildID int64, fn func(*GuildSettings) error) (*GuildSettings, error) {
	m.state.Lock()
	defer m.state.Unlock()

	gs := DefaultGuildSettings(guildID)
	if stored, ok := m.state.Settings[guildID]; ok {
		gs = stored.Clone()
	}
	if err := fn(gs); err != nil {
		return nil, err
	}
	gs.GuildID = guildID
	gs.Normalize()
	m.state.Settings[guildID] = gs
	return gs.Clone(), nil
}

func (m *MemoryDB) DeleteGuildSettings(_ context.Context, guildID int64) (bool, error) {
	m.state.Lock()
	defer m.state.Unlock()
	if _, ok := m.state.Settings[guildID]; !ok {
		return false, nil
	}
	delete(m.state.Settings, guildID)
	return true, nil
}

func (m *MemoryDB) GetInfractionPolicy(_ context.Context, guildID int64) (*InfractionPolicy, error) {
	m.state.Lock()
	defer m.state.Unlock()
	if p, ok := m.state.Policies[guildID]; ok {
		cp := *p
		return &cp, nil
	}
	return DefaultInfractionPolicy(guildID), nil
}

func (m *MemoryDB) SetInfractionPolicy(_ context.Context, guildID int64, infractionType string, seconds int) (*InfractionPolicy, error) {
	infractionType = strings.TrimSpace(infractionType)
	if err := validatePolicy(infractionType, seconds); err != nil {
		return nil, err
	}

	p := &InfractionPolicy{GuildID: guildID, Type: infractionType, Time: seconds}
	m.state.Lock()
	defer m.state.Unlock()
	m.state.Policies[guildID] = p
	cp := *p
	return &cp, nil
}

func (m *MemoryDB) DeleteInfractionPolicy(_ context.Context, guildID int64) (bool, error) {
	m.state.Lock()
	defer m.state.Unlock()
	if _, ok := m.state.Policies[guildID]; !ok {
		return false, nil
	}
	delete(m.state.Policies, guildID)
	return true, nil
}
