package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"token": "abc",
		"shards": 2,
		"connection_string": "postgres://localhost/warden",
		"cache": {"dir": "/tmp/cache", "ttl": "30s"}
	}`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", c.Token)
	assert.Equal(t, 2, c.Shards)
	assert.Equal(t, "postgres://localhost/warden", c.ConnectionString)
	assert.Equal(t, "/tmp/cache", c.Cache.Dir)
	assert.Equal(t, "info", c.LogLevel)

	ttl, err := c.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)
	assert.NoError(t, c.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
token: abc
data_file: ./data.json
log_level: debug
cache:
  disabled: true
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./data.json", c.DataFile)
	assert.Equal(t, "debug", c.LogLevel)
	assert.True(t, c.Cache.Disabled)
	assert.Equal(t, 1, c.Shards)
	assert.Equal(t, DefaultCacheDir, c.Cache.Dir)

	ttl, err := c.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, DefaultCacheTTL, ttl)
	gc, err := c.CacheGCInterval()
	require.NoError(t, err)
	assert.Equal(t, DefaultGCInterval, gc)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WARDEN_TOKEN", "from-env")
	t.Setenv("WARDEN_DB_DSN", "postgres://env/warden")
	t.Setenv("WARDEN_CACHE_DIR", "/env/cache")
	t.Setenv("WARDEN_CACHE_TTL", "1m")

	path := writeFile(t, "config.json", `{"token": "file", "connection_string": "postgres://file/warden"}`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Token)
	assert.Equal(t, "postgres://env/warden", c.ConnectionString)
	assert.Equal(t, "/env/cache", c.Cache.Dir)

	ttl, err := c.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.json", `{`))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yml", "token: ["))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Config
		want error
	}{
		{"no token", Config{ConnectionString: "x"}, ErrNoToken},
		{"no store", Config{Token: "t"}, ErrNoStore},
		{"data file", Config{Token: "t", DataFile: "d.json"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	bad := Config{Token: "t", DataFile: "d.json", Cache: CacheConfig{TTL: "soon"}}
	assert.Error(t, bad.Validate())
	neg := Config{Token: "t", DataFile: "d.json", Cache: CacheConfig{GCInterval: "-1s"}}
	assert.Error(t, neg.Validate())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("WARDEN_DB_DSN", "postgres://env/warden")
	c := FromEnv()
	assert.Equal(t, "postgres://env/warden", c.ConnectionString)
	assert.NoError(t, c.ValidateStore())
	assert.ErrorIs(t, c.Validate(), ErrNoToken)
}

func TestConfig_BotOwners(t *testing.T) {
	path := writeFile(t, "config.yaml", `
token: abc
owner_ids: ["1", "2"]
data_file: ./data.json
`)
	c, err := Load(path)
	require.NoError(t, err)

	bc := c.Bot()
	assert.Equal(t, "abc", bc.GetString("token"))
	assert.Equal(t, 1, bc.GetInt("shards"))
	assert.Equal(t, []string{"1", "2"}, bc.GetStringSlice("owner_ids"))

	// no owners still yields a slice meido can read
	assert.Empty(t, FromEnv().Bot().GetStringSlice("owner_ids"))

	t.Setenv("WARDEN_OWNER_IDS", " 3, ,4 ")
	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4"}, c.Bot().GetStringSlice("owner_ids"))
}
