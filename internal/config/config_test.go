package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupConfig(t *testing.T, contents string) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "mediameta", "config.yaml")
	if contents != "" {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	}
	require.NoError(t, InitConfig(path))
	return path
}

func TestInitConfigCreatesFileWithDefaults(t *testing.T) {
	path := setupConfig(t, "")
	_, err := os.Stat(path)
	require.NoError(t, err)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Media.MaxFileSize)
	assert.Contains(t, cfg.Gemini.Endpoint, "gemini-flash-latest:generateContent")
}

func TestLoadUsersAndOverrides(t *testing.T) {
	setupConfig(t, `
log_level: debug
server:
  port: 9090
  generate_rate: 0.5
gemini:
  timeout: 5s
users:
  - name: editor
    token: t1
    capabilities: [upload_files]
  - name: admin
    token: t2
    capabilities: [upload_files, manage_options]
`)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.5, cfg.Server.GenerateRate)
	assert.Equal(t, 5*time.Second, cfg.Gemini.Timeout)
	require.Len(t, cfg.Users, 2)
	assert.Equal(t, []string{"upload_files", "manage_options"}, cfg.Users[1].Capabilities)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Gemini:   GeminiConfig{Timeout: time.Second},
			Server:   ServerConfig{Port: 1},
			Database: DatabaseConfig{Driver: "sqlite"},
		}
	}

	c := base()
	require.NoError(t, c.Validate())
	assert.Equal(t, int64(DefaultMaxFileSize), c.Media.MaxFileSize)

	c = base()
	c.Database.Driver = "mysql"
	assert.Error(t, c.Validate())

	c = base()
	c.Database.Driver = "postgres"
	assert.Error(t, c.Validate(), "postgres needs a dsn")

	c = base()
	c.Media.MaxFileSize = DefaultMaxFileSize + 1
	assert.Error(t, c.Validate(), "the size limit is a ceiling")

	c = base()
	c.Users = []User{{Name: "nobody"}}
	assert.Error(t, c.Validate())
}

func TestAPIKey(t *testing.T) {
	path := setupConfig(t, "")
	assert.Empty(t, GetAPIKey())

	require.NoError(t, SaveAPIKey("  AIza-test  "))
	assert.Equal(t, "AIza-test", GetAPIKey())
	assert.Equal(t, "AIza-test", Credentials{}.APIKey())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "gemini_api_key")

	t.Setenv("MEDIAMETA_GEMINI_API_KEY", "from-env")
	assert.Equal(t, "from-env", GetAPIKey())
}

func TestSaveAPIKeyKeepsEnvPrecedence(t *testing.T) {
	path := setupConfig(t, "log_level: debug\n")
	t.Setenv("MEDIAMETA_GEMINI_API_KEY", "from-env")

	require.NoError(t, SaveAPIKey("stored"))
	assert.Equal(t, "from-env", GetAPIKey())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "stored")
	assert.Contains(t, string(raw), "debug", "other settings survive the save")
}

func TestAPIKeyFollowsFileChanges(t *testing.T) {
	path := setupConfig(t, "")
	require.NoError(t, SaveAPIKey("first"))
	assert.Equal(t, "first", GetAPIKey())

	require.NoError(t, os.WriteFile(path, []byte("gemini_api_key: second\n"), 0o600))
	require.NoError(t, viper.ReadInConfig())
	assert.Equal(t, "second", GetAPIKey())
}
