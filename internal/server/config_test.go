package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{JWTSecret: "x"}.WithDefaults()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 10, cfg.DefaultSmallBlind)
	assert.Equal(t, 20, cfg.DefaultBigBlind)
	assert.Equal(t, 9, cfg.MaxPlayersPerRoom)
	assert.Equal(t, 30*time.Second, cfg.ActionTimeout)
	assert.Equal(t, 60*time.Second, cfg.MatchmakingTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.EmptyTableTTL)
	require.NoError(t, cfg.Validate())

	assert.Error(t, Config{}.WithDefaults().Validate())
}

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardroom.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
table "Main Street" {
  small_blind = 25
  big_blind   = 50
  max_players = 6
}

table "High Roller" {
  small_blind = 250
  big_blind   = 500
  private     = true
  password    = "vip"
}

bot "Hopper" {
  table      = "Main Street"
  difficulty = "hard"
  buy_in     = 4000
}
`), 0o644))

	cfg, err := LoadFileConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Tables, 2)
	assert.Equal(t, "Main Street", cfg.Tables[0].Name)
	assert.Equal(t, 25, cfg.Tables[0].SmallBlind)
	assert.Equal(t, 6, cfg.Tables[0].MaxPlayers)
	assert.True(t, cfg.Tables[1].Private)
	assert.Equal(t, "vip", cfg.Tables[1].Password)

	require.Len(t, cfg.Bots, 1)
	assert.Equal(t, "Hopper", cfg.Bots[0].Name)
	assert.Equal(t, "Main Street", cfg.Bots[0].Table)
	assert.Equal(t, 4000, cfg.Bots[0].BuyIn)
}

func TestLoadFileConfigMissing(t *testing.T) {
	cfg, err := LoadFileConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Tables)

	cfg, err = LoadFileConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Tables)
}

func TestLoadFileConfigRejectsBadHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`table "x" {`), 0o644))
	_, err := LoadFileConfig(path)
	require.Error(t, err)
}
