package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the runtime configuration, populated from flags and
// environment in main.
type Config struct {
	Addr      string
	JWTSecret string

	DefaultSmallBlind int
	DefaultBigBlind   int
	MaxPlayersPerRoom int

	ActionTimeout      time.Duration
	MatchmakingTimeout time.Duration
	AIFillDelayMin     time.Duration
	AIFillDelayMax     time.Duration

	SessionTTL    time.Duration
	EmptyTableTTL time.Duration
	ShutdownDrain time.Duration

	StoreDriver string
	StoreDSN    string
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DefaultSmallBlind <= 0 {
		c.DefaultSmallBlind = 10
	}
	if c.DefaultBigBlind <= c.DefaultSmallBlind {
		c.DefaultBigBlind = c.DefaultSmallBlind * 2
	}
	if c.MaxPlayersPerRoom <= 1 {
		c.MaxPlayersPerRoom = 9
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 30 * time.Second
	}
	if c.MatchmakingTimeout <= 0 {
		c.MatchmakingTimeout = 60 * time.Second
	}
	if c.AIFillDelayMin <= 0 {
		c.AIFillDelayMin = 5 * time.Second
	}
	if c.AIFillDelayMax < c.AIFillDelayMin {
		c.AIFillDelayMax = c.AIFillDelayMin * 2
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 5 * time.Minute
	}
	if c.EmptyTableTTL <= 0 {
		c.EmptyTableTTL = 10 * time.Minute
	}
	if c.ShutdownDrain <= 0 {
		c.ShutdownDrain = 30 * time.Second
	}
	return c
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("server: JWT secret is required")
	}
	return nil
}

// FileConfig is the optional HCL file declaring static tables and
// house bots seeded at boot.
type FileConfig struct {
	Tables []TableBlock `hcl:"table,block"`
	Bots   []BotBlock   `hcl:"bot,block"`
}

// TableBlock declares one static table.
type TableBlock struct {
	Name       string `hcl:"name,label"`
	SmallBlind int    `hcl:"small_blind"`
	BigBlind   int    `hcl:"big_blind"`
	Ante       int    `hcl:"ante,optional"`
	MaxPlayers int    `hcl:"max_players,optional"`
	BuyInMin   int    `hcl:"buy_in_min,optional"`
	BuyInMax   int    `hcl:"buy_in_max,optional"`
	Private    bool   `hcl:"private,optional"`
	Password   string `hcl:"password,optional"`
}

// BotBlock declares one house bot seeded onto a static table.
type BotBlock struct {
	Name       string `hcl:"name,label"`
	Table      string `hcl:"table"`
	BuyIn      int    `hcl:"buy_in,optional"`
	Difficulty string `hcl:"difficulty,optional"`
}

// LoadFileConfig parses an HCL config file. A missing path yields an
// empty config.
func LoadFileConfig(path string) (*FileConfig, error) {
	if path == "" {
		return &FileConfig{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &FileConfig{}, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("server: parse config: %s", diags.Error())
	}
	var cfg FileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("server: decode config: %s", diags.Error())
	}
	return &cfg, nil
}
