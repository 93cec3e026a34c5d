package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/cardroom/cardroom/internal/server"
)

type CLI struct {
	Addr      string `help:"Listen address" default:":8080" env:"SERVER_ADDR"`
	JWTSecret string `help:"HMAC secret for auth tokens" env:"JWT_SECRET" required:""`
	Config    string `help:"Optional HCL file declaring static tables and house bots" env:"SERVER_CONFIG" type:"path"`

	SmallBlind        int           `help:"Default small blind for created rooms" default:"10" env:"DEFAULT_SMALL_BLIND"`
	BigBlind          int           `help:"Default big blind for created rooms" default:"20" env:"DEFAULT_BIG_BLIND"`
	MaxPlayersPerRoom int           `help:"Seat cap for created rooms" default:"9" env:"MAX_PLAYERS_PER_ROOM"`
	ActionTimeout     time.Duration `help:"Per-decision betting clock" default:"30s" env:"ACTION_TIMEOUT"`
	MatchTimeout      time.Duration `help:"Quick-match wait before bots fill in" default:"60s" env:"MATCHMAKING_TIMEOUT"`

	StoreDriver string `help:"Account store backend (memory, sqlite, postgres)" default:"memory" env:"STORE_DRIVER"`
	StoreDSN    string `help:"DSN for the sqlite or postgres store" env:"STORE_DSN"`

	LogLevel string `help:"Log level (debug, info, warn, error)" default:"info" env:"LOG_LEVEL"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("cardroom-server"),
		kong.Description("Authoritative multi-table Texas Hold'em server."),
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	if level, err := log.ParseLevel(cli.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	fileCfg, err := server.LoadFileConfig(cli.Config)
	if err != nil {
		logger.Fatal("failed to load config file", "path", cli.Config, "error", err)
	}

	srv, err := server.New(server.Config{
		Addr:               cli.Addr,
		JWTSecret:          cli.JWTSecret,
		DefaultSmallBlind:  cli.SmallBlind,
		DefaultBigBlind:    cli.BigBlind,
		MaxPlayersPerRoom:  cli.MaxPlayersPerRoom,
		ActionTimeout:      cli.ActionTimeout,
		MatchmakingTimeout: cli.MatchTimeout,
		StoreDriver:        cli.StoreDriver,
		StoreDSN:           cli.StoreDSN,
	}, fileCfg, logger, nil)
	if err != nil {
		logger.Fatal("failed to build server", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server exited", "error", err)
	}
	kctx.Exit(0)
}
