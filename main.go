package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/thep2p/go-web3-core/internal/client"
	"github.com/thep2p/go-web3-core/internal/config"
	"github.com/thep2p/go-web3-core/internal/txn"
	"github.com/urfave/cli/v2"
)

const (
	configFlag    = "config"
	rpcFlag       = "rpc"
	jwtSecretFlag = "jwt-secret"
	logLevelFlag  = "log-level"
	keyFlag       = "key"
	txFlag        = "tx"
	hashFlag      = "hash"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "web3core",
		Usage: "build, send and watch transactions through a middleware pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{"WEB3_CONFIG"},
			},
			&cli.StringFlag{
				Name:  rpcFlag,
				Usage: "node endpoint (http, ws or IPC path); overrides the configuration",
			},
			&cli.StringFlag{
				Name:  jwtSecretFlag,
				Usage: "path to a hex JWT secret authenticating requests; overrides the configuration",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "log level (trace, debug, info, warn, error)",
				Value: zerolog.InfoLevel.String(),
			},
		},
		Commands: []*cli.Command{
			encodeCommand(),
			estimateCommand(),
			receiptCommand(),
			replaceCommand(),
			watchCommand(),
		},
	}
}

// newLogger writes human readable logs to stderr at the level given by --log-level.
func newLogger(c *cli.Context) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.String(logLevelFlag))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level: %w", err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: c.App.ErrWriter, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger(), nil
}

// openSession loads the configuration, applies the global flag overrides and
// connects.
func openSession(c *cli.Context, logger zerolog.Logger, opts ...client.Option) (*client.Client, error) {
	overrides := map[string]string{}
	if rpc := c.String(rpcFlag); rpc != "" {
		overrides[config.EnvPrefix+"PROVIDER_URL"] = rpc
	}
	if secret := c.String(jwtSecretFlag); secret != "" {
		overrides[config.EnvPrefix+"PROVIDER_JWT_SECRET_PATH"] = secret
	}

	// flags win over the environment, which wins over the file
	cfg, err := config.LoadWithLookuper(c.Context, c.String(configFlag), envconfig.MultiLookuper(
		envconfig.MapLookuper(overrides),
		envconfig.OsLookuper(),
	))
	if err != nil {
		return nil, err
	}
	return client.New(c.Context, logger, *cfg, opts...)
}

// keySigner reads the hex private key given by --key.
func keySigner(c *cli.Context) (*txn.KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(c.String(keyFlag)), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return txn.NewKeySigner(key), nil
}

// parseRequest decodes the JSON transaction given by --tx. An absent flag yields an
// empty request.
func parseRequest(c *cli.Context) (txn.Request, error) {
	raw := strings.TrimSpace(c.String(txFlag))
	if raw == "" {
		return txn.Request{}, nil
	}
	return txn.ParseRequest([]byte(raw))
}
