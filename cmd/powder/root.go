package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/powder/internal/config"
	"github.com/FranksOps/powder/internal/logging"
)

// app carries state shared by every subcommand once PersistentPreRunE ran.
type app struct {
	v       *viper.Viper
	envFile string
	cfgFile string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:           "powder",
		Short:         "Snow forecast table scraper with a stale-while-revalidate cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded into the environment when present")
	pf.String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	pf.String(config.KeyLogFormat, "json", "log format: json or text")
	pf.Duration(config.KeyFetchTimeout, 30*time.Second, "upstream request timeout")
	pf.Int(config.KeyMaxRedirects, 10, "maximum redirects per request (negative disables)")
	pf.String(config.KeyFingerprint, "go", "TLS fingerprint profile")
	pf.StringArray(config.KeyUserAgents, nil, "User-Agent to rotate through (repeatable)")
	pf.Float64(config.KeyRequestsPerSecond, 2, "upstream requests per second (0 disables limiting)")
	pf.Int(config.KeyBurst, 4, "upstream request burst")
	pf.Bool(config.KeyRespectRobots, true, "check robots.txt before fetching")
	pf.StringSlice(config.KeyAllowedHosts, nil, "hosts (and subdomains) that may be scraped")
	pf.StringSlice(config.KeyProxies, nil, "forward proxy URLs used round-robin")
	pf.Duration(config.KeyProxyCooldown, 5*time.Minute, "how long a failing proxy is skipped")
	pf.String(config.KeyStorageBackend, config.StorageNone, "snapshot archive: none, sqlite, postgres, json")
	pf.String(config.KeyStorageDSN, "", "snapshot archive DSN or file path")
	// Flag names double as config keys.
	_ = a.v.BindPFlags(pf)

	root.AddCommand(newServeCmd(a), newScrapeCmd(a), newHistoryCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}
