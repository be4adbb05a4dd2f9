package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"adminka/internal/config"
	"adminka/internal/dashboard"
)

var (
	// заполняются в PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger

	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "adminka",
	Short: "Admin dashboard over DSL-described entities",
	Long: `adminka serves an admin dashboard for entities described in DSL files:
role-filtered menus, datagrids with filters and paging over an in-memory
store or PostgreSQL.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg.LogLevel, debug)
		if err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: auto-discover adminka.yaml)")
	pf.BoolVar(&debug, "debug", false, "debug logging")

	pf.String("port", "", "HTTP port or listen address")
	pf.String("dsl-dir", "", "directory with *.dsl entity files")
	pf.String("enums-dir", "", "directory with enum catalogs")
	pf.String("admin-config", "", "admin.yaml: admins, groups, roles")
	pf.String("db-url", "", "PostgreSQL URL")
	pf.Bool("auto-migrate", false, "apply generated DDL on start")
	pf.String("query-driver", "", "memory | postgres")
	pf.String("log-level", "", "debug | info | warn | error")

	rootCmd.AddCommand(serveCmd, menuCmd, lintCmd, migrateCmd)
}

func newLogger(level string, debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if debug {
		level = "debug"
	}
	if level = strings.TrimSpace(level); level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

func sources() dashboard.Sources {
	return dashboard.Sources{
		DSLDir:      cfg.DSLDir,
		EnumsDir:    cfg.EnumsDir,
		AdminConfig: cfg.AdminConfig,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
