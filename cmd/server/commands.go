package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"adminka/internal/api"
	"adminka/internal/config"
	"adminka/internal/dashboard"
	"adminka/internal/datagrid"
	"adminka/internal/dsl"
	"adminka/internal/pg"
	"adminka/internal/reference"
	"adminka/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queries, closeFn, err := queryDriver(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		d, err := dashboard.Load(sources(), queries, logger)
		if err != nil {
			printLintIssues(err)
			return err
		}
		srv := api.NewServer(d, api.Options{
			Sources: sources(),
			Queries: queries,
			Driver:  cfg.QueryDriver,
			Log:     logger,
		})
		return srv.Run(ctx, cfg.Addr())
	},
}

// queryDriver строит фабрику запросов для выбранного драйвера. Memory: одно
// хранилище на процесс, записи переживают перезагрузку схемы.
func queryDriver(ctx context.Context) (dashboard.QueriesFunc, func(), error) {
	switch cfg.QueryDriver {
	case config.DriverPostgres:
		db, err := pg.Open(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}
		queries := func(entities map[string]*dsl.Entity) (datagrid.QueryFactory, error) {
			if cfg.AutoMigrate {
				if err := migrate(ctx, db, entities); err != nil {
					return nil, err
				}
			}
			return pg.NewQueryFactory(db, entities), nil
		}
		return queries, func() { _ = db.Close() }, nil
	default:
		var st *store.Store
		queries := func(entities map[string]*dsl.Entity) (datagrid.QueryFactory, error) {
			if st == nil {
				st = store.New(entities)
			} else {
				st.Reload(entities)
			}
			return st, nil
		}
		return queries, func() {}, nil
	}
}

func migrate(ctx context.Context, db *sql.DB, entities map[string]*dsl.Entity) error {
	ddl, err := pg.GenerateDDL(entities)
	if err != nil {
		return err
	}
	if err := pg.ApplyDDL(ctx, db, ddl, logger); err != nil {
		return err
	}
	logger.Info("schema migrated", zap.Int("steps", len(ddl)))
	return nil
}

var (
	menuRoles []string
	menuGroup string
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Print the menu visible to a set of roles as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := dashboard.Load(sources(), nil, logger)
		if err != nil {
			printLintIssues(err)
			return err
		}
		checker := d.Checker(menuRoles)
		var out any
		if g := strings.TrimSpace(menuGroup); g != "" {
			out, err = d.Menu(checker, g)
		} else {
			out, err = d.Sidebar(checker)
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check admin config against DSL and enum catalogs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entities, err := dsl.LoadAllEntities(cfg.DSLDir)
		if err != nil {
			return errors.Wrap(err, "DSL load error")
		}
		catalog, err := reference.LoadEnumCatalog(cfg.EnumsDir)
		if err != nil {
			return errors.Wrap(err, "enum load error")
		}
		ac, err := dashboard.LoadConfig(cfg.AdminConfig)
		if err != nil {
			return err
		}
		issues := dashboard.Lint(ac, entities, catalog)
		for _, is := range issues {
			fmt.Fprintln(cmd.OutOrStdout(), is.String())
		}
		if len(issues) > 0 {
			return errors.Newf("%d issue(s) found", len(issues))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "OK")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Generate and apply PostgreSQL DDL for all DSL entities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(cfg.DBURL) == "" {
			return errors.New("migrate needs db_url (ADMINKA_DB_URL or --db-url)")
		}
		entities, err := dsl.LoadAllEntities(cfg.DSLDir)
		if err != nil {
			return errors.Wrap(err, "DSL load error")
		}
		db, err := pg.Open(cmd.Context(), cfg.DBURL)
		if err != nil {
			return err
		}
		defer db.Close()
		return migrate(cmd.Context(), db, entities)
	},
}

func init() {
	menuCmd.Flags().StringSliceVar(&menuRoles, "roles", nil, "roles of the actor (comma separated)")
	menuCmd.Flags().StringVar(&menuGroup, "group", "", "single group instead of the sidebar")
}

func printLintIssues(err error) {
	var le *dashboard.LintError
	if errors.As(err, &le) {
		for _, is := range le.Issues {
			fmt.Fprintln(os.Stderr, is.String())
		}
	}
}
