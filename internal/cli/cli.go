// Package cli implements the labcat command line.
package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mickamy/labcat/catalog"
	"github.com/mickamy/labcat/internal/config"
	"github.com/mickamy/labcat/internal/logging"
	"github.com/mickamy/labcat/internal/store"
	"github.com/mickamy/labcat/orm"
)

// Version is printed by --version.
var Version = "dev"

type app struct {
	configPath  string
	sqlitePath  string
	metricsFile string

	logger *zap.Logger
	db     *orm.DB
	cat    *catalog.Catalog
	reg    *prometheus.Registry
}

// Run executes the command line in args, writing results to stdout.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{logger: zap.NewNop()}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer a.close()
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "labcat",
		Short:         "Read and write the lab catalog database",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (toml, yaml or json)")
	root.PersistentFlags().StringVar(&a.sqlitePath, "sqlite", "", "use the SQLite catalog at this path instead of MySQL")
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write operation metrics in Prometheus text format to this file")

	root.AddCommand(
		a.entitiesCommand(),
		a.getCommand(),
		a.listCommand(),
		a.addCommand(),
		a.updateCommand(),
		a.deleteCommand(),
		a.compareCommand(),
		a.walkCommand(orm.Ancestors),
		a.walkCommand(orm.Descendants),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	v, err := config.NewViper(a.configPath)
	if err != nil {
		return err
	}
	if a.sqlitePath != "" {
		v.Set("database.driver", "sqlite")
		v.Set("database.path", a.sqlitePath)
	}
	cfg, err := config.LoadWithViper(v)
	if err != nil {
		return err
	}

	a.logger = logging.New("labcat", cfg.Log)
	a.db, err = store.Open(ctx, cfg.Database, a.logger)
	if err != nil {
		return err
	}
	a.reg = prometheus.NewRegistry()
	a.cat, err = catalog.New(a.db,
		catalog.WithLogger(a.logger),
		catalog.WithMetrics(orm.NewMetrics(a.reg)),
		catalog.WithStatementTimeout(cfg.Database.StatementTimeout),
	)
	return err
}

func (a *app) close() {
	if a.metricsFile != "" && a.reg != nil {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.reg); err != nil {
			a.logger.Warn("write metrics", zap.String("file", a.metricsFile), zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) repo(name string) (*orm.Repo, error) {
	return a.cat.Repo(name)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode output")
}
