// Package store opens the catalog database described by the configuration.
package store

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/mickamy/labcat/internal/config"
	"github.com/mickamy/labcat/orm"
)

var sqlOpen = sql.Open

// Open connects to the configured database, checks it with a ping, and wraps
// it for the orm package. With cfg.Debug every statement is logged.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*orm.DB, error) {
	driver, dsn, dialect, err := source(cfg)
	if err != nil {
		return nil, err
	}
	raw, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if cfg.MaxOpenConns > 0 {
		raw.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if driver == "sqlite" && cfg.Path == ":memory:" {
		// Every connection would get its own empty database.
		raw.SetMaxOpenConns(1)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := raw.PingContext(pingCtx); err != nil {
		_ = raw.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}

	db := orm.New(raw, dialect)
	if cfg.Debug && logger != nil {
		db = db.Debug(orm.ZapLogger(logger))
	}
	return db, nil
}

// DSN returns the driver name and data source name for cfg.
func DSN(cfg config.DatabaseConfig) (driver, dsn string, err error) {
	driver, dsn, _, err = source(cfg)
	return driver, dsn, err
}

func source(cfg config.DatabaseConfig) (string, string, orm.Dialect, error) {
	switch cfg.Driver {
	case "mysql":
		c := mysql.NewConfig()
		c.User = cfg.User
		c.Passwd = cfg.Password
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		c.DBName = cfg.Name
		c.ParseTime = true
		c.Loc = time.UTC
		c.Timeout = cfg.ConnectTimeout
		return "mysql", c.FormatDSN(), orm.MySQL, nil
	case "sqlite":
		return "sqlite", cfg.Path, orm.SQLite, nil
	default:
		return "", "", nil, errors.Newf("unsupported database driver %q", cfg.Driver)
	}
}
