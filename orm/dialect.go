package orm

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect abstracts SQL differences between database engines.
type Dialect interface {
	// Name is the database/sql driver name the dialect is meant for.
	Name() string

	// Placeholder returns the bind parameter placeholder for the given
	// 1-based index. Both supported engines use "?".
	Placeholder(index int) string

	// QuoteIdent quotes an identifier (table name, column name) to safely
	// handle SQL reserved words. MySQL uses backticks; SQLite uses double
	// quotes.
	QuoteIdent(name string) string

	// IsUniqueViolation reports whether err is the engine's duplicate key
	// error.
	IsUniqueViolation(err error) bool
}

// MySQL is the Dialect for MySQL / MariaDB, the production catalog store.
var MySQL Dialect = mysqlDialect{}

// SQLite is the Dialect for embedded SQLite catalogs (scratch copies and tests).
var SQLite Dialect = sqliteDialect{}

// mysqlDupEntry is ER_DUP_ENTRY.
const mysqlDupEntry = 1062

type mysqlDialect struct{}

func (mysqlDialect) Name() string                  { return "mysql" }
func (mysqlDialect) Placeholder(_ int) string      { return "?" }
func (mysqlDialect) QuoteIdent(name string) string { return "`" + strings.ReplaceAll(name, "`", "``") + "`" }

func (mysqlDialect) IsUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDupEntry
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string                  { return "sqlite" }
func (sqliteDialect) Placeholder(_ int) string      { return "?" }
func (sqliteDialect) QuoteIdent(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` }

func (sqliteDialect) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
