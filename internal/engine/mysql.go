package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/perfline/resultdb/internal/core"
)

// MySQL error numbers this engine translates into the shared taxonomy.
const (
	mysqlErrDupEntry        = 1062
	mysqlErrRowIsReferenced = 1451
	mysqlErrNoReferencedRow = 1452
)

// mysqlFactory creates MySQL engines.
type mysqlFactory struct{}

func init() {
	Register(mysqlFactory{})
}

// Type returns "mysql".
func (mysqlFactory) Type() string { return "mysql" }

// Validate checks the fields a MySQL connection requires.
func (mysqlFactory) Validate(cfg core.EngineConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("host is required")
	}
	if cfg.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Username == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

// Create opens a MySQL-backed engine.
func (mysqlFactory) Create(cfg core.EngineConfig) (core.Engine, error) {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%s",
		cfg.Username, cfg.Password, cfg.Host, port, cfg.Database, timeout)
	for _, k := range sortedParamKeys(cfg.Params) {
		dsn += fmt.Sprintf("&%s=%s", k, cfg.Params[k])
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql database: %w", err)
	}
	applyPool(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql database: %w", err)
	}

	target := fmt.Sprintf("mysql://%s:%d/%s", cfg.Host, port, cfg.Database)
	log.Printf("[ENGINE] mysql: connected to %s", target)

	return &sqlEngine{
		name:      "mysql",
		target:    target,
		db:        db,
		bind:      core.BindQuestion,
		returning: false,
		mapErr:    mapMySQLError,
	}, nil
}

// mapMySQLError translates driver error numbers into the shared taxonomy.
// Unrecognized errors pass through untouched.
func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlErrDupEntry:
		return &core.ConstraintError{Kind: core.ConstraintUnique, Err: err}
	case mysqlErrRowIsReferenced, mysqlErrNoReferencedRow:
		return &core.ConstraintError{Kind: core.ConstraintForeignKey, Err: err}
	default:
		return err
	}
}

// sortedParamKeys keeps extra DSN parameters in a stable order.
func sortedParamKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
