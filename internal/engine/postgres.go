package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/perfline/resultdb/internal/core"
)

// PostgreSQL error codes this engine translates into the shared taxonomy.
const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// postgresFactory creates PostgreSQL engines.
type postgresFactory struct{}

func init() {
	Register(postgresFactory{})
}

// Type returns "postgres".
func (postgresFactory) Type() string { return "postgres" }

// Validate checks the fields a PostgreSQL connection requires.
func (postgresFactory) Validate(cfg core.EngineConfig) error {
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

// Create opens a PostgreSQL-backed engine.
func (postgresFactory) Create(cfg core.EngineConfig) (core.Engine, error) {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	sslmode := cfg.Params["sslmode"]
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		cfg.Host, port, cfg.Database, cfg.Username, cfg.Password, sslmode, int(timeout.Seconds()))
	for _, k := range sortedParamKeys(cfg.Params) {
		if k == "sslmode" {
			continue
		}
		dsn += fmt.Sprintf(" %s=%s", k, cfg.Params[k])
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	applyPool(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	target := fmt.Sprintf("postgres://%s:%d/%s", cfg.Host, port, cfg.Database)
	log.Printf("[ENGINE] postgres: connected to %s", target)

	return &sqlEngine{
		name:      "postgres",
		target:    target,
		db:        db,
		bind:      core.BindDollar,
		returning: true,
		mapErr:    mapPostgresError,
	}, nil
}

// mapPostgresError translates lib/pq error codes into the shared taxonomy.
// Unrecognized errors pass through untouched.
func mapPostgresError(err error) error {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return err
	}
	switch string(pe.Code) {
	case pgErrUniqueViolation:
		return &core.ConstraintError{Kind: core.ConstraintUnique, Table: pe.Table, Err: err}
	case pgErrForeignKeyViolation:
		return &core.ConstraintError{Kind: core.ConstraintForeignKey, Table: pe.Table, Err: err}
	default:
		return err
	}
}
