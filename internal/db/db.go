// internal/db/db.go
package db

import (
	"database/sql"
	"fmt"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"

	"github.com/textpulse/textpulse-backend/internal/config"
)

// Open connects to Postgres and verifies the connection.
func Open(cfg config.DBConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name,
	)

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database connection")
	}
	if err := conn.Ping(); err != nil {
		return nil, errors.Wrapf(err, "failed to ping database %s at %s:%s", cfg.Name, cfg.Host, cfg.Port)
	}
	return conn, nil
}
