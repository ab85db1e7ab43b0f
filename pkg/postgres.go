package database

import (
	"fmt"
	"teamsync/internal/models/config"

	"github.com/jmoiron/sqlx"
)

// NewPostgres opens the club database using the loaded configuration.
func NewPostgres() (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", ConnString())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}

// ConnString builds the connection string. Exposed separately because the
// LISTEN/NOTIFY listener opens its own connection outside the pool.
func ConnString() string {
	cfg := config.AppConfig.Database
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}
