package repository

import (
	"context"
	"database/sql"

	"sousvide_simulator/internal/models"
)

// MessageRepo is the append-only protocol frame log.
type MessageRepo interface {
	Append(ctx context.Context, m models.LoggedMessage) error
	List(ctx context.Context, limit int, direction string) ([]models.LoggedMessage, error)
}

// Repository aggregates the storage layer.
type Repository struct {
	Messages MessageRepo
}

// NewRepository wires concrete SQLite repositories.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Messages: NewMessageSQLite(db),
	}
}
