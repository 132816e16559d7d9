package sqlite

import (
	"github.com/jmoiron/sqlx"

	"wxsync/internal/wxsync"
)

// Ensure Repo implements the Repository interface
var _ wxsync.Repository = (*Repo)(nil)

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}
