// Package store provides contact and session storage implementations.
package store

import (
	"context"
	"errors"
	"time"
)

// Interface defines contact storage operations, satisfied by both the
// database store and the cached wrapper.
type Interface interface {
	List(ctx context.Context) ([]Contact, error)
	Get(ctx context.Context, id int64) (Contact, error)
	Add(ctx context.Context, c Contact) (int64, error)
	Update(ctx context.Context, c Contact) error
	Delete(ctx context.Context, id int64) error
	Close() error
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Contact is a single directory record.
type Contact struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Company   string    `db:"company"`
	Link      string    `db:"link"` // connection profile URL
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
