package db

import (
	"context"
	"fmt"
	"time"

	"github.com/airbusgeo/s2-indices/common"
)

// TileMetadata is the metadata record of a processed tile and the images derived from it
type TileMetadata struct {
	TileID    common.TileID               `json:"tile_id"`
	Session   string                      `json:"-"`
	Metadata  map[string]*string          `json:"metadata"`
	Images    map[common.IndexKind]string `json:"images,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
}

type ErrNotFound struct {
	Type, ID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Type, e.ID)
}

type MetadataTxBackend interface {
	MetadataBackend
	// Must be call to apply transaction
	Commit() error
	// Might be called to cancel the transaction (no effect if commit has already be done)
	Rollback() error
}

type MetadataDBBackend interface {
	MetadataBackend
	StartTransaction(ctx context.Context) (MetadataTxBackend, error)
}

// MetadataBackend keeps the metadata of the processed tiles and the last tile processed by each session
type MetadataBackend interface {
	// SaveMetadata creates or replaces the metadata of the tile and sets it as the last one of the session
	SaveMetadata(ctx context.Context, m TileMetadata) error
	// LastMetadata returns the metadata of the last tile processed by the session, may return ErrNotFound
	LastMetadata(ctx context.Context, session string) (TileMetadata, error)
	// TileMetadata returns the metadata of the tile, may return ErrNotFound
	TileMetadata(ctx context.Context, tile common.TileID) (TileMetadata, error)
	// ListMetadata returns the metadata of the tiles fitting the pattern, most recent first
	// pattern [optional=""] tile_pattern (* and ? wildcards, (?i) suffix for case-insensitivity)
	ListMetadata(ctx context.Context, pattern string, page, limit int) ([]TileMetadata, error)
}

// UnitOfWork runs a function and commit the database at the end or rollback if the function returns an error
func UnitOfWork(ctx context.Context, db MetadataDBBackend, f func(tx MetadataTxBackend) error) (err error) {
	// Start transaction
	txn, err := db.StartTransaction(ctx)
	if err != nil {
		return fmt.Errorf("uow.starttransaction: %w", err)
	}

	// Rollback if not successful
	defer func() {
		if e := txn.Rollback(); err == nil {
			err = e
		}
	}()

	// Execute function
	if err = f(txn); err != nil {
		return fmt.Errorf("uow.%w", err)
	}

	return txn.Commit()
}
