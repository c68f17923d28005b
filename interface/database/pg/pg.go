package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/airbusgeo/s2-indices/common"
	db "github.com/airbusgeo/s2-indices/interface/database"
	"github.com/lib/pq"
)

// pgInterface allows to use either a sql.DB or a sql.Tx
type pgInterface interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// BackendTx implements MetadataTxBackend
type BackendTx struct {
	*sql.Tx
	Backend
}

// BackendDB implements MetadataDBBackend
type BackendDB struct {
	*sql.DB
	Backend
}

// Backend implements MetadataBackend
type Backend struct {
	pgInterface
}

/* http://www.postgresql.org/docs/9.3/static/errcodes-appendix.html */
const (
	noError             = "00000"
	connectionFailure   = "08006"
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"

	notPqError = "X"
)

func pqErrorCode(err error) pq.ErrorCode {
	if err == nil {
		return noError
	}
	var pqerr *pq.Error
	if errors.As(err, &pqerr) {
		return pqerr.Code
	}
	return notPqError
}

// StartTransaction implements MetadataDBBackend
func (bdb BackendDB) StartTransaction(ctx context.Context) (db.MetadataTxBackend, error) {
	tx, err := bdb.BeginTx(ctx, nil)
	if err != nil {
		return BackendTx{}, err
	}
	return BackendTx{tx, Backend{pgInterface: tx}}, nil
}

// Rollback overloads sql.Tx.Rollback to be idempotent
func (btx BackendTx) Rollback() error {
	err := btx.Tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// New creates a new backend using Postgres
func New(ctx context.Context, dbConnection string) (*BackendDB, error) {
	db, err := sql.Open("postgres", dbConnection)
	if err != nil {
		return nil, fmt.Errorf("sql.open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sql.ping: %w", err)
	}
	return &BackendDB{db, Backend{pgInterface: db}}, nil
}

// SaveMetadata overloads Backend.SaveMetadata to run in a single transaction
func (bdb BackendDB) SaveMetadata(ctx context.Context, m db.TileMetadata) error {
	return db.UnitOfWork(ctx, bdb, func(tx db.MetadataTxBackend) error {
		return tx.SaveMetadata(ctx, m)
	})
}

// SaveMetadata implements MetadataBackend
func (b Backend) SaveMetadata(ctx context.Context, m db.TileMetadata) error {
	metadata, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("SaveMetadata.Marshal: %w", err)
	}
	images, err := json.Marshal(m.Images)
	if err != nil {
		return fmt.Errorf("SaveMetadata.Marshal: %w", err)
	}

	_, err = b.ExecContext(ctx,
		"insert into tile_metadata(tile_id, metadata, images) values($1, $2, $3)"+
			" on conflict (tile_id) do update set metadata = excluded.metadata, images = excluded.images, created_at = now()",
		string(m.TileID), metadata, images)
	if pqErrorCode(err) != noError {
		return fmt.Errorf("SaveMetadata.exec: %w", err)
	}

	_, err = b.ExecContext(ctx,
		"insert into session_last(session_id, tile_id) values($1, $2)"+
			" on conflict (session_id) do update set tile_id = excluded.tile_id",
		m.Session, string(m.TileID))
	switch pqErrorCode(err) {
	case noError:
		return nil
	case foreignKeyViolation:
		return db.ErrNotFound{Type: "tile", ID: string(m.TileID)}
	default:
		return fmt.Errorf("SaveMetadata.exec: %w", err)
	}
}

// scanner is implemented by sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTileMetadata(row scanner) (db.TileMetadata, error) {
	var (
		m                db.TileMetadata
		metadata, images []byte
	)
	if err := row.Scan(&m.TileID, &metadata, &images, &m.CreatedAt); err != nil {
		return m, err
	}
	if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
		return m, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(images, &m.Images); err != nil {
		return m, fmt.Errorf("unmarshal images: %w", err)
	}
	return m, nil
}

// LastMetadata implements MetadataBackend
func (b Backend) LastMetadata(ctx context.Context, session string) (db.TileMetadata, error) {
	m, err := scanTileMetadata(b.QueryRowContext(ctx,
		"select t.tile_id, t.metadata, t.images, t.created_at from session_last s"+
			" join tile_metadata t on t.tile_id = s.tile_id where s.session_id = $1", session))
	switch {
	case err == nil:
		m.Session = session
		return m, nil
	case errors.Is(err, sql.ErrNoRows):
		return m, db.ErrNotFound{Type: "session", ID: session}
	default:
		return m, fmt.Errorf("LastMetadata.QueryRowContext: %w", err)
	}
}

// TileMetadata implements MetadataBackend
func (b Backend) TileMetadata(ctx context.Context, tile common.TileID) (db.TileMetadata, error) {
	m, err := scanTileMetadata(b.QueryRowContext(ctx,
		"select tile_id, metadata, images, created_at from tile_metadata where tile_id = $1", string(tile)))
	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, sql.ErrNoRows):
		return m, db.ErrNotFound{Type: "tile", ID: string(tile)}
	default:
		return m, fmt.Errorf("TileMetadata.QueryRowContext: %w", err)
	}
}

// ListMetadata implements MetadataBackend
func (b Backend) ListMetadata(ctx context.Context, pattern string, page, limit int) ([]db.TileMetadata, error) {
	wc := joinClause{}
	if pattern != "" {
		pattern, operator := parseLike(pattern)
		wc.append("tile_id "+operator+" $%d", pattern)
	}
	rows, err := b.QueryContext(ctx,
		"select tile_id, metadata, images, created_at from tile_metadata"+wc.WhereClause()+
			" ORDER BY created_at DESC, tile_id"+limitOffsetClause(page, limit), wc.Parameters...)
	if err != nil {
		return nil, fmt.Errorf("ListMetadata.QueryContext: %w", err)
	}
	defer rows.Close()

	res := []db.TileMetadata{}
	for rows.Next() {
		m, err := scanTileMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("ListMetadata.Scan: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListMetadata.rows.err: %w", err)
	}
	return res, nil
}
