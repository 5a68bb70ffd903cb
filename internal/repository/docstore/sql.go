package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/viola622/Flowise/internal/db/sqldb"
	"github.com/viola622/Flowise/internal/domain"
	domds "github.com/viola622/Flowise/internal/domain/docstore"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS document_store (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		loaders     TEXT NOT NULL DEFAULT '[]',
		where_used  TEXT NOT NULL DEFAULT '[]',
		status      TEXT NOT NULL,
		created_at  BIGINT NOT NULL,
		updated_at  BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS document_store_file_chunk (
		id           TEXT PRIMARY KEY,
		store_id     TEXT NOT NULL,
		doc_id       TEXT NOT NULL,
		chunk_no     INTEGER NOT NULL,
		page_content TEXT NOT NULL,
		metadata     TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunk_store_doc
		ON document_store_file_chunk (store_id, doc_id, chunk_no)`,
}

const storeColumns = `id, name, description, loaders, where_used, status, created_at, updated_at`

const chunkColumns = `id, store_id, doc_id, chunk_no, page_content, metadata`

// SQLRepo implements usecase/docstore.Repository over SQLite or Postgres.
type SQLRepo struct {
	db *sqldb.DB
}

// NewSQL creates a SQL-backed repository. Call Migrate before first use.
func NewSQL(db *sqldb.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

// Migrate creates tables and indexes if they are missing.
func (r *SQLRepo) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", r.db.Dialect(), err)
		}
	}
	return nil
}

// CreateStore inserts a new store. Returns ErrAlreadyExists on id or name collision.
func (r *SQLRepo) CreateStore(ctx context.Context, s domds.Store) error {
	row, err := storeToRow(s)
	if err != nil {
		return err
	}
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		var n int
		q := r.db.Rebind(`SELECT COUNT(*) FROM document_store WHERE id = ? OR name = ?`)
		if err := tx.QueryRowContext(ctx, q, row.ID, row.Name).Scan(&n); err != nil {
			return fmt.Errorf("check store exists: %w", err)
		}
		if n > 0 {
			return domain.ErrAlreadyExists
		}
		q = r.db.Rebind(`INSERT INTO document_store (` + storeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, q,
			row.ID, row.Name, row.Description, row.Loaders, row.WhereUsed,
			row.Status, row.CreatedAt, row.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert store %s: %w", row.ID, err)
		}
		return nil
	})
}

// GetStore loads a store by id.
func (r *SQLRepo) GetStore(ctx context.Context, id string) (domds.Store, error) {
	q := r.db.Rebind(`SELECT ` + storeColumns + ` FROM document_store WHERE id = ?`)
	row, err := scanStore(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domds.Store{}, domain.ErrNotFound
	}
	if err != nil {
		return domds.Store{}, fmt.Errorf("select store %s: %w", id, err)
	}
	return rowToStore(row)
}

// ListStores returns all stores, oldest first.
func (r *SQLRepo) ListStores(ctx context.Context) ([]domds.Store, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+storeColumns+` FROM document_store ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select stores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stores := []domds.Store{}
	for rows.Next() {
		row, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		s, err := rowToStore(row)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stores: %w", err)
	}
	return stores, nil
}

// UpdateStore overwrites a stored store. Returns ErrNotFound if it does not exist.
func (r *SQLRepo) UpdateStore(ctx context.Context, s domds.Store) error {
	row, err := storeToRow(s)
	if err != nil {
		return err
	}
	q := r.db.Rebind(`UPDATE document_store
		SET name = ?, description = ?, loaders = ?, where_used = ?, status = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q,
		row.Name, row.Description, row.Loaders, row.WhereUsed, row.Status, row.UpdatedAt, row.ID)
	if err != nil {
		return fmt.Errorf("update store %s: %w", row.ID, err)
	}
	return expectAffected(res)
}

// ReplaceChunks deletes every chunk of (storeID, docID) and inserts chunks in one transaction.
func (r *SQLRepo) ReplaceChunks(ctx context.Context, storeID, docID string, chunks []domds.Chunk) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		del := r.db.Rebind(`DELETE FROM document_store_file_chunk WHERE store_id = ? AND doc_id = ?`)
		if _, err := tx.ExecContext(ctx, del, storeID, docID); err != nil {
			return fmt.Errorf("delete chunks of %s: %w", docID, err)
		}
		if len(chunks) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, r.db.Rebind(
			`INSERT INTO document_store_file_chunk (`+chunkColumns+`) VALUES (?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("prepare chunk insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, c := range chunks {
			meta, err := marshalMetadata(c.Metadata)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, c.ID, storeID, docID, c.ChunkNo, c.PageContent, meta); err != nil {
				return fmt.Errorf("insert chunk %d: %w", c.ChunkNo, err)
			}
		}
		return nil
	})
}

// DeleteChunksByDoc removes every chunk produced by one loader.
func (r *SQLRepo) DeleteChunksByDoc(ctx context.Context, storeID, docID string) error {
	q := r.db.Rebind(`DELETE FROM document_store_file_chunk WHERE store_id = ? AND doc_id = ?`)
	if _, err := r.db.ExecContext(ctx, q, storeID, docID); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", docID, err)
	}
	return nil
}

// ListChunks returns one page of chunks and the total count matching the filter.
func (r *SQLRepo) ListChunks(
	ctx context.Context, storeID, docID string, offset, limit int,
) ([]domds.Chunk, int, error) {
	where := `WHERE store_id = ?`
	args := []any{storeID}
	if docID != "" {
		where += ` AND doc_id = ?`
		args = append(args, docID)
	}

	var total int
	countQ := r.db.Rebind(`SELECT COUNT(*) FROM document_store_file_chunk ` + where)
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count chunks: %w", err)
	}

	pageQ := r.db.Rebind(`SELECT ` + chunkColumns + ` FROM document_store_file_chunk ` + where +
		` ORDER BY doc_id, chunk_no LIMIT ? OFFSET ?`)
	rows, err := r.db.QueryContext(ctx, pageQ, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("select chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chunks := []domds.Chunk{}
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, 0, err
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, total, nil
}

// GetChunk loads one chunk scoped to its store and loader.
func (r *SQLRepo) GetChunk(ctx context.Context, storeID, docID, chunkID string) (domds.Chunk, error) {
	q := r.db.Rebind(`SELECT ` + chunkColumns + ` FROM document_store_file_chunk
		WHERE id = ? AND store_id = ? AND doc_id = ?`)
	c, err := scanChunk(r.db.QueryRowContext(ctx, q, chunkID, storeID, docID))
	if errors.Is(err, sql.ErrNoRows) {
		return domds.Chunk{}, domain.ErrChunkNotFound
	}
	return c, err
}

// UpdateChunk rewrites a chunk's content and metadata.
func (r *SQLRepo) UpdateChunk(ctx context.Context, c domds.Chunk) error {
	meta, err := marshalMetadata(c.Metadata)
	if err != nil {
		return err
	}
	q := r.db.Rebind(`UPDATE document_store_file_chunk SET page_content = ?, metadata = ?
		WHERE id = ? AND store_id = ? AND doc_id = ?`)
	res, err := r.db.ExecContext(ctx, q, c.PageContent, meta, c.ID, c.StoreID, c.DocID)
	if err != nil {
		return fmt.Errorf("update chunk %s: %w", c.ID, err)
	}
	return chunkAffected(res)
}

// DeleteChunk removes one chunk.
func (r *SQLRepo) DeleteChunk(ctx context.Context, storeID, docID, chunkID string) error {
	q := r.db.Rebind(`DELETE FROM document_store_file_chunk WHERE id = ? AND store_id = ? AND doc_id = ?`)
	res, err := r.db.ExecContext(ctx, q, chunkID, storeID, docID)
	if err != nil {
		return fmt.Errorf("delete chunk %s: %w", chunkID, err)
	}
	return chunkAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStore(s rowScanner) (storeRow, error) {
	var row storeRow
	err := s.Scan(&row.ID, &row.Name, &row.Description, &row.Loaders, &row.WhereUsed,
		&row.Status, &row.CreatedAt, &row.UpdatedAt)
	return row, err //nolint:wrapcheck // callers wrap with context
}

func scanChunk(s rowScanner) (domds.Chunk, error) {
	var (
		c    domds.Chunk
		meta string
	)
	if err := s.Scan(&c.ID, &c.StoreID, &c.DocID, &c.ChunkNo, &c.PageContent, &meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domds.Chunk{}, err //nolint:wrapcheck // sentinel checked by caller
		}
		return domds.Chunk{}, fmt.Errorf("scan chunk: %w", err)
	}
	m, err := unmarshalMetadata(meta)
	if err != nil {
		return domds.Chunk{}, fmt.Errorf("chunk %s: %w", c.ID, err)
	}
	c.Metadata = m
	return c, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func chunkAffected(res sql.Result) error {
	err := expectAffected(res)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrChunkNotFound
	}
	return err
}
