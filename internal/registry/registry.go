// Package registry implements the per-parent asset collections backing the
// media pipeline: count/quota reads, sort-order assignment, primary-flag
// maintenance, ordered retrieval, and deletion.
//
// One AssetRegistry instance serves one collection descriptor; the SQL is
// identical across collections apart from table and parent-column names,
// which come from the static descriptors (never user input).
//
// Registry methods do not serialize concurrent mutations for the same parent
// on their own; the service layer holds a per-parent lock across multi-step
// mutations (count -> insert, delete -> promote).
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/studentpalace/studentpalace/internal/domain"
	"github.com/studentpalace/studentpalace/internal/storage"
)

// AssetRegistry provides the database operations for one photo collection.
type AssetRegistry struct {
	db  *sql.DB
	col domain.Collection
}

// NewAssetRegistry creates a registry bound to one collection descriptor.
func NewAssetRegistry(db *sql.DB, col domain.Collection) *AssetRegistry {
	return &AssetRegistry{db: db, col: col}
}

// Collection returns the descriptor this registry serves.
func (r *AssetRegistry) Collection() domain.Collection {
	return r.col
}

// AssertSchema verifies the backing table has every required column.
// It never mutates schema.
func (r *AssetRegistry) AssertSchema(ctx context.Context) error {
	required := append([]string{r.col.ParentColumn}, assetColumns...)
	return verifyColumns(ctx, r.db, r.col.Table, required)
}

// Count returns the number of assets for the parent.
func (r *AssetRegistry) Count(ctx context.Context, parentID int64) (int, error) {
	const op = "registry.count"

	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, r.col.Table, r.col.ParentColumn)
	var n int
	if err := r.db.QueryRowContext(ctx, q, parentID).Scan(&n); err != nil {
		return 0, domain.Internal(err, op, "failed to count assets")
	}
	return n, nil
}

// NextSortOrder returns 1 + the highest sort_order for the parent (1 when the
// parent has no assets yet).
func (r *AssetRegistry) NextSortOrder(ctx context.Context, parentID int64) (int, error) {
	const op = "registry.next_sort_order"

	q := fmt.Sprintf(`SELECT COALESCE(MAX(sort_order), 0) FROM %s WHERE %s = $1`,
		r.col.Table, r.col.ParentColumn)
	var mx int
	if err := r.db.QueryRowContext(ctx, q, parentID).Scan(&mx); err != nil {
		return 0, domain.Internal(err, op, "failed to compute sort order")
	}
	return mx + 1, nil
}

// IsFirstAsset reports whether the parent currently has no assets, which
// decides initial primary assignment.
func (r *AssetRegistry) IsFirstAsset(ctx context.Context, parentID int64) (bool, error) {
	n, err := r.Count(ctx, parentID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Insert registers a new asset row. sort_order, is_primary, and created_at
// are assigned here: sort_order = max+1, is_primary when the parent had no
// primary yet, created_at = now (UTC). Returns the new asset id.
func (r *AssetRegistry) Insert(ctx context.Context, p domain.InsertAssetParams) (int64, error) {
	const op = "registry.insert"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	var sortOrder int
	q := fmt.Sprintf(`SELECT COALESCE(MAX(sort_order), 0) + 1 FROM %s WHERE %s = $1`,
		r.col.Table, r.col.ParentColumn)
	if err := tx.QueryRowContext(ctx, q, p.ParentID).Scan(&sortOrder); err != nil {
		return 0, domain.Internal(err, op, "failed to compute sort order")
	}

	var hasPrimary bool
	q = fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND is_primary)`,
		r.col.Table, r.col.ParentColumn)
	if err := tx.QueryRowContext(ctx, q, p.ParentID).Scan(&hasPrimary); err != nil {
		return 0, domain.Internal(err, op, "failed to check primary flag")
	}

	q = fmt.Sprintf(`
		INSERT INTO %s (%s, file_name, filename, file_path, width, height, bytes, is_primary, sort_order, created_at)
		VALUES ($1, $2, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		r.col.Table, r.col.ParentColumn)

	var id int64
	err = tx.QueryRowContext(ctx, q,
		p.ParentID,
		p.Filename,
		storage.DisplayPath(r.col.Dir, p.Filename),
		p.Width,
		p.Height,
		p.SizeBytes,
		!hasPrimary,
		sortOrder,
		time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to insert asset row")
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.Internal(err, op, "failed to commit insert")
	}
	return id, nil
}

// List returns the parent's assets ordered primary-first, then sort_order,
// then id as the final tiebreak.
func (r *AssetRegistry) List(ctx context.Context, parentID int64) ([]domain.MediaAsset, error) {
	const op = "registry.list"

	q := fmt.Sprintf(`
		SELECT id, %s, COALESCE(NULLIF(filename, ''), file_name), file_path,
		       width, height, bytes, is_primary, sort_order, created_at
		  FROM %s
		 WHERE %s = $1
		 ORDER BY is_primary DESC, sort_order ASC, id ASC`,
		r.col.ParentColumn, r.col.Table, r.col.ParentColumn)

	rows, err := r.db.QueryContext(ctx, q, parentID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list assets")
	}
	defer rows.Close()

	var assets []domain.MediaAsset
	for rows.Next() {
		var a domain.MediaAsset
		if err := rows.Scan(&a.ID, &a.ParentID, &a.Filename, &a.DisplayPath,
			&a.Width, &a.Height, &a.SizeBytes, &a.IsPrimary, &a.SortOrder, &a.CreatedAt); err != nil {
			return nil, domain.Internal(err, op, "failed to scan asset row")
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list assets")
	}
	return assets, nil
}

// SetPrimary clears is_primary for all of the parent's rows and sets it for
// assetID. Safe no-op when assetID does not belong to the parent: zero rows
// change and the previous primary is restored by the rollback.
func (r *AssetRegistry) SetPrimary(ctx context.Context, parentID, assetID int64) error {
	const op = "registry.set_primary"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	var belongs bool
	q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1 AND %s = $2)`,
		r.col.Table, r.col.ParentColumn)
	if err := tx.QueryRowContext(ctx, q, assetID, parentID).Scan(&belongs); err != nil {
		return domain.Internal(err, op, "failed to check asset ownership")
	}
	if !belongs {
		return nil
	}

	q = fmt.Sprintf(`UPDATE %s SET is_primary = FALSE WHERE %s = $1`, r.col.Table, r.col.ParentColumn)
	if _, err := tx.ExecContext(ctx, q, parentID); err != nil {
		return domain.Internal(err, op, "failed to clear primary flags")
	}

	q = fmt.Sprintf(`UPDATE %s SET is_primary = TRUE WHERE id = $1 AND %s = $2`, r.col.Table, r.col.ParentColumn)
	if _, err := tx.ExecContext(ctx, q, assetID, parentID); err != nil {
		return domain.Internal(err, op, "failed to set primary flag")
	}

	if err := tx.Commit(); err != nil {
		return domain.Internal(err, op, "failed to commit primary change")
	}
	return nil
}

// Delete removes the asset row if it belongs to the parent, returning the
// stored filename (for content-store cleanup) and whether the deleted row was
// primary. Returns ENOTFOUND when no matching row exists. Deletion does not
// re-promote a primary; the service promotes the next candidate.
func (r *AssetRegistry) Delete(ctx context.Context, parentID, assetID int64) (string, bool, error) {
	const op = "registry.delete"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	var filename string
	var wasPrimary bool
	q := fmt.Sprintf(`
		SELECT COALESCE(NULLIF(filename, ''), file_name), is_primary
		  FROM %s
		 WHERE id = $1 AND %s = $2`,
		r.col.Table, r.col.ParentColumn)
	err = tx.QueryRowContext(ctx, q, assetID, parentID).Scan(&filename, &wasPrimary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, domain.NotFound(op, "asset", assetID)
	}
	if err != nil {
		return "", false, domain.Internal(err, op, "failed to fetch asset row")
	}

	q = fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND %s = $2`, r.col.Table, r.col.ParentColumn)
	if _, err := tx.ExecContext(ctx, q, assetID, parentID); err != nil {
		return "", false, domain.Internal(err, op, "failed to delete asset row")
	}

	if err := tx.Commit(); err != nil {
		return "", false, domain.Internal(err, op, "failed to commit delete")
	}
	return filename, wasPrimary, nil
}

// FirstCandidate returns the id of the parent's first asset in
// (sort_order ASC, id ASC) order, or false when the parent has none. Used to
// promote a new primary after the primary asset is deleted.
func (r *AssetRegistry) FirstCandidate(ctx context.Context, parentID int64) (int64, bool, error) {
	const op = "registry.first_candidate"

	q := fmt.Sprintf(`
		SELECT id FROM %s
		 WHERE %s = $1
		 ORDER BY sort_order ASC, id ASC
		 LIMIT 1`,
		r.col.Table, r.col.ParentColumn)

	var id int64
	err := r.db.QueryRowContext(ctx, q, parentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, domain.Internal(err, op, "failed to find primary candidate")
	}
	return id, true, nil
}
