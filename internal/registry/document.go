package registry

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/studentpalace/studentpalace/internal/domain"
	"github.com/studentpalace/studentpalace/internal/storage"
)

// DocumentRegistry provides the database operations for house documents
// (EPC certificates). Unlike photo collections, documents use is_current
// semantics: uploading a new document flips the previous current to history,
// and the sole current document cannot be deleted unless another exists to
// promote.
type DocumentRegistry struct {
	db *sql.DB
}

// NewDocumentRegistry creates the registry for house documents.
func NewDocumentRegistry(db *sql.DB) *DocumentRegistry {
	return &DocumentRegistry{db: db}
}

// AssertSchema verifies the house_documents table has every required column.
func (r *DocumentRegistry) AssertSchema(ctx context.Context) error {
	return verifyColumns(ctx, r.db, "house_documents", documentColumns)
}

// Current returns the house's current EPC document, or ENOTFOUND.
func (r *DocumentRegistry) Current(ctx context.Context, houseID int64) (*domain.HouseDocument, error) {
	const op = "documents.current"

	var d domain.HouseDocument
	err := r.db.QueryRowContext(ctx, `
		SELECT id, house_id, doc_type, file_name, file_path, bytes, is_current, created_at
		  FROM house_documents
		 WHERE house_id = $1 AND doc_type = $2 AND is_current
		 ORDER BY id DESC
		 LIMIT 1`,
		houseID, domain.DocTypeEPC,
	).Scan(&d.ID, &d.HouseID, &d.DocType, &d.Filename, &d.DisplayPath, &d.SizeBytes, &d.IsCurrent, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "EPC document", houseID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to fetch current EPC")
	}
	return &d, nil
}

// History returns all of the house's EPC documents, current first, then
// newest to oldest.
func (r *DocumentRegistry) History(ctx context.Context, houseID int64) ([]domain.HouseDocument, error) {
	const op = "documents.history"

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, house_id, doc_type, file_name, file_path, bytes, is_current, created_at
		  FROM house_documents
		 WHERE house_id = $1 AND doc_type = $2
		 ORDER BY is_current DESC, id DESC`,
		houseID, domain.DocTypeEPC,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list EPC documents")
	}
	defer rows.Close()

	var docs []domain.HouseDocument
	for rows.Next() {
		var d domain.HouseDocument
		if err := rows.Scan(&d.ID, &d.HouseID, &d.DocType, &d.Filename, &d.DisplayPath,
			&d.SizeBytes, &d.IsCurrent, &d.CreatedAt); err != nil {
			return nil, domain.Internal(err, op, "failed to scan EPC row")
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list EPC documents")
	}
	return docs, nil
}

// InsertCurrent registers a newly uploaded EPC as the house's current
// document, flipping any previous current to history in the same
// transaction. Returns the new document id.
func (r *DocumentRegistry) InsertCurrent(ctx context.Context, houseID int64, filename string, sizeBytes int64) (int64, error) {
	const op = "documents.insert"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE house_documents
		   SET is_current = FALSE
		 WHERE house_id = $1 AND doc_type = $2 AND is_current`,
		houseID, domain.DocTypeEPC,
	)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to retire previous EPC")
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO house_documents (house_id, doc_type, file_name, file_path, bytes, is_current, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		RETURNING id`,
		houseID, domain.DocTypeEPC, filename,
		storage.DisplayPath(domain.EPCDocumentsDir, filename),
		sizeBytes, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to insert EPC row")
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.Internal(err, op, "failed to commit EPC insert")
	}
	return id, nil
}

// Delete removes an EPC document, returning the stored filename for
// content-store cleanup. Deleting the sole current document is refused with
// ECONFLICT unless another document exists to promote; when the current
// document is deleted and history remains, the most recent remaining row is
// promoted to current.
func (r *DocumentRegistry) Delete(ctx context.Context, houseID, docID int64) (string, error) {
	const op = "documents.delete"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	var filename string
	var isCurrent bool
	err = tx.QueryRowContext(ctx, `
		SELECT file_name, is_current
		  FROM house_documents
		 WHERE id = $1 AND house_id = $2 AND doc_type = $3`,
		docID, houseID, domain.DocTypeEPC,
	).Scan(&filename, &isCurrent)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.NotFound(op, "EPC document", docID)
	}
	if err != nil {
		return "", domain.Internal(err, op, "failed to fetch EPC row")
	}

	if isCurrent {
		var others bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM house_documents
				 WHERE house_id = $1 AND doc_type = $2 AND id <> $3)`,
			houseID, domain.DocTypeEPC, docID,
		).Scan(&others)
		if err != nil {
			return "", domain.Internal(err, op, "failed to check EPC history")
		}
		if !others {
			return "", domain.Conflict(op, "Cannot delete the only current EPC. Upload a new one first.")
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM house_documents
		 WHERE id = $1 AND house_id = $2 AND doc_type = $3`,
		docID, houseID, domain.DocTypeEPC,
	)
	if err != nil {
		return "", domain.Internal(err, op, "failed to delete EPC row")
	}

	if isCurrent {
		_, err = tx.ExecContext(ctx, `
			UPDATE house_documents
			   SET is_current = TRUE
			 WHERE id = (
				SELECT id FROM house_documents
				 WHERE house_id = $1 AND doc_type = $2
				 ORDER BY id DESC
				 LIMIT 1)`,
			houseID, domain.DocTypeEPC,
		)
		if err != nil {
			return "", domain.Internal(err, op, "failed to promote EPC history")
		}
	}

	if err := tx.Commit(); err != nil {
		return "", domain.Internal(err, op, "failed to commit EPC delete")
	}
	return filename, nil
}
