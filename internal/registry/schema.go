package registry

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/studentpalace/studentpalace/internal/domain"
)

// assetColumns are required on every photo-collection table, in addition to
// the collection's parent column. file_name and filename are the legacy
// duplicate pair carried over from earlier deployments; inserts keep them in
// sync and reads coalesce them.
var assetColumns = []string{
	"id", "file_name", "filename", "file_path",
	"width", "height", "bytes",
	"is_primary", "sort_order", "created_at",
}

// documentColumns are required on the house_documents table.
var documentColumns = []string{
	"id", "house_id", "doc_type", "file_name", "file_path",
	"bytes", "is_current", "created_at",
}

// verifyColumns checks that the table exists and carries every required
// column. It verifies only; schema is created and evolved exclusively by the
// versioned migrations run at startup.
func verifyColumns(ctx context.Context, db *sql.DB, table string, required []string) error {
	const op = "registry.assert_schema"

	rows, err := db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns
		  WHERE table_schema = current_schema() AND table_name = $1`,
		table,
	)
	if err != nil {
		return domain.Internal(err, op, fmt.Sprintf("failed to inspect table %s", table))
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return domain.Internal(err, op, fmt.Sprintf("failed to inspect table %s", table))
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return domain.Internal(err, op, fmt.Sprintf("failed to inspect table %s", table))
	}

	if len(present) == 0 {
		return domain.Errorf(domain.ESCHEMA, op, "table %s does not exist", table)
	}

	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.Schema(op, table, missing)
	}
	return nil
}
