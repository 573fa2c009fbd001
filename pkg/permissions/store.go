package permissions

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/kardexhq/kardex/pkg/catalog"
)

// Querier is the subset of database/sql shared by *sql.DB, *sql.Tx and
// *sql.Conn. Transaction-scoped store methods take one so they run inside
// whatever transaction the caller holds.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store handles permission matrix persistence. It is the only writer of
// role_permissions rows; the normalizer and reconciler go through it.
type Store struct {
	db *sql.DB
}

// NewStore creates a new matrix store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// FetchRows returns the existing rows for the given codes. Codes with no row
// are simply absent from the map, so callers can distinguish "exists with
// access=false" from "row absent".
func (s *Store) FetchRows(ctx context.Context, q Querier, roleID int64, codes []string) (map[string]PermissionRow, error) {
	if len(codes) == 0 {
		return map[string]PermissionRow{}, nil
	}

	query := `
		SELECT code, access, disabled
		FROM role_permissions
		WHERE role_id = $1 AND code = ANY($2)
	`

	rows, err := q.QueryContext(ctx, query, roleID, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permission rows: %w", err)
	}
	defer rows.Close()

	out := make(map[string]PermissionRow, len(codes))
	for rows.Next() {
		row := PermissionRow{RoleID: roleID}
		if err := rows.Scan(&row.Code, &row.Access, &row.Disabled); err != nil {
			return nil, fmt.Errorf("failed to scan permission row: %w", err)
		}
		out[row.Code] = row
	}

	return out, rows.Err()
}

// ApplyPatches applies partial updates, one statement per row, setting only
// the fields present in each patch. Empty patches are skipped.
func (s *Store) ApplyPatches(ctx context.Context, q Querier, roleID int64, patches []Patch) error {
	for _, p := range patches {
		if p.IsZero() {
			continue
		}

		sets := make([]string, 0, 2)
		args := []interface{}{roleID, p.Code}
		if p.Access != nil {
			args = append(args, *p.Access)
			sets = append(sets, "access = $"+strconv.Itoa(len(args)))
		}
		if p.Disabled != nil {
			args = append(args, *p.Disabled)
			sets = append(sets, "disabled = $"+strconv.Itoa(len(args)))
		}

		query := "UPDATE role_permissions SET " + strings.Join(sets, ", ") +
			" WHERE role_id = $1 AND code = $2"
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to patch row %s: %w", p.Code, err)
		}
	}
	return nil
}

// SetAccess flips one row's access flag. Returns ErrRowNotFound when the role
// has no row for the code, which means it was never seeded.
func (s *Store) SetAccess(ctx context.Context, q Querier, roleID int64, code string, access bool) error {
	res, err := q.ExecContext(ctx,
		`UPDATE role_permissions SET access = $3 WHERE role_id = $1 AND code = $2`,
		roleID, code, access,
	)
	if err != nil {
		return fmt.Errorf("failed to set access on %s: %w", code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w %d, code %s", ErrRowNotFound, roleID, code)
	}
	return nil
}

// SeedMissing inserts a row for every descriptor the role does not have yet,
// with access=false and disabled set for the FULL view (which starts locked
// because the LIMITED view starts ungranted). Returns the number inserted.
func (s *Store) SeedMissing(ctx context.Context, q Querier, roleID int64, descriptors []catalog.Descriptor) (int, error) {
	query := `
		INSERT INTO role_permissions (role_id, code, access, disabled)
		VALUES ($1, $2, FALSE, $3)
		ON CONFLICT (role_id, code) DO NOTHING
	`

	inserted := 0
	for _, d := range descriptors {
		res, err := q.ExecContext(ctx, query, roleID, d.Code, d.ViewFlag == catalog.ViewFull)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed row %s: %w", d.Code, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// PruneStale hard-deletes every row of the role whose code left the catalog.
// Returns the number deleted.
func (s *Store) PruneStale(ctx context.Context, q Querier, roleID int64, validCodes map[string]struct{}) (int, error) {
	codes := make([]string, 0, len(validCodes))
	for c := range validCodes {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	res, err := q.ExecContext(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND NOT (code = ANY($2))`,
		roleID, pq.Array(codes),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune stale rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}

// ListRows returns the role's full matrix ordered by code, for rendering the
// role-editing surface.
func (s *Store) ListRows(ctx context.Context, roleID int64) ([]PermissionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, access, disabled
		FROM role_permissions
		WHERE role_id = $1
		ORDER BY code ASC
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permission rows: %w", err)
	}
	defer rows.Close()

	var out []PermissionRow
	for rows.Next() {
		row := PermissionRow{RoleID: roleID}
		if err := rows.Scan(&row.Code, &row.Access, &row.Disabled); err != nil {
			return nil, fmt.Errorf("failed to scan permission row: %w", err)
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// ListRoleIDs returns every role id present in the matrix. Role CRUD lives
// outside this service, so reconcile-all discovers roles from the rows
// themselves; freshly created roles with no rows yet are passed in by the
// caller.
func (s *Store) ListRoleIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT role_id FROM role_permissions ORDER BY role_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list role ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
