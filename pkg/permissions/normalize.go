package permissions

import (
	"context"
	"fmt"
	"sort"

	"github.com/kardexhq/kardex/pkg/catalog"
)

// normalizeGroup computes the minimal patch set that makes one group's rows
// consistent. rows holds only the rows that exist; a rule step whose inputs
// are missing simply does not apply (the matrix may be mid-reconciliation).
//
// The steps mutate an in-memory working copy so later steps observe the
// effect of earlier ones, and only the final diff against the fetched
// baseline is emitted. Running the result through normalizeGroup again
// therefore yields no patches.
func normalizeGroup(rows map[string]PermissionRow, part catalog.GroupPartition) []Patch {
	work := make(map[string]PermissionRow, len(rows))
	for code, row := range rows {
		work[code] = row
	}

	// Step A: LIMITED/FULL coupling. Granting the limited view locks the
	// full view only while the full view is itself granted; revoking the
	// limited view revokes and locks the full view.
	if part.Limited != nil {
		if lim, ok := work[part.Limited.Code]; ok {
			if !lim.Access {
				lim.Disabled = false
				work[part.Limited.Code] = lim
				if part.Full != nil {
					if full, ok := work[part.Full.Code]; ok {
						full.Access = false
						full.Disabled = true
						work[part.Full.Code] = full
					}
				}
			} else if part.Full != nil {
				if full, ok := work[part.Full.Code]; ok {
					if full.Access {
						lim.Disabled = true
					} else {
						lim.Disabled = false
					}
					full.Disabled = false
					work[part.Limited.Code] = lim
					work[part.Full.Code] = full
				}
			}
		}
	}

	// Step B: the aggregate toggle is derived from the other members, never
	// the other way around. The only forcing path is the resynchronization
	// below, which covers drift when the toggle transitions to granted.
	if part.All != nil {
		if all, ok := work[part.All.Code]; ok {
			members := part.MemberCodes()
			effectiveAll := true
			for _, code := range members {
				row, ok := work[code]
				if !ok || !row.Access {
					effectiveAll = false
					break
				}
			}

			switch {
			case effectiveAll && !all.Access:
				all.Access = true
				work[part.All.Code] = all
				if part.Full != nil {
					if full, ok := work[part.Full.Code]; ok {
						full.Disabled = false
						work[part.Full.Code] = full
					}
				}
				if part.Limited != nil {
					if lim, ok := work[part.Limited.Code]; ok {
						lim.Disabled = true
						work[part.Limited.Code] = lim
					}
				}
				for _, code := range members {
					if row, ok := work[code]; ok && !row.Access {
						row.Access = true
						work[code] = row
					}
				}
			case !effectiveAll && all.Access:
				all.Access = false
				work[part.All.Code] = all
			}
		}
	}

	// Step C: diff-only persistence. One patch per row whose final value
	// differs from the fetched baseline in access or disabled.
	codes := make([]string, 0, len(work))
	for code := range work {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var patches []Patch
	for _, code := range codes {
		base := rows[code]
		final := work[code]

		p := Patch{Code: code}
		if final.Access != base.Access {
			p.Access = boolPtr(final.Access)
		}
		if final.Disabled != base.Disabled {
			p.Disabled = boolPtr(final.Disabled)
		}
		if !p.IsZero() {
			patches = append(patches, p)
		}
	}

	return patches
}

// Normalizer applies the group consistency rules against storage. All
// methods run inside the caller-supplied transaction so a role's
// normalization observes one consistent snapshot.
type Normalizer struct {
	store *Store
	cat   *catalog.Catalog
}

// NewNormalizer creates a normalizer bound to a store and catalog.
func NewNormalizer(store *Store, cat *catalog.Catalog) *Normalizer {
	return &Normalizer{store: store, cat: cat}
}

// NormalizeGroup fetches one group's rows, computes the minimal patches and
// applies them. Returns the number of patches written.
func (n *Normalizer) NormalizeGroup(ctx context.Context, q Querier, roleID int64, group string) (int, error) {
	part, ok := n.cat.Partition(group)
	if !ok {
		return 0, fmt.Errorf("permissions: unknown group %q", group)
	}

	rows, err := n.store.FetchRows(ctx, q, roleID, part.Codes())
	if err != nil {
		return 0, err
	}

	patches := normalizeGroup(rows, part)
	if len(patches) == 0 {
		return 0, nil
	}
	if err := n.store.ApplyPatches(ctx, q, roleID, patches); err != nil {
		return 0, err
	}
	return len(patches), nil
}

// NormalizeAllGroups runs NormalizeGroup for every catalog group. The caller
// holds the transaction, so the role's matrix converges atomically.
func (n *Normalizer) NormalizeAllGroups(ctx context.Context, q Querier, roleID int64) (int, error) {
	total := 0
	for _, group := range n.cat.Groups() {
		count, err := n.NormalizeGroup(ctx, q, roleID, group)
		if err != nil {
			return total, fmt.Errorf("group %s: %w", group, err)
		}
		total += count
	}
	return total, nil
}
