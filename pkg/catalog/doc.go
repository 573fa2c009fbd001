// Package catalog defines the versioned registry of operation codes that the
// permission engine reconciles role matrices against.
//
// # Overview
//
// The catalog is code-defined and immutable after process start. Each entry is
// a Descriptor naming one operation code (e.g. "EDIT_PERSON"), the group of
// records it acts on (e.g. "persons"), and its structural role inside that
// group:
//
//   - GrantsAllInGroup marks the group's aggregate "grant everything" toggle
//     (at most one per group).
//   - ViewFull / ViewLimited mark the complementary broad/restricted list-view
//     pair (at most one of each per group).
//   - Everything else is a plain operation.
//
// The per-group structure is resolved once at load time into a GroupPartition
// lookup, so normalization never derives pairings from code-name conventions.
//
// # Validation
//
// New rejects catalogs that violate the group invariant (duplicate codes, two
// FULL entries in one group, two aggregate toggles in one group). Load caches
// the built-in catalog and returns the validation error on every call if the
// built-in set is broken, so the binary refuses to serve rather than
// normalizing against a malformed catalog.
//
// # Usage
//
//	cat, err := catalog.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	part, _ := cat.Partition("persons")
//	// part.All, part.Full, part.Limited, part.Others
//
// # Related Packages
//
//   - pkg/permissions: seeds, prunes and normalizes role matrices against
//     this catalog
package catalog
