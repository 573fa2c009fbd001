package permissions

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lib/pq"

	"github.com/kardexhq/kardex/pkg/catalog"
	"github.com/kardexhq/kardex/pkg/observability"
)

// gateDecision is a cached gate outcome. Missing is kept so a cached denial
// reproduces the same ForbiddenError as a fresh one.
type gateDecision struct {
	allowed bool
	missing []string
}

// Gate answers "may this role perform these operations" against the live
// matrix. Only the access flag matters here; disabled is a presentation
// concern for the role-editing surface.
//
// Decisions can be cached for a short TTL. The reconciler invalidates the
// cache on every committed write, so staleness is bounded by out-of-process
// writers only.
type Gate struct {
	db      *sql.DB
	cat     *catalog.Catalog
	metrics *observability.Metrics
	cache   *expirable.LRU[string, gateDecision]
}

// NewGate creates a gate. A cacheTTL of zero disables decision caching.
// metrics may be nil.
func NewGate(db *sql.DB, cat *catalog.Catalog, metrics *observability.Metrics, cacheTTL time.Duration, cacheSize int) *Gate {
	g := &Gate{
		db:      db,
		cat:     cat,
		metrics: metrics,
	}
	if cacheTTL > 0 {
		if cacheSize <= 0 {
			cacheSize = 1024
		}
		g.cache = expirable.NewLRU[string, gateDecision](cacheSize, nil, cacheTTL)
	}
	return g
}

// InvalidateCache drops every cached decision. Called after matrix writes.
func (g *Gate) InvalidateCache() {
	if g.cache != nil {
		g.cache.Purge()
	}
}

// RequireAny returns nil when the role holds at least one of the codes.
// Returns ErrUnauthenticated for roleID <= 0 and a ForbiddenError listing
// all the codes when none is granted.
func (g *Gate) RequireAny(ctx context.Context, roleID int64, codes ...string) error {
	return g.require(ctx, "any", roleID, codes)
}

// RequireAll returns nil when the role holds every one of the codes. The
// ForbiddenError on denial lists exactly the codes that were not granted,
// in the order they were asked for.
func (g *Gate) RequireAll(ctx context.Context, roleID int64, codes ...string) error {
	return g.require(ctx, "all", roleID, codes)
}

func (g *Gate) require(ctx context.Context, mode string, roleID int64, codes []string) error {
	if roleID <= 0 {
		return ErrUnauthenticated
	}
	if len(codes) == 0 {
		return fmt.Errorf("permissions: no operation codes supplied")
	}
	for _, code := range codes {
		if _, ok := g.cat.GroupOf(code); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCode, code)
		}
	}

	key := cacheKey(mode, roleID, codes)
	if g.cache != nil {
		if d, ok := g.cache.Get(key); ok {
			g.observeCache(true)
			return g.decide(mode, roleID, d)
		}
		g.observeCache(false)
	}

	granted, err := g.grantedCodes(ctx, roleID, codes)
	if err != nil {
		return err
	}

	d := evaluate(mode, codes, granted)
	if g.cache != nil {
		g.cache.Add(key, d)
	}
	return g.decide(mode, roleID, d)
}

// grantedCodes returns the subset of codes the role holds with access=true.
func (g *Gate) grantedCodes(ctx context.Context, roleID int64, codes []string) (map[string]struct{}, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT code
		FROM role_permissions
		WHERE role_id = $1 AND code = ANY($2) AND access = TRUE
	`, roleID, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("failed to query granted codes: %w", err)
	}
	defer rows.Close()

	granted := make(map[string]struct{}, len(codes))
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan granted code: %w", err)
		}
		granted[code] = struct{}{}
	}

	return granted, rows.Err()
}

// evaluate folds the granted set into a decision. For "any" mode a denial
// lists every requested code; for "all" mode only the ungranted ones.
func evaluate(mode string, codes []string, granted map[string]struct{}) gateDecision {
	missing := make([]string, 0, len(codes))
	for _, code := range codes {
		if _, ok := granted[code]; !ok {
			missing = append(missing, code)
		}
	}

	switch mode {
	case "any":
		if len(missing) < len(codes) {
			return gateDecision{allowed: true}
		}
		return gateDecision{missing: missing}
	default:
		if len(missing) == 0 {
			return gateDecision{allowed: true}
		}
		return gateDecision{missing: missing}
	}
}

func (g *Gate) decide(mode string, roleID int64, d gateDecision) error {
	if g.metrics != nil {
		outcome := "deny"
		if d.allowed {
			outcome = "allow"
		}
		g.metrics.GateDecisionsTotal.WithLabelValues(mode, outcome).Inc()
	}
	if d.allowed {
		return nil
	}
	// Callers get their own copy so mutating the error cannot corrupt a
	// cached decision.
	missing := make([]string, len(d.missing))
	copy(missing, d.missing)
	return &ForbiddenError{RoleID: roleID, Missing: missing}
}

func (g *Gate) observeCache(hit bool) {
	if g.metrics == nil {
		return
	}
	if hit {
		g.metrics.GateCacheHitsTotal.Inc()
	} else {
		g.metrics.GateCacheMissesTotal.Inc()
	}
}

// cacheKey is stable under code reordering so "A,B" and "B,A" share an entry.
func cacheKey(mode string, roleID int64, codes []string) string {
	sorted := make([]string, len(codes))
	copy(sorted, codes)
	sort.Strings(sorted)
	return mode + "|" + strconv.FormatInt(roleID, 10) + "|" + strings.Join(sorted, ",")
}
