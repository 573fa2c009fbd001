package permissions

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kardexhq/kardex/pkg/catalog"
	"github.com/kardexhq/kardex/pkg/httputil"
	"github.com/kardexhq/kardex/pkg/observability"
)

// Handler exposes the permission engine over HTTP. Every route that reads or
// mutates a role's matrix is itself gated on the role-editing operation, so
// the engine guards its own management surface.
type Handler struct {
	reconciler *Reconciler
	gate       *Gate
	cat        *catalog.Catalog
	logger     *observability.Logger
}

// NewHandler creates a new permissions handler
func NewHandler(reconciler *Reconciler, gate *Gate, cat *catalog.Catalog, logger *observability.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		gate:       gate,
		cat:        cat,
		logger:     logger,
	}
}

// RegisterRoutes registers permission engine routes under /rbac
func (h *Handler) RegisterRoutes(router *mux.Router) {
	r := router.PathPrefix("/rbac").Subrouter()

	r.HandleFunc("/catalog", h.GetCatalog).Methods(http.MethodGet)
	r.HandleFunc("/check", h.Check).Methods(http.MethodPost)

	edit := RequireAny(h.gate, catalog.OpEditRole)
	r.Handle("/roles/{id:[0-9]+}/permissions",
		edit(http.HandlerFunc(h.ListRolePermissions))).Methods(http.MethodGet)
	r.Handle("/roles/{id:[0-9]+}/permissions/{code}",
		edit(http.HandlerFunc(h.ToggleOperation))).Methods(http.MethodPost)
	r.Handle("/roles/{id:[0-9]+}/reconcile",
		edit(http.HandlerFunc(h.ReconcileRole))).Methods(http.MethodPost)
	r.Handle("/reconcile",
		edit(http.HandlerFunc(h.ReconcileAll))).Methods(http.MethodPost)
}

// catalogGroup is the wire form of one operation group.
type catalogGroup struct {
	Group      string             `json:"group"`
	Operations []catalogOperation `json:"operations"`
}

type catalogOperation struct {
	Code             string `json:"code"`
	View             string `json:"view,omitempty"`
	GrantsAllInGroup bool   `json:"grants_all_in_group,omitempty"`
}

// GetCatalog returns the full operation catalog grouped by functional area.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	groups := make([]catalogGroup, 0, len(h.cat.Groups()))
	for _, name := range h.cat.Groups() {
		part, _ := h.cat.Partition(name)
		cg := catalogGroup{Group: name}
		for _, code := range part.Codes() {
			d, _ := h.cat.Descriptor(code)
			op := catalogOperation{
				Code:             d.Code,
				GrantsAllInGroup: d.GrantsAllInGroup,
			}
			switch d.ViewFlag {
			case catalog.ViewFull:
				op.View = "full"
			case catalog.ViewLimited:
				op.View = "limited"
			}
			cg.Operations = append(cg.Operations, op)
		}
		groups = append(groups, cg)
	}

	httputil.WriteSuccess(w, map[string]interface{}{"groups": groups})
}

// ListRolePermissions returns the role's full matrix ordered by code.
func (h *Handler) ListRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	rows, err := h.reconciler.Store().ListRows(r.Context(), roleID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list role permissions")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"role_id":     roleID,
		"permissions": rows,
	})
}

type toggleRequest struct {
	Access *bool `json:"access"`
}

// ToggleOperation flips one permission and returns the re-normalized matrix.
func (h *Handler) ToggleOperation(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	code, ok := httputil.ParsePathStringOrError(w, r, "code")
	if !ok {
		return
	}

	var req toggleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Access == nil {
		httputil.WriteValidationError(w, "access is required")
		return
	}

	err := h.reconciler.ToggleOperation(r.Context(), roleID, code, *req.Access)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownCode):
		httputil.WriteNotFoundError(w, "unknown operation code: "+code)
		return
	case errors.Is(err, ErrRowNotFound):
		httputil.WriteConflict(w, "role has no row for this code; reconcile the role first")
		return
	default:
		h.logger.WithError(err).Error("failed to toggle permission")
		httputil.WriteInternalError(w, err)
		return
	}

	rows, err := h.reconciler.Store().ListRows(r.Context(), roleID)
	if err != nil {
		h.logger.WithError(err).Error("failed to reload role permissions")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"role_id":     roleID,
		"permissions": rows,
	})
}

// ReconcileRole reconciles a single role against the current catalog.
func (h *Handler) ReconcileRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.reconciler.ReconcileRole(r.Context(), roleID); err != nil {
		h.logger.WithError(err).Error("failed to reconcile role")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccessMessage(w, "role reconciled", map[string]interface{}{
		"role_id": roleID,
	})
}

type reconcileAllRequest struct {
	RoleIDs []int64 `json:"role_ids"`
}

// ReconcileAll reconciles every known role plus any ids in the body. Partial
// failures come back as 207-style detail in a plain 500 with the joined
// error; each role still committed or rolled back on its own.
func (h *Handler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	var req reconcileAllRequest
	if r.Body != nil && r.ContentLength != 0 {
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
	}

	if err := h.reconciler.ReconcileAll(r.Context(), req.RoleIDs...); err != nil {
		h.logger.WithError(err).Error("reconcile-all finished with failures")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccessMessage(w, "all roles reconciled", nil)
}

type checkRequest struct {
	RoleID int64    `json:"role_id"`
	Mode   string   `json:"mode"`
	Codes  []string `json:"codes"`
}

type checkResponse struct {
	Allowed bool     `json:"allowed"`
	Missing []string `json:"missing,omitempty"`
}

// Check evaluates a gate query for other services. When role_id is omitted
// the authenticated role from the request context is checked.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Codes) == 0 {
		httputil.WriteValidationError(w, "codes is required")
		return
	}

	roleID := req.RoleID
	if roleID == 0 {
		roleID = observability.GetRoleID(r.Context())
	}

	var err error
	switch req.Mode {
	case "", "any":
		err = h.gate.RequireAny(r.Context(), roleID, req.Codes...)
	case "all":
		err = h.gate.RequireAll(r.Context(), roleID, req.Codes...)
	default:
		httputil.WriteValidationError(w, "mode must be \"any\" or \"all\"")
		return
	}

	switch {
	case err == nil:
		httputil.WriteSuccess(w, checkResponse{Allowed: true})
	case errors.Is(err, ErrUnauthenticated):
		httputil.WriteUnauthorized(w, "authentication required")
	case errors.Is(err, ErrUnknownCode):
		httputil.WriteValidationError(w, err.Error())
	default:
		var fe *ForbiddenError
		if errors.As(err, &fe) {
			httputil.WriteSuccess(w, checkResponse{Allowed: false, Missing: fe.Missing})
			return
		}
		h.logger.WithError(err).Error("gate check failed")
		httputil.WriteInternalError(w, err)
	}
}
