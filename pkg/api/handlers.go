package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/clinicaccess/pkg/audit"
	"github.com/platinummonkey/clinicaccess/pkg/httputil"
	"github.com/platinummonkey/clinicaccess/pkg/observability"
	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

// Handlers exposes the enforcer over HTTP
type Handlers struct {
	enforcer  *rbac.Enforcer
	validator *RequestValidator
	metrics   *observability.Metrics
}

// NewHandlers creates the access-control handlers. metrics may be nil.
func NewHandlers(enforcer *rbac.Enforcer, metrics *observability.Metrics) *Handlers {
	return &Handlers{
		enforcer:  enforcer,
		validator: NewRequestValidator(),
		metrics:   metrics,
	}
}

// RegisterRoutes registers access-control API routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Catalog and templates
	r.HandleFunc("/rbac/catalog", h.getCatalog).Methods("GET")
	r.HandleFunc("/rbac/templates", h.listTemplates).Methods("GET")

	// Roles
	r.HandleFunc("/rbac/roles", h.listRoles).Methods("GET")
	r.HandleFunc("/rbac/roles", h.createRole).Methods("POST")
	r.HandleFunc("/rbac/roles/{id}", h.getRole).Methods("GET")
	r.HandleFunc("/rbac/roles/{id}", h.updateRole).Methods("PUT")
	r.HandleFunc("/rbac/roles/{id}", h.deleteRole).Methods("DELETE")
	r.HandleFunc("/rbac/roles/{id}/permissions", h.setRolePermissions).Methods("PUT")
	r.HandleFunc("/rbac/roles/{id}/permissions", h.editRolePermissions).Methods("PATCH")
	r.HandleFunc("/rbac/roles/{id}/holders", h.getRoleHolders).Methods("GET")

	// Groups
	r.HandleFunc("/rbac/groups", h.listGroups).Methods("GET")
	r.HandleFunc("/rbac/groups", h.createGroup).Methods("POST")
	r.HandleFunc("/rbac/groups/{id}", h.getGroup).Methods("GET")
	r.HandleFunc("/rbac/groups/{id}", h.saveGroup).Methods("PUT")
	r.HandleFunc("/rbac/groups/{id}", h.deleteGroup).Methods("DELETE")
	r.HandleFunc("/rbac/groups/{id}/permissions", h.getGroupPermissions).Methods("GET")
	r.HandleFunc("/rbac/groups/{id}/members", h.getGroupMembers).Methods("GET")
	r.HandleFunc("/rbac/groups/{id}/members", h.updateGroupMembers).Methods("PUT")

	// Users
	r.HandleFunc("/rbac/users", h.listUsers).Methods("GET")
	r.HandleFunc("/rbac/users", h.createUser).Methods("POST")
	r.HandleFunc("/rbac/users/{id}", h.getUser).Methods("GET")
	r.HandleFunc("/rbac/users/{id}", h.updateUser).Methods("PUT")
	r.HandleFunc("/rbac/users/{id}", h.deleteUser).Methods("DELETE")
	r.HandleFunc("/rbac/users/{id}/permissions", h.getUserPermissions).Methods("GET")

	// Snapshot
	r.HandleFunc("/rbac/snapshot", h.exportSnapshot).Methods("GET")
	r.HandleFunc("/rbac/snapshot", h.restoreSnapshot).Methods("PUT")
}

// writeError maps enforcer errors to HTTP status codes
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, rbac.ErrInvalidCatalogKey):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, rbac.ErrAlreadyExists):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, rbac.ErrInconsistentSnapshot):
		httputil.WriteError(w, http.StatusUnprocessableEntity, err)
	default:
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode parses and validates a request body, writing the 400 itself on failure
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if !httputil.ParseJSONOrError(w, r, dest) {
		return false
	}
	if err := h.validator.Validate(dest); err != nil {
		httputil.WriteDetailedError(w, http.StatusBadRequest, errors.New("validation failed"), h.validator.FormatValidationErrors(err))
		return false
	}
	return true
}

// mutation wraps one state change with a span, a metric and an audit event
type mutation struct {
	h         *Handlers
	r         *http.Request
	operation string
	span      trace.Span
}

func (h *Handlers) startMutation(r *http.Request, operation string) (*mutation, *http.Request) {
	ctx, span := observability.StartSpan(r.Context(), "rbac."+operation)
	r = r.WithContext(ctx)
	return &mutation{h: h, r: r, operation: operation, span: span}, r
}

// finish records the outcome. It is called exactly once per mutation.
func (m *mutation) finish(event audit.Mutation) {
	defer m.span.End()

	if event.Err != nil {
		m.span.RecordError(event.Err)
		m.span.SetStatus(codes.Error, event.Err.Error())
	}
	if event.ResourceID != "" {
		m.span.SetAttributes(resourceAttr(event.ResourceType, event.ResourceID))
	}

	if m.h.metrics != nil {
		m.h.metrics.RecordMutation(m.operation, event.Err)
		stats := m.h.enforcer.Stats()
		m.h.metrics.SetEntityCounts(stats.Roles, stats.Groups, stats.Users)
	}

	if err := audit.LogMutation(m.r.Context(), m.r, event); err != nil {
		observability.FromContext(m.r.Context()).WithError(err).Warn("failed to write audit event")
	}
}

func resourceAttr(kind audit.ResourceType, id string) attribute.KeyValue {
	return attribute.String("rbac."+string(kind)+".id", id)
}

func (h *Handlers) observeAggregation(kind string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveAggregation(kind, start)
	}
}

// getCatalog handles GET /rbac/catalog
func (h *Handlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, CatalogResponse{
		Modules: rbac.Modules(),
		Verbs:   rbac.Verbs(),
	})
}

// listTemplates handles GET /rbac/templates
func (h *Handlers) listTemplates(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, rbac.BuiltInRoles())
}

// exportSnapshot handles GET /rbac/snapshot
func (h *Handlers) exportSnapshot(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.enforcer.Snapshot())
}

// restoreSnapshot handles PUT /rbac/snapshot
func (h *Handlers) restoreSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap rbac.Snapshot
	if !httputil.ParseJSONOrError(w, r, &snap) {
		return
	}

	m, r := h.startMutation(r, "restore_snapshot")
	err := h.enforcer.Restore(snap)
	m.finish(audit.Mutation{
		EventType:    audit.EventTypeSnapshotRestore,
		ResourceType: audit.ResourceTypeSnapshot,
		Metadata: map[string]interface{}{
			"roles":  len(snap.Roles),
			"groups": len(snap.Groups),
			"users":  len(snap.Users),
		},
		Err: err,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, h.enforcer.Stats())
}
