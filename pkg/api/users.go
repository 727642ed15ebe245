package api

import (
	"net/http"
	"time"

	"github.com/platinummonkey/clinicaccess/pkg/audit"
	"github.com/platinummonkey/clinicaccess/pkg/httputil"
	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

// listUsers handles GET /rbac/users
func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.enforcer.ListUsers())
}

// getUser handles GET /rbac/users/{id}
func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	user, err := h.enforcer.GetUser(rbac.UserID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// createUser handles POST /rbac/users
func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if !h.decode(w, r, &req) {
		return
	}

	m, r := h.startMutation(r, "create_user")
	user, err := h.enforcer.CreateUser(req.input())
	event := audit.Mutation{
		EventType:    audit.EventTypeUserCreate,
		ResourceType: audit.ResourceTypeUser,
		ResourceID:   req.ID,
		Err:          err,
	}
	if err == nil {
		event.ResourceID = string(user.ID)
		event.Changes = &audit.ChangeDetails{After: user}
	}
	m.finish(event)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, user)
}

// updateUser handles PUT /rbac/users/{id}. The body replaces the profile,
// the direct role and the group list.
func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req UserRequest
	if !h.decode(w, r, &req) {
		return
	}

	m, r := h.startMutation(r, "update_user")
	changes := &audit.ChangeDetails{}
	if before, err := h.enforcer.GetUser(rbac.UserID(id)); err == nil {
		changes.Before = before
	}
	user, err := h.enforcer.UpdateUser(rbac.UserID(id), req.input())
	if err == nil {
		changes.After = user
	}
	m.finish(audit.Mutation{
		EventType:    audit.EventTypeUserUpdate,
		ResourceType: audit.ResourceTypeUser,
		ResourceID:   id,
		Changes:      changes,
		Err:          err,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// deleteUser handles DELETE /rbac/users/{id}
func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	m, r := h.startMutation(r, "delete_user")
	err := h.enforcer.DeleteUser(rbac.UserID(id))
	m.finish(audit.Mutation{
		EventType:    audit.EventTypeUserDelete,
		ResourceType: audit.ResourceTypeUser,
		ResourceID:   id,
		Err:          err,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// getUserPermissions handles GET /rbac/users/{id}/permissions
func (h *Handlers) getUserPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	start := time.Now()
	perms, err := h.enforcer.ComputeEffectiveUserPermissions(rbac.UserID(id))
	h.observeAggregation("user", start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, PermissionsResponse{ID: id, Permissions: perms})
}
