package api

import (
	"net/http"

	"github.com/platinummonkey/clinicaccess/pkg/audit"
	"github.com/platinummonkey/clinicaccess/pkg/httputil"
	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

// listRoles handles GET /rbac/roles
func (h *Handlers) listRoles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.enforcer.ListRoles())
}

// getRole handles GET /rbac/roles/{id}
func (h *Handlers) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.enforcer.GetRole(rbac.RoleID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// createRole handles POST /rbac/roles
func (h *Handlers) createRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	m, r := h.startMutation(r, "create_role")
	role, err := h.enforcer.CreateRole(req.input())
	event := audit.Mutation{
		EventType:    audit.EventTypeRoleCreate,
		ResourceType: audit.ResourceTypeRole,
		ResourceID:   req.ID,
		Err:          err,
	}
	if err == nil {
		event.ResourceID = string(role.ID)
		event.Changes = &audit.ChangeDetails{After: role}
	}
	m.finish(event)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, role)
}

// updateRole handles PUT /rbac/roles/{id}
func (h *Handlers) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.changeRole(w, r, "update_role", audit.EventTypeRoleUpdate, rbac.RoleID(id), func() (rbac.Role, error) {
		return h.enforcer.UpdateRole(rbac.RoleID(id), req.patch())
	})
}

// setRolePermissions handles PUT /rbac/roles/{id}/permissions
func (h *Handlers) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req SetPermissionsRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.changeRole(w, r, "set_role_permissions", audit.EventTypeRolePermissions, rbac.RoleID(id), func() (rbac.Role, error) {
		return h.enforcer.SetRolePermissions(rbac.RoleID(id), req.Permissions)
	})
}

// editRolePermissions handles PATCH /rbac/roles/{id}/permissions. The body
// toggles one cell, one module row, one verb column or the whole grid.
func (h *Handlers) editRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var edit rbac.PermissionEdit
	if !httputil.ParseJSONOrError(w, r, &edit) {
		return
	}

	h.changeRole(w, r, "edit_role_permissions", audit.EventTypeRolePermissions, rbac.RoleID(id), func() (rbac.Role, error) {
		return h.enforcer.EditRolePermissions(rbac.RoleID(id), edit)
	})
}

// changeRole runs a mutation on an existing role and records before and after
func (h *Handlers) changeRole(w http.ResponseWriter, r *http.Request, operation string, eventType audit.EventType, id rbac.RoleID, apply func() (rbac.Role, error)) {
	m, r := h.startMutation(r, operation)

	changes := &audit.ChangeDetails{}
	if before, err := h.enforcer.GetRole(id); err == nil {
		changes.Before = before
	}
	role, err := apply()
	if err == nil {
		changes.After = role
	}
	m.finish(audit.Mutation{
		EventType:    eventType,
		ResourceType: audit.ResourceTypeRole,
		ResourceID:   string(id),
		Changes:      changes,
		Err:          err,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// deleteRole handles DELETE /rbac/roles/{id}
func (h *Handlers) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	m, r := h.startMutation(r, "delete_role")
	err := h.enforcer.DeleteRole(rbac.RoleID(id))
	m.finish(audit.Mutation{
		EventType:    audit.EventTypeRoleDelete,
		ResourceType: audit.ResourceTypeRole,
		ResourceID:   id,
		Err:          err,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// getRoleHolders handles GET /rbac/roles/{id}/holders
func (h *Handlers) getRoleHolders(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	users, err := h.enforcer.RoleHolders(rbac.RoleID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, users)
}
