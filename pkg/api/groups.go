package api

import (
	"net/http"
	"time"

	"github.com/platinummonkey/clinicaccess/pkg/audit"
	"github.com/platinummonkey/clinicaccess/pkg/httputil"
	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

// groupResponse attaches the aggregated permissions to a group
func (h *Handlers) groupResponse(group rbac.UserGroup) (GroupResponse, error) {
	start := time.Now()
	perms, err := h.enforcer.AggregateGroupPermissions(group.ID)
	h.observeAggregation("group", start)
	if err != nil {
		return GroupResponse{}, err
	}
	return GroupResponse{UserGroup: group, Permissions: perms}, nil
}

// listGroups handles GET /rbac/groups
func (h *Handlers) listGroups(w http.ResponseWriter, r *http.Request) {
	groups := h.enforcer.ListGroups()
	out := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		resp, err := h.groupResponse(g)
		if err != nil {
			// deleted between the list and the aggregation
			continue
		}
		out = append(out, resp)
	}
	httputil.WriteSuccess(w, out)
}

// getGroup handles GET /rbac/groups/{id}
func (h *Handlers) getGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	group, err := h.enforcer.GetGroup(rbac.GroupID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.groupResponse(group)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// createGroup handles POST /rbac/groups
func (h *Handlers) createGroup(w http.ResponseWriter, r *http.Request) {
	var req SaveGroupRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ID != "" {
		if _, err := h.enforcer.GetGroup(rbac.GroupID(req.ID)); err == nil {
			httputil.WriteConflict(w, "group "+req.ID+" already exists")
			return
		}
	}

	h.save(w, r, req.input(), http.StatusCreated)
}

// saveGroup handles PUT /rbac/groups/{id}
func (h *Handlers) saveGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req SaveGroupRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.enforcer.GetGroup(rbac.GroupID(id)); err != nil {
		writeError(w, r, err)
		return
	}

	in := req.input()
	in.ID = rbac.GroupID(id)
	h.save(w, r, in, http.StatusOK)
}

func (h *Handlers) save(w http.ResponseWriter, r *http.Request, in rbac.GroupInput, status int) {
	m, r := h.startMutation(r, "save_group")

	changes := &audit.ChangeDetails{}
	if in.ID != "" {
		if before, err := h.enforcer.GetGroup(in.ID); err == nil {
			changes.Before = before
		}
	}
	group, err := h.enforcer.SaveGroup(in)
	event := audit.Mutation{
		EventType:    audit.EventTypeGroupSave,
		ResourceType: audit.ResourceTypeGroup,
		ResourceID:   string(in.ID),
		Changes:      changes,
		Err:          err,
	}
	if err == nil {
		event.ResourceID = string(group.ID)
		changes.After = group
	}
	m.finish(event)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.groupResponse(group)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, status, resp)
}

// deleteGroup handles DELETE /rbac/groups/{id}
func (h *Handlers) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	m, r := h.startMutation(r, "delete_group")
	err := h.enforcer.DeleteGroup(rbac.GroupID(id))
	m.finish(audit.Mutation{
		EventType:    audit.EventTypeGroupDelete,
		ResourceType: audit.ResourceTypeGroup,
		ResourceID:   id,
		Err:          err,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// getGroupPermissions handles GET /rbac/groups/{id}/permissions
func (h *Handlers) getGroupPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	start := time.Now()
	perms, err := h.enforcer.AggregateGroupPermissions(rbac.GroupID(id))
	h.observeAggregation("group", start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, PermissionsResponse{ID: id, Permissions: perms})
}

// getGroupMembers handles GET /rbac/groups/{id}/members
func (h *Handlers) getGroupMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	users, err := h.enforcer.GroupMembers(rbac.GroupID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// updateGroupMembers handles PUT /rbac/groups/{id}/members. The listed users
// become the exact membership.
func (h *Handlers) updateGroupMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdateMembersRequest
	if !h.decode(w, r, &req) {
		return
	}

	userIDs := make([]rbac.UserID, 0, len(req.UserIDs))
	for _, uid := range req.UserIDs {
		userIDs = append(userIDs, rbac.UserID(uid))
	}

	m, r := h.startMutation(r, "update_group_members")
	members, err := h.enforcer.UpdateGroupMembers(rbac.GroupID(id), userIDs)
	m.finish(audit.Mutation{
		EventType:    audit.EventTypeGroupMembers,
		ResourceType: audit.ResourceTypeGroup,
		ResourceID:   id,
		Metadata:     map[string]interface{}{"user_ids": req.UserIDs, "members": len(members)},
		Err:          err,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, members)
}
