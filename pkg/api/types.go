package api

import (
	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

// CatalogResponse lists the closed module and verb sets
type CatalogResponse struct {
	Modules []rbac.Module `json:"modules"`
	Verbs   []rbac.Verb   `json:"verbs"`
}

// CreateRoleRequest is the body of POST /rbac/roles
type CreateRoleRequest struct {
	ID          string                `json:"id" validate:"omitempty,max=64"`
	Title       string                `json:"title" validate:"required,max=120"`
	Department  string                `json:"department" validate:"max=120"`
	Description string                `json:"description" validate:"max=1000"`
	Permissions rbac.PermissionMatrix `json:"permissions"`
}

func (r CreateRoleRequest) input() rbac.RoleInput {
	return rbac.RoleInput{
		ID:          rbac.RoleID(r.ID),
		Title:       r.Title,
		Department:  r.Department,
		Description: r.Description,
		Permissions: r.Permissions,
	}
}

// UpdateRoleRequest is the body of PUT /rbac/roles/{id}. Omitted fields are kept.
type UpdateRoleRequest struct {
	Title       *string                `json:"title" validate:"omitempty,min=1,max=120"`
	Department  *string                `json:"department" validate:"omitempty,max=120"`
	Description *string                `json:"description" validate:"omitempty,max=1000"`
	Permissions *rbac.PermissionMatrix `json:"permissions"`
}

func (r UpdateRoleRequest) patch() rbac.RolePatch {
	return rbac.RolePatch{
		Title:       r.Title,
		Department:  r.Department,
		Description: r.Description,
		Permissions: r.Permissions,
	}
}

// SetPermissionsRequest is the body of PUT /rbac/roles/{id}/permissions
type SetPermissionsRequest struct {
	Permissions rbac.PermissionMatrix `json:"permissions"`
}

// SaveGroupRequest is the body of POST and PUT on groups
type SaveGroupRequest struct {
	ID            string   `json:"id" validate:"omitempty,max=64"`
	Name          string   `json:"name" validate:"required,max=120"`
	Description   string   `json:"description" validate:"max=1000"`
	Color         string   `json:"color" validate:"omitempty,hexcolor"`
	RoleIDs       []string `json:"role_ids" validate:"dive,required"`
	MemberUserIDs []string `json:"member_user_ids" validate:"dive,required"`
}

func (r SaveGroupRequest) input() rbac.GroupInput {
	in := rbac.GroupInput{
		ID:          rbac.GroupID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
	}
	for _, id := range r.RoleIDs {
		in.RoleIDs = append(in.RoleIDs, rbac.RoleID(id))
	}
	for _, id := range r.MemberUserIDs {
		in.MemberUserIDs = append(in.MemberUserIDs, rbac.UserID(id))
	}
	return in
}

// GroupResponse is a group with its aggregated permissions. The permissions
// are computed on every read and never stored.
type GroupResponse struct {
	rbac.UserGroup
	Permissions rbac.PermissionMatrix `json:"permissions"`
}

// UpdateMembersRequest is the body of PUT /rbac/groups/{id}/members
type UpdateMembersRequest struct {
	UserIDs []string `json:"user_ids" validate:"dive,required"`
}

// UserRequest is the body of POST and PUT on users
type UserRequest struct {
	ID        string   `json:"id" validate:"omitempty,max=64"`
	FirstName string   `json:"first_name" validate:"required,max=120"`
	LastName  string   `json:"last_name" validate:"required,max=120"`
	Email     string   `json:"email" validate:"omitempty,email"`
	Phone     string   `json:"phone" validate:"max=40"`
	Title     string   `json:"title" validate:"max=120"`
	RoleID    string   `json:"role_id"`
	GroupIDs  []string `json:"group_ids" validate:"dive,required"`
}

func (r UserRequest) input() rbac.UserInput {
	in := rbac.UserInput{
		ID:        rbac.UserID(r.ID),
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		Title:     r.Title,
	}
	if r.RoleID != "" {
		in.Role = rbac.Some(rbac.RoleID(r.RoleID))
	}
	for _, id := range r.GroupIDs {
		in.GroupIDs = append(in.GroupIDs, rbac.GroupID(id))
	}
	return in
}

// PermissionsResponse wraps a computed matrix
type PermissionsResponse struct {
	ID          string                `json:"id"`
	Permissions rbac.PermissionMatrix `json:"permissions"`
}
