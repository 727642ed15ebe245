package rbac

import (
	"bytes"
	"encoding/json"
	"time"
)

// RoleID identifies a Role
type RoleID string

// GroupID identifies a UserGroup
type GroupID string

// UserID identifies a User
type UserID string

// Ref is an optional reference to another entity. The zero value holds nothing.
type Ref[ID ~string] struct {
	id  ID
	set bool
}

// Some returns a reference holding id
func Some[ID ~string](id ID) Ref[ID] {
	return Ref[ID]{id: id, set: true}
}

// None returns an empty reference
func None[ID ~string]() Ref[ID] {
	return Ref[ID]{}
}

// Get returns the referenced id and whether one is held
func (r Ref[ID]) Get() (ID, bool) {
	return r.id, r.set
}

// IsSet reports whether the reference holds an id
func (r Ref[ID]) IsSet() bool {
	return r.set
}

// Is reports whether the reference holds exactly id
func (r Ref[ID]) Is(id ID) bool {
	return r.set && r.id == id
}

// MarshalJSON encodes the reference as a string or null
func (r Ref[ID]) MarshalJSON() ([]byte, error) {
	if !r.set {
		return []byte("null"), nil
	}
	return json.Marshal(string(r.id))
}

// UnmarshalJSON accepts a string or null. An empty string is treated as null.
func (r *Ref[ID]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Ref[ID]{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*r = Ref[ID]{}
		return nil
	}
	*r = Some(ID(s))
	return nil
}

// Role is a named bundle of permissions. Group is the back-reference to the
// one UserGroup that currently owns the role; it is maintained by the Enforcer
// and never written directly.
type Role struct {
	ID          RoleID           `json:"id"`
	Title       string           `json:"title"`
	Department  string           `json:"department"`
	Description string           `json:"description"`
	Permissions PermissionMatrix `json:"permissions"`
	Group       Ref[GroupID]     `json:"group_id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// UserGroup is a named collection of roles. Its permissions are always
// computed from RoleIDs and never stored.
type UserGroup struct {
	ID          GroupID   `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	RoleIDs     []RoleID  `json:"role_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasRole reports whether id is one of the group's roles
func (g UserGroup) HasRole(id RoleID) bool {
	for _, r := range g.RoleIDs {
		if r == id {
			return true
		}
	}
	return false
}

// User is a staff member with at most one direct role and any number of groups
type User struct {
	ID        UserID      `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	Title     string      `json:"title"`
	Role      Ref[RoleID] `json:"role_id"`
	GroupIDs  []GroupID   `json:"group_ids"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// InGroup reports whether the user lists id among its groups
func (u User) InGroup(id GroupID) bool {
	for _, g := range u.GroupIDs {
		if g == id {
			return true
		}
	}
	return false
}

// RoleInput carries the fields for a new role. ID is optional.
type RoleInput struct {
	ID          RoleID           `json:"id,omitempty"`
	Title       string           `json:"title"`
	Department  string           `json:"department"`
	Description string           `json:"description"`
	Permissions PermissionMatrix `json:"permissions"`
}

// RolePatch replaces the non-nil fields of a role. Group membership is not
// part of a patch; it only changes through SaveGroup, DeleteGroup and DeleteRole.
type RolePatch struct {
	Title       *string           `json:"title,omitempty"`
	Department  *string           `json:"department,omitempty"`
	Description *string           `json:"description,omitempty"`
	Permissions *PermissionMatrix `json:"permissions,omitempty"`
}

// GroupInput is the payload of SaveGroup. An empty ID creates a new group.
// MemberUserIDs are added to the group's membership and never removed.
type GroupInput struct {
	ID            GroupID  `json:"id,omitempty"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Color         string   `json:"color"`
	RoleIDs       []RoleID `json:"role_ids"`
	MemberUserIDs []UserID `json:"member_user_ids,omitempty"`
}

// UserInput carries the writable fields of a user. ID is only honoured on create.
type UserInput struct {
	ID        UserID      `json:"id,omitempty"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	Title     string      `json:"title"`
	Role      Ref[RoleID] `json:"role_id"`
	GroupIDs  []GroupID   `json:"group_ids"`
}
