package rbac

import (
	"sort"
)

// RoleLookup resolves role ids to live roles
type RoleLookup interface {
	Role(id RoleID) (Role, bool)
}

// GroupLookup resolves group ids to live groups
type GroupLookup interface {
	Group(id GroupID) (UserGroup, bool)
}

// RoleStore holds roles by id. It is not safe for concurrent use; the
// Enforcer serialises access to it.
type RoleStore struct {
	roles map[RoleID]Role
}

// NewRoleStore creates an empty role store
func NewRoleStore() *RoleStore {
	return &RoleStore{roles: make(map[RoleID]Role)}
}

// Role returns the role with the given id
func (s *RoleStore) Role(id RoleID) (Role, bool) {
	r, ok := s.roles[id]
	return r, ok
}

// List returns all roles ordered by title, then id
func (s *RoleStore) List() []Role {
	out := make([]Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Put inserts or replaces a role
func (s *RoleStore) Put(r Role) {
	s.roles[r.ID] = r
}

// Remove deletes a role and reports whether it existed
func (s *RoleStore) Remove(id RoleID) bool {
	if _, ok := s.roles[id]; !ok {
		return false
	}
	delete(s.roles, id)
	return true
}

// Len returns the number of roles
func (s *RoleStore) Len() int { return len(s.roles) }

// Clone returns an independent copy of the store
func (s *RoleStore) Clone() *RoleStore {
	cp := &RoleStore{roles: make(map[RoleID]Role, len(s.roles))}
	for id, r := range s.roles {
		cp.roles[id] = r
	}
	return cp
}

// GroupStore holds user groups by id
type GroupStore struct {
	groups map[GroupID]UserGroup
}

// NewGroupStore creates an empty group store
func NewGroupStore() *GroupStore {
	return &GroupStore{groups: make(map[GroupID]UserGroup)}
}

// Group returns a copy of the group with the given id
func (s *GroupStore) Group(id GroupID) (UserGroup, bool) {
	g, ok := s.groups[id]
	if !ok {
		return UserGroup{}, false
	}
	return cloneGroup(g), true
}

// List returns all groups ordered by name, then id
func (s *GroupStore) List() []UserGroup {
	out := make([]UserGroup, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, cloneGroup(g))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Put inserts or replaces a group
func (s *GroupStore) Put(g UserGroup) {
	s.groups[g.ID] = cloneGroup(g)
}

// Remove deletes a group and reports whether it existed
func (s *GroupStore) Remove(id GroupID) bool {
	if _, ok := s.groups[id]; !ok {
		return false
	}
	delete(s.groups, id)
	return true
}

// Len returns the number of groups
func (s *GroupStore) Len() int { return len(s.groups) }

// OwnerOf returns the id of the group whose role list contains roleID
func (s *GroupStore) OwnerOf(roleID RoleID) (GroupID, bool) {
	for id, g := range s.groups {
		if g.HasRole(roleID) {
			return id, true
		}
	}
	return "", false
}

// Clone returns an independent copy of the store
func (s *GroupStore) Clone() *GroupStore {
	cp := &GroupStore{groups: make(map[GroupID]UserGroup, len(s.groups))}
	for id, g := range s.groups {
		cp.groups[id] = cloneGroup(g)
	}
	return cp
}

// UserStore holds users by id
type UserStore struct {
	users map[UserID]User
}

// NewUserStore creates an empty user store
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[UserID]User)}
}

// User returns a copy of the user with the given id
func (s *UserStore) User(id UserID) (User, bool) {
	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return cloneUser(u), true
}

// List returns all users ordered by last name, first name, then id
func (s *UserStore) List() []User {
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sortUsers(out)
	return out
}

// Put inserts or replaces a user
func (s *UserStore) Put(u User) {
	s.users[u.ID] = cloneUser(u)
}

// Remove deletes a user and reports whether it existed
func (s *UserStore) Remove(id UserID) bool {
	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	return true
}

// Len returns the number of users
func (s *UserStore) Len() int { return len(s.users) }

// Clone returns an independent copy of the store
func (s *UserStore) Clone() *UserStore {
	cp := &UserStore{users: make(map[UserID]User, len(s.users))}
	for id, u := range s.users {
		cp.users[id] = cloneUser(u)
	}
	return cp
}

func sortUsers(users []User) {
	sort.Slice(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
}

func cloneGroup(g UserGroup) UserGroup {
	g.RoleIDs = append([]RoleID(nil), g.RoleIDs...)
	return g
}

func cloneUser(u User) User {
	u.GroupIDs = append([]GroupID(nil), u.GroupIDs...)
	return u
}

// dedupe drops repeated ids, keeping first-occurrence order
func dedupe[ID ~string](values []ID) []ID {
	seen := make(map[ID]struct{}, len(values))
	out := make([]ID, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// filterIDs dedupes values and drops ids that do not exist
func filterIDs[ID ~string](values []ID, exists func(ID) bool) []ID {
	out := dedupe(values)
	kept := out[:0]
	for _, v := range out {
		if exists(v) {
			kept = append(kept, v)
		}
	}
	return kept
}
