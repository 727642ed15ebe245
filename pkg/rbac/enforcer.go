package rbac

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// state is the full access-control model. The Enforcer never mutates a
// published state; writers work on a clone and swap it in.
type state struct {
	roles  *RoleStore
	groups *GroupStore
	users  *UserStore
}

func newState() *state {
	return &state{
		roles:  NewRoleStore(),
		groups: NewGroupStore(),
		users:  NewUserStore(),
	}
}

func (s *state) clone() *state {
	return &state{
		roles:  s.roles.Clone(),
		groups: s.groups.Clone(),
		users:  s.users.Clone(),
	}
}

// Enforcer owns the role, group and user stores and applies every mutation
// together with its cascades as a single atomic step.
type Enforcer struct {
	mu    sync.RWMutex
	state *state

	log   logrus.FieldLogger
	now   func() time.Time
	newID func() string
}

// Option configures an Enforcer
type Option func(*Enforcer)

// WithLogger sets the logger used for cascade debug output
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Enforcer) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock sets the timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Enforcer) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator sets the function used to mint ids for new entities
func WithIDGenerator(newID func() string) Option {
	return func(e *Enforcer) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// NewEnforcer creates an Enforcer over empty stores
func NewEnforcer(opts ...Option) *Enforcer {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Enforcer{
		state: newState(),
		log:   discard,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Enforcer) view(fn func(st *state)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.state)
}

func (e *Enforcer) update(fn func(tx *state, now time.Time) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.clone()
	if err := fn(next, e.now()); err != nil {
		return err
	}
	e.state = next
	return nil
}

// Stats is a point-in-time count of stored entities
type Stats struct {
	Roles  int `json:"roles"`
	Groups int `json:"groups"`
	Users  int `json:"users"`
}

// Stats returns the current entity counts
func (e *Enforcer) Stats() Stats {
	var out Stats
	e.view(func(st *state) {
		out = Stats{Roles: st.roles.Len(), Groups: st.groups.Len(), Users: st.users.Len()}
	})
	return out
}

// ListRoles returns every role
func (e *Enforcer) ListRoles() []Role {
	var out []Role
	e.view(func(st *state) { out = st.roles.List() })
	return out
}

// GetRole returns a single role
func (e *Enforcer) GetRole(id RoleID) (Role, error) {
	var (
		role Role
		ok   bool
	)
	e.view(func(st *state) { role, ok = st.roles.Role(id) })
	if !ok {
		return Role{}, roleNotFound(id)
	}
	return role, nil
}

// ListGroups returns every group
func (e *Enforcer) ListGroups() []UserGroup {
	var out []UserGroup
	e.view(func(st *state) { out = st.groups.List() })
	return out
}

// GetGroup returns a single group
func (e *Enforcer) GetGroup(id GroupID) (UserGroup, error) {
	var (
		group UserGroup
		ok    bool
	)
	e.view(func(st *state) { group, ok = st.groups.Group(id) })
	if !ok {
		return UserGroup{}, groupNotFound(id)
	}
	return group, nil
}

// ListUsers returns every user
func (e *Enforcer) ListUsers() []User {
	var out []User
	e.view(func(st *state) { out = st.users.List() })
	return out
}

// GetUser returns a single user
func (e *Enforcer) GetUser(id UserID) (User, error) {
	var (
		user User
		ok   bool
	)
	e.view(func(st *state) { user, ok = st.users.User(id) })
	if !ok {
		return User{}, userNotFound(id)
	}
	return user, nil
}

// AggregateGroupPermissions computes the group's permissions from its current roles
func (e *Enforcer) AggregateGroupPermissions(id GroupID) (PermissionMatrix, error) {
	var (
		out PermissionMatrix
		ok  bool
	)
	e.view(func(st *state) {
		var group UserGroup
		if group, ok = st.groups.Group(id); ok {
			out = AggregateGroupPermissions(group, st.roles)
		}
	})
	if !ok {
		return PermissionMatrix{}, groupNotFound(id)
	}
	return out, nil
}

// ComputeEffectiveUserPermissions computes the user's direct and group-derived permissions
func (e *Enforcer) ComputeEffectiveUserPermissions(id UserID) (PermissionMatrix, error) {
	var (
		out PermissionMatrix
		ok  bool
	)
	e.view(func(st *state) {
		var user User
		if user, ok = st.users.User(id); ok {
			out = ComputeEffectiveUserPermissions(user, st.roles, st.groups)
		}
	})
	if !ok {
		return PermissionMatrix{}, userNotFound(id)
	}
	return out, nil
}

// GroupMembers returns the users that list the group among their groups
func (e *Enforcer) GroupMembers(id GroupID) ([]User, error) {
	var (
		out []User
		ok  bool
	)
	e.view(func(st *state) {
		if _, ok = st.groups.Group(id); !ok {
			return
		}
		for _, u := range st.users.List() {
			if u.InGroup(id) {
				out = append(out, u)
			}
		}
	})
	if !ok {
		return nil, groupNotFound(id)
	}
	return out, nil
}

// RoleHolders returns the users whose direct role is id
func (e *Enforcer) RoleHolders(id RoleID) ([]User, error) {
	var (
		out []User
		ok  bool
	)
	e.view(func(st *state) {
		if _, ok = st.roles.Role(id); !ok {
			return
		}
		for _, u := range st.users.List() {
			if u.Role.Is(id) {
				out = append(out, u)
			}
		}
	})
	if !ok {
		return nil, roleNotFound(id)
	}
	return out, nil
}

// CreateRole adds a role with no group. A missing id is generated.
func (e *Enforcer) CreateRole(in RoleInput) (Role, error) {
	var created Role
	err := e.update(func(tx *state, now time.Time) error {
		id := in.ID
		if id == "" {
			id = RoleID(e.newID())
		}
		if _, exists := tx.roles.Role(id); exists {
			return fmt.Errorf("failed to create role %s: %w", id, ErrAlreadyExists)
		}
		created = Role{
			ID:          id,
			Title:       in.Title,
			Department:  in.Department,
			Description: in.Description,
			Permissions: in.Permissions,
			Group:       None[GroupID](),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		tx.roles.Put(created)
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return created, nil
}

// UpdateRole applies the non-nil fields of patch. The group back-reference is untouched.
func (e *Enforcer) UpdateRole(id RoleID, patch RolePatch) (Role, error) {
	return e.mutateRole(id, func(r *Role) error {
		if patch.Title != nil {
			r.Title = *patch.Title
		}
		if patch.Department != nil {
			r.Department = *patch.Department
		}
		if patch.Description != nil {
			r.Description = *patch.Description
		}
		if patch.Permissions != nil {
			r.Permissions = *patch.Permissions
		}
		return nil
	})
}

// SetRolePermissions replaces the role's matrix wholesale
func (e *Enforcer) SetRolePermissions(id RoleID, m PermissionMatrix) (Role, error) {
	return e.mutateRole(id, func(r *Role) error {
		r.Permissions = m
		return nil
	})
}

// EditRolePermissions applies a single permission-editor toggle to the role
func (e *Enforcer) EditRolePermissions(id RoleID, edit PermissionEdit) (Role, error) {
	if err := edit.Validate(); err != nil {
		return Role{}, err
	}
	return e.mutateRole(id, func(r *Role) error {
		edit.Apply(&r.Permissions)
		return nil
	})
}

func (e *Enforcer) mutateRole(id RoleID, fn func(r *Role) error) (Role, error) {
	var updated Role
	err := e.update(func(tx *state, now time.Time) error {
		role, ok := tx.roles.Role(id)
		if !ok {
			return roleNotFound(id)
		}
		if err := fn(&role); err != nil {
			return err
		}
		role.UpdatedAt = now
		tx.roles.Put(role)
		updated = role
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return updated, nil
}

// DeleteRole removes the role and detaches it from its group. Users that
// hold the role directly keep a dangling reference.
func (e *Enforcer) DeleteRole(id RoleID) error {
	return e.update(func(tx *state, now time.Time) error {
		if _, ok := tx.roles.Role(id); !ok {
			return roleNotFound(id)
		}
		for _, g := range tx.groups.List() {
			if !g.HasRole(id) {
				continue
			}
			g.RoleIDs = without(g.RoleIDs, id)
			g.UpdatedAt = now
			tx.groups.Put(g)
			e.log.WithFields(logrus.Fields{"role_id": id, "group_id": g.ID}).Debug("role detached from group on delete")
		}
		tx.roles.Remove(id)
		return nil
	})
}

// SaveGroup creates or replaces a group. Roles listed in in.RoleIDs are moved
// out of whichever group currently owns them, roles dropped from the group
// lose their back-reference, and the users in in.MemberUserIDs are added as
// members. Unknown role and user ids are ignored.
func (e *Enforcer) SaveGroup(in GroupInput) (UserGroup, error) {
	var saved UserGroup
	err := e.update(func(tx *state, now time.Time) error {
		id := in.ID
		if id == "" {
			id = GroupID(e.newID())
		}

		group, exists := tx.groups.Group(id)
		if !exists {
			group = UserGroup{ID: id, CreatedAt: now}
		}
		previous := group.RoleIDs

		roleIDs := filterIDs(in.RoleIDs, func(rid RoleID) bool {
			_, ok := tx.roles.Role(rid)
			return ok
		})

		// detach from the current owners first
		for _, rid := range roleIDs {
			owner, owned := tx.groups.OwnerOf(rid)
			if !owned || owner == id {
				continue
			}
			loser, _ := tx.groups.Group(owner)
			loser.RoleIDs = without(loser.RoleIDs, rid)
			loser.UpdatedAt = now
			tx.groups.Put(loser)
			e.log.WithFields(logrus.Fields{"role_id": rid, "from_group": owner, "to_group": id}).Debug("role moved between groups")
		}

		keep := make(map[RoleID]struct{}, len(roleIDs))
		for _, rid := range roleIDs {
			keep[rid] = struct{}{}
		}
		for _, rid := range previous {
			if _, ok := keep[rid]; ok {
				continue
			}
			role, ok := tx.roles.Role(rid)
			if !ok || !role.Group.Is(id) {
				continue
			}
			role.Group = None[GroupID]()
			role.UpdatedAt = now
			tx.roles.Put(role)
			e.log.WithFields(logrus.Fields{"role_id": rid, "group_id": id}).Debug("role removed from group")
		}

		group.Name = in.Name
		group.Description = in.Description
		group.Color = in.Color
		group.RoleIDs = roleIDs
		group.UpdatedAt = now
		tx.groups.Put(group)

		for _, rid := range roleIDs {
			role, _ := tx.roles.Role(rid)
			if role.Group.Is(id) {
				continue
			}
			role.Group = Some(id)
			role.UpdatedAt = now
			tx.roles.Put(role)
		}

		for _, uid := range dedupe(in.MemberUserIDs) {
			user, ok := tx.users.User(uid)
			if !ok || user.InGroup(id) {
				continue
			}
			user.GroupIDs = append(user.GroupIDs, id)
			user.UpdatedAt = now
			tx.users.Put(user)
		}

		saved = group
		return nil
	})
	if err != nil {
		return UserGroup{}, err
	}
	return saved, nil
}

// DeleteGroup removes the group and clears the back-reference on its roles.
// The roles survive; users keep a dangling membership.
func (e *Enforcer) DeleteGroup(id GroupID) error {
	return e.update(func(tx *state, now time.Time) error {
		if _, ok := tx.groups.Group(id); !ok {
			return groupNotFound(id)
		}
		for _, role := range tx.roles.List() {
			if !role.Group.Is(id) {
				continue
			}
			role.Group = None[GroupID]()
			role.UpdatedAt = now
			tx.roles.Put(role)
			e.log.WithFields(logrus.Fields{"role_id": role.ID, "group_id": id}).Debug("role back-reference cleared on group delete")
		}
		tx.groups.Remove(id)
		return nil
	})
}

// UpdateGroupMembers makes userIDs the exact membership of the group: listed
// users gain the group and every other user loses it. Roles are not touched.
func (e *Enforcer) UpdateGroupMembers(id GroupID, userIDs []UserID) ([]User, error) {
	var members []User
	err := e.update(func(tx *state, now time.Time) error {
		if _, ok := tx.groups.Group(id); !ok {
			return groupNotFound(id)
		}
		wanted := make(map[UserID]struct{}, len(userIDs))
		for _, uid := range userIDs {
			wanted[uid] = struct{}{}
		}
		members = members[:0]
		for _, user := range tx.users.List() {
			_, want := wanted[user.ID]
			has := user.InGroup(id)
			switch {
			case want && !has:
				user.GroupIDs = append(user.GroupIDs, id)
			case !want && has:
				user.GroupIDs = without(user.GroupIDs, id)
			}
			if want != has {
				user.UpdatedAt = now
				tx.users.Put(user)
			}
			if want {
				members = append(members, user)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// CreateUser adds a user. Unknown role and group references are dropped.
func (e *Enforcer) CreateUser(in UserInput) (User, error) {
	var created User
	err := e.update(func(tx *state, now time.Time) error {
		id := in.ID
		if id == "" {
			id = UserID(e.newID())
		}
		if _, exists := tx.users.User(id); exists {
			return fmt.Errorf("failed to create user %s: %w", id, ErrAlreadyExists)
		}
		created = User{ID: id, CreatedAt: now}
		applyUserInput(tx, &created, in)
		created.UpdatedAt = now
		tx.users.Put(created)
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return created, nil
}

// UpdateUser replaces the user's profile, direct role and groups
func (e *Enforcer) UpdateUser(id UserID, in UserInput) (User, error) {
	var updated User
	err := e.update(func(tx *state, now time.Time) error {
		user, ok := tx.users.User(id)
		if !ok {
			return userNotFound(id)
		}
		applyUserInput(tx, &user, in)
		user.UpdatedAt = now
		tx.users.Put(user)
		updated = user
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

// DeleteUser removes the user. Nothing else references users, so there is no cascade.
func (e *Enforcer) DeleteUser(id UserID) error {
	return e.update(func(tx *state, _ time.Time) error {
		if !tx.users.Remove(id) {
			return userNotFound(id)
		}
		return nil
	})
}

func applyUserInput(tx *state, u *User, in UserInput) {
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	u.Email = in.Email
	u.Phone = in.Phone
	u.Title = in.Title

	u.Role = None[RoleID]()
	if rid, ok := in.Role.Get(); ok {
		if _, exists := tx.roles.Role(rid); exists {
			u.Role = Some(rid)
		}
	}
	u.GroupIDs = filterIDs(in.GroupIDs, func(gid GroupID) bool {
		_, ok := tx.groups.Group(gid)
		return ok
	})
}

func without[ID ~string](values []ID, drop ID) []ID {
	out := make([]ID, 0, len(values))
	for _, v := range values {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}
