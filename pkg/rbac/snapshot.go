package rbac

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// SnapshotVersion is the current snapshot format version
const SnapshotVersion = 1

// Snapshot is a serialisable copy of the whole model. Groups carry only
// their role ids; group permissions are recomputed after a restore.
type Snapshot struct {
	Version int         `json:"version"`
	TakenAt time.Time   `json:"taken_at"`
	Roles   []Role      `json:"roles"`
	Groups  []UserGroup `json:"groups"`
	Users   []User      `json:"users"`
}

// Snapshot exports the current state as a consistent cut
func (e *Enforcer) Snapshot() Snapshot {
	var out Snapshot
	e.view(func(st *state) {
		out = Snapshot{
			Version: SnapshotVersion,
			TakenAt: e.now(),
			Roles:   st.roles.List(),
			Groups:  st.groups.List(),
			Users:   st.users.List(),
		}
	})
	return out
}

// Restore replaces the current state with snap. Group role lists are
// authoritative and role back-references are rebuilt from them. A role
// listed by more than one group, or a repeated id, rejects the snapshot
// and leaves the current state untouched. Dangling references are kept.
func (e *Enforcer) Restore(snap Snapshot) error {
	if snap.Version > SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInconsistentSnapshot, snap.Version)
	}

	next := newState()
	for _, r := range snap.Roles {
		if r.ID == "" {
			return fmt.Errorf("%w: role with empty id", ErrInconsistentSnapshot)
		}
		if _, dup := next.roles.Role(r.ID); dup {
			return fmt.Errorf("%w: duplicate role %s", ErrInconsistentSnapshot, r.ID)
		}
		r.Group = None[GroupID]()
		next.roles.Put(r)
	}

	owners := make(map[RoleID]GroupID)
	for _, g := range snap.Groups {
		if g.ID == "" {
			return fmt.Errorf("%w: group with empty id", ErrInconsistentSnapshot)
		}
		if _, dup := next.groups.Group(g.ID); dup {
			return fmt.Errorf("%w: duplicate group %s", ErrInconsistentSnapshot, g.ID)
		}
		g.RoleIDs = dedupe(g.RoleIDs)
		for _, rid := range g.RoleIDs {
			if other, claimed := owners[rid]; claimed {
				return fmt.Errorf("%w: role %s is held by groups %s and %s", ErrInconsistentSnapshot, rid, other, g.ID)
			}
			owners[rid] = g.ID
			if role, ok := next.roles.Role(rid); ok {
				role.Group = Some(g.ID)
				next.roles.Put(role)
			}
		}
		next.groups.Put(g)
	}

	for _, u := range snap.Users {
		if u.ID == "" {
			return fmt.Errorf("%w: user with empty id", ErrInconsistentSnapshot)
		}
		if _, dup := next.users.User(u.ID); dup {
			return fmt.Errorf("%w: duplicate user %s", ErrInconsistentSnapshot, u.ID)
		}
		u.GroupIDs = dedupe(u.GroupIDs)
		next.users.Put(u)
	}

	e.mu.Lock()
	e.state = next
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"roles":  next.roles.Len(),
		"groups": next.groups.Len(),
		"users":  next.users.Len(),
	}).Debug("state restored from snapshot")
	return nil
}

// Violation describes a broken role/group ownership link
type Violation struct {
	RoleID  RoleID
	GroupID GroupID
	Reason  string
}

func (v Violation) Error() string {
	return fmt.Sprintf("role %s / group %s: %s", v.RoleID, v.GroupID, v.Reason)
}

// Verify checks role exclusivity and back-reference agreement over the
// current state and returns every violation found.
func (e *Enforcer) Verify() []Violation {
	var out []Violation
	e.view(func(st *state) {
		owners := make(map[RoleID]GroupID)
		for _, g := range st.groups.List() {
			for _, rid := range g.RoleIDs {
				if other, claimed := owners[rid]; claimed {
					out = append(out, Violation{RoleID: rid, GroupID: g.ID, Reason: "also held by group " + string(other)})
					continue
				}
				owners[rid] = g.ID
			}
		}
		for _, r := range st.roles.List() {
			owner, owned := owners[r.ID]
			ref, set := r.Group.Get()
			switch {
			case owned && !set:
				out = append(out, Violation{RoleID: r.ID, GroupID: owner, Reason: "missing back-reference"})
			case !owned && set:
				out = append(out, Violation{RoleID: r.ID, GroupID: ref, Reason: "back-reference to a group that does not hold the role"})
			case owned && ref != owner:
				out = append(out, Violation{RoleID: r.ID, GroupID: owner, Reason: "back-reference points at group " + string(ref)})
			}
		}
	})
	return out
}
