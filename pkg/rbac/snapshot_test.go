package rbac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "clinical", "vet", "tech")
	_, err := e.CreateUser(UserInput{ID: "u", Role: Some[RoleID]("vet"), GroupIDs: []GroupID{"clinical"}})
	require.NoError(t, err)

	snap := e.Snapshot()
	assert.Equal(t, SnapshotVersion, snap.Version)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var raw struct {
		Groups []map[string]json.RawMessage `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw.Groups, 1)
	assert.NotContains(t, raw.Groups[0], "permissions", "groups carry no matrix")

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored := newTestEnforcer(t)
	require.NoError(t, restored.Restore(decoded))

	assert.Equal(t, e.ListRoles(), restored.ListRoles())
	assert.Equal(t, e.ListGroups(), restored.ListGroups())
	assert.Equal(t, e.ListUsers(), restored.ListUsers())
	assert.Empty(t, restored.Verify())

	want, _ := e.ComputeEffectiveUserPermissions("u")
	got, err := restored.ComputeEffectiveUserPermissions("u")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRestore_RebuildsBackReferences(t *testing.T) {
	e := newTestEnforcer(t)
	err := e.Restore(Snapshot{
		Version: SnapshotVersion,
		Roles: []Role{
			{ID: "vet", Group: Some[GroupID]("stale")},
			{ID: "tech"},
		},
		Groups: []UserGroup{{ID: "clinical", RoleIDs: []RoleID{"tech", "tech"}}},
	})
	require.NoError(t, err)

	vet, _ := e.GetRole("vet")
	assert.False(t, vet.Group.IsSet())
	tech, _ := e.GetRole("tech")
	assert.True(t, tech.Group.Is("clinical"))

	clinical, _ := e.GetGroup("clinical")
	assert.Equal(t, []RoleID{"tech"}, clinical.RoleIDs)
	assert.Empty(t, e.Verify())
}

func TestRestore_RejectsInconsistentSnapshots(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
	}{
		{
			name: "role held by two groups",
			snap: Snapshot{
				Roles:  []Role{{ID: "vet"}},
				Groups: []UserGroup{{ID: "a", RoleIDs: []RoleID{"vet"}}, {ID: "b", RoleIDs: []RoleID{"vet"}}},
			},
		},
		{
			name: "duplicate role id",
			snap: Snapshot{Roles: []Role{{ID: "vet"}, {ID: "vet"}}},
		},
		{
			name: "duplicate user id",
			snap: Snapshot{Users: []User{{ID: "u"}, {ID: "u"}}},
		},
		{
			name: "empty group id",
			snap: Snapshot{Groups: []UserGroup{{Name: "nameless"}}},
		},
		{
			name: "future version",
			snap: Snapshot{Version: SnapshotVersion + 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnforcer(t)
			setupVetAndTech(t, e)
			before := e.Snapshot()

			err := e.Restore(tt.snap)
			assert.ErrorIs(t, err, ErrInconsistentSnapshot)
			assert.Equal(t, before, e.Snapshot(), "failed restore must not change state")
		})
	}
}

func TestVerify_ReportsViolations(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "clinical", "vet")

	// corrupt the published state directly to exercise the checker
	e.mu.Lock()
	vet, _ := e.state.roles.Role("vet")
	vet.Group = None[GroupID]()
	e.state.roles.Put(vet)
	tech, _ := e.state.roles.Role("tech")
	tech.Group = Some[GroupID]("nowhere")
	e.state.roles.Put(tech)
	e.mu.Unlock()

	violations := e.Verify()
	require.Len(t, violations, 2)
	reasons := []string{violations[0].Reason, violations[1].Reason}
	assert.Contains(t, reasons, "missing back-reference")
	assert.Contains(t, reasons, "back-reference to a group that does not hold the role")
}

type mapRoles map[RoleID]Role

func (m mapRoles) Role(id RoleID) (Role, bool) {
	r, ok := m[id]
	return r, ok
}

type mapGroups map[GroupID]UserGroup

func (m mapGroups) Group(id GroupID) (UserGroup, bool) {
	g, ok := m[id]
	return g, ok
}

func TestAggregator_PureFunctions(t *testing.T) {
	roles := mapRoles{
		"vet":  {ID: "vet", Permissions: matrixOf(grant{ModulePatients, []Verb{VerbRead, VerbWrite}})},
		"tech": {ID: "tech", Permissions: matrixOf(grant{ModuleLabs, []Verb{VerbCreate}})},
	}
	groups := mapGroups{
		"clinical": {ID: "clinical", RoleIDs: []RoleID{"tech", "X999"}},
	}

	assert.Equal(t, roles["tech"].Permissions, AggregateGroupPermissions(groups["clinical"], roles))
	assert.True(t, AggregateGroupPermissions(UserGroup{RoleIDs: []RoleID{"X999"}}, roles).IsEmpty())

	user := User{Role: Some[RoleID]("vet"), GroupIDs: []GroupID{"clinical", "gone"}}
	got := ComputeEffectiveUserPermissions(user, roles, groups)
	assert.Equal(t, roles["vet"].Permissions.Union(roles["tech"].Permissions), got)

	orphan := User{Role: Some[RoleID]("deleted"), GroupIDs: []GroupID{"gone"}}
	assert.NotPanics(t, func() {
		assert.True(t, ComputeEffectiveUserPermissions(orphan, roles, groups).IsEmpty())
	})
}
