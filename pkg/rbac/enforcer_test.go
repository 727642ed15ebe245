package rbac

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	seq := 0
	return NewEnforcer(
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("gen-%d", seq)
		}),
	)
}

func mustCreateRole(t *testing.T, e *Enforcer, id RoleID, grants ...grant) Role {
	t.Helper()
	role, err := e.CreateRole(RoleInput{ID: id, Title: string(id), Permissions: matrixOf(grants...)})
	require.NoError(t, err)
	return role
}

func mustSaveGroup(t *testing.T, e *Enforcer, id GroupID, roles ...RoleID) UserGroup {
	t.Helper()
	group, err := e.SaveGroup(GroupInput{ID: id, Name: string(id), RoleIDs: roles})
	require.NoError(t, err)
	return group
}

// vet and tech from the clinic walkthrough
func setupVetAndTech(t *testing.T, e *Enforcer) {
	t.Helper()
	mustCreateRole(t, e, "vet", grant{ModulePatients, []Verb{VerbRead, VerbWrite}})
	mustCreateRole(t, e, "tech",
		grant{ModulePatients, []Verb{VerbRead}},
		grant{ModuleLabs, []Verb{VerbCreate}},
	)
}

func TestEnforcer_GroupAggregation(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "clinical", "vet", "tech")

	perms, err := e.AggregateGroupPermissions("clinical")
	require.NoError(t, err)

	expected := matrixOf(
		grant{ModulePatients, []Verb{VerbRead, VerbWrite}},
		grant{ModuleLabs, []Verb{VerbCreate}},
	)
	assert.Equal(t, expected, perms)
	assert.Equal(t, map[string][]string{
		"patients": {"read", "write"},
		"labs":     {"create"},
	}, perms.Grants())
}

func TestEnforcer_SaveGroupStealsRole(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "clinical", "vet", "tech")

	admin := mustSaveGroup(t, e, "admin", "tech")
	assert.Equal(t, []RoleID{"tech"}, admin.RoleIDs)

	clinical, err := e.GetGroup("clinical")
	require.NoError(t, err)
	assert.Equal(t, []RoleID{"vet"}, clinical.RoleIDs)

	tech, err := e.GetRole("tech")
	require.NoError(t, err)
	assert.True(t, tech.Group.Is("admin"))

	vet, err := e.GetRole("vet")
	require.NoError(t, err)
	assert.True(t, vet.Group.Is("clinical"))

	assert.Empty(t, e.Verify())
}

func TestEnforcer_SaveGroupReplacesRoles(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "clinical", "vet", "tech")

	clinical := mustSaveGroup(t, e, "clinical", "tech")
	assert.Equal(t, []RoleID{"tech"}, clinical.RoleIDs)

	vet, err := e.GetRole("vet")
	require.NoError(t, err)
	assert.False(t, vet.Group.IsSet(), "dropped role loses its back-reference")

	assert.Empty(t, e.Verify())
}

func TestEnforcer_SaveGroupInput(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	u1, err := e.CreateUser(UserInput{ID: "u1", FirstName: "Ana"})
	require.NoError(t, err)

	group, err := e.SaveGroup(GroupInput{
		Name:          "Night shift",
		Color:         "#336699",
		RoleIDs:       []RoleID{"tech", "ghost", "tech", "vet"},
		MemberUserIDs: []UserID{u1.ID, "nobody", u1.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, GroupID("gen-1"), group.ID)
	assert.Equal(t, []RoleID{"tech", "vet"}, group.RoleIDs, "unknown ids dropped, duplicates collapsed")
	assert.Equal(t, "#336699", group.Color)
	assert.Equal(t, testNow, group.CreatedAt)

	user, err := e.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, []GroupID{group.ID}, user.GroupIDs)

	// member additions are additive only
	_, err = e.SaveGroup(GroupInput{ID: group.ID, Name: "Night shift", RoleIDs: []RoleID{"vet"}})
	require.NoError(t, err)
	user, err = e.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, []GroupID{group.ID}, user.GroupIDs)

	tech, err := e.GetRole("tech")
	require.NoError(t, err)
	assert.False(t, tech.Group.IsSet())
}

func TestEnforcer_DeleteRoleCascade(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "admin", "tech")

	require.NoError(t, e.DeleteRole("tech"))

	admin, err := e.GetGroup("admin")
	require.NoError(t, err)
	assert.Empty(t, admin.RoleIDs)

	_, err = e.GetRole("tech")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, g := range e.ListGroups() {
		assert.False(t, g.HasRole("tech"))
	}
	assert.Empty(t, e.Verify())
}

func TestEnforcer_DeleteGroupCascade(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "clinical", "vet", "tech")
	_, err := e.CreateUser(UserInput{ID: "u1", GroupIDs: []GroupID{"clinical"}})
	require.NoError(t, err)

	require.NoError(t, e.DeleteGroup("clinical"))

	assert.Len(t, e.ListRoles(), 2, "roles survive their group")
	for _, r := range e.ListRoles() {
		assert.False(t, r.Group.IsSet(), "role %s still points at deleted group", r.ID)
	}

	user, err := e.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, []GroupID{"clinical"}, user.GroupIDs, "membership is left dangling")

	perms, err := e.ComputeEffectiveUserPermissions("u1")
	require.NoError(t, err)
	assert.True(t, perms.IsEmpty())
}

func TestEnforcer_EffectiveUserPermissions(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "clinical", "tech")

	_, err := e.CreateUser(UserInput{
		ID:       "u",
		Role:     Some[RoleID]("vet"),
		GroupIDs: []GroupID{"clinical"},
	})
	require.NoError(t, err)

	perms, err := e.ComputeEffectiveUserPermissions("u")
	require.NoError(t, err)

	vet, _ := e.GetRole("vet")
	clinical, _ := e.AggregateGroupPermissions("clinical")
	assert.Equal(t, vet.Permissions.Union(clinical), perms)
	assert.True(t, perms.Get(ModulePatients, VerbWrite))
	assert.True(t, perms.Get(ModuleLabs, VerbCreate))
	assert.False(t, perms.Get(ModuleLabs, VerbRead))
}

func TestEnforcer_DanglingReferences(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "clinical", "tech")
	_, err := e.CreateUser(UserInput{ID: "u", Role: Some[RoleID]("vet"), GroupIDs: []GroupID{"clinical"}})
	require.NoError(t, err)

	require.NoError(t, e.DeleteRole("vet"))
	require.NoError(t, e.DeleteGroup("clinical"))

	user, err := e.GetUser("u")
	require.NoError(t, err)
	assert.True(t, user.Role.Is("vet"))

	perms, err := e.ComputeEffectiveUserPermissions("u")
	require.NoError(t, err)
	assert.True(t, perms.IsEmpty())
}

func TestEnforcer_GhostGroup(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	require.NoError(t, e.Restore(Snapshot{
		Version: SnapshotVersion,
		Roles:   e.ListRoles(),
		Groups: []UserGroup{
			{ID: "ghost", Name: "Ghost", RoleIDs: []RoleID{"X999"}},
			{ID: "mixed", Name: "Mixed", RoleIDs: []RoleID{"X998", "tech"}},
		},
	}))

	perms, err := e.AggregateGroupPermissions("ghost")
	require.NoError(t, err)
	assert.Equal(t, EmptyMatrix(), perms)

	perms, err = e.AggregateGroupPermissions("mixed")
	require.NoError(t, err)
	tech, _ := e.GetRole("tech")
	assert.Equal(t, tech.Permissions, perms)
	assert.True(t, tech.Group.Is("mixed"))
}

func TestEnforcer_RoleEditsPropagate(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "clinical", "vet", "tech")

	_, err := e.SetRolePermissions("tech", EmptyMatrix())
	require.NoError(t, err)
	perms, err := e.AggregateGroupPermissions("clinical")
	require.NoError(t, err)
	assert.False(t, perms.Get(ModuleLabs, VerbCreate))

	labs := ModuleLabs
	_, err = e.EditRolePermissions("vet", PermissionEdit{Module: &labs, Value: true})
	require.NoError(t, err)
	perms, err = e.AggregateGroupPermissions("clinical")
	require.NoError(t, err)
	assert.Equal(t, Verbs(), perms.ModuleVerbs(ModuleLabs))
}

func TestEnforcer_UpdateRole(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "clinical", "vet")

	title := "Senior Vet"
	updated, err := e.UpdateRole("vet", RolePatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Senior Vet", updated.Title)
	assert.True(t, updated.Permissions.Get(ModulePatients, VerbWrite), "unset fields are kept")
	assert.True(t, updated.Group.Is("clinical"), "patch never detaches a role")

	_, err = e.UpdateRole("missing", RolePatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnforcer_NotFound(t *testing.T) {
	e := newTestEnforcer(t)

	_, err := e.GetRole("r")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.GetGroup("g")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.GetUser("u")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.SetRolePermissions("r", EmptyMatrix())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.AggregateGroupPermissions("g")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.ComputeEffectiveUserPermissions("u")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.UpdateGroupMembers("g", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.UpdateUser("u", UserInput{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, e.DeleteRole("r"), ErrNotFound)
	assert.ErrorIs(t, e.DeleteGroup("g"), ErrNotFound)
	assert.ErrorIs(t, e.DeleteUser("u"), ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, e.DeleteGroup("g"), &nf)
	assert.Equal(t, "group", nf.Kind)
	assert.Equal(t, "g", nf.ID)
}

func TestEnforcer_FailedMutationLeavesState(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	before := e.Snapshot()

	_, err := e.CreateRole(RoleInput{ID: "vet", Title: "Another vet"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	bad := Verb(17)
	_, err = e.EditRolePermissions("vet", PermissionEdit{Verb: &bad, Value: true})
	assert.ErrorIs(t, err, ErrInvalidCatalogKey)

	assert.Equal(t, before, e.Snapshot())
}

func TestEnforcer_Users(t *testing.T) {
	e := newTestEnforcer(t)
	setupVetAndTech(t, e)
	mustSaveGroup(t, e, "clinical", "tech")

	user, err := e.CreateUser(UserInput{
		FirstName: "Mia",
		LastName:  "Lopez",
		Email:     "mia@example.com",
		Role:      Some[RoleID]("missing"),
		GroupIDs:  []GroupID{"clinical", "nowhere", "clinical"},
	})
	require.NoError(t, err)
	assert.Equal(t, UserID("gen-1"), user.ID)
	assert.False(t, user.Role.IsSet(), "unknown role is dropped on write")
	assert.Equal(t, []GroupID{"clinical"}, user.GroupIDs)

	_, err = e.CreateUser(UserInput{ID: user.ID})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	updated, err := e.UpdateUser(user.ID, UserInput{FirstName: "Mia", LastName: "Lopez", Role: Some[RoleID]("vet")})
	require.NoError(t, err)
	assert.True(t, updated.Role.Is("vet"))
	assert.Empty(t, updated.GroupIDs)

	holders, err := e.RoleHolders("vet")
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, user.ID, holders[0].ID)

	require.NoError(t, e.DeleteUser(user.ID))
	assert.Empty(t, e.ListUsers())
	assert.Equal(t, Stats{Roles: 2, Groups: 1, Users: 0}, e.Stats())
}

func TestEnforcer_UpdateGroupMembers(t *testing.T) {
	e := newTestEnforcer(t)
	mustSaveGroup(t, e, "clinical")
	mustSaveGroup(t, e, "admin")
	for _, id := range []UserID{"a", "b", "c"} {
		_, err := e.CreateUser(UserInput{ID: id, LastName: string(id), GroupIDs: []GroupID{"admin"}})
		require.NoError(t, err)
	}

	members, err := e.UpdateGroupMembers("clinical", []UserID{"a", "b", "ghost"})
	require.NoError(t, err)
	require.Len(t, members, 2)

	members, err = e.UpdateGroupMembers("clinical", []UserID{"b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []UserID{"b", "c"}, []UserID{members[0].ID, members[1].ID})

	a, _ := e.GetUser("a")
	assert.Equal(t, []GroupID{"admin"}, a.GroupIDs)
	b, _ := e.GetUser("b")
	assert.Equal(t, []GroupID{"admin", "clinical"}, b.GroupIDs)

	listed, err := e.GroupMembers("clinical")
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	members, err = e.UpdateGroupMembers("clinical", nil)
	require.NoError(t, err)
	assert.Empty(t, members)
	listed, err = e.GroupMembers("admin")
	require.NoError(t, err)
	assert.Len(t, listed, 3, "other groups are untouched")
}

func TestEnforcer_ExclusivityUnderRandomSaves(t *testing.T) {
	e := newTestEnforcer(t)
	roles := []RoleID{"r1", "r2", "r3", "r4", "r5", "r6"}
	groups := []GroupID{"g1", "g2", "g3", "g4"}
	for _, id := range roles {
		mustCreateRole(t, e, id, grant{ModuleReports, []Verb{VerbRead}})
	}

	r := rand.New(rand.NewSource(11))
	for step := 0; step < 300; step++ {
		var pick []RoleID
		for _, id := range roles {
			if r.Intn(3) == 0 {
				pick = append(pick, id)
			}
		}
		target := groups[r.Intn(len(groups))]

		switch r.Intn(10) {
		case 0:
			_ = e.DeleteGroup(target)
		case 1:
			victim := roles[r.Intn(len(roles))]
			if e.DeleteRole(victim) == nil {
				mustCreateRole(t, e, victim, grant{ModuleReports, []Verb{VerbRead}})
			}
		default:
			mustSaveGroup(t, e, target, pick...)
		}

		seen := make(map[RoleID]GroupID)
		for _, g := range e.ListGroups() {
			for _, rid := range g.RoleIDs {
				prev, dup := seen[rid]
				require.False(t, dup, "step %d: role %s in %s and %s", step, rid, prev, g.ID)
				seen[rid] = g.ID
			}
		}
		require.Empty(t, e.Verify(), "step %d", step)
	}
}

func TestEnforcer_AggregationMatchesMembers(t *testing.T) {
	e := newTestEnforcer(t)
	r := rand.New(rand.NewSource(3))
	var ids []RoleID
	for i := 0; i < 8; i++ {
		id := RoleID(fmt.Sprintf("r%d", i))
		_, err := e.CreateRole(RoleInput{ID: id, Permissions: randomMatrix(r)})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	mustSaveGroup(t, e, "g", ids[:5]...)

	perms, err := e.AggregateGroupPermissions("g")
	require.NoError(t, err)
	group, err := e.GetGroup("g")
	require.NoError(t, err)

	for _, mod := range Modules() {
		for _, v := range Verbs() {
			granted := false
			for _, rid := range group.RoleIDs {
				role, _ := e.GetRole(rid)
				granted = granted || role.Permissions.Get(mod, v)
			}
			assert.Equal(t, granted, perms.Get(mod, v), "%s:%s", mod, v)
		}
	}
}

func TestEnforcer_ConcurrentSavesAndReads(t *testing.T) {
	e := newTestEnforcer(t)
	mustCreateRole(t, e, "shared", grant{ModuleLabs, []Verb{VerbRead}})
	mustSaveGroup(t, e, "left", "shared")
	mustSaveGroup(t, e, "right")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				owners := 0
				for _, g := range e.ListGroups() {
					if g.HasRole("shared") {
						owners++
					}
				}
				assert.Equal(t, 1, owners)

				left, _ := e.AggregateGroupPermissions("left")
				right, _ := e.AggregateGroupPermissions("right")
				_ = left.Union(right)
			}
		}()
	}

	for i := 0; i < 200; i++ {
		target := GroupID("left")
		if i%2 == 0 {
			target = "right"
		}
		_, err := e.SaveGroup(GroupInput{ID: target, Name: string(target), RoleIDs: []RoleID{"shared"}})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	assert.Empty(t, e.Verify())
}
