// Package rbac implements the access-control model of the clinic: a closed
// catalog of modules and verbs, permission matrices over that catalog, and
// the roles, user groups and users those matrices are attached to.
//
// # Overview
//
// Permissions are granted to Roles. A UserGroup owns a set of Roles and its
// permissions are always derived from them; a group never stores a matrix of
// its own. A User holds at most one direct Role and belongs to any number of
// groups. The effective permissions of a user are the union of the direct
// role and every group's aggregated permissions.
//
// # Catalog
//
// Modules and verbs are closed enums:
//
//	ModulePatients, ModuleAppointments, ModuleRecords, ModuleLabs,
//	ModulePostmortem, ModuleHospitalization, ModuleTreatments,
//	ModuleInventory, ModuleStaff, ModuleReports
//
//	VerbRead, VerbCreate, VerbWrite, VerbDelete
//
// Keys from the outside world go through ParseModule and ParseVerb and are
// rejected with ErrInvalidCatalogKey when unknown.
//
// # Permission Matrix
//
// PermissionMatrix is a fixed Module x Verb grid with value semantics:
//
//	var m rbac.PermissionMatrix
//	m.Set(rbac.ModulePatients, rbac.VerbRead, true)
//	m.SetModule(rbac.ModuleLabs, true)              // every verb on labs
//	m.SetVerbAcrossModules(rbac.VerbRead, true)     // read on every module
//	merged := m.Union(other)                         // neither input changes
//
// On the wire a matrix is a map of module key to granted verb keys:
//
//	{"patients": ["read", "write"], "labs": ["create"]}
//
// # Ownership Rules
//
// A role belongs to at most one group. The role's Group back-reference is set
// exactly when some group lists the role. The Enforcer keeps both sides in
// step:
//
//	SaveGroup    moves listed roles out of their previous group
//	DeleteRole   removes the role from its group
//	DeleteGroup  clears the back-reference on the group's roles
//
// Deleting a role or a group does not touch users. A user may therefore
// reference a role or group that no longer exists; the aggregation functions
// skip such references instead of failing.
//
// # Concurrency
//
// Enforcer guards all three stores with one sync.RWMutex. Every mutation runs
// against a clone of the state and is published by swapping the clone in, so
// readers never observe a half-applied cascade and a failed mutation changes
// nothing.
//
//	e := rbac.NewEnforcer(rbac.WithLogger(log))
//	vet, _ := e.CreateRole(rbac.RoleInput{Title: "Vet"})
//	clinical, _ := e.SaveGroup(rbac.GroupInput{Name: "Clinical", RoleIDs: []rbac.RoleID{vet.ID}})
//	perms, _ := e.AggregateGroupPermissions(clinical.ID)
//
// # Snapshots
//
// Snapshot exports the model and Restore imports it. Group role lists are
// authoritative on restore; back-references are rebuilt and a role claimed
// by two groups fails with ErrInconsistentSnapshot.
package rbac
