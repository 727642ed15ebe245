package rbac

// AggregateGroupPermissions unions the matrices of the group's roles.
// Role ids that no longer resolve contribute nothing.
func AggregateGroupPermissions(group UserGroup, roles RoleLookup) PermissionMatrix {
	out := EmptyMatrix()
	for _, id := range group.RoleIDs {
		role, ok := roles.Role(id)
		if !ok {
			continue
		}
		out = out.Union(role.Permissions)
	}
	return out
}

// ComputeEffectiveUserPermissions unions the user's direct role with the
// aggregated permissions of every group the user belongs to. Dangling role
// and group references are skipped.
func ComputeEffectiveUserPermissions(user User, roles RoleLookup, groups GroupLookup) PermissionMatrix {
	out := EmptyMatrix()
	if id, ok := user.Role.Get(); ok {
		if role, found := roles.Role(id); found {
			out = out.Union(role.Permissions)
		}
	}
	for _, id := range user.GroupIDs {
		group, ok := groups.Group(id)
		if !ok {
			continue
		}
		out = out.Union(AggregateGroupPermissions(group, roles))
	}
	return out
}
