// Package audit records every change to roles, groups and users.
//
// # Event Types
//
// Roles: role.create, role.update, role.permissions, role.delete
// Groups: group.save, group.members, group.delete
// Users: user.create, user.update, user.delete
// State: snapshot.restore, seed.apply
//
// # Usage Example
//
//	logger := audit.NewLogrusLogger(os.Stdout)
//	ctx = audit.WithLogger(ctx, logger)
//
//	_ = audit.LogMutation(ctx, r, audit.Mutation{
//		EventType:    audit.EventTypeGroupSave,
//		ResourceType: audit.ResourceTypeGroup,
//		ResourceID:   group.ID,
//		Changes:      &audit.ChangeDetails{Before: before, After: group},
//	})
//
// Failed mutations are recorded too, with status "failure" and the error text.
package audit
