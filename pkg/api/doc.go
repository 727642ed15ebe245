// Package api serves the clinic access-control model over HTTP.
//
// Routes live under /rbac and map one to one onto Enforcer operations:
//
//	GET    /rbac/catalog                   modules and verbs
//	GET    /rbac/templates                 built-in role templates
//	GET    /rbac/roles                     list roles
//	POST   /rbac/roles                     create a role
//	PUT    /rbac/roles/{id}/permissions    replace a role's matrix
//	PATCH  /rbac/roles/{id}/permissions    toggle a cell, row, column or grid
//	PUT    /rbac/groups/{id}               save a group, moving its roles in
//	PUT    /rbac/groups/{id}/members       replace a group's membership
//	GET    /rbac/users/{id}/permissions    effective user permissions
//	GET    /rbac/snapshot                  export the whole model
//	PUT    /rbac/snapshot                  restore a snapshot
//
// Group reads always carry the aggregated permissions of the group's roles.
// Every mutation is traced, counted and written to the audit logger found in
// the request context. Requests are not checked against any permission here;
// callers decide who may call the API.
package api
