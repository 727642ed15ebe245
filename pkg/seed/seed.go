// Package seed loads an initial clinic access setup from YAML.
//
// A seed file lists roles, users and groups:
//
//	roles:
//	  - id: vet
//	    title: Veterinarian
//	    permissions:
//	      patients: [read, write]
//	users:
//	  - id: ana
//	    first_name: Ana
//	    role_id: vet
//	groups:
//	  - id: clinical
//	    name: Clinical
//	    role_ids: [vet]
//	    member_ids: [ana]
//
// Entries are applied through the enforcer in that order, so a role listed by
// two groups ends up in the later one.
package seed

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

// Document is the top-level seed file
type Document struct {
	Roles  []RoleSpec  `yaml:"roles"`
	Users  []UserSpec  `yaml:"users"`
	Groups []GroupSpec `yaml:"groups"`
}

// RoleSpec describes one role. Permissions map module keys to verb keys.
type RoleSpec struct {
	ID          string              `yaml:"id"`
	Title       string              `yaml:"title"`
	Department  string              `yaml:"department"`
	Description string              `yaml:"description"`
	Permissions map[string][]string `yaml:"permissions"`
}

// UserSpec describes one user
type UserSpec struct {
	ID        string   `yaml:"id"`
	FirstName string   `yaml:"first_name"`
	LastName  string   `yaml:"last_name"`
	Email     string   `yaml:"email"`
	Phone     string   `yaml:"phone"`
	Title     string   `yaml:"title"`
	RoleID    string   `yaml:"role_id"`
	GroupIDs  []string `yaml:"group_ids"`
}

// GroupSpec describes one group
type GroupSpec struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Color       string   `yaml:"color"`
	RoleIDs     []string `yaml:"role_ids"`
	MemberIDs   []string `yaml:"member_ids"`
}

// Result counts what Apply created
type Result struct {
	Roles  int
	Users  int
	Groups int
}

// LoadFile reads and parses the seed file at path
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a seed document. Unknown fields are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &doc, nil
}

// Apply creates the document's roles, users and groups. Every permission map
// is checked before anything is written, so an unknown module or verb key
// leaves the enforcer untouched.
func Apply(e *rbac.Enforcer, doc *Document) (Result, error) {
	var res Result

	roles := make([]rbac.RoleInput, 0, len(doc.Roles))
	for _, spec := range doc.Roles {
		perms, err := rbac.MatrixFromGrants(spec.Permissions)
		if err != nil {
			return res, fmt.Errorf("role %q: %w", spec.ID, err)
		}
		roles = append(roles, rbac.RoleInput{
			ID:          rbac.RoleID(spec.ID),
			Title:       spec.Title,
			Department:  spec.Department,
			Description: spec.Description,
			Permissions: perms,
		})
	}

	for _, in := range roles {
		if _, err := e.CreateRole(in); err != nil {
			return res, err
		}
		res.Roles++
	}

	for _, spec := range doc.Users {
		if _, err := e.CreateUser(spec.input(nil)); err != nil {
			return res, err
		}
		res.Users++
	}

	for _, spec := range doc.Groups {
		in := rbac.GroupInput{
			ID:          rbac.GroupID(spec.ID),
			Name:        spec.Name,
			Description: spec.Description,
			Color:       spec.Color,
		}
		for _, id := range spec.RoleIDs {
			in.RoleIDs = append(in.RoleIDs, rbac.RoleID(id))
		}
		for _, id := range spec.MemberIDs {
			in.MemberUserIDs = append(in.MemberUserIDs, rbac.UserID(id))
		}
		if _, err := e.SaveGroup(in); err != nil {
			return res, err
		}
		res.Groups++
	}

	// Users may name groups declared after them; attach those now.
	for _, spec := range doc.Users {
		if len(spec.GroupIDs) == 0 || spec.ID == "" {
			continue
		}
		current, err := e.GetUser(rbac.UserID(spec.ID))
		if err != nil {
			return res, err
		}
		if _, err := e.UpdateUser(current.ID, spec.input(current.GroupIDs)); err != nil {
			return res, err
		}
	}

	return res, nil
}

// ApplyBuiltInRoles creates the standard clinic roles
func ApplyBuiltInRoles(e *rbac.Enforcer) (Result, error) {
	var res Result
	for _, in := range rbac.BuiltInRoles() {
		if _, err := e.CreateRole(in); err != nil {
			return res, err
		}
		res.Roles++
	}
	return res, nil
}

// input builds a UserInput from s, listing existing group ids ahead of the declared ones
func (s UserSpec) input(existing []rbac.GroupID) rbac.UserInput {
	in := rbac.UserInput{
		ID:        rbac.UserID(s.ID),
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
		Phone:     s.Phone,
		Title:     s.Title,
		GroupIDs:  append([]rbac.GroupID(nil), existing...),
	}
	if s.RoleID != "" {
		in.Role = rbac.Some(rbac.RoleID(s.RoleID))
	}
	for _, id := range s.GroupIDs {
		in.GroupIDs = append(in.GroupIDs, rbac.GroupID(id))
	}
	return in
}
