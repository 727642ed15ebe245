package rbac

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PermissionMatrix is the Module x Verb grid of granted capabilities.
// The zero value denies everything. Matrices are plain values: copying one
// copies the grid, and two matrices can be compared with ==.
type PermissionMatrix struct {
	cells [moduleCount][verbCount]bool
}

// EmptyMatrix returns a matrix with every cell denied
func EmptyMatrix() PermissionMatrix {
	return PermissionMatrix{}
}

// FullMatrix returns a matrix with every cell granted
func FullMatrix() PermissionMatrix {
	var m PermissionMatrix
	m.SetAll(true)
	return m
}

// Get reports whether verb is granted on module
func (m PermissionMatrix) Get(module Module, verb Verb) bool {
	return m.cells[module][verb]
}

// Set grants or denies a single cell
func (m *PermissionMatrix) Set(module Module, verb Verb, value bool) {
	m.cells[module][verb] = value
}

// SetModule sets every verb of one module ("select all" on a row)
func (m *PermissionMatrix) SetModule(module Module, value bool) {
	for v := range m.cells[module] {
		m.cells[module][v] = value
	}
}

// SetVerbAcrossModules sets one verb on every module ("select all" on a column)
func (m *PermissionMatrix) SetVerbAcrossModules(verb Verb, value bool) {
	for mod := range m.cells {
		m.cells[mod][verb] = value
	}
}

// SetAll sets every cell
func (m *PermissionMatrix) SetAll(value bool) {
	for mod := range m.cells {
		m.SetModule(Module(mod), value)
	}
}

// Union returns the cell-wise OR of m and other. Neither input is modified.
func (m PermissionMatrix) Union(other PermissionMatrix) PermissionMatrix {
	var out PermissionMatrix
	for mod := range m.cells {
		for v := range m.cells[mod] {
			out.cells[mod][v] = m.cells[mod][v] || other.cells[mod][v]
		}
	}
	return out
}

// IsEmpty reports whether no cell is granted
func (m PermissionMatrix) IsEmpty() bool {
	return m == PermissionMatrix{}
}

// ModuleVerbs returns the verbs granted on module, in catalog order
func (m PermissionMatrix) ModuleVerbs(module Module) []Verb {
	var out []Verb
	for v, granted := range m.cells[module] {
		if granted {
			out = append(out, Verb(v))
		}
	}
	return out
}

// Grants returns the wire form of the matrix: module key -> granted verb keys.
// Modules without grants are omitted.
func (m PermissionMatrix) Grants() map[string][]string {
	out := make(map[string][]string)
	for mod := range m.cells {
		verbs := m.ModuleVerbs(Module(mod))
		if len(verbs) == 0 {
			continue
		}
		keys := make([]string, len(verbs))
		for i, v := range verbs {
			keys[i] = v.String()
		}
		out[moduleNames[mod]] = keys
	}
	return out
}

// MatrixFromGrants builds a matrix from its wire form. Any unknown module or
// verb key rejects the whole input.
func MatrixFromGrants(grants map[string][]string) (PermissionMatrix, error) {
	var m PermissionMatrix
	for moduleKey, verbKeys := range grants {
		mod, err := ParseModule(moduleKey)
		if err != nil {
			return PermissionMatrix{}, err
		}
		for _, verbKey := range verbKeys {
			verb, err := ParseVerb(verbKey)
			if err != nil {
				return PermissionMatrix{}, err
			}
			m.Set(mod, verb, true)
		}
	}
	return m, nil
}

// MarshalJSON encodes the matrix in its grants form
func (m PermissionMatrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Grants())
}

// UnmarshalJSON decodes the grants form, rejecting unknown catalog keys
func (m *PermissionMatrix) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = PermissionMatrix{}
		return nil
	}
	var grants map[string][]string
	if err := json.Unmarshal(data, &grants); err != nil {
		return fmt.Errorf("invalid permission matrix: %w", err)
	}
	parsed, err := MatrixFromGrants(grants)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// PermissionEdit is one toggle from the permission editor.
//
//	module and verb set -> single cell
//	module only         -> whole module row
//	verb only           -> whole verb column
//	neither             -> whole grid
type PermissionEdit struct {
	Module *Module `json:"module,omitempty"`
	Verb   *Verb   `json:"verb,omitempty"`
	Value  bool    `json:"value"`
}

// Validate rejects out-of-catalog keys
func (e PermissionEdit) Validate() error {
	if e.Module != nil && !e.Module.Valid() {
		return &CatalogKeyError{Kind: "module", Key: e.Module.String()}
	}
	if e.Verb != nil && !e.Verb.Valid() {
		return &CatalogKeyError{Kind: "verb", Key: e.Verb.String()}
	}
	return nil
}

// Apply performs the edit on m
func (e PermissionEdit) Apply(m *PermissionMatrix) {
	switch {
	case e.Module != nil && e.Verb != nil:
		m.Set(*e.Module, *e.Verb, e.Value)
	case e.Module != nil:
		m.SetModule(*e.Module, e.Value)
	case e.Verb != nil:
		m.SetVerbAcrossModules(*e.Verb, e.Value)
	default:
		m.SetAll(e.Value)
	}
}
