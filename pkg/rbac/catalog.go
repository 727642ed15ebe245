package rbac

import (
	"fmt"
	"strings"
)

// Module is an area of clinic functionality that permissions are scoped to.
// The set is closed; it is declared here once and never extended at runtime.
type Module int

const (
	ModulePatients Module = iota
	ModuleAppointments
	ModuleRecords
	ModuleLabs
	ModulePostmortem
	ModuleHospitalization
	ModuleTreatments
	ModuleInventory
	ModuleStaff
	ModuleReports

	moduleCount = iota
)

var moduleNames = [moduleCount]string{
	ModulePatients:        "patients",
	ModuleAppointments:    "appointments",
	ModuleRecords:         "records",
	ModuleLabs:            "labs",
	ModulePostmortem:      "postmortem",
	ModuleHospitalization: "hospitalization",
	ModuleTreatments:      "treatments",
	ModuleInventory:       "inventory",
	ModuleStaff:           "staff",
	ModuleReports:         "reports",
}

// Verb is one of the four capability kinds a role can be granted on a module.
type Verb int

const (
	VerbRead Verb = iota
	VerbCreate
	VerbWrite
	VerbDelete

	verbCount = iota
)

var verbNames = [verbCount]string{
	VerbRead:   "read",
	VerbCreate: "create",
	VerbWrite:  "write",
	VerbDelete: "delete",
}

// Modules returns every module in catalog order.
func Modules() []Module {
	out := make([]Module, moduleCount)
	for i := range out {
		out[i] = Module(i)
	}
	return out
}

// Verbs returns every verb in catalog order.
func Verbs() []Verb {
	out := make([]Verb, verbCount)
	for i := range out {
		out[i] = Verb(i)
	}
	return out
}

// Valid reports whether m is a member of the catalog.
func (m Module) Valid() bool {
	return m >= 0 && int(m) < moduleCount
}

func (m Module) String() string {
	if !m.Valid() {
		return fmt.Sprintf("module(%d)", int(m))
	}
	return moduleNames[m]
}

// MarshalText implements encoding.TextMarshaler
func (m Module) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, &CatalogKeyError{Kind: "module", Key: m.String()}
	}
	return []byte(moduleNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Module) UnmarshalText(text []byte) error {
	parsed, err := ParseModule(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseModule resolves a module key such as "labs".
func ParseModule(key string) (Module, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	for i, name := range moduleNames {
		if name == k {
			return Module(i), nil
		}
	}
	return 0, &CatalogKeyError{Kind: "module", Key: key}
}

// Valid reports whether v is a member of the catalog.
func (v Verb) Valid() bool {
	return v >= 0 && int(v) < verbCount
}

func (v Verb) String() string {
	if !v.Valid() {
		return fmt.Sprintf("verb(%d)", int(v))
	}
	return verbNames[v]
}

// MarshalText implements encoding.TextMarshaler
func (v Verb) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, &CatalogKeyError{Kind: "verb", Key: v.String()}
	}
	return []byte(verbNames[v]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (v *Verb) UnmarshalText(text []byte) error {
	parsed, err := ParseVerb(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVerb resolves a verb key such as "write".
func ParseVerb(key string) (Verb, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	for i, name := range verbNames {
		if name == k {
			return Verb(i), nil
		}
	}
	return 0, &CatalogKeyError{Kind: "verb", Key: key}
}
