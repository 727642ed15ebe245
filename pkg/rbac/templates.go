package rbac

// Built-in role ids
const (
	RoleVeterinarian    RoleID = "veterinarian"
	RoleVetTechnician   RoleID = "vet-technician"
	RoleReceptionist    RoleID = "receptionist"
	RolePracticeManager RoleID = "practice-manager"
	RolePathologist     RoleID = "pathologist"
)

type grant struct {
	module Module
	verbs  []Verb
}

func matrixOf(grants ...grant) PermissionMatrix {
	var m PermissionMatrix
	for _, g := range grants {
		for _, v := range g.verbs {
			m.Set(g.module, v, true)
		}
	}
	return m
}

var (
	readOnly  = []Verb{VerbRead}
	readWrite = []Verb{VerbRead, VerbCreate, VerbWrite}
	allVerbs  = []Verb{VerbRead, VerbCreate, VerbWrite, VerbDelete}
)

// BuiltInRoles returns the starting roles of a fresh clinic deployment
func BuiltInRoles() []RoleInput {
	return []RoleInput{
		{
			ID:          RoleVeterinarian,
			Title:       "Veterinarian",
			Department:  "Clinical",
			Description: "Examines patients, prescribes treatments and signs off records",
			Permissions: matrixOf(
				grant{ModulePatients, readWrite},
				grant{ModuleAppointments, readWrite},
				grant{ModuleRecords, readWrite},
				grant{ModuleLabs, readWrite},
				grant{ModuleHospitalization, readWrite},
				grant{ModuleTreatments, allVerbs},
				grant{ModuleInventory, readOnly},
			),
		},
		{
			ID:          RoleVetTechnician,
			Title:       "Veterinary Technician",
			Department:  "Clinical",
			Description: "Assists in care, runs lab work and manages inpatients",
			Permissions: matrixOf(
				grant{ModulePatients, readOnly},
				grant{ModuleAppointments, readOnly},
				grant{ModuleRecords, readOnly},
				grant{ModuleLabs, []Verb{VerbRead, VerbCreate}},
				grant{ModuleHospitalization, readWrite},
				grant{ModuleTreatments, readOnly},
				grant{ModuleInventory, []Verb{VerbRead, VerbWrite}},
			),
		},
		{
			ID:          RoleReceptionist,
			Title:       "Receptionist",
			Department:  "Front Desk",
			Description: "Registers patients and books appointments",
			Permissions: matrixOf(
				grant{ModulePatients, readWrite},
				grant{ModuleAppointments, allVerbs},
			),
		},
		{
			ID:          RolePracticeManager,
			Title:       "Practice Manager",
			Department:  "Administration",
			Description: "Runs the practice: staff, stock and reporting",
			Permissions: matrixOf(
				grant{ModulePatients, readOnly},
				grant{ModuleAppointments, readOnly},
				grant{ModuleInventory, allVerbs},
				grant{ModuleStaff, allVerbs},
				grant{ModuleReports, allVerbs},
			),
		},
		{
			ID:          RolePathologist,
			Title:       "Pathologist",
			Department:  "Laboratory",
			Description: "Reviews lab results and performs post-mortem examinations",
			Permissions: matrixOf(
				grant{ModulePatients, readOnly},
				grant{ModuleRecords, readOnly},
				grant{ModuleLabs, allVerbs},
				grant{ModulePostmortem, allVerbs},
				grant{ModuleReports, readOnly},
			),
		},
	}
}
