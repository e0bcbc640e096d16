package rbac

type Role string
type Action string

const (
	RoleSuperAdmin      Role = "super_admin"
	RoleRegionAdmin     Role = "region_admin"
	RoleLocalCoord      Role = "local_coord"
	RoleObserver        Role = "observer"
	RoleVerifiedCitizen Role = "verified_citizen"
	RoleCitizen         Role = "citizen"
)

const (
	ActionViewReports   Action = "view_reports"
	ActionViewAnalytics Action = "view_analytics"
	ActionTriageReport  Action = "triage_report"
	ActionQualifyReport Action = "qualify_report"
	ActionGenerateToken Action = "generate_token"
	ActionManageUsers   Action = "manage_users"
)

var allRoles = []Role{
	RoleSuperAdmin,
	RoleRegionAdmin,
	RoleLocalCoord,
	RoleObserver,
	RoleVerifiedCitizen,
	RoleCitizen,
}

var admins = []Role{RoleSuperAdmin, RoleRegionAdmin}

// policy is the whole permission matrix. The backend re-checks every write,
// this table only decides what the dashboard offers and short-circuits.
var policy = map[Action][]Role{
	ActionViewReports:   allRoles,
	ActionViewAnalytics: {RoleSuperAdmin, RoleRegionAdmin, RoleLocalCoord},
	ActionTriageReport:  admins,
	ActionQualifyReport: admins,
	ActionGenerateToken: admins,
	ActionManageUsers:   admins,
}

func Can(role Role, action Action) bool {
	for _, allowed := range policy[action] {
		if allowed == role {
			return true
		}
	}
	return false
}

// Normalize maps unknown role strings to the least privileged role.
func Normalize(role string) Role {
	if r, ok := Parse(role); ok {
		return r
	}
	return RoleCitizen
}

func Parse(role string) (Role, bool) {
	for _, r := range allRoles {
		if string(r) == role {
			return r, true
		}
	}
	return "", false
}

// Roles returns every role from most to least privileged.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

var roleLabels = map[Role]string{
	RoleSuperAdmin:      "Super administrator",
	RoleRegionAdmin:     "Region administrator",
	RoleLocalCoord:      "Local coordinator",
	RoleObserver:        "Observer",
	RoleVerifiedCitizen: "Verified citizen",
	RoleCitizen:         "Citizen",
}

func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return "Unknown"
}
