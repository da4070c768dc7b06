package authz

// DocumentContext selects which of the two document rule sets applies. The
// same document is governed by different relationship rules depending on
// whether it is being handled as routed mail or as a storage record.
type DocumentContext string

const (
	// ContextRouting applies the routing rules: ownership and routed-to
	// relations matter.
	ContextRouting DocumentContext = "routing"
	// ContextStorage applies the storage rules: department scoping only.
	ContextStorage DocumentContext = "storage"
)

// DocumentRef is the policy view of a document. RoutedToActor is resolved by
// the caller against the routing history before the check.
type DocumentRef struct {
	ID            int64
	DepartmentID  int64
	CreatedBy     int64
	Confidential  bool
	RoutedToActor bool
	Context       DocumentContext
}

func (DocumentRef) policyKind() string { return "document" }

// Incident statuses as the policy sees them.
const (
	IncidentStatusResolved = "resolved"
	IncidentStatusClosed   = "closed"
	IncidentStatusOpen     = "open"
)

// IncidentRef is the policy view of an incident. ReporterDepartmentID lets
// department leads see incidents raised by their own staff.
type IncidentRef struct {
	ID                   int64
	ReportedBy           int64
	AssignedDepartmentID int64
	AssignedTo           int64
	Status               string
	ReporterDepartmentID int64
}

func (IncidentRef) policyKind() string { return "incident" }

// VisitRef is the policy view of a visitor visit.
type VisitRef struct {
	ID           int64
	HostUserID   int64
	DepartmentID int64
	CheckedIn    bool
	CheckedOut   bool
}

func (VisitRef) policyKind() string { return "visit" }

// UserRef is the policy view of a managed user account.
type UserRef struct {
	ID           int64
	DepartmentID int64
	Roles        []string
}

func (UserRef) policyKind() string { return "user" }

// Tier returns the highest tier across the target's roles.
func (u UserRef) Tier() int {
	return maxTier(u.Roles)
}

// RoleAssignmentRef describes a pending role grant to a target user.
type RoleAssignmentRef struct {
	Target   UserRef
	RoleName string
}

func (RoleAssignmentRef) policyKind() string { return "user" }
