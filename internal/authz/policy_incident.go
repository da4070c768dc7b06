package authz

// incidentPolicy guards the incident lifecycle. The delete veto for resolved
// or closed incidents applies to every role, the top role included; the
// pre-check stage defers incident deletion for exactly that reason.
var incidentPolicy = policy{
	required: incidentRequired,
	rule:     incidentRule,
}

func incidentRequired(ability Ability) []string {
	switch ability {
	case AbilityViewAny, AbilityView:
		// Reporters hold incidents.create, so they can always see their own
		// reports; wider visibility needs the department permission.
		return []string{PermIncidentsView, PermIncidentsCreate}
	case AbilityCreate:
		return []string{PermIncidentsCreate}
	case AbilityAssign:
		return []string{PermIncidentsAssign}
	case AbilityResolve:
		return []string{PermIncidentsResolve}
	default:
		return nil
	}
}

func incidentRule(actor Actor, perms PermissionSet, ability Ability, resource Resource) ruling {
	inc, ok := resource.(IncidentRef)
	if !ok {
		return ruleDeny("unexpected resource for incident policy")
	}

	switch ability {
	case AbilityViewAny, AbilityCreate:
		return ruleAbstain()

	case AbilityView:
		if inc.ReportedBy == actor.ID {
			return ruleAllow()
		}
		if !perms.Has(PermIncidentsView) {
			return ruleDeny(ReasonMissingPermission)
		}
		if actor.HasRole(RoleAdmin) {
			return ruleAllow()
		}
		if inc.AssignedDepartmentID == actor.DepartmentID || inc.AssignedTo == actor.ID {
			return ruleAllow()
		}
		if actor.Tier() == TierDeptLead && inc.ReporterDepartmentID == actor.DepartmentID {
			return ruleAllow()
		}
		return ruleDeny("")

	case AbilityUpdate:
		if actor.HasRole(RoleAdmin) {
			return ruleAllow()
		}
		if inc.ReportedBy == actor.ID && inc.Status == IncidentStatusOpen {
			return ruleAllow()
		}
		if actor.Tier() == TierDeptLead && inc.AssignedDepartmentID == actor.DepartmentID {
			return ruleAllow()
		}
		if inc.AssignedTo == actor.ID {
			return ruleAllow()
		}
		return ruleDeny("")

	case AbilityAssign:
		if actor.HasRole(RoleAdmin) {
			return ruleAllow()
		}
		if actor.Tier() == TierDeptLead && inc.AssignedDepartmentID == actor.DepartmentID {
			return ruleAllow()
		}
		return ruleDeny("")

	case AbilityResolve:
		if actor.HasRole(RoleAdmin) {
			return ruleAllow()
		}
		if actor.Tier() == TierDeptLead && inc.AssignedDepartmentID == actor.DepartmentID {
			return ruleAllow()
		}
		if inc.AssignedTo == actor.ID {
			return ruleAllow()
		}
		return ruleDeny("")

	case AbilityDelete, AbilityForceDelete:
		// The veto runs before the role check so it binds admins and the top
		// role alike.
		if inc.Status == IncidentStatusResolved || inc.Status == IncidentStatusClosed {
			return ruleDeny("cannot delete resolved or closed incidents")
		}
		if actor.HasRole(RoleAdmin, RoleSuperAdmin) {
			return ruleAllow()
		}
		return ruleDeny("")

	default:
		return ruleAbstain()
	}
}
