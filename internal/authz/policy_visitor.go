package authz

// visitorPolicy guards visitor visit records. Check-in and check-out share a
// single permission; hosts can always see their own visitors.
var visitorPolicy = policy{
	required: visitorRequired,
	rule:     visitorRule,
}

func visitorRequired(ability Ability) []string {
	switch ability {
	case AbilityViewAny, AbilityView:
		return []string{PermVisitorsView, PermVisitorsCheckIn}
	case AbilityCreate, AbilityCheckOut:
		return []string{PermVisitorsCheckIn}
	default:
		return nil
	}
}

func visitorRule(actor Actor, perms PermissionSet, ability Ability, resource Resource) ruling {
	visit, ok := resource.(VisitRef)
	if !ok {
		return ruleDeny("unexpected resource for visitor policy")
	}

	switch ability {
	case AbilityViewAny, AbilityCreate:
		return ruleAbstain()

	case AbilityView:
		if visit.HostUserID == actor.ID {
			return ruleAllow()
		}
		if !perms.Has(PermVisitorsView) {
			return ruleDeny(ReasonMissingPermission)
		}
		if actor.HasRole(RoleAdmin) {
			return ruleAllow()
		}
		if visit.DepartmentID == actor.DepartmentID {
			return ruleAllow()
		}
		return ruleDeny("")

	case AbilityUpdate:
		if actor.HasRole(RoleAdmin) || visit.HostUserID == actor.ID {
			return ruleAllow()
		}
		// Front desk staff manage visits for their own department.
		if visit.DepartmentID == actor.DepartmentID {
			return ruleAllow()
		}
		return ruleDeny("")

	case AbilityCheckOut:
		if visit.CheckedOut {
			return ruleDeny("visitor has already been checked out")
		}
		if actor.HasRole(RoleAdmin) || visit.HostUserID == actor.ID {
			return ruleAllow()
		}
		if visit.DepartmentID == actor.DepartmentID {
			return ruleAllow()
		}
		return ruleDeny("")

	case AbilityDelete, AbilityForceDelete:
		if !visit.CheckedOut {
			return ruleDeny("cannot delete an active visit; check the visitor out first")
		}
		if actor.HasRole(RoleAdmin, RoleSuperAdmin) {
			return ruleAllow()
		}
		return ruleDeny("")

	default:
		return ruleAbstain()
	}
}
