package authz

// userPolicy guards account administration. Privilege escalation is blocked
// structurally: actors may only touch strictly lower tiers, may never target
// their own account, and may never grant a tier at or above their own.
var userPolicy = policy{
	required: userRequired,
	rule:     userRule,
}

// userRequired covers only the resource-free abilities; for targeted
// abilities the rule checks the capability itself, after the self-target
// denial, so "cannot act on own account" wins over "missing-permission".
func userRequired(ability Ability) []string {
	switch ability {
	case AbilityViewAny:
		return []string{PermUsersView}
	case AbilityCreate:
		return []string{PermUsersCreate}
	default:
		return nil
	}
}

func userAbilityPermission(ability Ability) string {
	switch ability {
	case AbilityUpdate:
		return PermUsersUpdate
	case AbilityDeactivate:
		return PermUsersDeactivate
	case AbilityDelete, AbilityForceDelete:
		return PermUsersDelete
	case AbilityAssignRole:
		return PermRolesAssign
	default:
		return ""
	}
}

func userRule(actor Actor, perms PermissionSet, ability Ability, resource Resource) ruling {
	if grant, ok := resource.(RoleAssignmentRef); ok {
		return roleAssignmentRule(actor, perms, grant)
	}
	target, ok := resource.(UserRef)
	if !ok {
		return ruleDeny("unexpected resource for user policy")
	}

	switch ability {
	case AbilityViewAny, AbilityCreate:
		return ruleAbstain()

	case AbilityView:
		if target.ID == actor.ID {
			return ruleAllow()
		}
		if !perms.Has(PermUsersView) {
			return ruleDeny(ReasonMissingPermission)
		}
		if actor.HasRole(RoleAdmin) {
			return ruleAllow()
		}
		if target.DepartmentID == actor.DepartmentID {
			return ruleAllow()
		}
		return ruleDeny("")

	case AbilityUpdate, AbilityDeactivate:
		if target.ID == actor.ID {
			return ruleDeny(ReasonOwnAccount)
		}
		if !perms.Has(userAbilityPermission(ability)) {
			return ruleDeny(ReasonMissingPermission)
		}
		if actor.HasRole(RoleAdmin) {
			return lowerTierRule(actor, target, "")
		}
		if target.DepartmentID != actor.DepartmentID {
			return ruleDeny("")
		}
		return lowerTierRule(actor, target, "")

	case AbilityDelete, AbilityForceDelete:
		if target.ID == actor.ID {
			return ruleDeny(ReasonOwnAccount)
		}
		if !perms.Has(userAbilityPermission(ability)) {
			return ruleDeny(ReasonMissingPermission)
		}
		return lowerTierRule(actor, target, "cannot delete users with equal or higher privileges")

	default:
		return ruleAbstain()
	}
}

func roleAssignmentRule(actor Actor, perms PermissionSet, grant RoleAssignmentRef) ruling {
	if grant.Target.ID == actor.ID {
		return ruleDeny(ReasonOwnAccount)
	}
	if !perms.Has(PermRolesAssign) {
		return ruleDeny(ReasonMissingPermission)
	}
	// Never hand out a tier at or above your own.
	if RoleTier(grant.RoleName) >= actor.Tier() {
		return ruleDeny("cannot assign a role at or above your own tier")
	}
	if actor.Tier() == TierDeptLead {
		if grant.Target.DepartmentID != actor.DepartmentID {
			return ruleDeny("")
		}
		switch grant.RoleName {
		case RoleDeptHead, RoleDeputyDeptHead, RoleAdmin, RoleSuperAdmin:
			return ruleDeny("department leads cannot assign leadership or admin roles")
		}
	}
	return ruleAllow()
}

func lowerTierRule(actor Actor, target UserRef, reason string) ruling {
	if target.Tier() < actor.Tier() {
		return ruleAllow()
	}
	return ruleDeny(reason)
}
