package authz

// documentPolicy covers both document contexts. Routing context cares about
// who sent and received the document; storage context is purely
// department-scoped and ignores ownership.
var documentPolicy = policy{
	required: documentRequired,
	rule:     documentRule,
}

func documentRequired(ability Ability) []string {
	// The capability table is context-free; viewAny accepts either context's
	// view permission so the list page can render for both audiences.
	switch ability {
	case AbilityViewAny:
		return []string{PermDocumentsViewRouted, PermStorageView}
	default:
		return nil
	}
}

func routingRequired(ability Ability) []string {
	switch ability {
	case AbilityView:
		return []string{PermDocumentsViewRouted}
	case AbilityCreate:
		return []string{PermDocumentsRoute}
	case AbilityForward:
		return []string{PermDocumentsForward}
	case AbilityDownload:
		return []string{PermDocumentsDownload}
	case AbilityUpdate:
		return []string{PermStorageEdit}
	case AbilityDelete:
		return []string{PermDocumentsDelete}
	default:
		return nil
	}
}

func storageRequired(ability Ability) []string {
	switch ability {
	case AbilityView:
		return []string{PermStorageView}
	case AbilityCreate:
		return []string{PermStorageUpload}
	case AbilityDownload:
		return []string{PermStorageDownload}
	case AbilityUpdate:
		return []string{PermStorageEdit}
	case AbilityDelete:
		return []string{PermStorageDelete}
	default:
		return nil
	}
}

func documentRule(actor Actor, perms PermissionSet, ability Ability, resource Resource) ruling {
	doc, ok := resource.(DocumentRef)
	if !ok {
		return ruleDeny("unexpected resource for document policy")
	}

	context := doc.Context
	if context == "" {
		context = ContextRouting
	}
	required := routingRequired(ability)
	if context == ContextStorage {
		required = storageRequired(ability)
	}
	if len(required) > 0 && !perms.HasAny(required...) {
		return ruleDeny(ReasonMissingPermission)
	}

	switch ability {
	case AbilityViewAny, AbilityCreate:
		return ruleAbstain()
	}

	if context == ContextStorage {
		return storageRule(actor, doc, ability)
	}
	return routingRule(actor, doc, ability)
}

func routingRule(actor Actor, doc DocumentRef, ability Ability) ruling {
	switch ability {
	case AbilityView, AbilityDownload:
		if doc.RoutedToActor || doc.CreatedBy == actor.ID {
			return ruleAllow()
		}
		if actor.HasRole(RoleAdmin) {
			return ruleAllow()
		}
		if actor.Tier() == TierDeptLead && doc.DepartmentID == actor.DepartmentID {
			return ruleAllow()
		}
		return ruleDeny("")
	case AbilityForward:
		// Forwarding is only legal for the current recipient.
		if doc.RoutedToActor {
			return ruleAllow()
		}
		return ruleDeny("document was not routed to you")
	case AbilityUpdate, AbilityDelete:
		return departmentTierRule(actor, doc.DepartmentID)
	case AbilityForceDelete:
		if actor.HasRole(RoleAdmin) {
			return ruleAllow()
		}
		return ruleDeny("")
	default:
		return ruleAbstain()
	}
}

func storageRule(actor Actor, doc DocumentRef, ability Ability) ruling {
	switch ability {
	case AbilityView, AbilityDownload:
		if actor.HasRole(RoleAdmin) {
			return ruleAllow()
		}
		if doc.DepartmentID == actor.DepartmentID {
			return ruleAllow()
		}
		return ruleDeny("")
	case AbilityUpdate, AbilityDelete:
		return departmentTierRule(actor, doc.DepartmentID)
	default:
		return ruleAbstain()
	}
}

// departmentTierRule is the shared destructive-edit rule: admins pass, others
// need department match and at least secretary tier.
func departmentTierRule(actor Actor, departmentID int64) ruling {
	if actor.HasRole(RoleAdmin) {
		return ruleAllow()
	}
	if departmentID != actor.DepartmentID {
		return ruleDeny("")
	}
	if actor.Tier() >= TierSecretary {
		return ruleAllow()
	}
	return ruleDeny("")
}
