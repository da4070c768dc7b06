package authz

import (
	"context"
	"fmt"
)

// Ability is a named action an actor may attempt against a resource.
type Ability string

// Abilities understood by the resource policies.
const (
	AbilityViewAny     Ability = "viewAny"
	AbilityView        Ability = "view"
	AbilityCreate      Ability = "create"
	AbilityUpdate      Ability = "update"
	AbilityDelete      Ability = "delete"
	AbilityForceDelete Ability = "forceDelete"
	AbilityDownload    Ability = "download"
	AbilityForward     Ability = "forward"
	AbilityAssign      Ability = "assign"
	AbilityResolve     Ability = "resolve"
	AbilityCheckOut    Ability = "checkOut"
	AbilityDeactivate  Ability = "deactivate"
	AbilityAssignRole  Ability = "assignRole"
)

// Decision is the structured outcome of an authorization check. Denials carry
// an optional human-readable reason for the calling layer to render.
type Decision struct {
	Allowed bool
	Reason  string
}

// Well-known denial reasons.
const (
	ReasonMissingPermission = "missing-permission"
	ReasonAccountInactive   = "account is inactive"
	ReasonOwnAccount        = "cannot act on own account"
)

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// verdict is the outcome of one pipeline stage. abstain passes control to the
// next stage; allowed/denied are definitive.
type verdict int

const (
	abstain verdict = iota
	allowed
	denied
)

type ruling struct {
	verdict verdict
	reason  string
}

func ruleAllow() ruling             { return ruling{verdict: allowed} }
func ruleDeny(reason string) ruling { return ruling{verdict: denied, reason: reason} }
func ruleAbstain() ruling           { return ruling{verdict: abstain} }

// Resource marks the typed resource snapshots the engine can evaluate.
// Relationship facts that require a store lookup (for example "was this
// document routed to the actor") are materialized by the caller.
type Resource interface {
	policyKind() string
}

// Observer receives every decision, typically to feed metrics.
type Observer func(resource string, ability Ability, allowed bool)

// Engine evaluates authorization decisions through an ordered guard pipeline:
// pre-checks, then the capability check against the role graph, then the
// per-resource relationship rule. Decisions are computed fresh on every call;
// resource state changes between calls, so they are never cached.
type Engine struct {
	graph    *RoleGraph
	observer Observer
}

// NewEngine builds an engine over a resolved role graph.
func NewEngine(graph *RoleGraph) *Engine {
	return &Engine{graph: graph}
}

// SetObserver installs a decision observer. Must be called before serving.
func (e *Engine) SetObserver(obs Observer) {
	e.observer = obs
}

// EffectivePermissions returns the union of the resolved sets of every role
// the actor holds.
func (e *Engine) EffectivePermissions(actor Actor) (PermissionSet, error) {
	union := make(PermissionSet)
	for _, role := range actor.Roles {
		set, err := e.graph.Resolve(role)
		if err != nil {
			return nil, err
		}
		for perm := range set {
			union[perm] = struct{}{}
		}
	}
	return union, nil
}

// Check decides whether the actor may perform the ability on the resource.
// A nil resource means the ability is not resource-bound (viewAny, create);
// capability presence alone is then sufficient.
func (e *Engine) Check(ctx context.Context, actor Actor, ability Ability, resource Resource) Decision {
	decision := e.check(ctx, actor, ability, resource)
	if e.observer != nil {
		kind := "none"
		if resource != nil {
			kind = resource.policyKind()
		}
		e.observer(kind, ability, decision.Allowed)
	}
	return decision
}

func (e *Engine) check(_ context.Context, actor Actor, ability Ability, resource Resource) Decision {
	if !actor.IsActive {
		return deny(ReasonAccountInactive)
	}

	// Pre-check: the top role short-circuits everything except the carve-outs
	// that must stay vetoable, which fall through to the resource rule.
	if actor.HasRole(RoleSuperAdmin) && !deferSuperAdmin(actor, ability, resource) {
		return allow()
	}

	perms, err := e.EffectivePermissions(actor)
	if err != nil {
		return deny(fmt.Sprintf("role resolution failed: %v", err))
	}

	policy := policyFor(resource)
	if required := policy.required(ability); len(required) > 0 && !perms.HasAny(required...) {
		return deny(ReasonMissingPermission)
	}

	if resource == nil {
		return allow()
	}
	switch r := policy.rule(actor, perms, ability, resource); r.verdict {
	case allowed:
		return allow()
	case denied:
		if r.reason == "" {
			return deny("")
		}
		return deny(r.reason)
	default:
		// No relationship rule applied; capability presence decides.
		return allow()
	}
}

// deferSuperAdmin lists the abilities the super-admin pre-check must not
// short-circuit: self-targeting account administration, and incident deletion,
// whose resolved/closed veto applies to every role.
func deferSuperAdmin(actor Actor, ability Ability, resource Resource) bool {
	switch ref := resource.(type) {
	case UserRef:
		return ref.ID == actor.ID && isAccountAdminAbility(ability)
	case RoleAssignmentRef:
		return ref.Target.ID == actor.ID
	case IncidentRef:
		return ability == AbilityDelete || ability == AbilityForceDelete
	case VisitRef:
		return ability == AbilityDelete || ability == AbilityForceDelete || ability == AbilityCheckOut
	default:
		return false
	}
}

func isAccountAdminAbility(ability Ability) bool {
	switch ability {
	case AbilityUpdate, AbilityDeactivate, AbilityDelete, AbilityForceDelete, AbilityAssignRole:
		return true
	}
	return false
}

// policy binds the required-permission table and the relationship rule for
// one resource kind.
type policy struct {
	required func(Ability) []string
	rule     func(actor Actor, perms PermissionSet, ability Ability, resource Resource) ruling
}

func policyFor(resource Resource) policy {
	switch resource.(type) {
	case nil:
		return policy{required: func(Ability) []string { return nil }}
	case DocumentRef:
		return documentPolicy
	case IncidentRef:
		return incidentPolicy
	case VisitRef:
		return visitorPolicy
	case UserRef, RoleAssignmentRef:
		return userPolicy
	default:
		return policy{
			required: func(Ability) []string { return nil },
			rule: func(Actor, PermissionSet, Ability, Resource) ruling {
				return ruleDeny("unknown resource kind")
			},
		}
	}
}
