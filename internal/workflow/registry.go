// Package workflow defines the per-kind status registries and the transition
// engine that applies them.
package workflow

import (
	"github.com/spec-kit/factory-workflow/internal/domain"
)

// Action names a user-requested operation on an item.
type Action string

const (
	ActionAssign          Action = "assign"
	ActionStart           Action = "start"
	ActionResolve         Action = "resolve"
	ActionClose           Action = "close"
	ActionSetPriority     Action = "set_priority"
	ActionReview          Action = "review"
	ActionSetDifficulty   Action = "set_difficulty"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionImplement       Action = "implement"
	ActionForward         Action = "forward"
	ActionRespond         Action = "respond"
	ActionPublish         Action = "publish"
	ActionRequestRevision Action = "request_revision"

	// ActionEscalate is not a status transition: it toggles the escalated
	// side channel and leaves status untouched.
	ActionEscalate Action = "escalate"
)

// Rule allows an action from a set of states for a set of roles.
type Rule struct {
	Action Action
	From   []domain.Status
	// To is the resulting status; empty keeps the current status.
	To    domain.Status
	Roles []domain.Role
	// Gated marks approve/publish class rules subject to the difficulty gate.
	Gated bool
}

// Definition is the closed state machine for one item kind.
type Definition struct {
	Kind                         domain.Kind
	Initial                      domain.Status
	States                       []domain.Status
	Terminal                     []domain.Status
	RequireDifficultyForApproval bool
	Rules                        []Rule
}

var escalateRoles = []domain.Role{domain.RoleSupervisor, domain.RoleCoordinator, domain.RoleAdmin}

var (
	managers     = []domain.Role{domain.RoleSupervisor, domain.RoleAdmin}
	workers      = []domain.Role{domain.RoleTechnician, domain.RoleSupervisor, domain.RoleAdmin}
	coordinators = []domain.Role{domain.RoleCoordinator, domain.RoleAdmin}
	responders   = []domain.Role{domain.RoleDepartment, domain.RoleAdmin}
)

var incidentOpen = []domain.Status{domain.StatusPending, domain.StatusAssigned, domain.StatusInProgress}

var registry = map[domain.Kind]Definition{
	domain.KindIncident: {
		Kind:     domain.KindIncident,
		Initial:  domain.StatusPending,
		States:   []domain.Status{domain.StatusPending, domain.StatusAssigned, domain.StatusInProgress, domain.StatusResolved, domain.StatusClosed},
		Terminal: []domain.Status{domain.StatusResolved, domain.StatusClosed},
		Rules: []Rule{
			{Action: ActionAssign, From: []domain.Status{domain.StatusPending}, To: domain.StatusAssigned, Roles: managers},
			{Action: ActionAssign, From: []domain.Status{domain.StatusAssigned, domain.StatusInProgress}, Roles: managers},
			{Action: ActionStart, From: []domain.Status{domain.StatusAssigned}, To: domain.StatusInProgress, Roles: workers},
			{Action: ActionResolve, From: []domain.Status{domain.StatusAssigned, domain.StatusInProgress}, To: domain.StatusResolved, Roles: workers},
			{Action: ActionClose, From: incidentOpen, To: domain.StatusClosed, Roles: managers},
			{Action: ActionSetPriority, From: incidentOpen, Roles: managers},
		},
	},
	domain.KindPublicIdea: {
		Kind:                         domain.KindPublicIdea,
		Initial:                      domain.StatusNew,
		States:                       []domain.Status{domain.StatusNew, domain.StatusUnderReview, domain.StatusApproved, domain.StatusRejected, domain.StatusImplemented},
		Terminal:                     []domain.Status{domain.StatusRejected, domain.StatusImplemented},
		RequireDifficultyForApproval: true,
		Rules: []Rule{
			{Action: ActionReview, From: []domain.Status{domain.StatusNew}, To: domain.StatusUnderReview, Roles: coordinators},
			{Action: ActionSetDifficulty, From: []domain.Status{domain.StatusNew, domain.StatusUnderReview, domain.StatusApproved}, Roles: coordinators},
			{Action: ActionApprove, From: []domain.Status{domain.StatusUnderReview}, To: domain.StatusApproved, Roles: coordinators, Gated: true},
			{Action: ActionReject, From: []domain.Status{domain.StatusNew, domain.StatusUnderReview}, To: domain.StatusRejected, Roles: coordinators},
			{Action: ActionImplement, From: []domain.Status{domain.StatusApproved}, To: domain.StatusImplemented, Roles: coordinators},
		},
	},
	domain.KindSensitiveIdea: {
		Kind:     domain.KindSensitiveIdea,
		Initial:  domain.StatusNew,
		States:   []domain.Status{domain.StatusNew, domain.StatusForwarded, domain.StatusDepartmentResponded, domain.StatusNeedRevision, domain.StatusPublished},
		Terminal: []domain.Status{domain.StatusPublished},
		Rules: []Rule{
			{Action: ActionForward, From: []domain.Status{domain.StatusNew, domain.StatusNeedRevision}, To: domain.StatusForwarded, Roles: coordinators},
			{Action: ActionRespond, From: []domain.Status{domain.StatusForwarded, domain.StatusNeedRevision}, To: domain.StatusDepartmentResponded, Roles: responders},
			{Action: ActionPublish, From: []domain.Status{domain.StatusDepartmentResponded}, To: domain.StatusPublished, Roles: coordinators, Gated: true},
			// request_revision lands on need_revision, not forwarded, so the department can answer again without a fresh forward.
			{Action: ActionRequestRevision, From: []domain.Status{domain.StatusDepartmentResponded}, To: domain.StatusNeedRevision, Roles: coordinators},
			{Action: ActionSetDifficulty, From: []domain.Status{domain.StatusNew, domain.StatusForwarded, domain.StatusDepartmentResponded, domain.StatusNeedRevision}, Roles: coordinators},
		},
	},
}

// Lookup returns the definition registered for kind.
func Lookup(kind domain.Kind) (Definition, bool) {
	def, ok := registry[kind]
	return def, ok
}

// HasState reports whether s belongs to the kind's state set.
func (d Definition) HasState(s domain.Status) bool {
	return containsStatus(d.States, s)
}

// IsTerminal reports whether no status transition leaves s.
func (d Definition) IsTerminal(s domain.Status) bool {
	return containsStatus(d.Terminal, s)
}

// Rule finds the rule for action when the item is in status from.
func (d Definition) Rule(action Action, from domain.Status) (Rule, bool) {
	for _, r := range d.Rules {
		if r.Action == action && containsStatus(r.From, from) {
			return r, true
		}
	}
	return Rule{}, false
}

// CanTransition reports whether role may fire action on an item of kind in
// status. It considers only the registry; item-level preconditions such as
// the difficulty gate are checked by the Engine.
func CanTransition(kind domain.Kind, status domain.Status, action Action, role domain.Role) bool {
	def, ok := registry[kind]
	if !ok || !def.HasState(status) {
		return false
	}
	if action == ActionEscalate {
		return !def.IsTerminal(status) && containsRole(escalateRoles, role)
	}
	rule, ok := def.Rule(action, status)
	if !ok {
		return false
	}
	return containsRole(rule.Roles, role)
}

// AllowedActions lists the actions role may fire from status, in registry order.
func AllowedActions(kind domain.Kind, status domain.Status, role domain.Role) []Action {
	def, ok := registry[kind]
	if !ok {
		return nil
	}
	var out []Action
	seen := map[Action]struct{}{}
	for _, r := range def.Rules {
		if _, dup := seen[r.Action]; dup {
			continue
		}
		if CanTransition(kind, status, r.Action, role) {
			seen[r.Action] = struct{}{}
			out = append(out, r.Action)
		}
	}
	if CanTransition(kind, status, ActionEscalate, role) {
		out = append(out, ActionEscalate)
	}
	return out
}

func containsStatus(set []domain.Status, s domain.Status) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsRole(set []domain.Role, r domain.Role) bool {
	for _, candidate := range set {
		if candidate == r {
			return true
		}
	}
	return false
}
