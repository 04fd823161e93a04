// Package permission maps a role name onto an allow/deny rule set over
// (action, resource) pairs. The tables are static and re-derivable from the
// role name alone, so rule sets are built once at init and never mutated.
package permission

import "github.com/spec-kit/crm-backend/internal/domain"

// Action enumerates the verbs a rule can grant or deny.
type Action string

const (
	ActionManage Action = "manage"
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resource enumerates protected resource types.
type Resource string

const (
	ResourceClient      Resource = "client"
	ResourceTicket      Resource = "ticket"
	ResourceMessage     Resource = "message"
	ResourceCall        Resource = "call"
	ResourceTask        Resource = "task"
	ResourceComment     Resource = "comment"
	ResourceQuickReply  Resource = "quick_reply"
	ResourceMediaFile   Resource = "media_file"
	ResourceSupportLine Resource = "support_line"
	ResourceFunnel      Resource = "funnel"
	ResourceReport      Resource = "report"
	ResourceUser        Resource = "user"
	ResourceRole        Resource = "role"
	ResourceAISetting   Resource = "ai_setting"
	ResourceSetting     Resource = "setting"
)

type pair struct {
	action   Action
	resource Resource
}

// RuleSet is an immutable evaluation table for one role.
type RuleSet struct {
	manageAll bool
	allow     map[pair]struct{}
	deny      map[Resource]struct{}
}

// Can reports whether the rule set permits action on resource.
// Deny takes precedence over any grant, including manage.
func (rs RuleSet) Can(action Action, resource Resource) bool {
	if _, denied := rs.deny[resource]; denied {
		return false
	}
	if rs.manageAll {
		return true
	}
	if _, ok := rs.allow[pair{ActionManage, resource}]; ok {
		return true
	}
	_, ok := rs.allow[pair{action, resource}]
	return ok
}

var rulesByRole map[domain.RoleName]RuleSet

func init() {
	rulesByRole = map[domain.RoleName]RuleSet{
		domain.RoleAdmin: {manageAll: true},
	}
	for _, role := range []domain.RoleName{domain.RoleOperator1, domain.RoleOperator2, domain.RoleOperator3} {
		rulesByRole[role] = operatorRules()
	}
}

func operatorRules() RuleSet {
	allow := make(map[pair]struct{})
	for _, res := range []Resource{ResourceClient, ResourceTicket, ResourceMessage, ResourceCall, ResourceTask, ResourceComment} {
		allow[pair{ActionRead, res}] = struct{}{}
		allow[pair{ActionCreate, res}] = struct{}{}
		allow[pair{ActionUpdate, res}] = struct{}{}
	}
	for _, res := range []Resource{ResourceQuickReply, ResourceMediaFile, ResourceSupportLine, ResourceFunnel, ResourceReport} {
		allow[pair{ActionRead, res}] = struct{}{}
	}
	deny := map[Resource]struct{}{
		ResourceUser:      {},
		ResourceRole:      {},
		ResourceAISetting: {},
		ResourceSetting:   {},
	}
	return RuleSet{allow: allow, deny: deny}
}

// RulesFor returns the rule set for the role. Unknown roles get an empty,
// default-deny set.
func RulesFor(role domain.RoleName) RuleSet {
	if rs, ok := rulesByRole[role]; ok {
		return rs
	}
	return RuleSet{}
}

// Evaluate is the single-call form used by the authorization middleware.
// It never returns an error: a disallowed pair simply evaluates to false.
func Evaluate(role domain.RoleName, action Action, resource Resource) bool {
	return RulesFor(role).Can(action, resource)
}
