// Package authz decides whether a sender may produce a given notification.
//
// Authorization is driven by a declarative RuleTable mapping message
// categories to the sender roles allowed to produce them, instead of ad hoc
// conditionals scattered over call sites. The table can be loaded from a YAML
// policy file (YAMLSource) or supplied in memory (StaticSource).
//
// Beyond the table the validator enforces two guards: a sender below
// moderator rank may not address another user (impersonation guard, bypassed
// and audit-logged for system-originated messages), and a targeted message
// whose RequiresRole cannot be satisfied by its target is rejected as a
// defense against misconfigured callers.
//
// Every rejection and every admin-category acceptance is written to the
// audit trail.
package authz
