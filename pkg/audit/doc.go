// Package audit records an audit trail of notification authorization
// decisions: every rejection and every admin-category acceptance is written
// as an Event through the Logger interface.
//
// Storage is pluggable; a bounded in-memory implementation is provided for
// development and testing. Events can be queried back with Criteria filters
// (actor, recipient, action, result, time range), newest first.
package audit
