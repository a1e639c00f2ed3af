// Package chat answers follow-up questions against a stored report.
//
// A follow-up turn never touches a data source. The reasoner sees the
// report and prior turns as grounding and is offered a single action,
// request_new_research, for questions that need fresh data.
package chat
