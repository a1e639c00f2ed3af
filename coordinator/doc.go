// Package coordinator decomposes a research request into agent tasks,
// dispatches them to workers on a bounded pool and synthesizes the report.
//
// Per-task failures never abort a run: every planned focus area ends up as a
// report section, failed sections carry their classified error. Run only
// returns an error for invalid requests.
package coordinator
