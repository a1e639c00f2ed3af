// Package report turns worker results into the canonical research report.
//
// Synthesize is pure: the same results always yield the same sections,
// status and scores. The narrative summary is produced elsewhere and attached
// afterwards (see Degrade for the failure path).
package report
