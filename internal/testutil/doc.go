// Package testutil contains fakes and builders shared by tests: capability
// ports backed by testify mocks or plain functions, and fluent builders for
// agent results. Not intended for production usage.
package testutil
