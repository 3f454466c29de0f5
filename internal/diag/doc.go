// Package diag defines the diagnostic model shared by configuration
// loading, scanning and bundling.
//
// Diagnostic is the central record: a Severity, a stable Code, a short
// message and an optional source location (bundler messages carry file,
// line and column when the external bundler reports them). Bag aggregates
// diagnostics with a cap, supports merging across phases, deterministic
// sorting and deduplication.
//
// The package performs no IO beyond Pretty, which renders a sorted bag for
// the CLI. Producers construct diagnostics with New/NewError/NewWarning and
// add context via WithNote; keep messages short and actionable.
package diag
