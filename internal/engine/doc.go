// Package engine is the execution facade. It runs an algorithm either from
// already-constructed components (Run) or from a configuration that it
// resolves and assembles against the component registry (RunConfig), then
// normalises the result for the problem type.
//
// Runs are recorded in the store when one is configured, timed by
// Prometheus metrics and traced with OpenTelemetry. Submit executes a
// configuration asynchronously and streams progress lines through the
// engine's ProgressBroker.
package engine
