// Package resolve turns a declarative configuration into an ordered list of
// component specs. It merges supplied parameters over registry defaults,
// rejects unknown names and parameter keys, and resolves each component's
// dependencies by kind rather than by explicit reference.
package resolve
