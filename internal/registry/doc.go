// Package registry holds the process-wide table of named component
// factories (algorithms, variational forms, optimizers, backends, inputs and
// problem types) together with their default parameters and declared
// dependencies. A registry is populated once and then frozen; lookups after
// that point are safe for concurrent use.
package registry
