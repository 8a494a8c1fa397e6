// Package backend defines the execution-context interface that quantum
// algorithms submit circuits to, along with the circuit and request types
// exchanged between algorithms and backend implementations (simulators or
// devices).
package backend
