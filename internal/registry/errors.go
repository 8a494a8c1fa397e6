package registry

import (
	"errors"
	"fmt"
)

// ErrFrozen is returned by Register once the registry has been frozen.
var ErrFrozen = errors.New("registry is frozen")

// UnknownComponentError reports a (kind, name) pair that is not registered,
// or a parameter key that the named component does not accept. A Kind outside
// Kinds means the configuration named a section that is not a component kind.
type UnknownComponentError struct {
	Kind  Kind
	Name  string
	Param string
}

func (e *UnknownComponentError) Error() string {
	if !e.Kind.known() {
		return fmt.Sprintf("unknown component kind %q", string(e.Kind))
	}
	if e.Name == "" {
		return fmt.Sprintf("%s section has no name and no default %s is registered", e.Kind, e.Kind)
	}
	if e.Param != "" {
		return fmt.Sprintf("%s %q has no parameter %q", e.Kind, e.Name, e.Param)
	}
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// DuplicateRegistrationError reports a second registration of the same
// (kind, name) pair.
type DuplicateRegistrationError struct {
	Kind Kind
	Name string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("%s %q is already registered", e.Kind, e.Name)
}
