package record

import "fmt"

// DuplicateIDError is returned by AddService when id is already registered.
type DuplicateIDError struct {
	ID ID
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("record: service id %d is already registered", e.ID)
}

// NameConflictError is returned by AddService when an active (non-exiting)
// service already owns the requested instance name.
type NameConflictError struct {
	InstanceName string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("record: instance name %q is already in use", e.InstanceName)
}

// UnknownIDError is returned when an operation references a service id that
// is not registered.
type UnknownIDError struct {
	ID ID
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("record: service id %d is not registered", e.ID)
}

// InvalidStateError is returned when an operation is attempted against a
// service in a state that does not permit it (for example, probing or
// renaming a service that is already exiting).
type InvalidStateError struct {
	ID    ID
	State ServiceState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("record: service id %d is in state %s", e.ID, e.State)
}
