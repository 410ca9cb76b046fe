package kmem

import (
	"fmt"
)

// FatalError is the panic value for broken allocator invariants and caller
// contract violations. Nothing is recoverable once one is raised: the
// allocator's state can no longer be trusted.
type FatalError struct {
	Invariant	string
	Detail		string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("kmem: %s: %s", e.Invariant, e.Detail)
}

func (a *Allocator) fatal(invariant string, format string, args ...any) {
	err := &FatalError{ Invariant: invariant, Detail: fmt.Sprintf(format, args...) }
	a.log.Error("fatal", "invariant", invariant, "detail", err.Detail)
	panic(err)
}
