package statetree

import "fmt"

// ErrorCode distinguishes the members of the TreeDefinitionError family.
type ErrorCode string

const (
	// DuplicateState: a key is registered twice. Raised eagerly, at the
	// registration call, as a panic rather than a returned error - see
	// TreeDefinitionError's doc comment.
	DuplicateState ErrorCode = "DuplicateState"
	// MissingInitialChild: a non-leaf, non-final state lacks an initial child.
	MissingInitialChild ErrorCode = "MissingInitialChild"
	// UnknownInitialChild: an initial child key isn't declared.
	UnknownInitialChild ErrorCode = "UnknownInitialChild"
	// InitialChildParentMismatch: an initial child's declared parent isn't
	// the referencing state.
	InitialChildParentMismatch ErrorCode = "InitialChildParentMismatch"
	// ImplicitRootInitialChildHasParent: with an implicit root, the initial
	// child must be a root-level state (no declared parent of its own).
	ImplicitRootInitialChildHasParent ErrorCode = "ImplicitRootInitialChildHasParent"
	// UnknownParent: a parent argument references an undeclared state.
	UnknownParent ErrorCode = "UnknownParent"
	// UnknownTransitionTarget: a go_to's target isn't declared.
	UnknownTransitionTarget ErrorCode = "UnknownTransitionTarget"
	// ParentCycle: walking parent edges from a node revisits a node.
	ParentCycle ErrorCode = "ParentCycle"
	// FinalAsParent: a state is declared with a final state as its parent.
	FinalAsParent ErrorCode = "FinalAsParent"
	// MissingMachineDoneHandler: a machine state was created without
	// OnMachineDone.
	MissingMachineDoneHandler ErrorCode = "MissingMachineDoneHandler"
)

// TreeDefinitionError is the single error family for all structural
// problems in a builder's declarations. DuplicateState is raised as a
// panic at declaration time (mirroring the teacher's panic-on-misuse
// style for programmer errors detectable immediately); every other code
// is returned from Materialize.
type TreeDefinitionError struct {
	Code     ErrorCode
	StateKey string // the state the error concerns, if any
	Target   string // the referenced key the error concerns, if any
	Detail   string
	cause    error
}

func (e *TreeDefinitionError) Error() string {
	switch {
	case e.StateKey != "" && e.Target != "":
		return fmt.Sprintf("statetree: %s: state %q: %s (target %q)", e.Code, e.StateKey, e.Detail, e.Target)
	case e.StateKey != "":
		return fmt.Sprintf("statetree: %s: state %q: %s", e.Code, e.StateKey, e.Detail)
	default:
		return fmt.Sprintf("statetree: %s: %s", e.Code, e.Detail)
	}
}

func (e *TreeDefinitionError) Unwrap() error {
	return e.cause
}

func errMissingInitialChild(stateKey string) *TreeDefinitionError {
	return &TreeDefinitionError{
		Code:     MissingInitialChild,
		StateKey: stateKey,
		Detail:   "non-leaf, non-final state must declare an initial child",
	}
}

func errUnknownInitialChild(stateKey, target string) *TreeDefinitionError {
	return &TreeDefinitionError{
		Code:     UnknownInitialChild,
		StateKey: stateKey,
		Target:   target,
		Detail:   "initial child is not a declared state",
	}
}

func errInitialChildParentMismatch(stateKey, target, actualParent string) *TreeDefinitionError {
	return &TreeDefinitionError{
		Code:     InitialChildParentMismatch,
		StateKey: stateKey,
		Target:   target,
		Detail:   fmt.Sprintf("initial child's declared parent is %q, not this state", actualParent),
	}
}

func errImplicitRootInitialChildHasParent(target, actualParent string) *TreeDefinitionError {
	return &TreeDefinitionError{
		Code:   ImplicitRootInitialChildHasParent,
		Target: target,
		Detail: fmt.Sprintf("implicit root's initial child must have no declared parent, but has parent %q", actualParent),
	}
}

func errUnknownParent(stateKey, parent string) *TreeDefinitionError {
	return &TreeDefinitionError{
		Code:     UnknownParent,
		StateKey: stateKey,
		Target:   parent,
		Detail:   "parent is not a declared state",
	}
}

func errUnknownTransitionTarget(stateKey, target string) *TreeDefinitionError {
	return &TreeDefinitionError{
		Code:     UnknownTransitionTarget,
		StateKey: stateKey,
		Target:   target,
		Detail:   "go-to transition target is not a declared state",
	}
}

func errParentCycle(stateKey string) *TreeDefinitionError {
	return &TreeDefinitionError{
		Code:     ParentCycle,
		StateKey: stateKey,
		Detail:   "parent edges form a cycle",
	}
}

func errFinalAsParent(stateKey, finalParent string) *TreeDefinitionError {
	return &TreeDefinitionError{
		Code:     FinalAsParent,
		StateKey: stateKey,
		Target:   finalParent,
		Detail:   "parent is a final state, which can never have children",
	}
}

func errMissingMachineDoneHandler(stateKey string) *TreeDefinitionError {
	return &TreeDefinitionError{
		Code:     MissingMachineDoneHandler,
		StateKey: stateKey,
		Detail:   "machine state must declare OnMachineDone",
	}
}

func panicDuplicateState(stateKey string) {
	panic(&TreeDefinitionError{
		Code:     DuplicateState,
		StateKey: stateKey,
		Detail:   "state already declared",
	})
}
