package statetree

import "reflect"

// HistoryKind is inspectable metadata carried on a MessageHandlerInfo (and
// on a TransitionHandlerInfo) so an external runtime or diagram renderer -
// Describe copies it onto each go-to edge - can treat a go-to as entering a
// composite state's shallow or deep history, the way the teacher's
// transition.history field does for its PlantUML renderer. The core never
// interprets this value.
type HistoryKind int

const (
	HistoryNone HistoryKind = iota
	HistoryShallow
	HistoryDeep
)

func (h HistoryKind) String() string {
	switch h {
	case HistoryShallow:
		return "shallow"
	case HistoryDeep:
		return "deep"
	default:
		return "none"
	}
}

// MessageHandlerType enumerates the kinds of message handler a descriptor
// can describe.
type MessageHandlerType int

const (
	MessageHandlerGoTo MessageHandlerType = iota
	MessageHandlerGoToSelf
	MessageHandlerStay
	MessageHandlerUnhandled
	MessageHandlerWhen
	MessageHandlerWhenWithContext
	MessageHandlerWhenResult
	MessageHandlerOpaque
)

// TransitionHandlerType enumerates the kinds of transition (entry/exit)
// handler a descriptor can describe.
type TransitionHandlerType int

const (
	TransitionHandlerRun TransitionHandlerType = iota
	TransitionHandlerPost
	TransitionHandlerSchedule
	TransitionHandlerUpdateData
	TransitionHandlerWhen
	TransitionHandlerWhenResult
)

// ConditionInfo is the inspectable half of one guarded alternative in a
// When/WhenWithContext chain. For a When chain, the matched branch's own
// Info is known at declaration time and carried recursively here, so a
// go_to nested inside a guarded branch is just as inspectable - to the
// validator and to Describe - as one declared directly on the state.
// WhenWithContext branches build their sub-descriptor from a value resolved
// at dispatch time, so they have no sub-descriptor to attach here; both
// fields stay nil for those.
type ConditionInfo struct {
	Label          string
	MessageInfo    *MessageHandlerInfo
	TransitionInfo *TransitionHandlerInfo
}

// MessageHandlerInfo is the inspectable half of a MessageHandlerDescriptor:
// enough to render a diagram and to validate go-to targets without
// executing anything (spec.md 4.3).
type MessageHandlerInfo struct {
	Kind        MessageHandlerType
	MessageType reflect.Type
	Actions     []string
	Conditions  []ConditionInfo
	MessageName string
	Label       string
	Metadata    map[string]any
	GoToTarget  *Key
	History     HistoryKind
}

// TransitionHandlerInfo is the inspectable half of a
// TransitionHandlerDescriptor.
type TransitionHandlerInfo struct {
	Kind            TransitionHandlerType
	Actions         []string
	Conditions      []ConditionInfo
	Label           string
	Metadata        map[string]any
	PostMessageType reflect.Type
	UpdateDataType  reflect.Type
	History         HistoryKind
}

// MessageOutcome is what a MessageHandlerFunc reports back to the external
// executor: either a transition request, or a refusal to handle (which the
// executor escalates to the parent state per spec.md 4.2).
type MessageOutcome struct {
	Kind   MessageHandlerType
	Target Key // meaningful only when Kind == MessageHandlerGoTo
}

// GoTo builds a MessageOutcome requesting a transition to target.
func GoTo(target Key) MessageOutcome {
	return MessageOutcome{Kind: MessageHandlerGoTo, Target: target}
}

// GoToSelf builds a MessageOutcome requesting a self-transition.
func GoToSelf() MessageOutcome {
	return MessageOutcome{Kind: MessageHandlerGoToSelf}
}

// Stay builds a MessageOutcome that handles the message without changing
// state.
func Stay() MessageOutcome {
	return MessageOutcome{Kind: MessageHandlerStay}
}

// Unhandled builds a MessageOutcome escalating the message to the parent
// state.
func Unhandled() MessageOutcome {
	return MessageOutcome{Kind: MessageHandlerUnhandled}
}

// MessageHandlerFunc is the executable handler a descriptor's factory
// produces. The executor invokes it with the live HandlerContext. A is the
// ancestor data type for OnMessageWithData, or NoData for plain OnMessage.
type MessageHandlerFunc[M, A, D, C any] func(HandlerContext[M, A, D, C]) FutureOr[MessageOutcome]

// MessageHandlerDescriptor pairs inspectable Info with a factory producing
// an executable handler. The spec's two-stage make_context/make_handler
// split is collapsed into a single MakeHandler factory here: Go closures
// already capture whatever derived state a builder assembled, so the
// separate context stage is redundant in this language (see DESIGN.md).
type MessageHandlerDescriptor[M, A, D, C any] struct {
	Info        MessageHandlerInfo
	MakeHandler func() MessageHandlerFunc[M, A, D, C]
}

// messageDescriptor lets non-generic code (the validator, describe.go, and
// stateRecord's ordered maps) read a type-erased descriptor's inspectable
// half without knowing its M/A/D/C.
type messageDescriptor interface {
	handlerInfo() MessageHandlerInfo
}

func (d *MessageHandlerDescriptor[M, A, D, C]) handlerInfo() MessageHandlerInfo {
	return d.Info
}

// transitionDescriptor is the TransitionHandlerDescriptor analogue of
// messageDescriptor.
type transitionDescriptor interface {
	handlerInfo() TransitionHandlerInfo
}

func (d *TransitionHandlerDescriptor[A, D, C]) handlerInfo() TransitionHandlerInfo {
	return d.Info
}

// TransitionOutcome is what a TransitionHandlerFunc reports back: an
// optional replacement value for the state's own data (UpdateData kind).
type TransitionOutcome[D any] struct {
	HasUpdate bool
	Data      D
}

// TransitionHandlerFunc is the executable handler a transition descriptor's
// factory produces.
type TransitionHandlerFunc[A, D, C any] func(TransitionContext[A, D, C]) FutureOr[TransitionOutcome[D]]

// TransitionHandlerDescriptor pairs inspectable Info with a factory
// producing an executable entry/exit handler.
type TransitionHandlerDescriptor[A, D, C any] struct {
	Info        TransitionHandlerInfo
	MakeHandler func() TransitionHandlerFunc[A, D, C]
}

// messageTypeOf returns the reflect.Type for M, used as the exact-match key
// for type-keyed message handlers (spec.md 9: exact runtime type, never a
// subtype).
func messageTypeOf[M any]() reflect.Type {
	return reflect.TypeOf((*M)(nil)).Elem()
}
