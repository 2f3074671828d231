package statetree

import (
	"reflect"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// stateKind mirrors spec.md 6.3's TreeStateType/NodeKind, but is only ever
// computed at Materialize time - before that, whether a state ends up a
// leaf or interior depends on children declared after it.
type stateKind int

const (
	kindRoot stateKind = iota
	kindInterior
	kindLeaf
)

func (k stateKind) String() string {
	switch k {
	case kindRoot:
		return "root"
	case kindInterior:
		return "interior"
	default:
		return "leaf"
	}
}

// messageKey is the ordered-map key for a state's message handler table: a
// handler is keyed by exact message type (spec.md 9: no subtype coercion),
// optionally narrowed to one specific message value.
type messageKey struct {
	typ     reflect.Type
	val     any
	byValue bool
}

// stateRecord is the type-erased, non-generic accumulator backing every
// StateBuilder[D, C]. The generic builder types are a thin, type-safe API
// surface over this shared representation - the same split
// felixgeelhaar-statekit draws between its typed builder package and its
// untyped internal/ir.
type stateRecord struct {
	id string

	hasParent bool
	parentID  string
	childIDs  []string // not filled in: Materialize and Describe use the children index validateTree returns

	isFinal bool

	hasDataType bool
	dataType    reflect.Type
	initialData func(ctxBox any) any // func(TransitionContext[NoData, D, C]) D, erased

	hasInitialChild    bool
	initialChildStatic *string
	initialChildFunc   func(ctxBox any) string

	filters  []any
	metadata map[string]any

	onEnter any // *TransitionHandlerDescriptor[A, D, C], boxed
	onExit  any

	messageHandlers *orderedmap.OrderedMap[messageKey, any] // any = *MessageHandlerDescriptor[M, A, D, C]
	openHandler     any                                     // *MessageHandlerDescriptor[any, NoData, D, C], mutually exclusive with messageHandlers

	codec any

	isMachine      bool
	hasMachineDone bool
	machineInitial func(ctxBox any) any
	machineIsDone  func(any) bool
	onMachineDone  any
}

func newStateRecord(id string) *stateRecord {
	return &stateRecord{id: id, messageHandlers: orderedmap.New[messageKey, any]()}
}

// StateBuilder is the per-state fluent accumulator passed to a state's
// build callback (spec.md 4.2). D is the state's own data type (NoData for
// plain states); C is the tree-wide context type shared by every state in
// the tree, playing the role of the teacher's extended state E.
type StateBuilder[D, C any] struct {
	tb  *TreeBuilder[C]
	rec *stateRecord

	enterActions []TransitionAction[NoData, D, C]
	exitActions  []TransitionAction[NoData, D, C]
}

// Key returns the Key this builder is registering.
func (sb *StateBuilder[D, C]) Key() Key {
	return Key{id: sb.rec.id}
}

// Parent sets (or overrides) the declared parent of this state.
func (sb *StateBuilder[D, C]) Parent(parent Key) *StateBuilder[D, C] {
	sb.rec.hasParent = true
	sb.rec.parentID = parent.id
	return sb
}

// InitialChild statically declares which child this state enters by
// default. Statically-declared initial children are validated at
// Materialize (spec.md invariants 2-4); see InitialChildFunc for the
// opaque, runtime-only alternative.
func (sb *StateBuilder[D, C]) InitialChild(child Key) *StateBuilder[D, C] {
	sb.rec.hasInitialChild = true
	id := child.id
	sb.rec.initialChildStatic = &id
	sb.rec.initialChildFunc = nil
	return sb
}

// InitialChildFunc declares an opaque, runtime-resolved initial child.
// Opaque resolvers are not statically validated (spec.md 4.1's tie-break
// policy) but are reachable at runtime via the materialized NodeBuildInfo.
func (sb *StateBuilder[D, C]) InitialChildFunc(resolve func(TransitionContext[NoData, D, C]) Key) *StateBuilder[D, C] {
	sb.rec.hasInitialChild = true
	sb.rec.initialChildStatic = nil
	sb.rec.initialChildFunc = func(ctxBox any) string {
		return resolve(ctxBox.(TransitionContext[NoData, D, C])).id
	}
	return sb
}

// Filter attaches an opaque pass-through value consumed by the executor
// (spec.md 3.2's "filters").
func (sb *StateBuilder[D, C]) Filter(filter any) *StateBuilder[D, C] {
	sb.rec.filters = append(sb.rec.filters, filter)
	return sb
}

// Meta attaches an opaque metadata key/value pair on the state itself.
func (sb *StateBuilder[D, C]) Meta(key string, value any) *StateBuilder[D, C] {
	if sb.rec.metadata == nil {
		sb.rec.metadata = make(map[string]any)
	}
	sb.rec.metadata[key] = value
	return sb
}

// Codec attaches an opaque state-data persistence descriptor, never
// interpreted by this package (spec.md 3.2).
func (sb *StateBuilder[D, C]) Codec(codec any) *StateBuilder[D, C] {
	sb.rec.codec = codec
	return sb
}

// HandleOnEnter registers an entry action directly, without going through
// the descriptor builder. May be called multiple times; actions combine,
// in declaration order, the way the teacher's combineActions does for
// StateBuilder[E].Entry (state.go). A later OnEnter call replaces this slot
// outright (spec.md 3.5).
func (sb *StateBuilder[D, C]) HandleOnEnter(label string, fn func(TransitionContext[NoData, D, C])) *StateBuilder[D, C] {
	sb.enterActions = append(sb.enterActions, TransitionAction[NoData, D, C]{Name: label, Run: fn})
	sb.rec.onEnter = combinedRunDescriptor(sb.enterActions)
	return sb
}

// HandleOnExit is the exit-side counterpart of HandleOnEnter.
func (sb *StateBuilder[D, C]) HandleOnExit(label string, fn func(TransitionContext[NoData, D, C])) *StateBuilder[D, C] {
	sb.exitActions = append(sb.exitActions, TransitionAction[NoData, D, C]{Name: label, Run: fn})
	sb.rec.onExit = combinedRunDescriptor(sb.exitActions)
	return sb
}

func combinedRunDescriptor[D, C any](actions []TransitionAction[NoData, D, C]) *TransitionHandlerDescriptor[NoData, D, C] {
	actionsCopy := append([]TransitionAction[NoData, D, C]{}, actions...)
	return &TransitionHandlerDescriptor[NoData, D, C]{
		Info: TransitionHandlerInfo{Kind: TransitionHandlerRun, Actions: transitionActionNames(actionsCopy)},
		MakeHandler: func() TransitionHandlerFunc[NoData, D, C] {
			return func(ctx TransitionContext[NoData, D, C]) FutureOr[TransitionOutcome[D]] {
				runTransitionActions(ctx, actionsCopy)
				return Resolved(TransitionOutcome[D]{})
			}
		},
	}
}

// OnEnter replaces the on_enter slot with a fully-built descriptor,
// discarding anything accumulated via HandleOnEnter.
func (sb *StateBuilder[D, C]) OnEnter(build func(*TransitionHandlerBuilder[NoData, D, C])) *StateBuilder[D, C] {
	b := &TransitionHandlerBuilder[NoData, D, C]{}
	build(b)
	sb.enterActions = nil
	sb.rec.onEnter = b.result
	return sb
}

// OnExit is the exit-side counterpart of OnEnter.
func (sb *StateBuilder[D, C]) OnExit(build func(*TransitionHandlerBuilder[NoData, D, C])) *StateBuilder[D, C] {
	b := &TransitionHandlerBuilder[NoData, D, C]{}
	build(b)
	sb.exitActions = nil
	sb.rec.onExit = b.result
	return sb
}

// OnEnterWithData is a package-level function (not a method) because DAnc
// is a type parameter beyond the builder's own D, C - Go forbids generic
// methods (DESIGN.md's "Open Question: generic methods"). The ancestor's
// data is reachable via TransitionContext.Ancestor.
func OnEnterWithData[DAnc, D, C any](sb *StateBuilder[D, C], ancestor DataKey[DAnc], build func(*TransitionHandlerBuilder[DAnc, D, C])) *StateBuilder[D, C] {
	b := &TransitionHandlerBuilder[DAnc, D, C]{}
	build(b)
	sb.rec.onEnter = b.result
	return sb
}

// OnExitWithData is the exit-side counterpart of OnEnterWithData.
func OnExitWithData[DAnc, D, C any](sb *StateBuilder[D, C], ancestor DataKey[DAnc], build func(*TransitionHandlerBuilder[DAnc, D, C])) *StateBuilder[D, C] {
	b := &TransitionHandlerBuilder[DAnc, D, C]{}
	build(b)
	sb.rec.onExit = b.result
	return sb
}

// OnEnterFromChannel obliges the source transition to supply a P (spec.md
// 3.3); the payload is reachable via TransitionContext.Ancestor.
func OnEnterFromChannel[P, D, C any](sb *StateBuilder[D, C], ch Channel[P], build func(*TransitionHandlerBuilder[P, D, C])) *StateBuilder[D, C] {
	b := &TransitionHandlerBuilder[P, D, C]{}
	build(b)
	sb.rec.onEnter = b.result
	return sb
}

// HandleOnMessage installs an open-coded fallthrough handler that is
// mutually exclusive with the keyed message-handler map: if both are
// present, the open-coded handler wins and the map is never consulted
// (spec.md 4.2).
func (sb *StateBuilder[D, C]) HandleOnMessage(fn func(HandlerContext[any, NoData, D, C]) FutureOr[MessageOutcome]) *StateBuilder[D, C] {
	sb.rec.openHandler = &MessageHandlerDescriptor[any, NoData, D, C]{
		Info:        MessageHandlerInfo{Kind: MessageHandlerOpaque, Label: "open-coded"},
		MakeHandler: func() MessageHandlerFunc[any, NoData, D, C] { return fn },
	}
	return sb
}

// OnMessage registers a descriptor keyed by exact message type M, unless
// one or more specific message values are supplied, in which case it is
// keyed by value equality instead (spec.md 4.2). Package-level because M is
// a type parameter beyond the builder's own D, C.
func OnMessage[M, D, C any](sb *StateBuilder[D, C], build func(*MessageHandlerBuilder[M, NoData, D, C]), messages ...M) *StateBuilder[D, C] {
	b := &MessageHandlerBuilder[M, NoData, D, C]{}
	build(b)
	requireTerminated(b.result, "OnMessage")
	registerMessageHandler(sb.rec, messages, b.result)
	return sb
}

// OnMessageWithData is the ancestor-data-aware form of OnMessage.
func OnMessageWithData[M, DAnc, D, C any](sb *StateBuilder[D, C], ancestor DataKey[DAnc], build func(*MessageHandlerBuilder[M, DAnc, D, C]), messages ...M) *StateBuilder[D, C] {
	b := &MessageHandlerBuilder[M, DAnc, D, C]{}
	build(b)
	requireTerminated(b.result, "OnMessageWithData")
	registerMessageHandler(sb.rec, messages, b.result)
	return sb
}

// OnMessageValue registers a descriptor keyed by equality to a single
// value, with an optional diagnostic name.
func OnMessageValue[M, D, C any](sb *StateBuilder[D, C], value M, build func(*MessageHandlerBuilder[M, NoData, D, C]), name string) *StateBuilder[D, C] {
	b := &MessageHandlerBuilder[M, NoData, D, C]{}
	build(b)
	requireTerminated(b.result, "OnMessageValue")
	if name != "" {
		b.result.Info.MessageName = name
	}
	registerMessageHandler(sb.rec, []M{value}, b.result)
	return sb
}

func requireTerminated(result any, who string) {
	if result == nil || reflect.ValueOf(result).IsNil() {
		panic("statetree: " + who + "'s desc_build callback did not terminate with a handler kind")
	}
}

func registerMessageHandler[M, A, D, C any](rec *stateRecord, messages []M, desc *MessageHandlerDescriptor[M, A, D, C]) {
	typ := messageTypeOf[M]()
	if len(messages) == 0 {
		rec.messageHandlers.Set(messageKey{typ: typ}, desc)
		return
	}
	for _, m := range messages {
		rec.messageHandlers.Set(messageKey{typ: typ, val: m, byValue: true}, desc)
	}
}

// OnMachineDone registers the handler run when a nested sub-machine
// (declared via MachineState) reaches its done condition. Required for
// every machine state (spec.md 7's MissingMachineDoneHandler).
func OnMachineDone[M, C any](sb *StateBuilder[M, C], build func(*MessageHandlerBuilder[NoData, NoData, M, C])) *StateBuilder[M, C] {
	b := &MessageHandlerBuilder[NoData, NoData, M, C]{}
	build(b)
	requireTerminated(b.result, "OnMachineDone")
	sb.rec.hasMachineDone = true
	sb.rec.onMachineDone = b.result
	return sb
}
