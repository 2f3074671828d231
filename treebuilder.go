package statetree

import (
	"reflect"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// TreeBuilder accumulates a declarative state tree over context type C, the
// role the teacher's StateBuilder[E] plays for a single flat machine,
// generalized here to a hierarchy of states (spec.md 2). Apart from the
// duplicate-key panic raised at registration, nothing is validated until
// Materialize (or Describe) runs.
type TreeBuilder[C any] struct {
	rootID string
	states *orderedmap.OrderedMap[string, *stateRecord]
	logger Logger
}

// TreeOption configures a TreeBuilder at construction time.
type TreeOption[C any] func(*TreeBuilder[C])

// WithLogger overrides the default StdLogger.
func WithLogger[C any](logger Logger) TreeOption[C] {
	return func(tb *TreeBuilder[C]) { tb.logger = logger }
}

// WithLogName sets the StdLogger's prefix; ignored if WithLogger is also
// given.
func WithLogName[C any](name string) TreeOption[C] {
	return func(tb *TreeBuilder[C]) {
		if _, ok := tb.logger.(*StdLogger); ok || tb.logger == nil {
			tb.logger = NewStdLogger(name)
		}
	}
}

// WithNoopLogger silences a TreeBuilder's diagnostic logging entirely - for
// callers that materialize trees in a hot path or a test and want no stderr
// output at all, rather than redirecting it with WithLogger.
func WithNoopLogger[C any]() TreeOption[C] {
	return func(tb *TreeBuilder[C]) { tb.logger = noopLogger{} }
}

func newTreeBuilder[C any](root *stateRecord, opts []TreeOption[C]) *TreeBuilder[C] {
	tb := &TreeBuilder[C]{
		rootID: root.id,
		states: orderedmap.New[string, *stateRecord](),
		logger: NewStdLogger(""),
	}
	tb.states.Set(root.id, root)
	for _, opt := range opts {
		opt(tb)
	}
	return tb
}

// NewTreeBuilder creates a TreeBuilder with an implicit, data-less root:
// every state declared without an explicit parent becomes a root-level
// state (spec.md 2.1).
func NewTreeBuilder[C any](opts ...TreeOption[C]) *TreeBuilder[C] {
	return newTreeBuilder[C](newStateRecord(rootSentinelID), opts)
}

// NewTreeBuilderWithRoot creates a TreeBuilder whose root is an explicit,
// data-less state identified by root, rather than the implicit sentinel.
func NewTreeBuilderWithRoot[C any](root Key, opts ...TreeOption[C]) *TreeBuilder[C] {
	return newTreeBuilder[C](newStateRecord(root.id), opts)
}

// NewTreeBuilderWithDataRoot creates a TreeBuilder whose root itself carries
// data of type D.
func NewTreeBuilderWithDataRoot[D, C any](root DataKey[D], initialData func(TransitionContext[NoData, D, C]) D, opts ...TreeOption[C]) *TreeBuilder[C] {
	rec := newStateRecord(root.ID())
	rec.hasDataType = true
	rec.dataType = reflect.TypeOf((*D)(nil)).Elem()
	rec.initialData = func(ctxBox any) any { return initialData(ctxBox.(TransitionContext[NoData, D, C])) }
	return newTreeBuilder[C](rec, opts)
}

// InitialChild statically declares the root state's own initial child -
// the counterpart of StateBuilder.InitialChild for the one state (the
// root) that has no StateBuilder of its own under NewTreeBuilder.
func (tb *TreeBuilder[C]) InitialChild(child Key) *TreeBuilder[C] {
	root, _ := tb.states.Get(tb.rootID)
	root.hasInitialChild = true
	id := child.id
	root.initialChildStatic = &id
	return tb
}

func (tb *TreeBuilder[C]) register(rec *stateRecord) {
	if _, present := tb.states.Get(rec.id); present {
		panicDuplicateState(rec.id)
	}
	tb.states.Set(rec.id, rec)
}

// StateOption configures a state at declaration time, as an alternative to
// the equivalent StateBuilder fluent method.
type StateOption func(*stateRecord)

// WithParent declares this state's parent.
func WithParent(parent Key) StateOption {
	return func(r *stateRecord) { r.hasParent = true; r.parentID = parent.id }
}

// WithInitialChild statically declares this state's initial child.
func WithInitialChild(child Key) StateOption {
	return func(r *stateRecord) {
		r.hasInitialChild = true
		id := child.id
		r.initialChildStatic = &id
	}
}

// State declares a plain, data-less state.
func (tb *TreeBuilder[C]) State(key Key, build func(*StateBuilder[NoData, C]), opts ...StateOption) *StateBuilder[NoData, C] {
	rec := newStateRecord(key.id)
	for _, opt := range opts {
		opt(rec)
	}
	tb.register(rec)
	sb := &StateBuilder[NoData, C]{tb: tb, rec: rec}
	if build != nil {
		build(sb)
	}
	return sb
}

// FinalState declares a terminal state: it can never itself be used as a
// parent, so it never has children (spec.md 3.4's FinalAsParent invariant).
// An initial child given through WithInitialChild is not rejected or
// validated; it is passed through to NodeBuildInfo unchanged.
func (tb *TreeBuilder[C]) FinalState(key Key, opts ...StateOption) *StateBuilder[NoData, C] {
	sb := tb.State(key, nil, opts...)
	sb.rec.isFinal = true
	return sb
}

// DataState declares a state carrying data of type D, seeded by
// initialData whenever the state is entered (package-level because D is a
// type parameter beyond the builder's own C; see the TreeBuilder method
// vs. package-function split documented in DESIGN.md).
func DataState[D, C any](tb *TreeBuilder[C], key DataKey[D], initialData func(TransitionContext[NoData, D, C]) D, build func(*StateBuilder[D, C]), opts ...StateOption) *StateBuilder[D, C] {
	rec := newStateRecord(key.ID())
	rec.hasDataType = true
	rec.dataType = reflect.TypeOf((*D)(nil)).Elem()
	rec.initialData = func(ctxBox any) any { return initialData(ctxBox.(TransitionContext[NoData, D, C])) }
	for _, opt := range opts {
		opt(rec)
	}
	tb.register(rec)
	sb := &StateBuilder[D, C]{tb: tb, rec: rec}
	if build != nil {
		build(sb)
	}
	return sb
}

// FinalDataState is the final-state counterpart of DataState: a terminal
// state that still carries a result payload of type D.
func FinalDataState[D, C any](tb *TreeBuilder[C], key DataKey[D], initialData func(TransitionContext[NoData, D, C]) D, opts ...StateOption) *StateBuilder[D, C] {
	sb := DataState[D, C](tb, key, initialData, nil, opts...)
	sb.rec.isFinal = true
	return sb
}

// MachineState declares a state whose data is a nested sub-machine handle
// of type M, built by initialMachine on entry and considered finished once
// isDone reports true. Every machine state must register OnMachineDone
// (spec.md 7) or Materialize reports MissingMachineDoneHandler.
func MachineState[M, C any](tb *TreeBuilder[C], key DataKey[M], initialMachine func(TransitionContext[NoData, M, C]) M, isDone func(M) bool, build func(*StateBuilder[M, C]), opts ...StateOption) *StateBuilder[M, C] {
	rec := newStateRecord(key.ID())
	rec.hasDataType = true
	rec.dataType = reflect.TypeOf((*M)(nil)).Elem()
	rec.isMachine = true
	rec.machineInitial = func(ctxBox any) any { return initialMachine(ctxBox.(TransitionContext[NoData, M, C])) }
	rec.machineIsDone = func(v any) bool { return isDone(v.(M)) }
	rec.initialData = rec.machineInitial
	for _, opt := range opts {
		opt(rec)
	}
	tb.register(rec)
	sb := &StateBuilder[M, C]{tb: tb, rec: rec}
	if build != nil {
		build(sb)
	}
	return sb
}

// Materialize validates the declared tree (see validateTree for the checks
// and the order they run in), then walks it bottom-up -
// leaves before their parents, the parents before the root - handing each
// validated state to nb so it can build whatever runtime representation it
// wants. This package never constructs that representation itself.
func (tb *TreeBuilder[C]) Materialize(nb NodeBuilder[C]) (Node, error) {
	tb.logger.Debugf("materializing %d declared state(s)", tb.states.Len())
	children, err := validateTree(tb)
	if err != nil {
		tb.logger.Warnf("materialize failed: %v", err)
		return nil, err
	}
	built := make(map[string]Node, tb.states.Len())
	var build func(id string) Node
	build = func(id string) Node {
		if n, ok := built[id]; ok {
			return n
		}
		kids := children[id]
		childNodes := make([]Node, 0, len(kids))
		for _, c := range kids {
			childNodes = append(childNodes, build(c))
		}
		info := tb.buildInfo(id, kids)
		var n Node
		switch {
		case id == tb.rootID:
			n = nb.BuildRoot(info, childNodes)
		case len(kids) == 0:
			n = nb.BuildLeaf(info)
		default:
			n = nb.BuildInterior(info, childNodes)
		}
		built[id] = n
		return n
	}
	root := build(tb.rootID)
	tb.logger.Debugf("materialize succeeded")
	return root, nil
}

func (tb *TreeBuilder[C]) buildInfo(id string, childIDs []string) NodeBuildInfo[C] {
	rec, _ := tb.states.Get(id)
	kind := NodeInterior
	if id == tb.rootID {
		kind = NodeRoot
	} else if len(childIDs) == 0 {
		kind = NodeLeaf
	}

	children := make([]Key, len(childIDs))
	for i, c := range childIDs {
		children[i] = Key{id: c}
	}

	var parent *Key
	if id != tb.rootID {
		p := tb.resolvedParent(rec)
		parent = &Key{id: p}
	}

	info := NodeBuildInfo[C]{
		Key: Key{id: id}, Kind: kind, IsFinal: rec.isFinal,
		Parent: parent, Children: children,
		HasDataType: rec.hasDataType, DataType: rec.dataType,
		HasInitialChild: rec.hasInitialChild,
		Filters:         rec.filters, Metadata: rec.metadata,
		OnEnter: rec.onEnter, OnExit: rec.onExit,
		OpenHandler: rec.openHandler, Codec: rec.codec,
		IsMachine: rec.isMachine, MachineInitial: rec.machineInitial,
		MachineIsDone: rec.machineIsDone, OnMachineDone: rec.onMachineDone,
	}
	// rec.initialData already has the ctxBox-any shape NodeBuildInfo needs
	// (see NodeBuildInfo.InitialData's doc comment) - passed through
	// directly, never re-boxed as a concrete TransitionContext[NoData, D, C]
	// this function has no way to name.
	info.InitialData = rec.initialData
	if rec.initialChildStatic != nil {
		k := Key{id: *rec.initialChildStatic}
		info.InitialChildKey = &k
	}
	if rec.initialChildFunc != nil {
		fn := rec.initialChildFunc
		info.ResolveInitialDyn = func(ctxBox any) Key { return Key{id: fn(ctxBox)} }
	}
	for pair := rec.messageHandlers.Oldest(); pair != nil; pair = pair.Next() {
		desc := pair.Value
		entry := MessageHandlerEntry{MessageType: pair.Key.typ, Value: pair.Key.val, ByValue: pair.Key.byValue, Descriptor: desc}
		if md, ok := desc.(messageDescriptor); ok {
			entry.Info = md.handlerInfo()
		}
		info.MessageHandlers = append(info.MessageHandlers, entry)
	}
	return info
}

func (tb *TreeBuilder[C]) resolvedParent(rec *stateRecord) string {
	if rec.hasParent {
		return rec.parentID
	}
	return tb.rootID
}
