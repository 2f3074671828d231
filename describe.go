package statetree

import "reflect"

// StateDescription is the inspectable summary of one declared state,
// produced by Describe. It carries enough to drive a diagram renderer or a
// documentation generator, but - unlike the teacher's diagram.go, which
// emits PlantUML text directly - Describe stops at plain data and leaves
// formatting to the caller (an explicit non-goal of this package).
type StateDescription struct {
	Key             Key
	Parent          *Key
	Children        []Key
	Kind            NodeKind
	IsFinal         bool
	HasInitialChild bool
	InitialChild    *Key // nil when the initial child is resolved dynamically
	IsMachine       bool
	Metadata        map[string]any
}

// TransitionDescription is the inspectable summary of one message handler
// entry that can statically name a target: a top-level GoTo/GoToSelf, or one
// nested inside a When chain's guarded branches. A WhenWithContext branch
// stays opaque here the same way it does to the validator, since its
// sub-descriptor only exists once a dispatch-time value resolves it.
type TransitionDescription struct {
	From        Key
	MessageType reflect.Type
	Kind        MessageHandlerType
	Target      *Key
	Label       string
	History     HistoryKind
}

// GraphDescription is the full walk result: every declared state plus every
// staticaly-resolvable transition out of it.
type GraphDescription struct {
	Nodes []StateDescription
	Edges []TransitionDescription
}

// Describe walks a TreeBuilder's declarations into a GraphDescription,
// grounded on the teacher's diagram.go tree walk. It runs the same
// validation Materialize does and fails the same way, since an invalid
// tree has no well-defined graph to describe.
func Describe[C any](tb *TreeBuilder[C]) (GraphDescription, error) {
	children, err := validateTree(tb)
	if err != nil {
		return GraphDescription{}, err
	}
	var out GraphDescription
	for pair := tb.states.Oldest(); pair != nil; pair = pair.Next() {
		id, rec := pair.Key, pair.Value
		kids := children[id]
		kind := NodeInterior
		if id == tb.rootID {
			kind = NodeRoot
		} else if len(kids) == 0 {
			kind = NodeLeaf
		}
		desc := StateDescription{
			Key: Key{id: id}, Kind: kind, IsFinal: rec.isFinal,
			HasInitialChild: rec.hasInitialChild, IsMachine: rec.isMachine,
			Metadata: rec.metadata,
		}
		if id != tb.rootID {
			p := tb.resolvedParent(rec)
			desc.Parent = &Key{id: p}
		}
		for _, c := range kids {
			desc.Children = append(desc.Children, Key{id: c})
		}
		if rec.initialChildStatic != nil {
			k := Key{id: *rec.initialChildStatic}
			desc.InitialChild = &k
		}
		out.Nodes = append(out.Nodes, desc)

		for mp := rec.messageHandlers.Oldest(); mp != nil; mp = mp.Next() {
			md, ok := mp.Value.(messageDescriptor)
			if !ok {
				continue
			}
			out.Edges = append(out.Edges, collectGoToEdges(Key{id: id}, md.handlerInfo())...)
		}
	}
	return out, nil
}

// collectGoToEdges emits a TransitionDescription for info itself (if it is a
// GoTo/GoToSelf) and for every GoTo/GoToSelf nested under info.Conditions,
// recursively, mirroring checkGoToTargets's walk in validator.go.
func collectGoToEdges(from Key, info MessageHandlerInfo) []TransitionDescription {
	var edges []TransitionDescription
	if info.Kind == MessageHandlerGoTo || info.Kind == MessageHandlerGoToSelf {
		edge := TransitionDescription{
			From: from, MessageType: info.MessageType, Kind: info.Kind,
			Label: info.Label, History: info.History,
		}
		if info.Kind == MessageHandlerGoToSelf {
			self := from
			edge.Target = &self
		} else {
			edge.Target = info.GoToTarget
		}
		edges = append(edges, edge)
	}
	for _, cond := range info.Conditions {
		if cond.MessageInfo == nil {
			continue
		}
		edges = append(edges, collectGoToEdges(from, *cond.MessageInfo)...)
	}
	return edges
}
