package statetree

// validateTree runs every structural check and returns the resolved
// parent -> children index once the tree is sound. Each check is run over
// all states, in declaration order, before the next starts, so the error
// returned for a given declaration sequence is deterministic; when several
// states fail the same check, the one declared first is reported.
func validateTree[C any](tb *TreeBuilder[C]) (map[string][]string, error) {
	children := make(map[string][]string)
	parentOf := make(map[string]string)

	// 1: every declared parent must exist, and must not be a final state.
	for pair := tb.states.Oldest(); pair != nil; pair = pair.Next() {
		id, rec := pair.Key, pair.Value
		if id == tb.rootID {
			continue
		}
		parentID := tb.resolvedParent(rec)
		if rec.hasParent {
			parentRec, ok := tb.states.Get(parentID)
			if !ok {
				return nil, errUnknownParent(id, parentID)
			}
			if parentRec.isFinal {
				return nil, errFinalAsParent(id, parentID)
			}
		}
		parentOf[id] = parentID
		children[parentID] = append(children[parentID], id)
	}

	// 2: parent edges must not cycle back on themselves.
	for pair := tb.states.Oldest(); pair != nil; pair = pair.Next() {
		id := pair.Key
		if id == tb.rootID {
			continue
		}
		visited := map[string]bool{}
		cur := id
		for cur != tb.rootID {
			if visited[cur] {
				return nil, errParentCycle(id)
			}
			visited[cur] = true
			next, ok := parentOf[cur]
			if !ok {
				break
			}
			cur = next
		}
	}

	// 3: every non-leaf, non-final state must declare a valid initial
	// child (spec.md 3.4, invariants 2-4).
	for pair := tb.states.Oldest(); pair != nil; pair = pair.Next() {
		id, rec := pair.Key, pair.Value
		kids := children[id]
		if len(kids) == 0 || rec.isFinal {
			continue
		}
		if !rec.hasInitialChild {
			return nil, errMissingInitialChild(id)
		}
		if rec.initialChildStatic == nil {
			continue // opaque resolver: not statically validated
		}
		target := *rec.initialChildStatic
		targetRec, ok := tb.states.Get(target)
		if !ok {
			return nil, errUnknownInitialChild(id, target)
		}
		targetParent := tb.resolvedParent(targetRec)
		if id == tb.rootID && tb.rootID == rootSentinelID {
			if targetRec.hasParent {
				return nil, errImplicitRootInitialChildHasParent(target, targetRec.parentID)
			}
			continue
		}
		if targetParent != id {
			return nil, errInitialChildParentMismatch(id, target, targetParent)
		}
	}

	// 4: every go-to target named by a message handler must be declared,
	// including one nested inside a When chain's guarded branches (a
	// WhenWithContext branch is the one exception: it builds its
	// sub-descriptor from a value resolved at dispatch time, so there is no
	// sub-descriptor to inspect until the handler actually runs).
	for pair := tb.states.Oldest(); pair != nil; pair = pair.Next() {
		id, rec := pair.Key, pair.Value
		for mp := rec.messageHandlers.Oldest(); mp != nil; mp = mp.Next() {
			desc, ok := mp.Value.(messageDescriptor)
			if !ok {
				continue
			}
			if err := checkGoToTargets(tb, id, desc.handlerInfo()); err != nil {
				return nil, err
			}
		}
	}

	// 5: machine states must register OnMachineDone.
	for pair := tb.states.Oldest(); pair != nil; pair = pair.Next() {
		id, rec := pair.Key, pair.Value
		if rec.isMachine && !rec.hasMachineDone {
			return nil, errMissingMachineDoneHandler(id)
		}
	}

	return children, nil
}

// checkGoToTargets walks a MessageHandlerInfo and every MessageInfo nested
// under its Conditions (recursively, since a guarded branch may itself be a
// When chain), checking that each GoTo's target is a declared state.
func checkGoToTargets[C any](tb *TreeBuilder[C], stateID string, info MessageHandlerInfo) error {
	if info.Kind == MessageHandlerGoTo && info.GoToTarget != nil {
		if _, declared := tb.states.Get(info.GoToTarget.id); !declared {
			return errUnknownTransitionTarget(stateID, info.GoToTarget.id)
		}
	}
	for _, cond := range info.Conditions {
		if cond.MessageInfo == nil {
			continue
		}
		if err := checkGoToTargets(tb, stateID, *cond.MessageInfo); err != nil {
			return err
		}
	}
	return nil
}
