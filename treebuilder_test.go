package statetree_test

import (
	"testing"

	"github.com/kvalheim/statetree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNode is what fakeBuilder hands back for every state: just enough
// to assert the tree shape and build order, the way the oven example prints
// rather than asserts against a real runtime.
type recordingNode struct {
	key      statetree.Key
	kind     statetree.NodeKind
	children []statetree.Node
}

type fakeBuilder struct {
	order []string
}

func (f *fakeBuilder) BuildRoot(info statetree.NodeBuildInfo[struct{}], children []statetree.Node) statetree.Node {
	f.order = append(f.order, info.Key.ID())
	return recordingNode{key: info.Key, kind: statetree.NodeRoot, children: children}
}

func (f *fakeBuilder) BuildInterior(info statetree.NodeBuildInfo[struct{}], children []statetree.Node) statetree.Node {
	f.order = append(f.order, info.Key.ID())
	return recordingNode{key: info.Key, kind: statetree.NodeInterior, children: children}
}

func (f *fakeBuilder) BuildLeaf(info statetree.NodeBuildInfo[struct{}]) statetree.Node {
	f.order = append(f.order, info.Key.ID())
	return recordingNode{key: info.Key, kind: statetree.NodeLeaf}
}

func TestDuplicateStatePanics(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()
	foo := statetree.NewKey("foo")
	tb.State(foo, nil)
	assert.PanicsWithValue(t, &statetree.TreeDefinitionError{
		Code:     statetree.DuplicateState,
		StateKey: "foo",
		Detail:   "state already declared",
	}, func() { tb.State(foo, nil) })
}

func TestWithNoopLoggerMaterializesSilently(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}](statetree.WithNoopLogger[struct{}]())
	solo := statetree.NewKey("solo")
	tb.State(solo, nil)
	tb.InitialChild(solo)

	node, err := tb.Materialize(&fakeBuilder{})
	require.NoError(t, err)
	require.NotNil(t, node)
}

func TestMissingInitialChild(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()
	doorClosed := statetree.NewKey("doorClosed")
	tb.State(doorClosed, nil)
	tb.InitialChild(doorClosed)
	tb.State(statetree.NewKey("baking"), nil, statetree.WithParent(doorClosed))

	_, err := tb.Materialize(&fakeBuilder{})
	require.Error(t, err)
	var defErr *statetree.TreeDefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, statetree.MissingInitialChild, defErr.Code)
	assert.Equal(t, "doorClosed", defErr.StateKey)
}

func TestUnknownInitialChild(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()
	doorClosed := statetree.NewKey("doorClosed")
	tb.State(doorClosed, nil, statetree.WithInitialChild(statetree.NewKey("ghost")))
	tb.InitialChild(doorClosed)
	tb.State(statetree.NewKey("baking"), nil, statetree.WithParent(doorClosed))

	_, err := tb.Materialize(&fakeBuilder{})
	require.Error(t, err)
	var defErr *statetree.TreeDefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, statetree.UnknownInitialChild, defErr.Code)
}

func TestInitialChildParentMismatch(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()
	doorClosed := statetree.NewKey("doorClosed")
	doorOpen := statetree.NewKey("doorOpen")
	tb.State(doorClosed, nil, statetree.WithInitialChild(doorOpen))
	tb.InitialChild(doorClosed)
	tb.State(doorOpen, nil)
	tb.State(statetree.NewKey("baking"), nil, statetree.WithParent(doorClosed))

	_, err := tb.Materialize(&fakeBuilder{})
	require.Error(t, err)
	var defErr *statetree.TreeDefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, statetree.InitialChildParentMismatch, defErr.Code)
}

func TestImplicitRootInitialChildHasParent(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()
	off := statetree.NewKey("off")
	doorClosed := statetree.NewKey("doorClosed")
	tb.State(doorClosed, nil)
	// off has a declared parent, so it cannot also serve as the implicit
	// root's initial child.
	tb.State(off, nil, statetree.WithParent(doorClosed))
	tb.InitialChild(off)

	_, err := tb.Materialize(&fakeBuilder{})
	require.Error(t, err)
	var defErr *statetree.TreeDefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, statetree.ImplicitRootInitialChildHasParent, defErr.Code)
}

func TestUnknownParent(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()
	tb.State(statetree.NewKey("orphan"), nil, statetree.WithParent(statetree.NewKey("ghost")))

	_, err := tb.Materialize(&fakeBuilder{})
	require.Error(t, err)
	var defErr *statetree.TreeDefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, statetree.UnknownParent, defErr.Code)
}

func TestFinalAsParent(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()
	done := statetree.NewKey("done")
	tb.FinalState(done)
	tb.State(statetree.NewKey("unreachable"), nil, statetree.WithParent(done))

	_, err := tb.Materialize(&fakeBuilder{})
	require.Error(t, err)
	var defErr *statetree.TreeDefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, statetree.FinalAsParent, defErr.Code)
}

func TestParentCycle(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()
	a := statetree.NewKey("a")
	b := statetree.NewKey("b")
	tb.State(a, nil, statetree.WithParent(b))
	tb.State(b, nil, statetree.WithParent(a))

	_, err := tb.Materialize(&fakeBuilder{})
	require.Error(t, err)
	var defErr *statetree.TreeDefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, statetree.ParentCycle, defErr.Code)
}

func TestUnknownTransitionTarget(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()
	type pressed struct{}
	idle := statetree.NewKey("idle")
	tb.InitialChild(idle)
	tb.State(idle, func(sb *statetree.StateBuilder[statetree.NoData, struct{}]) {
		statetree.OnMessage[pressed](sb, func(b *statetree.MessageHandlerBuilder[pressed, statetree.NoData, statetree.NoData, struct{}]) {
			b.GoTo(statetree.NewKey("ghost"))
		})
	})

	_, err := tb.Materialize(&fakeBuilder{})
	require.Error(t, err)
	var defErr *statetree.TreeDefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, statetree.UnknownTransitionTarget, defErr.Code)
}

func TestMissingMachineDoneHandler(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()
	sub := statetree.NewDataKey[int]("sub")
	tb.InitialChild(sub.Plain())
	statetree.MachineState[int](tb, sub,
		func(statetree.TransitionContext[statetree.NoData, int, struct{}]) int { return 0 },
		func(v int) bool { return v > 0 },
		nil,
	)

	_, err := tb.Materialize(&fakeBuilder{})
	require.Error(t, err)
	var defErr *statetree.TreeDefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, statetree.MissingMachineDoneHandler, defErr.Code)
}

// TestOvenShapedTree mirrors the teacher's oven example: a door-open/closed
// split with a nested baking/off pair, exercised through Materialize
// instead of a live runtime.
func TestOvenShapedTree(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()

	doorOpen := statetree.NewKey("doorOpen")
	doorClosed := statetree.NewKey("doorClosed")
	baking := statetree.NewKey("baking")
	off := statetree.NewKey("off")

	tb.State(doorOpen, nil)
	tb.State(doorClosed, nil, statetree.WithInitialChild(off))
	tb.InitialChild(doorClosed)
	tb.State(baking, nil, statetree.WithParent(doorClosed))
	tb.State(off, nil, statetree.WithParent(doorClosed))

	fb := &fakeBuilder{}
	root, err := tb.Materialize(fb)
	require.NoError(t, err)

	rn, ok := root.(recordingNode)
	require.True(t, ok)
	assert.Equal(t, statetree.NodeRoot, rn.kind)
	assert.Len(t, rn.children, 2)

	// leaves and the interior state must be built before the root.
	assert.Equal(t, "doorOpen", fb.order[0])
	assert.Contains(t, fb.order[1:3], "baking")
	assert.Contains(t, fb.order[1:3], "off")
	assert.Equal(t, "doorClosed", fb.order[3])
	assert.Equal(t, "<_RootState_>", fb.order[4])
}

func TestFinalStateHasNoInitialChildRequirement(t *testing.T) {
	tb := statetree.NewTreeBuilder[struct{}]()
	done := statetree.NewKey("done")
	tb.FinalState(done)
	tb.InitialChild(done)
	_, err := tb.Materialize(&fakeBuilder{})
	require.NoError(t, err)
}
