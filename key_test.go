package statetree_test

import (
	"testing"

	"github.com/kvalheim/statetree"
	"github.com/stretchr/testify/assert"
)

func TestNewKeyRejectsRootSentinel(t *testing.T) {
	assert.PanicsWithValue(t, `statetree: "<_RootState_>" is a reserved key and cannot be used by user states`,
		func() { statetree.NewKey("<_RootState_>") })
}

func TestNewDataKeyRejectsRootSentinel(t *testing.T) {
	assert.PanicsWithValue(t, `statetree: "<_RootState_>" is a reserved key and cannot be used by user states`,
		func() { statetree.NewDataKey[int]("<_RootState_>") })
}

func TestKeyEquality(t *testing.T) {
	a := statetree.NewKey("foo")
	b := statetree.NewKey("foo")
	c := statetree.NewKey("bar")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "foo", a.ID())
	assert.Equal(t, "foo", a.String())
}

func TestDataKeyPlain(t *testing.T) {
	dk := statetree.NewDataKey[string]("withData")
	assert.Equal(t, statetree.NewKey("withData"), dk.Plain())
}
