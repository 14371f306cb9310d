// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_registerConsume(t *testing.T) {
	var x table
	x.init()

	var calls []string
	index, created := x.register(7, KindReadable, func() { calls = append(calls, `first`) })
	require.True(t, created)
	again, created := x.register(7, KindReadable, func() { calls = append(calls, `second`) })
	require.False(t, created)
	require.Equal(t, index, again)

	assert.NotNil(t, x.slots[index].cbs[KindReadable])
	assert.Nil(t, x.slots[index].cbs[KindWritable])
	cb := x.consume(index, KindReadable)
	require.NotNil(t, cb)
	cb()
	assert.Equal(t, []string{`second`}, calls)

	assert.Nil(t, x.consume(index, KindReadable))
	assert.Nil(t, x.consume(index, KindWritable))
	assert.Nil(t, x.consume(-1, KindReadable))
	assert.Nil(t, x.consume(99, KindReadable))
}

func TestTable_indicesAreStable(t *testing.T) {
	var x table
	x.init()

	a, _ := x.register(3, KindWritable, func() {})
	b, _ := x.register(4, KindError, func() {})
	require.NotEqual(t, a, b)

	dropped, ok := x.drop(3)
	require.True(t, ok)
	require.Equal(t, a, dropped)
	assert.Equal(t, [numKinds]Callback{}, x.slots[a].cbs)

	// the slot is reused, not reallocated
	c, created := x.register(3, KindReadable, func() {})
	assert.False(t, created)
	assert.Equal(t, a, c)
	assert.Equal(t, 2, x.len())

	assert.EqualValues(t, 4, x.slots[b].handle)

	index, ok := x.lookup(4)
	require.True(t, ok)
	assert.Equal(t, b, index)
	_, ok = x.lookup(5)
	assert.False(t, ok)
	_, ok = x.drop(5)
	assert.False(t, ok)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, `readable`, KindReadable.String())
	assert.Equal(t, `writable`, KindWritable.String())
	assert.Equal(t, `error`, KindError.String())
	assert.Equal(t, `unknown`, Kind(9).String())
}
