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

func TestCallbackQueue_fifo(t *testing.T) {
	var x callbackQueue
	x.init()

	_, ok := x.pop()
	require.False(t, ok)

	var got []int
	for i := range 100 {
		x.push(func() { got = append(got, i) })
	}
	assert.Equal(t, 100, x.len())
	for {
		cb, ok := x.pop()
		if !ok {
			break
		}
		cb()
	}
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.Zero(t, x.len())
}
