package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeap_PushPop(t *testing.T) {
	h := New(func(a, b int) bool { return a < b }, 4)
	for _, v := range []int{5, 1, 4, 2, 3} {
		h.Push(v)
	}

	top, ok := h.Top()
	assert.True(t, ok)
	assert.Equal(t, 1, top)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, h.Drain())

	_, ok = h.Pop()
	assert.False(t, ok)
}

func TestHeap_PushBounded(t *testing.T) {
	// min-heap of the three largest values
	h := New(func(a, b float64) bool { return a < b }, 3)
	for _, v := range []float64{7, 3, 9, 1, 8, 2} {
		h.PushBounded(v, 3)
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []float64{7, 8, 9}, h.Drain())

	h.PushBounded(1, 0)
	assert.Equal(t, 0, h.Len())
}

func TestHeap_Reset(t *testing.T) {
	h := New(func(a, b string) bool { return a > b }, 0)
	h.Push("a")
	h.Push("c")
	h.Reset()
	assert.Equal(t, 0, h.Len())
	h.Push("b")
	top, _ := h.Top()
	assert.Equal(t, "b", top)
}
