// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"math"
	"sort"
)

// Bins is a sequence of left-closed, right-open intervals
// [Edges[i], Edges[i+1]). If ClosedRight is true, the last interval
// also includes its upper edge, as in a numpy histogram.
type Bins struct {
	Edges       []float64
	ClosedRight bool
}

// Len returns the number of bins.
func (b Bins) Len() int {
	if len(b.Edges) < 2 {
		return 0
	}
	return len(b.Edges) - 1
}

// Index returns the bin containing v, or -1 if v is NaN or outside
// every bin.
func (b Bins) Index(v float64) int {
	n := b.Len()
	if n == 0 || math.IsNaN(v) || v < b.Edges[0] {
		return -1
	}
	if v >= b.Edges[n] {
		if b.ClosedRight && v == b.Edges[n] {
			return n - 1
		}
		return -1
	}
	// first edge strictly greater than v
	i := sort.Search(len(b.Edges), func(i int) bool { return b.Edges[i] > v })
	return i - 1
}

// Centers returns the midpoint of each bin.
func (b Bins) Centers() []float64 {
	out := make([]float64, b.Len())
	for i := range out {
		out[i] = (b.Edges[i] + b.Edges[i+1]) / 2
	}
	return out
}

// coarseBin assigns a value to the bin i-1, where i is the leftmost
// insertion point of v in edges. Values at or below the first edge,
// and values beyond the last edge, have no bin (-1).
func coarseBin(edges []float64, v float64) int {
	if math.IsNaN(v) {
		return -1
	}
	i := sort.SearchFloat64s(edges, v)
	if i == 0 || i == len(edges) {
		return -1
	}
	return i - 1
}
