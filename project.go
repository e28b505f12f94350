// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"fmt"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"
)

// Projection holds reference-derived per-site arrays in patient
// order. Element i describes patient site Sites[i].
type Projection struct {
	Sites     []int
	Consensus []int
	Entropy   []float64 // bits
	GoodRef   []bool
}

func (p *Projection) Len() int { return len(p.Sites) }

// Project maps the reference's consensus, entropy and quality mask
// into the patient's coordinates.
func Project(ref *referenceView, cmap CoordinateMap, alpha Alphabet) (*Projection, error) {
	if len(cmap.Reference) != len(cmap.Patient) {
		return nil, fmt.Errorf("%w: map columns have different lengths %d, %d", ErrMissingMapping, len(cmap.Reference), len(cmap.Patient))
	}
	cmap = monotonicMap(cmap)
	if cmap.Len() == 0 {
		return nil, fmt.Errorf("%w: no mapped sites", ErrMissingMapping)
	}
	for i, r := range cmap.Reference {
		if r >= ref.Len() {
			return nil, fmt.Errorf("%w: reference site %d (map row %d) beyond reference length %d", ErrMissingMapping, r, i, ref.Len())
		}
		if c := ref.Consensus[r]; c < 0 || c >= alpha.Size() {
			return nil, fmt.Errorf("consensus index %d at reference site %d outside alphabet %s", c, r, alpha.Name)
		}
	}
	entropy := ref.EntropyOf(cmap)
	for i := range entropy {
		entropy[i] /= math.Ln2
	}
	good := make([]bool, cmap.Len())
	for i, r := range cmap.Reference {
		good[i] = ref.good[r]
	}
	return &Projection{
		Sites:     append([]int(nil), cmap.Patient...),
		Consensus: ref.ConsensusIndices(cmap),
		Entropy:   entropy,
		GoodRef:   good,
	}, nil
}

// monotonicMap drops unmapped rows, orders the rest by patient
// site and, if reference sites do not then strictly increase, keeps
// a longest subsequence of rows along which they do.
func monotonicMap(in CoordinateMap) CoordinateMap {
	var m CoordinateMap
	for i, r := range in.Reference {
		if r < 0 || in.Patient[i] < 0 {
			continue
		}
		m.Reference = append(m.Reference, r)
		m.Patient = append(m.Patient, in.Patient[i])
	}
	sort.Stable(byPatientSite(m))
	dedup := CoordinateMap{}
	for i := range m.Patient {
		if i > 0 && m.Patient[i] == m.Patient[i-1] {
			continue
		}
		dedup.Reference = append(dedup.Reference, m.Reference[i])
		dedup.Patient = append(dedup.Patient, m.Patient[i])
	}
	m = dedup
	ok := true
	for i := 1; i < m.Len() && ok; i++ {
		ok = m.Reference[i] > m.Reference[i-1]
	}
	if ok {
		return m
	}
	keep := longestIncreasingSubsequence(m.Reference)
	log.Warnf("coordinate map is not monotonic: keeping %d of %d rows", len(keep), m.Len())
	out := CoordinateMap{Reference: make([]int, len(keep)), Patient: make([]int, len(keep))}
	for i, k := range keep {
		out.Reference[i] = m.Reference[k]
		out.Patient[i] = m.Patient[k]
	}
	return out
}

type byPatientSite CoordinateMap

func (m byPatientSite) Len() int           { return len(m.Patient) }
func (m byPatientSite) Less(i, j int) bool { return m.Patient[i] < m.Patient[j] }
func (m byPatientSite) Swap(i, j int) {
	m.Patient[i], m.Patient[j] = m.Patient[j], m.Patient[i]
	m.Reference[i], m.Reference[j] = m.Reference[j], m.Reference[i]
}

// longestIncreasingSubsequence returns the indices of a longest
// strictly increasing subsequence of x.
func longestIncreasingSubsequence(x []int) []int {
	if len(x) == 0 {
		return nil
	}
	// tail[k] is the index of the smallest value ending an
	// increasing subsequence of length k+1; prev links each index
	// to its predecessor in the subsequence it ends.
	tail := make([]int, 0, len(x))
	prev := make([]int, len(x))
	for i := range x {
		k := sort.Search(len(tail), func(k int) bool { return x[tail[k]] >= x[i] })
		if k > 0 {
			prev[i] = tail[k-1]
		} else {
			prev[i] = -1
		}
		if k == len(tail) {
			tail = append(tail, i)
		} else {
			tail[k] = i
		}
	}
	out := make([]int, len(tail))
	for k, i := len(out)-1, tail[len(tail)-1]; k >= 0; k, i = k-1, prev[i] {
		out[k] = i
	}
	return out
}
