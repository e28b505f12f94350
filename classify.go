// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"fmt"
	"math"
)

// Classification partitions the sites of one (patient, region) into
// "away" sites, where the founder allele equals the consensus
// allele, and "to" sites, where it does not.
type Classification struct {
	Away []bool
	// Fraction of sites where the founder differs from the
	// consensus. NaN if there are no sites.
	Distance float64
}

// Classify compares founder and consensus allele indices site by
// site. Both slices must use the same alphabet ordering.
func Classify(ancestral, consensus []int) (Classification, error) {
	if len(ancestral) != len(consensus) {
		return Classification{}, fmt.Errorf("cannot classify: %d founder sites, %d consensus sites", len(ancestral), len(consensus))
	}
	cls := Classification{Away: make([]bool, len(ancestral))}
	to := 0
	for i, a := range ancestral {
		cls.Away[i] = a == consensus[i]
		if !cls.Away[i] {
			to++
		}
	}
	if len(ancestral) == 0 {
		cls.Distance = math.NaN()
	} else {
		cls.Distance = float64(to) / float64(len(ancestral))
	}
	return cls, nil
}

// Counts returns the number of away and to sites.
func (cls Classification) Counts() (away, to int) {
	for _, a := range cls.Away {
		if a {
			away++
		} else {
			to++
		}
	}
	return
}
