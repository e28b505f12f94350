// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// CleanSites holds per-site statistics for the sites of one
// timepoint that passed the quality filter. All slices are
// parallel; Index[i] is the position of the site in the
// Projection.
type CleanSites struct {
	Index []int

	// Frequency mass on non-dominant alleles.
	Minor []float64
	// Frequency mass away from the founder allele.
	Derived []float64
	// Frequency of the consensus allele at "to" sites, 0 at
	// "away" sites.
	Reversion []float64
	// Frequency of the founder allele.
	Founder []float64
	// Frequency of the consensus allele.
	ConsensusFreq []float64

	Entropy []float64
	Away    []bool
}

func (cs *CleanSites) Len() int { return len(cs.Index) }

// CleanOptions selects the predicates a site must satisfy to be
// retained.
type CleanOptions struct {
	// No masked (low coverage) entry in the column.
	Coverage bool
	// The most frequent symbol is not a reserved one.
	Dominant bool
	// The reference site is well covered.
	Reference bool
}

// AllFilters applies every predicate.
var AllFilters = CleanOptions{Coverage: true, Dominant: true, Reference: true}

// Clean applies every quality predicate. See CleanOptions.Clean.
func Clean(af *AlleleFrequencies, proj *Projection, ancestral []int, cls Classification, reserved int) (*CleanSites, error) {
	return AllFilters.Clean(af, proj, ancestral, cls, reserved)
}

// Clean reduces one timepoint's frequency matrix to per-site
// statistics over the retained sites. ancestral and cls are in
// projection order. Only the first af.Symbols-reserved rows are
// summed; a founder or consensus allele in a reserved row has
// frequency 0.
func (opts CleanOptions) Clean(af *AlleleFrequencies, proj *Projection, ancestral []int, cls Classification, reserved int) (*CleanSites, error) {
	n := proj.Len()
	if len(ancestral) != n || len(cls.Away) != n {
		return nil, fmt.Errorf("cannot clean: %d projected sites, %d founder sites, %d classified sites", n, len(ancestral), len(cls.Away))
	}
	usable := af.Symbols - reserved
	if usable < 1 {
		return nil, fmt.Errorf("cannot clean: %d reserved symbols leave no usable rows of %d", reserved, af.Symbols)
	}
	freqAt := func(col []float64, idx int) float64 {
		if idx < usable {
			return col[idx]
		}
		return 0
	}
	cs := &CleanSites{}
	var col []float64
	for i, site := range proj.Sites {
		if site < 0 || site >= af.Sites {
			return nil, fmt.Errorf("projected site %d outside frequency matrix with %d sites", site, af.Sites)
		}
		if a, c := ancestral[i], proj.Consensus[i]; a < 0 || a >= af.Symbols || c < 0 || c >= af.Symbols {
			return nil, fmt.Errorf("site %d: founder %d or consensus %d outside alphabet of %d symbols", site, a, c, af.Symbols)
		}
		if opts.Reference && !proj.GoodRef[i] {
			continue
		}
		if opts.Coverage && af.SiteMasked(site) {
			continue
		}
		col = af.Column(site, col)
		if opts.Dominant && floats.MaxIdx(col) >= usable {
			continue
		}
		calls := col[:usable]
		sum := floats.Sum(calls)
		founder := freqAt(col, ancestral[i])
		consensus := freqAt(col, proj.Consensus[i])
		reversion := 0.0
		if !cls.Away[i] {
			reversion = consensus
		}
		cs.Index = append(cs.Index, i)
		cs.Minor = append(cs.Minor, sum-floats.Max(calls))
		cs.Derived = append(cs.Derived, sum-founder)
		cs.Reversion = append(cs.Reversion, reversion)
		cs.Founder = append(cs.Founder, founder)
		cs.ConsensusFreq = append(cs.ConsensusFreq, consensus)
		cs.Entropy = append(cs.Entropy, proj.Entropy[i])
		cs.Away = append(cs.Away, cls.Away[i])
	}
	return cs, nil
}
