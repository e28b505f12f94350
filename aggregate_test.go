// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"math"

	"gopkg.in/check.v1"
)

type aggregateSuite struct{}

var _ = check.Suite(&aggregateSuite{})

func (s *aggregateSuite) TestStratifiedMeans(c *check.C) {
	bins := Bins{Edges: []float64{0, 0.02, 0.08, 0.25, 2}}
	strata := []float64{0.01, 0.05, 0.3, 5, 0.015, 0.31}
	away := []bool{true, false, true, true, true, false}
	col := []float64{1, 2, 3, 4, 5, 6}
	means := stratifiedMeans(bins, strata, away, col)
	c.Assert(means, check.HasLen, 4)
	c.Check(means[0][Away][0], check.Equals, 3.0)
	c.Check(math.IsNaN(means[0][To][0]), check.Equals, true)
	c.Check(math.IsNaN(means[1][Away][0]), check.Equals, true)
	c.Check(means[1][To][0], check.Equals, 2.0)
	c.Check(math.IsNaN(means[2][Away][0]), check.Equals, true)
	c.Check(math.IsNaN(means[2][To][0]), check.Equals, true)
	c.Check(means[3][Away][0], check.Equals, 3.0)
	c.Check(means[3][To][0], check.Equals, 6.0)
}

func (s *aggregateSuite) TestMinorVariantRecords(c *check.C) {
	cs := &CleanSites{
		Index:   []int{0, 1, 2, 3},
		Minor:   []float64{0.1, 0.2, 0.3, 0.4},
		Derived: []float64{0.5, 0.6, 0.7, 0.8},
		Entropy: []float64{0.01, 0.01, 0.5, 0.5},
		Away:    []bool{true, false, true, true},
	}
	key := recordKey{Patient: "p1", Region: "genomewide", Time: 120}
	recs := minorVariantRecords(key, Bins{Edges: []float64{0, 0.03, 0.08, 0.25, 2}}, cs)
	c.Assert(recs, check.HasLen, 4)
	for b, r := range recs {
		c.Check(r.EntropyBin, check.Equals, b)
		c.Check(r.Patient, check.Equals, "p1")
		c.Check(r.Time, check.Equals, 120.0)
	}
	c.Check(recs[0].AwayMinor, check.Equals, 0.1)
	c.Check(recs[0].ToDerived, check.Equals, 0.6)
	c.Check(math.IsNaN(recs[1].AwayMinor), check.Equals, true)
	c.Check(recs[3].AwayMinor, approxEquals, 0.35)
	c.Check(recs[3].AwayDerived, approxEquals, 0.75)
	c.Check(math.IsNaN(recs[3].ToMinor), check.Equals, true)
}

func (s *aggregateSuite) TestDivergenceRecord(c *check.C) {
	cs := &CleanSites{
		Index:     []int{0, 1, 2},
		Reversion: []float64{0, 0.3, 0},
		Derived:   []float64{0.1, 0.4, 0.1},
	}
	r := divergenceRecord(recordKey{Patient: "p2", Region: "RT", Time: 10}, cs)
	c.Check(r.Reversion, approxEquals, 0.1)
	c.Check(r.Divergence, approxEquals, 0.2)
	c.Check(r.Region, check.Equals, "RT")
}

func (s *aggregateSuite) TestReversionSpectrum(c *check.C) {
	cs := &CleanSites{
		Index:         []int{0, 1, 2, 3},
		Away:          []bool{false, false, false, true},
		ConsensusFreq: []float64{0.02, 0.3, 0.3, 0.9},
		Derived:       []float64{0.5, 0.7, 0.2, 0.1},
	}
	afBins := Bins{Edges: []float64{0, 0.05, 0.1, 0.25, 0.5, 0.95, 1}}
	recs := reversionSpectrumRecords(recordKey{Patient: "p3"}, afBins, 2, cs)
	c.Assert(recs, check.HasLen, 6)
	for b, r := range recs {
		c.Check(r.AFBin, check.Equals, b)
		c.Check(r.TimeBin, check.Equals, 2)
	}
	c.Check(recs[0].ReversionMean, approxEquals, 0.02)
	c.Check(recs[3].ReversionMean, approxEquals, 0.3)
	c.Check(math.IsNaN(recs[1].ReversionMean), check.Equals, true)
	c.Check(recs[4].DerivedMean, approxEquals, 0.6)
	c.Check(recs[2].DerivedMean, approxEquals, 0.2)
	c.Check(math.IsNaN(recs[0].DerivedMean), check.Equals, true)

	c.Check(recs[0].ReversionSpectrum, approxEquals, 0.02/3)
	c.Check(recs[3].ReversionSpectrum, approxEquals, 0.2)
	c.Check(recs[1].ReversionSpectrum, check.Equals, 0.0)
	total := 0.0
	for _, r := range recs {
		total += r.ReversionSpectrum
	}
	c.Check(total, approxEquals, 0.62/3)
	c.Check(recs[4].MinorReversionSpectrum, approxEquals, 0.4)
	c.Check(recs[2].MinorReversionSpectrum, approxEquals, 0.2/3)
}

func (s *aggregateSuite) TestReversionSpectrumNoToSites(c *check.C) {
	cs := &CleanSites{
		Index:         []int{0},
		Away:          []bool{true},
		ConsensusFreq: []float64{0.9},
		Derived:       []float64{0.1},
	}
	recs := reversionSpectrumRecords(recordKey{}, Bins{Edges: []float64{0, 0.5, 1}}, 0, cs)
	c.Assert(recs, check.HasLen, 2)
	for _, r := range recs {
		c.Check(math.IsNaN(r.ReversionSpectrum), check.Equals, true)
		c.Check(math.IsNaN(r.ReversionMean), check.Equals, true)
	}
}
