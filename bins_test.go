// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"math"

	"golang.org/x/exp/rand"
	"gopkg.in/check.v1"
)

type binsSuite struct{}

var _ = check.Suite(&binsSuite{})

func (s *binsSuite) TestEntropyBins(c *check.C) {
	bins := Bins{Edges: []float64{0, 0.02, 0.08, 0.25, 2}}
	var got []int
	for _, v := range []float64{0.01, 0.05, 0.3} {
		got = append(got, bins.Index(v))
	}
	c.Check(got, check.DeepEquals, []int{0, 1, 3})
}

func (s *binsSuite) TestEdges(c *check.C) {
	open := Bins{Edges: []float64{0, 0.02, 0.08, 0.25, 2}}
	closed := Bins{Edges: open.Edges, ClosedRight: true}
	for _, trial := range []struct {
		v      float64
		open   int
		closed int
	}{
		{0, 0, 0},
		{0.02, 1, 1},
		{0.0799, 1, 1},
		{0.08, 2, 2},
		{1.99, 3, 3},
		{2, -1, 3},
		{2.01, -1, -1},
		{-0.001, -1, -1},
		{math.NaN(), -1, -1},
		{math.Inf(1), -1, -1},
	} {
		c.Check(open.Index(trial.v), check.Equals, trial.open, check.Commentf("v=%v", trial.v))
		c.Check(closed.Index(trial.v), check.Equals, trial.closed, check.Commentf("v=%v", trial.v))
	}
	c.Check(Bins{Edges: []float64{1}}.Index(1), check.Equals, -1)
	c.Check(Bins{}.Len(), check.Equals, 0)
}

func (s *binsSuite) TestPartition(c *check.C) {
	bins := Bins{Edges: []float64{0, 0.05, 0.1, 0.25, 0.5, 0.95, 1}}
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		v := rnd.Float64()*1.2 - 0.1
		b := bins.Index(v)
		inside := 0
		for j := 0; j < bins.Len(); j++ {
			if v >= bins.Edges[j] && v < bins.Edges[j+1] {
				inside++
				c.Check(b, check.Equals, j)
			}
		}
		c.Check(inside <= 1, check.Equals, true)
		if inside == 0 {
			c.Check(b, check.Equals, -1)
		}
	}
}

func (s *binsSuite) TestCenters(c *check.C) {
	c.Check(Bins{Edges: []float64{0, 500, 1000, 2000}}.Centers(), check.DeepEquals, []float64{250, 750, 1500})
}

func (s *binsSuite) TestCoarseBin(c *check.C) {
	edges := []float64{-10, 500, 1000}
	for _, trial := range []struct {
		t   float64
		bin int
	}{
		{-20, -1},
		{-10, -1},
		{0, 0},
		{500, 0},
		{501, 1},
		{1000, 1},
		{1001, -1},
	} {
		c.Check(coarseBin(edges, trial.t), check.Equals, trial.bin, check.Commentf("t=%v", trial.t))
	}
}

func (s *binsSuite) TestTimeBins(c *check.C) {
	bins := Bins{Edges: []float64{0, 500, 1000, 1500, 2500, 3500}}
	for _, trial := range []struct {
		t   float64
		bin int
	}{
		{-5, -1},
		{0, 0},
		{499, 0},
		{500, 1},
		{2500, 4},
		{3499, 4},
		{3500, -1},
		{4000, -1},
	} {
		c.Check(bins.Index(trial.t), check.Equals, trial.bin, check.Commentf("t=%v", trial.t))
	}
}
