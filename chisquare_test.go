// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"fmt"
	"math"

	"gopkg.in/check.v1"
)

type pvalueSuite struct{}

var _ = check.Suite(&pvalueSuite{})

func (s *pvalueSuite) TestFixedPValue(c *check.C) {
	// fixed/unfixed {{25, 6}, {8, 15}}: chi2 = 11.686 with 1 df
	away := []int64{25, 3, 3}
	to := []int64{8, 10, 5}
	c.Check(fmt.Sprintf("%.5f", fixedPValue(away, to)), check.Equals, "0.00063")
	c.Check(fixedPValue(to, away), approxEquals, fixedPValue(away, to))
}

func (s *pvalueSuite) TestFixedPValueDegenerate(c *check.C) {
	c.Check(math.IsNaN(fixedPValue(nil, []int64{1, 2})), check.Equals, true)
	c.Check(math.IsNaN(fixedPValue([]int64{0, 0}, []int64{1, 2})), check.Equals, true)
	c.Check(fixedPValue([]int64{0, 4}, []int64{0, 1}), check.Equals, 1.0)
	c.Check(fixedPValue([]int64{4, 0}, []int64{1, 0}), check.Equals, 1.0)
	c.Check(fixedPValue([]int64{5, 0}, []int64{5, 0}), check.Equals, 1.0)
	c.Check(fixedPValue([]int64{5, 5}, []int64{5, 5}) > 0.999, check.Equals, true)
}
