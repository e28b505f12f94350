// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var chisquared = distuv.ChiSquared{K: 1}

// fixedPValue returns the chi-squared p-value for independence of
// site class (away/to) and fixation, given the two spectra. As in
// FixedFraction, a site counts as fixed if it falls in the first
// histogram bin.
//
// Returns NaN if either spectrum is empty, and 1 if no site (or
// every site) is fixed.
func fixedPValue(away, to []int64) float64 {
	var obs [2][2]float64
	for row, h := range [][]int64{away, to} {
		for i, n := range h {
			if i == 0 {
				obs[row][0] += float64(n)
			} else {
				obs[row][1] += float64(n)
			}
		}
	}
	rowsum := [2]float64{obs[0][0] + obs[0][1], obs[1][0] + obs[1][1]}
	colsum := [2]float64{obs[0][0] + obs[1][0], obs[0][1] + obs[1][1]}
	total := rowsum[0] + rowsum[1]
	if rowsum[0] == 0 || rowsum[1] == 0 {
		return math.NaN()
	}
	if colsum[0] == 0 || colsum[1] == 0 {
		return 1
	}
	var sum float64
	for i := range obs {
		for j := range obs[i] {
			exp := rowsum[i] * colsum[j] / total
			d := obs[i][j] - exp
			sum += d * d / exp
		}
	}
	return 1 - chisquared.CDF(sum)
}
