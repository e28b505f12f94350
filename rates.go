// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"fmt"
	"io"
	"log"
	"math"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"gonum.org/v1/gonum/stat/distuv"
)

const daysPerYear = 365.25

var rateConfig = &glm.Config{
	Family:    glm.NewFamily(glm.GaussianFamily),
	FitMethod: "IRLS",
	Log:       log.New(io.Discard, "", 0),
}

// Rate is a least squares slope (per year) with its standard error
// and a normal-approximation confidence interval.
type Rate struct {
	PerYear float64
	StdErr  float64
	Lower   float64
	Upper   float64
	N       int
}

// fitRate regresses y on time (converted from days to years) and
// returns the slope. Pairs where either value is NaN are ignored.
// If the fit fails, or there are fewer than 3 usable points, every
// field except N is NaN.
func fitRate(days, y []float64, confidence float64) (rate Rate) {
	nan := math.NaN()
	rate = Rate{PerYear: nan, StdErr: nan, Lower: nan, Upper: nan}
	var outcome, constants, years []statmodel.Dtype
	for i, d := range days {
		if math.IsNaN(d) || math.IsNaN(y[i]) {
			continue
		}
		outcome = append(outcome, y[i])
		constants = append(constants, 1)
		years = append(years, d/daysPerYear)
	}
	rate.N = len(outcome)
	if rate.N < 3 {
		return
	}
	defer func() {
		if e := recover(); e != nil {
			// typically "matrix singular or near-singular"
			rate = Rate{PerYear: nan, StdErr: nan, Lower: nan, Upper: nan, N: rate.N}
		}
	}()
	names := []string{"outcome", "constants", "years"}
	dataset := statmodel.NewDataset([][]statmodel.Dtype{outcome, constants, years}, names)
	model, err := glm.NewGLM(dataset, "outcome", names[1:], rateConfig)
	if err != nil {
		return
	}
	result := model.Fit()
	slope, se := result.Params()[1], result.StdErr()[1]
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	rate.PerYear = slope
	rate.StdErr = se
	rate.Lower = slope - z*se
	rate.Upper = slope + z*se
	return
}

func (r Rate) String() string {
	return fmt.Sprintf("%.4g ± %.2g /year (n=%d)", r.PerYear, r.StdErr, r.N)
}
