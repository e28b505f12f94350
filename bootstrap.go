// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Sampler draws uniform random integers in [0, n). *rand.Rand from
// golang.org/x/exp/rand satisfies it.
type Sampler interface {
	Intn(n int) int
}

// BinStats holds summary values for one bin.
type BinStats struct {
	Bin    int
	Values []float64
}

// Summary is a table of per-bin summary values, sorted by bin.
type Summary []BinStats

// Lookup returns the values for the given bin, or nil.
func (s Summary) Lookup(bin int) []float64 {
	i := sort.Search(len(s), func(i int) bool { return s[i].Bin >= bin })
	if i < len(s) && s[i].Bin == bin {
		return s[i].Values
	}
	return nil
}

// Bootstrap resamples patients with replacement.
type Bootstrap struct {
	Replicates int
	Rand       Sampler
}

// ResamplePatients returns len(patients) patients drawn with
// replacement.
func ResamplePatients(patients []string, rnd Sampler) []string {
	out := make([]string, len(patients))
	for i := range out {
		out[i] = patients[rnd.Intn(len(patients))]
	}
	return out
}

// Run performs a patient-level bootstrap of a table. patientOfRow
// gives the patient of each row. Each replicate draws as many
// patients as there are distinct patients, with replacement, and
// calls fn with the rows of all drawn patients; a patient drawn k
// times contributes its rows k times.
func (bs Bootstrap) Run(patientOfRow []string, fn func(rows []int) Summary) []Summary {
	var patients []string
	rowsOf := map[string][]int{}
	for row, p := range patientOfRow {
		if _, seen := rowsOf[p]; !seen {
			patients = append(patients, p)
		}
		rowsOf[p] = append(rowsOf[p], row)
	}
	return bs.RunPatients(patients, func(sample []string) Summary {
		var rows []int
		for _, p := range sample {
			rows = append(rows, rowsOf[p]...)
		}
		return fn(rows)
	})
}

// RunPatients calls fn on Replicates resamples of the given
// patients.
func (bs Bootstrap) RunPatients(patients []string, fn func(sample []string) Summary) []Summary {
	out := make([]Summary, 0, bs.Replicates)
	if len(patients) == 0 {
		return out
	}
	for r := 0; r < bs.Replicates; r++ {
		out = append(out, fn(ResamplePatients(patients, bs.Rand)))
	}
	return out
}

// replicateValues returns the non-NaN values of column col for the
// given bin across replicates. Replicates without the bin are
// skipped.
func replicateValues(reps []Summary, bin, col int) []float64 {
	var x []float64
	for _, rep := range reps {
		v := rep.Lookup(bin)
		if col < len(v) && !math.IsNaN(v[col]) {
			x = append(x, v[col])
		}
	}
	return x
}

// ReplicateStdDev returns the population standard deviation of
// column col for the given bin across replicates, or NaN if no
// replicate has a value.
func ReplicateStdDev(reps []Summary, bin, col int) float64 {
	x := replicateValues(reps, bin, col)
	if len(x) == 0 {
		return math.NaN()
	}
	return math.Sqrt(stat.Moment(2, x, nil))
}

// ReplicateMean returns the mean of column col for the given bin
// across replicates, or NaN if no replicate has a value.
func ReplicateMean(reps []Summary, bin, col int) float64 {
	x := replicateValues(reps, bin, col)
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

// binnedMeans groups rows by bin and returns the mean of each
// column per bin, ignoring NaN values. Rows with bin < 0 are
// dropped.
func binnedMeans(rows []int, binOf func(row int) int, columns ...func(row int) float64) Summary {
	type acc struct {
		sum []float64
		n   []int
	}
	accs := map[int]*acc{}
	for _, row := range rows {
		b := binOf(row)
		if b < 0 {
			continue
		}
		a := accs[b]
		if a == nil {
			a = &acc{sum: make([]float64, len(columns)), n: make([]int, len(columns))}
			accs[b] = a
		}
		for c, col := range columns {
			if v := col(row); !math.IsNaN(v) {
				a.sum[c] += v
				a.n[c]++
			}
		}
	}
	out := make(Summary, 0, len(accs))
	for b, a := range accs {
		values := make([]float64, len(columns))
		for c := range values {
			if a.n[c] == 0 {
				values[c] = math.NaN()
			} else {
				values[c] = a.sum[c] / float64(a.n[c])
			}
		}
		out = append(out, BinStats{Bin: b, Values: values})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bin < out[j].Bin })
	return out
}
