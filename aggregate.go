// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MinorVariantRecord holds mean minor-variant and derived allele
// frequencies in one entropy bin, separately for away and to sites.
type MinorVariantRecord struct {
	Patient    string
	Region     string
	Time       float64
	EntropyBin int

	AwayMinor   float64
	AwayDerived float64
	ToMinor     float64
	ToDerived   float64
}

// DivergenceRecord holds the mean reversion and mean divergence
// over all clean sites of one timepoint.
type DivergenceRecord struct {
	Patient    string
	Region     string
	Time       float64
	Reversion  float64
	Divergence float64
}

// ReversionSpectrumRecord describes the to sites of one timepoint
// whose consensus (or derived) allele frequency falls in one
// allele frequency bin.
type ReversionSpectrumRecord struct {
	Patient string
	Region  string
	Time    float64
	TimeBin int
	AFBin   int

	// Mean consensus allele frequency of to sites whose
	// consensus allele frequency is in the bin.
	ReversionMean float64
	// Mean derived allele frequency of to sites whose derived
	// allele frequency is in the bin.
	DerivedMean float64
	// Sum of the in-bin consensus allele frequencies divided by
	// the number of to sites. Summed over bins this is the mean
	// consensus allele frequency at to sites.
	ReversionSpectrum float64
	// Same as ReversionSpectrum, for derived frequencies.
	MinorReversionSpectrum float64
}

type recordKey struct {
	Patient string
	Region  string
	Time    float64
}

// stratifiedMeans assigns site i to bin bins.Index(strata[i]) and
// returns, for each bin and direction, the mean of each column over
// the sites in that bin and direction. Sites outside every bin are
// dropped. Empty groups have mean NaN.
func stratifiedMeans(bins Bins, strata []float64, away []bool, columns ...[]float64) [][2][]float64 {
	type acc struct {
		sum []float64
		n   int
	}
	accs := make([][2]acc, bins.Len())
	for b := range accs {
		for d := range accs[b] {
			accs[b][d].sum = make([]float64, len(columns))
		}
	}
	for i, v := range strata {
		b := bins.Index(v)
		if b < 0 {
			continue
		}
		d := To
		if away[i] {
			d = Away
		}
		a := &accs[b][d]
		a.n++
		for c, col := range columns {
			a.sum[c] += col[i]
		}
	}
	out := make([][2][]float64, len(accs))
	for b := range accs {
		for d := range accs[b] {
			a := accs[b][d]
			means := make([]float64, len(columns))
			for c := range means {
				if a.n == 0 {
					means[c] = math.NaN()
				} else {
					means[c] = a.sum[c] / float64(a.n)
				}
			}
			out[b][d] = means
		}
	}
	return out
}

// minorVariantRecords returns one record per entropy bin, including
// empty bins.
func minorVariantRecords(key recordKey, entropyBins Bins, cs *CleanSites) []MinorVariantRecord {
	means := stratifiedMeans(entropyBins, cs.Entropy, cs.Away, cs.Minor, cs.Derived)
	out := make([]MinorVariantRecord, len(means))
	for b, m := range means {
		out[b] = MinorVariantRecord{
			Patient:     key.Patient,
			Region:      key.Region,
			Time:        key.Time,
			EntropyBin:  b,
			AwayMinor:   m[Away][0],
			AwayDerived: m[Away][1],
			ToMinor:     m[To][0],
			ToDerived:   m[To][1],
		}
	}
	return out
}

func divergenceRecord(key recordKey, cs *CleanSites) DivergenceRecord {
	return DivergenceRecord{
		Patient:    key.Patient,
		Region:     key.Region,
		Time:       key.Time,
		Reversion:  meanOrNaN(cs.Reversion),
		Divergence: meanOrNaN(cs.Derived),
	}
}

// reversionSpectrumRecords bins the to sites by their own consensus
// (and, separately, derived) allele frequency.
func reversionSpectrumRecords(key recordKey, afBins Bins, timeBin int, cs *CleanSites) []ReversionSpectrumRecord {
	var rev, der []float64
	for i, away := range cs.Away {
		if !away {
			rev = append(rev, cs.ConsensusFreq[i])
			der = append(der, cs.Derived[i])
		}
	}
	to := make([]bool, len(rev))
	revMeans := stratifiedMeans(afBins, rev, to, rev)
	derMeans := stratifiedMeans(afBins, der, to, der)
	revContrib := binContributions(afBins, rev)
	derContrib := binContributions(afBins, der)
	out := make([]ReversionSpectrumRecord, afBins.Len())
	for b := range out {
		out[b] = ReversionSpectrumRecord{
			Patient:                key.Patient,
			Region:                 key.Region,
			Time:                   key.Time,
			TimeBin:                timeBin,
			AFBin:                  b,
			ReversionMean:          revMeans[b][To][0],
			DerivedMean:            derMeans[b][To][0],
			ReversionSpectrum:      revContrib[b],
			MinorReversionSpectrum: derContrib[b],
		}
	}
	return out
}

// binContributions returns, for each bin, the sum of the values in
// that bin divided by the total number of values (NaN if there are
// none).
func binContributions(bins Bins, values []float64) []float64 {
	out := make([]float64, bins.Len())
	if len(values) == 0 {
		for b := range out {
			out[b] = math.NaN()
		}
		return out
	}
	for _, v := range values {
		if b := bins.Index(v); b >= 0 {
			out[b] += v
		}
	}
	for b := range out {
		out[b] /= float64(len(values))
	}
	return out
}

func meanOrNaN(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return floats.Sum(x) / float64(len(x))
}
