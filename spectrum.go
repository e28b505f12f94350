// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"fmt"
	"math"
)

// Direction says whether a site's founder allele agrees with the
// consensus (Away: any change moves away from consensus) or not (To:
// change can move towards consensus).
type Direction int

const (
	Away Direction = iota
	To
)

func (d Direction) String() string {
	switch d {
	case Away:
		return "away"
	case To:
		return "to"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// EntropyTier splits sites into low and high cross-sectional
// variability.
type EntropyTier int

const (
	LowEntropy EntropyTier = iota
	HighEntropy
)

func (t EntropyTier) String() string {
	switch t {
	case LowEntropy:
		return "low"
	case HighEntropy:
		return "high"
	default:
		return fmt.Sprintf("EntropyTier(%d)", int(t))
	}
}

// Spectrum is an allele frequency histogram of the sites of one
// patient, entropy tier and direction at one timepoint.
type Spectrum struct {
	Patient   string
	Tier      EntropyTier
	Direction Direction
	Time      float64
	Counts    []int64
}

type spectrumKey struct {
	Patient   string
	Tier      EntropyTier
	Direction Direction
	Time      float64
}

func (s *Spectrum) key() spectrumKey {
	return spectrumKey{s.Patient, s.Tier, s.Direction, s.Time}
}

// Total returns the number of sites in the histogram.
func (s *Spectrum) Total() int64 {
	var n int64
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// spectra histograms the clean sites of one timepoint, returning
// one Spectrum for every tier and direction (possibly all zero).
func spectra(patient string, t float64, cs *CleanSites, bins Bins, threshold float64, quantity SpectrumQuantity) []Spectrum {
	values := cs.Founder
	if quantity == MinorFrequency {
		values = cs.Minor
	}
	out := make([]Spectrum, 0, 4)
	for _, tier := range []EntropyTier{LowEntropy, HighEntropy} {
		for _, dir := range []Direction{Away, To} {
			out = append(out, Spectrum{
				Patient:   patient,
				Tier:      tier,
				Direction: dir,
				Time:      t,
				Counts:    make([]int64, bins.Len()),
			})
		}
	}
	for i, v := range values {
		tier := LowEntropy
		if !(cs.Entropy[i] < threshold) {
			tier = HighEntropy
		}
		dir := To
		if cs.Away[i] {
			dir = Away
		}
		if b := bins.Index(v); b >= 0 {
			out[int(tier)*2+int(dir)].Counts[b]++
		}
	}
	return out
}

// mergeSpectra adds the counts of each spectrum in add to the
// spectrum in dst with the same key, appending a copy if there is
// none, and returns the updated dst.
func mergeSpectra(dst []Spectrum, add []Spectrum) []Spectrum {
	index := make(map[spectrumKey]int, len(dst))
	for i := range dst {
		index[dst[i].key()] = i
	}
	for _, s := range add {
		if i, ok := index[s.key()]; ok {
			if len(dst[i].Counts) != len(s.Counts) {
				panic(fmt.Sprintf("bug: merging spectra with %d and %d bins", len(dst[i].Counts), len(s.Counts)))
			}
			for b, c := range s.Counts {
				dst[i].Counts[b] += c
			}
			continue
		}
		s.Counts = append([]int64(nil), s.Counts...)
		index[s.key()] = len(dst)
		dst = append(dst, s)
	}
	return dst
}

// BinSpectraByTime sums the given spectra over coarse time bins.
// A spectrum at time t is added to bin i-1, where i is the leftmost
// position at which t could be inserted in timeEdges; spectra with
// i == 0 or i == len(timeEdges) are not counted.
func BinSpectraByTime(spectra []Spectrum, timeEdges []float64, nbins int) [][]int64 {
	out := make([][]int64, len(timeEdges)-1)
	for i := range out {
		out[i] = make([]int64, nbins)
	}
	for _, s := range spectra {
		ti := coarseBin(timeEdges, s.Time)
		if ti < 0 {
			continue
		}
		for b, c := range s.Counts {
			out[ti][b] += c
		}
	}
	return out
}

// SpectrumMean returns the mean divergence from the founder implied
// by a histogram over the given frequency bins. For founder
// frequency histograms this is the mean of 1-c over all but the
// last (fixed founder) bin; for minor frequency histograms it is the
// mean of c over all but the first bin. Bins are represented by
// their centers. Empty histograms give NaN.
func SpectrumMean(h []int64, bins Bins, quantity SpectrumQuantity) float64 {
	centers := bins.Centers()
	var num, total float64
	for b, c := range h {
		total += float64(c)
		switch {
		case quantity == MinorFrequency && b > 0:
			num += float64(c) * centers[b]
		case quantity != MinorFrequency && b < len(h)-1:
			num += float64(c) * (1 - centers[b])
		}
	}
	if total == 0 {
		return math.NaN()
	}
	return num / total
}

// FixedFraction returns the fraction of sites in the first bin of a
// histogram: sites that lost the founder allele in a founder
// frequency histogram, sites without minor variation in a minor
// frequency histogram.
func FixedFraction(h []int64) float64 {
	var total int64
	for _, c := range h {
		total += c
	}
	if total == 0 || len(h) == 0 {
		return math.NaN()
	}
	return float64(h[0]) / float64(total)
}
