// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMissingMapping means a patient region could not be
	// mapped to the external reference.
	ErrMissingMapping = errors.New("missing coordinate mapping")
	// ErrLoadFailure means patient or reference data could not
	// be loaded.
	ErrLoadFailure = errors.New("load failure")
	// ErrNoData means no patient/region yielded usable data.
	ErrNoData = errors.New("no usable data")
)

// Unmapped marks a patient site with no reference counterpart in a
// CoordinateMap.
const Unmapped = -1

// PatientSource supplies longitudinal within-patient data.
type PatientSource interface {
	// Subtype returns the viral subtype of the patient's
	// infection.
	Subtype(pcode string) (ViralSubtype, error)
	// AlleleFrequencyTrajectories returns the sampled times
	// (days since infection) and one frequency matrix per time,
	// with entries masked where coverage is below minCoverage.
	AlleleFrequencyTrajectories(pcode, region string, alpha Alphabet, minCoverage int) ([]float64, []*AlleleFrequencies, error)
	// InitialIndices returns the founder allele index of every
	// patient-local site.
	InitialIndices(pcode, region string, alpha Alphabet) ([]int, error)
	// MapToReference returns the patient-to-reference site map
	// for a region.
	MapToReference(pcode, region string, alpha Alphabet, refname string) (CoordinateMap, error)
}

// ReferenceSource supplies cross-sectional consensus data.
type ReferenceSource interface {
	Reference(refname string, subtype ViralSubtype, alpha Alphabet, region string) (*Reference, error)
}

// AlleleFrequencies is one timepoint's allele frequency matrix:
// Symbols rows by Sites columns, row-major.
type AlleleFrequencies struct {
	Symbols int
	Sites   int
	Freq    []float64
	Masked  []bool
}

func NewAlleleFrequencies(symbols, sites int) *AlleleFrequencies {
	return &AlleleFrequencies{
		Symbols: symbols,
		Sites:   sites,
		Freq:    make([]float64, symbols*sites),
		Masked:  make([]bool, symbols*sites),
	}
}

func (af *AlleleFrequencies) At(sym, site int) float64 { return af.Freq[sym*af.Sites+site] }

func (af *AlleleFrequencies) Set(sym, site int, f float64) { af.Freq[sym*af.Sites+site] = f }

// MaskSite masks every entry of a column.
func (af *AlleleFrequencies) MaskSite(site int) {
	for sym := 0; sym < af.Symbols; sym++ {
		af.Masked[sym*af.Sites+site] = true
	}
}

// SiteMasked returns true if any entry of the column is masked.
func (af *AlleleFrequencies) SiteMasked(site int) bool {
	for sym := 0; sym < af.Symbols; sym++ {
		if af.Masked[sym*af.Sites+site] {
			return true
		}
	}
	return false
}

// Column copies the frequencies of one site into dst (allocated if
// nil) and returns it.
func (af *AlleleFrequencies) Column(site int, dst []float64) []float64 {
	if cap(dst) < af.Symbols {
		dst = make([]float64, af.Symbols)
	}
	dst = dst[:af.Symbols]
	for sym := range dst {
		dst[sym] = af.Freq[sym*af.Sites+site]
	}
	return dst
}

// CoordinateMap maps patient-local sites to reference-local sites.
// Row i says patient site Patient[i] corresponds to reference site
// Reference[i] (or Unmapped).
type CoordinateMap struct {
	Reference []int
	Patient   []int
}

func (m CoordinateMap) Len() int { return len(m.Patient) }

// Reference is a cross-sectional consensus snapshot in reference
// coordinates.
type Reference struct {
	Name    string
	Subtype ViralSubtype

	Consensus   []int     // consensus allele index per site
	Entropy     []float64 // site entropy, natural log units
	GapFraction []float64 // fraction of sequences with a gap
}

func (ref *Reference) Len() int { return len(ref.Consensus) }

func (ref *Reference) check() error {
	if len(ref.Entropy) != len(ref.Consensus) || len(ref.GapFraction) != len(ref.Consensus) {
		return fmt.Errorf("reference %s/%s: array lengths differ: consensus %d, entropy %d, gap fraction %d", ref.Name, ref.Subtype, len(ref.Consensus), len(ref.Entropy), len(ref.GapFraction))
	}
	return nil
}

// ConsensusIndices returns the consensus allele of each mapped site,
// in map order. The map must be in range (see Project).
func (ref *Reference) ConsensusIndices(m CoordinateMap) []int {
	out := make([]int, m.Len())
	for i, r := range m.Reference {
		out[i] = ref.Consensus[r]
	}
	return out
}

// EntropyOf returns the entropy (nats) of each mapped site, in map
// order.
func (ref *Reference) EntropyOf(m CoordinateMap) []float64 {
	out := make([]float64, m.Len())
	for i, r := range m.Reference {
		out[i] = ref.Entropy[r]
	}
	return out
}

// QualityMask returns true for reference sites whose gap fraction
// is below threshold.
func (ref *Reference) QualityMask(threshold float64) []bool {
	out := make([]bool, len(ref.GapFraction))
	for i, g := range ref.GapFraction {
		out[i] = g < threshold && !math.IsNaN(g)
	}
	return out
}

// referenceView is a reference together with its quality mask,
// fixed when the view is built and never modified afterwards.
type referenceView struct {
	*Reference
	good []bool
}

func newReferenceView(ref *Reference, gapThreshold float64) (*referenceView, error) {
	if err := ref.check(); err != nil {
		return nil, err
	}
	return &referenceView{Reference: ref, good: ref.QualityMask(gapThreshold)}, nil
}
