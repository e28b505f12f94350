// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"fmt"
	"strings"
)

// Alphabet describes one symbol alphabet used by the allele
// frequency matrices: row i of a matrix holds the frequency of
// Symbols[i]. The last Reserved symbols (gap, ambiguous) are not
// real calls.
type Alphabet struct {
	Name     string
	Symbols  string
	Reserved int

	// Genomic regions analyzed with this alphabet.
	Regions []string

	// Default entropy bin edges (bits).
	EntropyBins []float64

	// If true, the reference provider keeps a separate
	// reference per region (amino acid references are
	// region-local); otherwise one reference covers the whole
	// genome and regions are mapped into it.
	RegionalReference bool
}

var (
	Nucleotides = Alphabet{
		Name:        "nuc",
		Symbols:     "ACGT-N",
		Reserved:    2,
		Regions:     []string{"genomewide"},
		EntropyBins: []float64{0, 0.03, 0.08, 0.25, 2},
	}
	AminoAcids = Alphabet{
		Name:              "aa",
		Symbols:           "ACDEFGHIKLMNPQRSTVWY*-X",
		Reserved:          2,
		Regions:           []string{"p17", "p24", "PR", "RT", "p15", "IN", "vif", "gp41", "gp120", "nef"},
		EntropyBins:       []float64{0, 0.1, 0.3, 3},
		RegionalReference: true,
	}
)

// Size returns the number of rows in an allele frequency matrix.
func (a Alphabet) Size() int { return len(a.Symbols) }

// Usable returns the number of leading rows that hold real calls.
func (a Alphabet) Usable() int { return len(a.Symbols) - a.Reserved }

// Index returns the row of the given symbol, or -1.
func (a Alphabet) Index(sym byte) int {
	return strings.IndexByte(a.Symbols, sym)
}

func (a Alphabet) check() error {
	if a.Reserved < 0 || a.Reserved >= len(a.Symbols) {
		return fmt.Errorf("alphabet %s: reserved symbol count %d out of range for %d symbols", a.Name, a.Reserved, len(a.Symbols))
	}
	return nil
}

// LookupAlphabet returns the named alphabet ("nuc" or "aa").
func LookupAlphabet(name string) (Alphabet, error) {
	switch name {
	case Nucleotides.Name:
		return Nucleotides, nil
	case AminoAcids.Name:
		return AminoAcids, nil
	default:
		return Alphabet{}, fmt.Errorf("unknown sequence type %q (expected %q or %q)", name, Nucleotides.Name, AminoAcids.Name)
	}
}
