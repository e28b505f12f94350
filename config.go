// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SubtypeStrategy selects which cross-sectional consensus a
// patient's founder sequence is compared with.
type SubtypeStrategy int

const (
	// PerPatient compares each patient with the consensus of
	// the patient's own viral subtype.
	PerPatient SubtypeStrategy = iota
	// GroupConsensus compares every patient with the group M
	// consensus.
	GroupConsensus
)

func (s SubtypeStrategy) String() string {
	switch s {
	case PerPatient:
		return "patient"
	case GroupConsensus:
		return "any"
	default:
		return fmt.Sprintf("SubtypeStrategy(%d)", int(s))
	}
}

// Label returns a human-readable description used in reports.
func (s SubtypeStrategy) Label() string {
	if s == GroupConsensus {
		return "group M"
	}
	return "subtype"
}

func ParseSubtypeStrategy(s string) (SubtypeStrategy, error) {
	switch s {
	case "patient", "perPatient":
		return PerPatient, nil
	case "any", "groupConsensus":
		return GroupConsensus, nil
	}
	return 0, fmt.Errorf("unknown subtype strategy %q", s)
}

// ViralSubtype is the label of an actual viral subtype (or "any"
// for the group M consensus), as used to locate a reference.
type ViralSubtype string

// GroupM labels the group M consensus reference.
const GroupM ViralSubtype = "any"

// referenceSubtype returns the reference label to use for a
// patient of the given subtype.
func (s SubtypeStrategy) referenceSubtype(patient ViralSubtype) ViralSubtype {
	if s == GroupConsensus {
		return GroupM
	}
	return patient
}

// SpectrumQuantity is the per-site frequency that goes into the
// site frequency spectra.
type SpectrumQuantity string

const (
	FounderFrequency SpectrumQuantity = "founder"
	MinorFrequency   SpectrumQuantity = "minor"
)

// Config holds every parameter of a collection run. It is passed
// explicitly to each component; nothing is read from package
// state.
type Config struct {
	Alphabet   Alphabet
	Reference  string
	Patients   []string
	Regions    []string
	Strategies []SubtypeStrategy

	MinCoverage  int
	GapThreshold float64

	EntropyBins       []float64
	AFBins            []float64
	ReversionTimeBins []float64
	SpectrumBins      []float64
	SpectrumTimeBins  []float64
	EntropyThreshold  float64
	SpectrumQuantity  SpectrumQuantity

	Threads int `json:"-"`
}

// DefaultPatients are the patients of the longitudinal dataset.
var DefaultPatients = []string{"p1", "p2", "p3", "p5", "p6", "p8", "p9", "p11"}

// DefaultConfig returns the configuration used for the given
// alphabet when no flags override it.
func DefaultConfig(alpha Alphabet) Config {
	return Config{
		Alphabet:          alpha,
		Reference:         "HXB2",
		Patients:          append([]string(nil), DefaultPatients...),
		Regions:           append([]string(nil), alpha.Regions...),
		Strategies:        []SubtypeStrategy{PerPatient, GroupConsensus},
		MinCoverage:       1000,
		GapThreshold:      0.05,
		EntropyBins:       append([]float64(nil), alpha.EntropyBins...),
		AFBins:            []float64{0, 0.05, 0.1, 0.25, 0.5, 0.95, 1.0},
		ReversionTimeBins: []float64{0, 1000, 2000, 4000},
		SpectrumBins:      linspace(0, 1, 11),
		SpectrumTimeBins:  []float64{-10, 500, 1000, 1500, 2000, 2500},
		EntropyThreshold:  10,
		SpectrumQuantity:  MinorFrequency,
		Threads:           4,
	}
}

// Flags registers command line flags that override fields of cfg.
// The alphabet-dependent defaults (regions, entropy bins, reserved
// symbol count) are applied by Finish after parsing.
func (cfg *Config) Flags(flags *flag.FlagSet) {
	flags.StringVar(&cfg.Reference, "reference", cfg.Reference, "reference `name` used for coordinates (HXB2 or NL4-3)")
	flags.Var((*stringList)(&cfg.Patients), "patients", "comma-separated patient `codes`")
	flags.Var((*stringList)(&cfg.Regions), "regions", "comma-separated genomic `regions` (default: all regions of the sequence type)")
	flags.Var((*strategyList)(&cfg.Strategies), "strategies", "comma-separated subtype `strategies` (patient, any)")
	flags.IntVar(&cfg.MinCoverage, "cov-min", cfg.MinCoverage, "mask sites with coverage below `N` reads")
	flags.Float64Var(&cfg.GapThreshold, "gap-threshold", cfg.GapThreshold, "use reference sites with gap fraction below `F`")
	flags.Var((*floatList)(&cfg.EntropyBins), "entropy-bins", "comma-separated entropy bin `edges` in bits (default depends on -type)")
	flags.Var((*floatList)(&cfg.AFBins), "af-bins", "comma-separated allele frequency bin `edges` for the reversion spectrum")
	flags.Var((*floatList)(&cfg.ReversionTimeBins), "reversion-time-bins", "comma-separated time bin `edges` (days) for the reversion spectrum")
	flags.Var((*floatList)(&cfg.SpectrumBins), "spectrum-bins", "comma-separated allele frequency histogram bin `edges`")
	flags.Var((*floatList)(&cfg.SpectrumTimeBins), "spectrum-time-bins", "comma-separated time bin `edges` (days) for frequency spectra")
	flags.Float64Var(&cfg.EntropyThreshold, "entropy-threshold", cfg.EntropyThreshold, "entropy `bits` separating low and high variability sites in spectra")
	flags.StringVar((*string)(&cfg.SpectrumQuantity), "spectrum-quantity", string(cfg.SpectrumQuantity), "frequency histogrammed in spectra: minor or founder")
	flags.IntVar(&cfg.Alphabet.Reserved, "reserved", -1, "number of trailing alphabet symbols (gap, ambiguous) that are not real calls (-1 = alphabet default)")
	flags.IntVar(&cfg.Threads, "threads", cfg.Threads, "number of patients to process concurrently")
}

// Finish fills in alphabet-dependent defaults that were not set
// by flags, and checks the result.
func (cfg *Config) Finish(alpha Alphabet, regionsSet, entropyBinsSet bool) error {
	reserved := cfg.Alphabet.Reserved
	cfg.Alphabet = alpha
	if reserved >= 0 {
		cfg.Alphabet.Reserved = reserved
	}
	if !regionsSet {
		cfg.Regions = append([]string(nil), alpha.Regions...)
	}
	if !entropyBinsSet {
		cfg.EntropyBins = append([]float64(nil), alpha.EntropyBins...)
	}
	return cfg.Check()
}

// Check returns an error if the configuration cannot be used.
func (cfg *Config) Check() error {
	if err := cfg.Alphabet.check(); err != nil {
		return err
	}
	if len(cfg.Patients) == 0 {
		return errors.New("no patients specified")
	}
	if len(cfg.Regions) == 0 {
		return errors.New("no regions specified")
	}
	if len(cfg.Strategies) == 0 {
		return errors.New("no subtype strategies specified")
	}
	for _, b := range []struct {
		name  string
		edges []float64
	}{
		{"entropy-bins", cfg.EntropyBins},
		{"af-bins", cfg.AFBins},
		{"reversion-time-bins", cfg.ReversionTimeBins},
		{"spectrum-bins", cfg.SpectrumBins},
		{"spectrum-time-bins", cfg.SpectrumTimeBins},
	} {
		if len(b.edges) < 2 {
			return fmt.Errorf("%s: need at least 2 edges, got %v", b.name, b.edges)
		}
		if !sort.Float64sAreSorted(b.edges) {
			return fmt.Errorf("%s: edges not sorted: %v", b.name, b.edges)
		}
	}
	switch cfg.SpectrumQuantity {
	case FounderFrequency, MinorFrequency:
	default:
		return fmt.Errorf("unknown spectrum quantity %q", cfg.SpectrumQuantity)
	}
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	return nil
}

// Digest returns a hash of every field that affects collected
// results. A cached bundle is only reused if its digest matches.
func (cfg *Config) Digest() string {
	buf, err := json.Marshal(cfg)
	if err != nil {
		panic(fmt.Sprintf("bug: cannot marshal config: %s", err))
	}
	sum := blake2b.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	out[n-1] = hi
	return out
}

type stringList []string

func (sl *stringList) String() string {
	if sl == nil {
		return ""
	}
	return strings.Join(*sl, ",")
}

func (sl *stringList) Set(s string) error {
	*sl = nil
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			*sl = append(*sl, f)
		}
	}
	return nil
}

type floatList []float64

func (fl *floatList) String() string {
	if fl == nil {
		return ""
	}
	s := make([]string, len(*fl))
	for i, f := range *fl {
		s[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(s, ",")
}

func (fl *floatList) Set(s string) error {
	*fl = nil
	for _, f := range strings.Split(s, ",") {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return err
		}
		*fl = append(*fl, x)
	}
	return nil
}

type strategyList []SubtypeStrategy

func (sl *strategyList) String() string {
	if sl == nil {
		return ""
	}
	s := make([]string, len(*sl))
	for i, st := range *sl {
		s[i] = st.String()
	}
	return strings.Join(s, ",")
}

func (sl *strategyList) Set(s string) error {
	*sl = nil
	for _, f := range strings.Split(s, ",") {
		st, err := ParseSubtypeStrategy(strings.TrimSpace(f))
		if err != nil {
			return err
		}
		*sl = append(*sl, st)
	}
	return nil
}
