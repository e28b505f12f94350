// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

// jsonFloat is a float64 that encodes NaN and infinities as null.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	x := float64(f)
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(x, 'g', -1, 64)), nil
}

func (f *jsonFloat) UnmarshalJSON(buf []byte) error {
	if string(buf) == "null" {
		*f = jsonFloat(math.NaN())
		return nil
	}
	x, err := strconv.ParseFloat(string(buf), 64)
	*f = jsonFloat(x)
	return err
}

// Estimate is a statistic with its bootstrap standard deviation.
type Estimate struct {
	Value  jsonFloat `json:"value"`
	StdDev jsonFloat `json:"std"`
}

type EntropyBinSummary struct {
	Bin         int      `json:"bin"`
	Center      float64  `json:"center"`
	AwayMinor   Estimate `json:"away_minor"`
	AwayDerived Estimate `json:"away_derived"`
	ToMinor     Estimate `json:"to_minor"`
	ToDerived   Estimate `json:"to_derived"`
}

type TimeBinSummary struct {
	Bin        int      `json:"bin"`
	Center     float64  `json:"center_days"`
	Reversion  Estimate `json:"reversion"`
	Divergence Estimate `json:"divergence"`
	// Reversion / Divergence, with propagated error.
	Fraction Estimate `json:"fraction"`
}

type SpectrumSummary struct {
	Direction     string   `json:"direction"`
	Bin           int      `json:"bin"`
	CenterYears   float64  `json:"center_years"`
	Divergence    Estimate `json:"divergence"`
	FixedFraction Estimate `json:"fixed_fraction"`
}

// FixedContrast tests whether away and to sites differ in the
// fraction that is fixed, within one time bin.
type FixedContrast struct {
	Bin         int       `json:"bin"`
	CenterYears float64   `json:"center_years"`
	PValue      jsonFloat `json:"p_value"`
}

type RateSummary struct {
	Quantity string    `json:"quantity"`
	PerYear  jsonFloat `json:"per_year"`
	StdErr   jsonFloat `json:"stderr"`
	Lower    jsonFloat `json:"lower"`
	Upper    jsonFloat `json:"upper"`
	N        int       `json:"n"`
}

type StrategySummary struct {
	Strategy              string              `json:"strategy"`
	Label                 string              `json:"label"`
	MeanTimeYears         jsonFloat           `json:"mean_time_years"`
	EntropyBins           []EntropyBinSummary `json:"entropy_bins"`
	TimeBins              []TimeBinSummary    `json:"time_bins"`
	MeanConsensusDistance jsonFloat           `json:"mean_consensus_distance"`
	Spectra               []SpectrumSummary   `json:"spectra"`
	FixedContrast         []FixedContrast     `json:"fixed_contrast"`
	Rates                 []RateSummary       `json:"rates"`
}

type Report struct {
	Alphabet   string            `json:"alphabet"`
	Reference  string            `json:"reference"`
	Replicates int               `json:"bootstrap_replicates"`
	Strategies []StrategySummary `json:"strategies"`
}

// Summarizer computes presentation statistics from a Bundle.
type Summarizer struct {
	Bootstrap Bootstrap
	// Time bin edges (days) for reversion and divergence.
	TimeBins []float64
	// Minor variant records are averaged over WindowMin < t <
	// WindowMax (days).
	WindowMin float64
	WindowMax float64
	// Confidence level of rate intervals.
	Confidence float64
}

func DefaultSummarizer(seed uint64) Summarizer {
	return Summarizer{
		Bootstrap:  Bootstrap{Replicates: 100, Rand: rand.New(rand.NewSource(seed))},
		TimeBins:   []float64{0, 500, 1000, 1500, 2500, 3500},
		WindowMin:  1500,
		WindowMax:  2500,
		Confidence: 0.95,
	}
}

func (sm *Summarizer) Summarize(b *Bundle) *Report {
	rpt := &Report{
		Alphabet:   b.Config.Alphabet.Name,
		Reference:  b.Config.Reference,
		Replicates: sm.Bootstrap.Replicates,
	}
	for i := range b.Results {
		rpt.Strategies = append(rpt.Strategies, sm.summarizeStrategy(&b.Config, &b.Results[i]))
	}
	return rpt
}

func (sm *Summarizer) summarizeStrategy(cfg *Config, res *StrategyResult) StrategySummary {
	ss := StrategySummary{
		Strategy: res.Strategy.String(),
		Label:    res.Strategy.Label(),
	}
	ss.MeanTimeYears, ss.EntropyBins = sm.entropySummary(cfg, res.MinorVariants)
	ss.TimeBins = sm.timeSummary(res.Divergence)
	dist := make([]float64, 0, len(res.ConsensusDistance))
	for _, cd := range res.ConsensusDistance {
		if !math.IsNaN(cd.Distance) {
			dist = append(dist, cd.Distance)
		}
	}
	ss.MeanConsensusDistance = jsonFloat(meanOrNaN(dist))
	ss.Spectra, ss.FixedContrast = sm.spectrumSummary(cfg, res.Spectra)

	days := make([]float64, len(res.Divergence))
	rev := make([]float64, len(res.Divergence))
	div := make([]float64, len(res.Divergence))
	for i, r := range res.Divergence {
		days[i], rev[i], div[i] = r.Time, r.Reversion, r.Divergence
	}
	for _, q := range []struct {
		name string
		y    []float64
	}{{"divergence", div}, {"reversion", rev}} {
		rate := fitRate(days, q.y, sm.Confidence)
		log.WithField("strategy", res.Strategy).Infof("%s rate %s", q.name, rate)
		ss.Rates = append(ss.Rates, RateSummary{
			Quantity: q.name,
			PerYear:  jsonFloat(rate.PerYear),
			StdErr:   jsonFloat(rate.StdErr),
			Lower:    jsonFloat(rate.Lower),
			Upper:    jsonFloat(rate.Upper),
			N:        rate.N,
		})
	}
	return ss
}

func estimate(full Summary, reps []Summary, bin, col int) Estimate {
	v := math.NaN()
	if vals := full.Lookup(bin); col < len(vals) {
		v = vals[col]
	}
	return Estimate{Value: jsonFloat(v), StdDev: jsonFloat(ReplicateStdDev(reps, bin, col))}
}

func (sm *Summarizer) entropySummary(cfg *Config, records []MinorVariantRecord) (jsonFloat, []EntropyBinSummary) {
	var rows []MinorVariantRecord
	var times []float64
	var patientOfRow []string
	for _, r := range records {
		if r.Time > sm.WindowMin && r.Time < sm.WindowMax {
			rows = append(rows, r)
			patientOfRow = append(patientOfRow, r.Patient)
			times = append(times, r.Time/daysPerYear)
		}
	}
	means := func(idx []int) Summary {
		return binnedMeans(idx,
			func(i int) int { return rows[i].EntropyBin },
			func(i int) float64 { return rows[i].AwayMinor },
			func(i int) float64 { return rows[i].AwayDerived },
			func(i int) float64 { return rows[i].ToMinor },
			func(i int) float64 { return rows[i].ToDerived })
	}
	full := means(allRows(len(rows)))
	reps := sm.Bootstrap.Run(patientOfRow, means)
	centers := Bins{Edges: cfg.EntropyBins}.Centers()
	out := make([]EntropyBinSummary, len(centers))
	for b := range out {
		out[b] = EntropyBinSummary{
			Bin:         b,
			Center:      centers[b],
			AwayMinor:   estimate(full, reps, b, 0),
			AwayDerived: estimate(full, reps, b, 1),
			ToMinor:     estimate(full, reps, b, 2),
			ToDerived:   estimate(full, reps, b, 3),
		}
	}
	return jsonFloat(meanOrNaN(times)), out
}

func (sm *Summarizer) timeSummary(records []DivergenceRecord) []TimeBinSummary {
	timeBins := Bins{Edges: sm.TimeBins}
	patientOfRow := make([]string, len(records))
	for i, r := range records {
		patientOfRow[i] = r.Patient
	}
	means := func(idx []int) Summary {
		return binnedMeans(idx,
			func(i int) int { return timeBins.Index(records[i].Time) },
			func(i int) float64 { return records[i].Reversion },
			func(i int) float64 { return records[i].Divergence })
	}
	full := means(allRows(len(records)))
	reps := sm.Bootstrap.Run(patientOfRow, means)
	centers := timeBins.Centers()
	out := make([]TimeBinSummary, len(centers))
	for b := range out {
		rev := estimate(full, reps, b, 0)
		div := estimate(full, reps, b, 1)
		f := float64(rev.Value) / float64(div.Value)
		d := float64(div.Value)
		sr, sd := float64(rev.StdDev), float64(div.StdDev)
		out[b] = TimeBinSummary{
			Bin:        b,
			Center:     centers[b],
			Reversion:  rev,
			Divergence: div,
			Fraction: Estimate{
				Value:  jsonFloat(f),
				StdDev: jsonFloat(math.Sqrt(sr*sr/(d*d) + sd*sd*f*f/(d*d))),
			},
		}
	}
	return out
}

func (sm *Summarizer) spectrumSummary(cfg *Config, spectra []Spectrum) ([]SpectrumSummary, []FixedContrast) {
	bins := Bins{Edges: cfg.SpectrumBins, ClosedRight: true}
	timeCenters := Bins{Edges: cfg.SpectrumTimeBins}.Centers()
	var patients []string
	byPatient := map[string][]Spectrum{}
	for _, s := range spectra {
		if _, ok := byPatient[s.Patient]; !ok {
			patients = append(patients, s.Patient)
		}
		byPatient[s.Patient] = append(byPatient[s.Patient], s)
	}
	var out []SpectrumSummary
	var pooled [2][][]int64
	for _, dir := range []Direction{Away, To} {
		summarize := func(sample []string) Summary {
			var sel []Spectrum
			for _, p := range sample {
				for _, s := range byPatient[p] {
					if s.Direction == dir {
						sel = append(sel, s)
					}
				}
			}
			binned := BinSpectraByTime(sel, cfg.SpectrumTimeBins, bins.Len())
			sum := make(Summary, len(binned))
			for ti, h := range binned {
				sum[ti] = BinStats{Bin: ti, Values: []float64{SpectrumMean(h, bins, cfg.SpectrumQuantity), FixedFraction(h)}}
			}
			return sum
		}
		var sel []Spectrum
		for _, s := range spectra {
			if s.Direction == dir {
				sel = append(sel, s)
			}
		}
		pooled[dir] = BinSpectraByTime(sel, cfg.SpectrumTimeBins, bins.Len())
		full := summarize(patients)
		reps := sm.Bootstrap.RunPatients(patients, summarize)
		for ti := range timeCenters {
			out = append(out, SpectrumSummary{
				Direction:     dir.String(),
				Bin:           ti,
				CenterYears:   timeCenters[ti] / daysPerYear,
				Divergence:    estimate(full, reps, ti, 0),
				FixedFraction: estimate(full, reps, ti, 1),
			})
		}
	}
	var contrast []FixedContrast
	for ti := range timeCenters {
		contrast = append(contrast, FixedContrast{
			Bin:         ti,
			CenterYears: timeCenters[ti] / daysPerYear,
			PValue:      jsonFloat(fixedPValue(pooled[Away][ti], pooled[To][ti])),
		})
	}
	return out, contrast
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

type summarycmd struct{}

func (cmd *summarycmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "input `file` written by collect")
	outputFilename := flags.String("o", "-", "output `file`")
	sm := DefaultSummarizer(0)
	seed := flags.Uint64("seed", 0, "bootstrap random `seed` (0 = random)")
	flags.IntVar(&sm.Bootstrap.Replicates, "bootstrap", sm.Bootstrap.Replicates, "number of bootstrap `replicates`")
	flags.Float64Var(&sm.WindowMin, "window-min", sm.WindowMin, "average minor variant records after `day`")
	flags.Float64Var(&sm.WindowMax, "window-max", sm.WindowMax, "average minor variant records before `day`")
	flags.Var((*floatList)(&sm.TimeBins), "time-bins", "comma-separated time bin `edges` (days) for reversion and divergence")
	flags.Float64Var(&sm.Confidence, "confidence", sm.Confidence, "confidence `level` of rate intervals")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *inputFilename == "" {
		err = fmt.Errorf("missing required argument: -i")
		return 2
	} else if len(sm.TimeBins) < 2 {
		err = fmt.Errorf("-time-bins: need at least 2 edges")
		return 2
	}
	if *seed == 0 {
		*seed = rand.Uint64()
	}
	sm.Bootstrap.Rand = rand.New(rand.NewSource(*seed))
	log.Infof("bootstrap seed %d", *seed)

	bundle, err := LoadBundle(*inputFilename)
	if err != nil {
		return 1
	}
	rpt := sm.Summarize(bundle)

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.Create(*outputFilename)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	bufw := bufio.NewWriter(output)
	enc := json.NewEncoder(bufw)
	enc.SetIndent("", "  ")
	err = enc.Encode(rpt)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
