// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Collector computes a Bundle from patient and reference data.
type Collector struct {
	Config     Config
	Patients   PatientSource
	References ReferenceSource

	refs refCache
}

type refKey struct {
	subtype ViralSubtype
	region  string
}

type refEntry struct {
	once sync.Once
	view *referenceView
	err  error
}

// refCache loads each reference snapshot once. Cached views are
// never modified, so callers may share them.
type refCache struct {
	mtx     sync.Mutex
	entries map[refKey]*refEntry
}

func (rc *refCache) get(src ReferenceSource, cfg *Config, subtype ViralSubtype, region string) (*referenceView, error) {
	if !cfg.Alphabet.RegionalReference {
		region = ""
	}
	key := refKey{subtype, region}
	rc.mtx.Lock()
	if rc.entries == nil {
		rc.entries = map[refKey]*refEntry{}
	}
	ent := rc.entries[key]
	if ent == nil {
		ent = &refEntry{}
		rc.entries[key] = ent
	}
	rc.mtx.Unlock()
	ent.once.Do(func() {
		ref, err := src.Reference(cfg.Reference, subtype, cfg.Alphabet, region)
		if err != nil {
			ent.err = fmt.Errorf("%w: reference %s subtype %s: %s", ErrLoadFailure, cfg.Reference, subtype, err)
			return
		}
		ent.view, ent.err = newReferenceView(ref, cfg.GapThreshold)
	})
	return ent.view, ent.err
}

// Collect runs every (strategy, patient) unit, up to
// Config.Threads at a time, and merges the results in
// configuration order. It returns an error wrapping ErrNoData if
// no strategy has any usable (patient, region) data; a strategy
// without data is logged and kept with empty tables.
func (col *Collector) Collect() (*Bundle, error) {
	cfg := &col.Config
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	partials := make([][]*StrategyResult, len(cfg.Strategies))
	usable := make([][]int, len(cfg.Strategies))
	thr := throttle{Max: cfg.Threads}
	for si, strategy := range cfg.Strategies {
		partials[si] = make([]*StrategyResult, len(cfg.Patients))
		usable[si] = make([]int, len(cfg.Patients))
		for pi, pcode := range cfg.Patients {
			si, pi, strategy, pcode := si, pi, strategy, pcode
			thr.Go(func() error {
				partials[si][pi], usable[si][pi] = col.collectPatient(strategy, pcode)
				return nil
			})
		}
	}
	if err := thr.Wait(); err != nil {
		return nil, err
	}
	bundle := &Bundle{Digest: cfg.Digest(), Config: *cfg}
	total := 0
	for si, strategy := range cfg.Strategies {
		result := StrategyResult{Strategy: strategy}
		n := 0
		for pi, part := range partials[si] {
			n += usable[si][pi]
			result.MinorVariants = append(result.MinorVariants, part.MinorVariants...)
			result.Divergence = append(result.Divergence, part.Divergence...)
			result.ReversionSpectrum = append(result.ReversionSpectrum, part.ReversionSpectrum...)
			result.ConsensusDistance = append(result.ConsensusDistance, part.ConsensusDistance...)
			result.Spectra = mergeSpectra(result.Spectra, part.Spectra)
		}
		total += n
		if n == 0 {
			log.WithField("strategy", strategy).Warn("no patient/region could be processed")
		}
		log.WithFields(log.Fields{
			"strategy": strategy,
			"regions":  n,
			"records":  len(result.MinorVariants),
		}).Info("collected")
		bundle.Results = append(bundle.Results, result)
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: no patient/region could be processed", ErrNoData)
	}
	return bundle, nil
}

// collectPatient processes every region of one patient and returns
// the partial result and the number of regions that yielded data.
// Failures are logged and skipped.
func (col *Collector) collectPatient(strategy SubtypeStrategy, pcode string) (*StrategyResult, int) {
	part := &StrategyResult{Strategy: strategy}
	logger := log.WithFields(log.Fields{"strategy": strategy, "patient": pcode})
	viral, err := col.Patients.Subtype(pcode)
	if err != nil {
		logger.WithError(fmt.Errorf("%w: %s", ErrLoadFailure, err)).Warn("skipping patient")
		return part, 0
	}
	n := 0
	for _, region := range col.Config.Regions {
		err := col.collectRegion(part, strategy, pcode, viral, region)
		if err != nil {
			logger.WithField("region", region).WithError(err).Warn("skipping region")
			continue
		}
		n++
	}
	return part, n
}

func (col *Collector) collectRegion(part *StrategyResult, strategy SubtypeStrategy, pcode string, viral ViralSubtype, region string) error {
	cfg := &col.Config
	alpha := cfg.Alphabet
	ref, err := col.refs.get(col.References, cfg, strategy.referenceSubtype(viral), region)
	if err != nil {
		return err
	}
	cmap, err := col.Patients.MapToReference(pcode, region, alpha, cfg.Reference)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMissingMapping, err)
	}
	proj, err := Project(ref, cmap, alpha)
	if err != nil {
		return err
	}
	founder, err := col.Patients.InitialIndices(pcode, region, alpha)
	if err != nil {
		return fmt.Errorf("%w: initial indices: %s", ErrLoadFailure, err)
	}
	ancestral := make([]int, proj.Len())
	for i, site := range proj.Sites {
		if site >= len(founder) {
			return fmt.Errorf("%w: patient site %d beyond %d founder sites", ErrMissingMapping, site, len(founder))
		}
		ancestral[i] = founder[site]
	}
	cls, err := Classify(ancestral, proj.Consensus)
	if err != nil {
		return err
	}
	times, afs, err := col.Patients.AlleleFrequencyTrajectories(pcode, region, alpha, cfg.MinCoverage)
	if err != nil {
		return fmt.Errorf("%w: allele frequencies: %s", ErrLoadFailure, err)
	}
	goodRef := 0
	for _, g := range proj.GoodRef {
		if g {
			goodRef++
		}
	}
	log.WithFields(log.Fields{
		"strategy": strategy,
		"patient":  pcode,
		"region":   region,
		"subtype":  viral,
	}).Infof("distance %.4f useful reference %.4f", cls.Distance, float64(goodRef)/float64(proj.Len()))

	entropyBins := Bins{Edges: cfg.EntropyBins}
	afBins := Bins{Edges: cfg.AFBins}
	reversionTimeBins := Bins{Edges: cfg.ReversionTimeBins}
	spectrumBins := Bins{Edges: cfg.SpectrumBins, ClosedRight: true}
	var minor []MinorVariantRecord
	var div []DivergenceRecord
	var revspec []ReversionSpectrumRecord
	var spectrumRows []Spectrum
	for ti, t := range times {
		cs, err := Clean(afs[ti], proj, ancestral, cls, alpha.Reserved)
		if err != nil {
			return fmt.Errorf("time %v: %w", t, err)
		}
		key := recordKey{Patient: pcode, Region: region, Time: t}
		minor = append(minor, minorVariantRecords(key, entropyBins, cs)...)
		div = append(div, divergenceRecord(key, cs))
		if tb := reversionTimeBins.Index(t); tb >= 0 {
			revspec = append(revspec, reversionSpectrumRecords(key, afBins, tb, cs)...)
		}
		spectrumRows = append(spectrumRows, spectra(pcode, t, cs, spectrumBins, cfg.EntropyThreshold, cfg.SpectrumQuantity)...)
	}
	part.MinorVariants = append(part.MinorVariants, minor...)
	part.Divergence = append(part.Divergence, div...)
	part.ReversionSpectrum = append(part.ReversionSpectrum, revspec...)
	part.ConsensusDistance = append(part.ConsensusDistance, ConsensusDistance{Patient: pcode, Region: region, Distance: cls.Distance})
	part.Spectra = mergeSpectra(part.Spectra, spectrumRows)
	return nil
}

type collectcmd struct{}

func (cmd *collectcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	seqType := flags.String("type", Nucleotides.Name, "sequence `type`: nuc or aa")
	patientsDir := flags.String("patients-dir", "patients", "patient data `directory`")
	referenceDir := flags.String("reference-dir", "reference", "reference data `directory`")
	dataDir := flags.String("data-dir", ".", "output `directory`")
	outputFilename := flags.String("o", "", "output `file` (default: to_away[_<reference>][_aa].gob.gz in -data-dir)")
	redo := flags.Bool("redo", false, "recompute even if the output file is up to date")
	cfg := DefaultConfig(Nucleotides)
	cfg.Flags(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	alpha, err := LookupAlphabet(*seqType)
	if err != nil {
		return 2
	}
	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })
	err = cfg.Finish(alpha, set["regions"], set["entropy-bins"])
	if err != nil {
		return 2
	}

	fnm := *outputFilename
	if fnm == "" {
		fnm = DefaultBundleName(alpha, cfg.Reference)
	}
	fnm = bundlePath(*dataDir, fnm)

	if !*redo {
		var cached *Bundle
		cached, err = LoadBundle(fnm)
		if err == nil && cached.Digest == cfg.Digest() {
			log.WithField("filename", fnm).Info("results are up to date, use -redo to recompute")
			fmt.Fprintln(stdout, fnm)
			return 0
		} else if err == nil {
			log.WithField("filename", fnm).Info("configuration changed, recomputing")
		} else if !errors.Is(err, os.ErrNotExist) {
			log.WithField("filename", fnm).WithError(err).Warn("cannot read cached results, recomputing")
		}
		err = nil
	}

	col := Collector{
		Config:     cfg,
		Patients:   NewPatientStore(*patientsDir),
		References: NewReferenceStore(*referenceDir),
	}
	bundle, err := col.Collect()
	if err != nil {
		return 1
	}
	err = StoreBundle(fnm, bundle)
	if err != nil {
		return 1
	}
	fmt.Fprintln(stdout, fnm)
	return 0
}
