// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	log "github.com/sirupsen/logrus"
)

// exporter writes the tables of a Bundle as CSV files and the
// spectra as numpy arrays, one set of files per strategy:
//
//	minor_variants_<strategy>.csv
//	divergence_<strategy>.csv
//	reversion_spectrum_<strategy>.csv
//	consensus_distance_<strategy>.csv
//	spectra_<strategy>.npy       int64, spectrum x frequency bin
//	spectra_<strategy>.csv       row labels of spectra_<strategy>.npy
//
// plus the bin edges (entropy_bins.npy, af_bins.npy,
// spectrum_bins.npy, spectrum_time_bins.npy).
type exporter struct{}

func (cmd *exporter) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "input `file` written by collect")
	outputDir := flags.String("output-dir", ".", "output `directory`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *inputFilename == "" {
		err = fmt.Errorf("missing required argument: -i")
		return 2
	}
	bundle, err := LoadBundle(*inputFilename)
	if err != nil {
		return 1
	}
	err = os.MkdirAll(*outputDir, 0777)
	if err != nil {
		return 1
	}
	err = exportBundle(bundle, *outputDir)
	if err != nil {
		return 1
	}
	fmt.Fprintln(stdout, *outputDir)
	return 0
}

func exportBundle(bundle *Bundle, dir string) error {
	cfg := &bundle.Config
	thr := throttle{Max: runtime.GOMAXPROCS(0)}
	for _, edges := range []struct {
		name  string
		edges []float64
	}{
		{"entropy_bins", cfg.EntropyBins},
		{"af_bins", cfg.AFBins},
		{"spectrum_bins", cfg.SpectrumBins},
		{"spectrum_time_bins", cfg.SpectrumTimeBins},
	} {
		edges := edges
		thr.Go(func() error {
			return writeNumpyFloat64(filepath.Join(dir, edges.name+".npy"), edges.edges, len(edges.edges))
		})
	}
	for i := range bundle.Results {
		res := &bundle.Results[i]
		name := func(prefix, ext string) string {
			return filepath.Join(dir, prefix+"_"+res.Strategy.String()+ext)
		}
		thr.Go(func() error {
			return writeCSV(name("minor_variants", ".csv"), "patient,region,time,entropy_bin,af_away_minor,af_away_derived,af_to_minor,af_to_derived", func(w io.Writer) error {
				for _, r := range res.MinorVariants {
					_, err := fmt.Fprintf(w, "%s,%s,%g,%d,%g,%g,%g,%g\n", r.Patient, r.Region, r.Time, r.EntropyBin, r.AwayMinor, r.AwayDerived, r.ToMinor, r.ToDerived)
					if err != nil {
						return err
					}
				}
				return nil
			})
		})
		thr.Go(func() error {
			return writeCSV(name("divergence", ".csv"), "patient,region,time,reversion,divergence", func(w io.Writer) error {
				for _, r := range res.Divergence {
					_, err := fmt.Fprintf(w, "%s,%s,%g,%g,%g\n", r.Patient, r.Region, r.Time, r.Reversion, r.Divergence)
					if err != nil {
						return err
					}
				}
				return nil
			})
		})
		thr.Go(func() error {
			return writeCSV(name("reversion_spectrum", ".csv"), "patient,region,time,time_bin,af_bin,reversion_mean,derived_mean,reversion_spectrum,minor_reversion_spectrum", func(w io.Writer) error {
				for _, r := range res.ReversionSpectrum {
					_, err := fmt.Fprintf(w, "%s,%s,%g,%d,%d,%g,%g,%g,%g\n", r.Patient, r.Region, r.Time, r.TimeBin, r.AFBin, r.ReversionMean, r.DerivedMean, r.ReversionSpectrum, r.MinorReversionSpectrum)
					if err != nil {
						return err
					}
				}
				return nil
			})
		})
		thr.Go(func() error {
			return writeCSV(name("consensus_distance", ".csv"), "patient,region,distance", func(w io.Writer) error {
				for _, r := range res.ConsensusDistance {
					_, err := fmt.Fprintf(w, "%s,%s,%g\n", r.Patient, r.Region, r.Distance)
					if err != nil {
						return err
					}
				}
				return nil
			})
		})
		thr.Go(func() error {
			return exportSpectra(name("spectra", ".npy"), name("spectra", ".csv"), res.Spectra, len(cfg.SpectrumBins)-1)
		})
	}
	return thr.Wait()
}

func exportSpectra(npyFilename, labelsFilename string, spectra []Spectrum, nbins int) error {
	out := make([]int64, 0, len(spectra)*nbins)
	for _, s := range spectra {
		if len(s.Counts) != nbins {
			return fmt.Errorf("spectrum %s/%s/%s/%g has %d bins, expected %d", s.Patient, s.Tier, s.Direction, s.Time, len(s.Counts), nbins)
		}
		out = append(out, s.Counts...)
	}
	err := writeNumpyInt64(npyFilename, out, len(spectra), nbins)
	if err != nil {
		return err
	}
	return writeCSV(labelsFilename, "row,patient,tier,direction,time", func(w io.Writer) error {
		for i, s := range spectra {
			_, err := fmt.Fprintf(w, "%d,%s,%s,%s,%g\n", i, s.Patient, s.Tier, s.Direction, s.Time)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(fnm, header string, rows func(io.Writer) error) error {
	f, err := os.Create(fnm)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	_, err = fmt.Fprintln(bufw, header)
	if err != nil {
		return err
	}
	err = rows(bufw)
	if err != nil {
		return fmt.Errorf("%s: %w", fnm, err)
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	log.WithField("filename", fnm).Debug("wrote csv")
	return f.Close()
}
