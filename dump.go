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
)

// dumpcmd prints the contents of a collected bundle, one line per
// record.
type dumpcmd struct{}

func (cmd *dumpcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	brief := flags.Bool("brief", false, "print only record counts")
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
	bufw := bufio.NewWriterSize(output, 1<<20)
	dumpBundle(bufw, bundle, *brief)
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

func dumpBundle(w io.Writer, b *Bundle, brief bool) {
	cfg := &b.Config
	fmt.Fprintf(w, "digest %s\n", b.Digest)
	fmt.Fprintf(w, "config: alphabet %s, reference %s, reserved %d, patients %v, regions %v\n", cfg.Alphabet.Name, cfg.Reference, cfg.Alphabet.Reserved, cfg.Patients, cfg.Regions)
	var nMV, nDiv, nRS, nCD, nSp int
	for _, res := range b.Results {
		s := res.Strategy
		if !brief {
			for _, r := range res.ConsensusDistance {
				fmt.Fprintf(w, "%s: ConsensusDistance, patient %s, region %s, distance %g\n", s, r.Patient, r.Region, r.Distance)
			}
			for _, r := range res.MinorVariants {
				fmt.Fprintf(w, "%s: MinorVariant, patient %s, region %s, time %g, entropy bin %d, away %g/%g, to %g/%g\n", s, r.Patient, r.Region, r.Time, r.EntropyBin, r.AwayMinor, r.AwayDerived, r.ToMinor, r.ToDerived)
			}
			for _, r := range res.Divergence {
				fmt.Fprintf(w, "%s: Divergence, patient %s, region %s, time %g, reversion %g, divergence %g\n", s, r.Patient, r.Region, r.Time, r.Reversion, r.Divergence)
			}
			for _, r := range res.ReversionSpectrum {
				fmt.Fprintf(w, "%s: ReversionSpectrum, patient %s, region %s, time %g, time bin %d, af bin %d, reversion %g, derived %g\n", s, r.Patient, r.Region, r.Time, r.TimeBin, r.AFBin, r.ReversionMean, r.DerivedMean)
			}
			for _, sp := range res.Spectra {
				fmt.Fprintf(w, "%s: Spectrum, patient %s, tier %s, direction %s, time %g, sites %d\n", s, sp.Patient, sp.Tier, sp.Direction, sp.Time, sp.Total())
			}
		}
		fmt.Fprintf(w, "%s: ConsensusDistance %d, MinorVariants %d, Divergence %d, ReversionSpectrum %d, Spectra %d\n", s, len(res.ConsensusDistance), len(res.MinorVariants), len(res.Divergence), len(res.ReversionSpectrum), len(res.Spectra))
		nCD += len(res.ConsensusDistance)
		nMV += len(res.MinorVariants)
		nDiv += len(res.Divergence)
		nRS += len(res.ReversionSpectrum)
		nSp += len(res.Spectra)
	}
	fmt.Fprintf(w, "total: strategies %d, ConsensusDistance %d, MinorVariants %d, Divergence %d, ReversionSpectrum %d, Spectra %d\n", len(b.Results), nCD, nMV, nDiv, nRS, nSp)
}
