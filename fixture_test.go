// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
	"gopkg.in/check.v1"
)

// testData is a small nucleotide dataset with two patients.
//
// Reference site r has consensus r%4, entropy 0.02*r bits, and is
// gapped (unusable) at r=7. Patient site p maps to reference site
// p+2. The founder differs from the consensus at sites p%5==0.
// At timepoint ti, every site has coverage 2000 of which 100*ti
// reads carry the consensus allele (to sites) or the allele after
// the founder (away sites). Site 4 is dominated by N, and site 3
// has low coverage at timepoint 1. Patient p2 has no stored founder
// sequence and gzipped counts.
type testData struct {
	patientsDir  string
	referenceDir string
	times        []float64
	nsites       int
}

var testPatients = []string{"p1", "p2"}

func (td *testData) consensus(site int) int { return (site + 2) % 4 }

func (td *testData) founder(site int) int {
	cons := td.consensus(site)
	if site%5 == 0 {
		return (cons + 1) % 4
	}
	return cons
}

func writeTestData(c *check.C) *testData {
	dir := c.MkDir()
	td := &testData{
		patientsDir:  filepath.Join(dir, "patients"),
		referenceDir: filepath.Join(dir, "reference"),
		times:        []float64{100, 600, 1600, 2000, 3000},
		nsites:       20,
	}
	const nref = 25
	for _, subtype := range []string{"B", "C", "any"} {
		refdir := filepath.Join(td.referenceDir, "HXB2", subtype, "nuc")
		c.Assert(os.MkdirAll(refdir, 0777), check.IsNil)
		consensus := make([]int64, nref)
		entropy := make([]float64, nref)
		gaps := make([]float64, nref)
		for r := range consensus {
			consensus[r] = int64(r % 4)
			entropy[r] = 0.02 * float64(r) * math.Ln2
		}
		gaps[7] = 0.5
		c.Assert(writeNumpyInt64(filepath.Join(refdir, "consensus.npy"), consensus, nref), check.IsNil)
		c.Assert(writeNumpyFloat64(filepath.Join(refdir, "entropy.npy"), entropy, nref), check.IsNil)
		c.Assert(writeNumpyFloat64(filepath.Join(refdir, "gap_fraction.npy"), gaps, nref), check.IsNil)
	}

	c.Assert(os.MkdirAll(td.patientsDir, 0777), check.IsNil)
	c.Assert(os.WriteFile(filepath.Join(td.patientsDir, "patients.csv"), []byte("PatientID,Subtype\np1,B\np2,C\np3,B\n"), 0666), check.IsNil)
	nsym := Nucleotides.Size()
	for _, pcode := range testPatients {
		regdir := filepath.Join(td.patientsDir, pcode, "nuc", "genomewide")
		c.Assert(os.MkdirAll(regdir, 0777), check.IsNil)
		c.Assert(writeNumpyFloat64(filepath.Join(td.patientsDir, pcode, "timepoints.npy"), td.times, len(td.times)), check.IsNil)

		counts := make([]int64, len(td.times)*nsym*td.nsites)
		set := func(ti, sym, site int, n int64) { counts[(ti*nsym+sym)*td.nsites+site] = n }
		for ti := range td.times {
			d := int64(100 * ti)
			for site := 0; site < td.nsites; site++ {
				founder := td.founder(site)
				switch {
				case site == 4:
					set(ti, founder, site, 500)
					set(ti, 5, site, 1500)
				case site == 3 && ti == 1:
					set(ti, founder, site, 500)
				case founder != td.consensus(site):
					set(ti, founder, site, 2000-d)
					set(ti, td.consensus(site), site, d)
				default:
					set(ti, founder, site, 2000-d)
					set(ti, (founder+1)%4, site, d)
				}
			}
		}
		countsFilename := filepath.Join(regdir, "allele_counts.npy")
		c.Assert(writeNumpyInt64(countsFilename, counts, len(td.times), nsym, td.nsites), check.IsNil)

		cmap := make([]int64, 0, 2*td.nsites)
		for site := 0; site < td.nsites; site++ {
			cmap = append(cmap, int64(site+2), int64(site))
		}
		c.Assert(writeNumpyInt64(filepath.Join(regdir, "map_HXB2.npy"), cmap, td.nsites, 2), check.IsNil)

		if pcode == "p1" {
			founders := make([]int64, td.nsites)
			for site := range founders {
				founders[site] = int64(td.founder(site))
			}
			c.Assert(writeNumpyInt64(filepath.Join(regdir, "initial_indices.npy"), founders, td.nsites), check.IsNil)
		} else {
			gzipFile(c, countsFilename)
		}
	}
	return td
}

// gzipFile replaces fnm with fnm.gz.
func gzipFile(c *check.C, fnm string) {
	in, err := os.Open(fnm)
	c.Assert(err, check.IsNil)
	defer in.Close()
	out, err := os.Create(fnm + ".gz")
	c.Assert(err, check.IsNil)
	defer out.Close()
	zw := pgzip.NewWriter(out)
	_, err = io.Copy(zw, in)
	c.Assert(err, check.IsNil)
	c.Assert(zw.Close(), check.IsNil)
	c.Assert(out.Close(), check.IsNil)
	c.Assert(os.Remove(fnm), check.IsNil)
}
