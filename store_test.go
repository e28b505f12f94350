// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/check.v1"
)

type storeSuite struct{}

var _ = check.Suite(&storeSuite{})

func (s *storeSuite) TestPatientStore(c *check.C) {
	td := writeTestData(c)
	ps := NewPatientStore(td.patientsDir)

	st, err := ps.Subtype("p2")
	c.Check(err, check.IsNil)
	c.Check(st, check.Equals, ViralSubtype("C"))
	_, err = ps.Subtype("p99")
	c.Check(err, check.ErrorMatches, `patient "p99" not listed in .*`)

	times, afs, err := ps.AlleleFrequencyTrajectories("p1", "genomewide", Nucleotides, 1000)
	c.Assert(err, check.IsNil)
	c.Check(times, check.DeepEquals, td.times)
	c.Assert(afs, check.HasLen, len(td.times))
	c.Check(afs[0].Symbols, check.Equals, 6)
	c.Check(afs[0].Sites, check.Equals, td.nsites)
	c.Check(afs[0].SiteMasked(3), check.Equals, false)
	c.Check(afs[1].SiteMasked(3), check.Equals, true)
	c.Check(afs[2].At(td.founder(1), 1), approxEquals, 0.9)
	c.Check(afs[2].At(td.consensus(0), 0), approxEquals, 0.1)
	c.Check(afs[0].At(5, 4), approxEquals, 0.75)

	// lower coverage threshold keeps site 3
	_, afs, err = ps.AlleleFrequencyTrajectories("p1", "genomewide", Nucleotides, 100)
	c.Assert(err, check.IsNil)
	c.Check(afs[1].SiteMasked(3), check.Equals, false)

	_, _, err = ps.AlleleFrequencyTrajectories("p1", "genomewide", AminoAcids, 1000)
	c.Check(err, check.NotNil)
}

func (s *storeSuite) TestInitialIndices(c *check.C) {
	td := writeTestData(c)
	ps := NewPatientStore(td.patientsDir)
	for _, pcode := range testPatients {
		idx, err := ps.InitialIndices(pcode, "genomewide", Nucleotides)
		c.Assert(err, check.IsNil)
		c.Assert(idx, check.HasLen, td.nsites)
		for site, sym := range idx {
			if site == 4 && pcode == "p2" {
				// most common call at the first sample is N
				c.Check(sym, check.Equals, 5)
			} else {
				c.Check(sym, check.Equals, td.founder(site), check.Commentf("%s site %d", pcode, site))
			}
		}
	}
}

func (s *storeSuite) TestMapToReference(c *check.C) {
	td := writeTestData(c)
	ps := NewPatientStore(td.patientsDir)
	cmap, err := ps.MapToReference("p2", "genomewide", Nucleotides, "HXB2")
	c.Assert(err, check.IsNil)
	c.Check(cmap.Len(), check.Equals, td.nsites)
	c.Check(cmap.Reference[3], check.Equals, 5)
	c.Check(cmap.Patient[3], check.Equals, 3)

	_, err = ps.MapToReference("p2", "genomewide", Nucleotides, "NL4-3")
	c.Check(errors.Is(err, os.ErrNotExist), check.Equals, true)
}

func (s *storeSuite) TestReferenceStore(c *check.C) {
	td := writeTestData(c)
	rs := NewReferenceStore(td.referenceDir)
	ref, err := rs.Reference("HXB2", GroupM, Nucleotides, "genomewide")
	c.Assert(err, check.IsNil)
	c.Check(ref.Len(), check.Equals, 25)
	c.Check(ref.Consensus[6], check.Equals, 2)
	c.Check(ref.QualityMask(0.05)[7], check.Equals, false)
	c.Check(ref.QualityMask(0.05)[8], check.Equals, true)

	_, err = rs.Reference("HXB2", "AE", Nucleotides, "genomewide")
	c.Check(errors.Is(err, os.ErrNotExist), check.Equals, true)

	err = os.Remove(filepath.Join(td.referenceDir, "HXB2", "B", "nuc", "entropy.npy"))
	c.Assert(err, check.IsNil)
	err = writeNumpyFloat64(filepath.Join(td.referenceDir, "HXB2", "B", "nuc", "entropy.npy"), []float64{1, 2}, 2)
	c.Assert(err, check.IsNil)
	_, err = rs.Reference("HXB2", "B", Nucleotides, "genomewide")
	c.Check(err, check.ErrorMatches, `reference HXB2/B: array lengths differ.*`)
}

func (s *storeSuite) TestReadNumpy(c *check.C) {
	dir := c.MkDir()
	fnm := filepath.Join(dir, "x.npy")
	c.Assert(writeNumpyFloat64(fnm, []float64{1, 2.5, 3, 4, 5, 6}, 2, 3), check.IsNil)
	data, shape, err := readNumpy(fnm)
	c.Assert(err, check.IsNil)
	c.Check(shape, check.DeepEquals, []int{2, 3})
	c.Check(data, check.DeepEquals, []float64{1, 2.5, 3, 4, 5, 6})

	_, _, err = readNumpyInts(fnm)
	c.Check(err, check.ErrorMatches, `.*element 1 is not an integer: 2.5`)

	gzipFile(c, fnm)
	data, _, err = readNumpy(fnm)
	c.Assert(err, check.IsNil)
	c.Check(data, check.HasLen, 6)

	_, _, err = readNumpy(filepath.Join(dir, "missing.npy"))
	c.Check(errors.Is(err, os.ErrNotExist), check.Equals, true)
}
