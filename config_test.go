// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"flag"
	"io"

	"gopkg.in/check.v1"
)

type configSuite struct{}

var _ = check.Suite(&configSuite{})

func parseConfig(c *check.C, alpha Alphabet, args ...string) (Config, error) {
	cfg := DefaultConfig(Nucleotides)
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	cfg.Flags(flags)
	err := flags.Parse(args)
	c.Assert(err, check.IsNil)
	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })
	err = cfg.Finish(alpha, set["regions"], set["entropy-bins"])
	return cfg, err
}

func (s *configSuite) TestDefaults(c *check.C) {
	cfg, err := parseConfig(c, AminoAcids)
	c.Assert(err, check.IsNil)
	c.Check(cfg.Alphabet.Name, check.Equals, "aa")
	c.Check(cfg.Alphabet.Reserved, check.Equals, 2)
	c.Check(cfg.Regions, check.HasLen, 10)
	c.Check(cfg.EntropyBins, check.DeepEquals, []float64{0, 0.1, 0.3, 3})
	c.Check(cfg.Strategies, check.DeepEquals, []SubtypeStrategy{PerPatient, GroupConsensus})
	c.Check(cfg.SpectrumBins, check.HasLen, 11)
	c.Check(cfg.SpectrumBins[10], check.Equals, 1.0)
	c.Check(cfg.SpectrumQuantity, check.Equals, MinorFrequency)
	c.Check(cfg.MinCoverage, check.Equals, 1000)
}

func (s *configSuite) TestFlags(c *check.C) {
	cfg, err := parseConfig(c, AminoAcids,
		"-regions=RT, PR",
		"-entropy-bins=0,1,2",
		"-reserved=1",
		"-strategies=any",
		"-patients=p1,p3",
		"-spectrum-quantity=founder",
		"-threads=0")
	c.Assert(err, check.IsNil)
	c.Check(cfg.Regions, check.DeepEquals, []string{"RT", "PR"})
	c.Check(cfg.EntropyBins, check.DeepEquals, []float64{0, 1, 2})
	c.Check(cfg.Alphabet.Reserved, check.Equals, 1)
	c.Check(cfg.Alphabet.Usable(), check.Equals, 22)
	c.Check(cfg.Strategies, check.DeepEquals, []SubtypeStrategy{GroupConsensus})
	c.Check(cfg.Patients, check.DeepEquals, []string{"p1", "p3"})
	c.Check(cfg.SpectrumQuantity, check.Equals, FounderFrequency)
	c.Check(cfg.Threads, check.Equals, 1)
}

func (s *configSuite) TestInvalid(c *check.C) {
	for _, args := range [][]string{
		{"-af-bins=0,0.5,0.2"},
		{"-spectrum-time-bins=1"},
		{"-spectrum-quantity=major"},
		{"-reserved=6"},
		{"-patients="},
	} {
		_, err := parseConfig(c, Nucleotides, args...)
		c.Check(err, check.NotNil, check.Commentf("%v", args))
	}
	var sl strategyList
	c.Check(sl.Set("patient,subtype"), check.ErrorMatches, `unknown subtype strategy "subtype"`)
	var fl floatList
	c.Check(fl.Set("0,x"), check.NotNil)
}

func (s *configSuite) TestDigest(c *check.C) {
	a := DefaultConfig(Nucleotides)
	b := DefaultConfig(Nucleotides)
	c.Check(a.Digest(), check.Equals, b.Digest())
	b.Threads = 17
	c.Check(a.Digest(), check.Equals, b.Digest())
	b.AFBins = []float64{0, 0.5, 1}
	c.Check(a.Digest(), check.Not(check.Equals), b.Digest())
	aa := DefaultConfig(AminoAcids)
	c.Check(a.Digest(), check.Not(check.Equals), aa.Digest())
}

func (s *configSuite) TestStrategy(c *check.C) {
	for _, name := range []string{"patient", "any"} {
		st, err := ParseSubtypeStrategy(name)
		c.Check(err, check.IsNil)
		c.Check(st.String(), check.Equals, name)
	}
	c.Check(PerPatient.referenceSubtype("C"), check.Equals, ViralSubtype("C"))
	c.Check(GroupConsensus.referenceSubtype("C"), check.Equals, GroupM)
	c.Check(GroupConsensus.Label(), check.Equals, "group M")

	_, err := LookupAlphabet("protein")
	c.Check(err, check.NotNil)
	c.Check(Nucleotides.Index('N'), check.Equals, 5)
}
