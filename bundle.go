// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
)

// ConsensusDistance is the fraction of sites of one (patient,
// region) where the founder differs from the consensus.
type ConsensusDistance struct {
	Patient  string
	Region   string
	Distance float64
}

// StrategyResult holds everything collected for one subtype
// strategy.
type StrategyResult struct {
	Strategy          SubtypeStrategy
	MinorVariants     []MinorVariantRecord
	Divergence        []DivergenceRecord
	ReversionSpectrum []ReversionSpectrumRecord
	ConsensusDistance []ConsensusDistance
	Spectra           []Spectrum
}

// Bundle is the result of a collection run. Once stored it is only
// read.
type Bundle struct {
	// Digest of the Config that produced the bundle.
	Digest  string
	Config  Config
	Results []StrategyResult
}

// Result returns the result for the given strategy, or nil.
func (b *Bundle) Result(s SubtypeStrategy) *StrategyResult {
	for i := range b.Results {
		if b.Results[i].Strategy == s {
			return &b.Results[i]
		}
	}
	return nil
}

// DefaultBundleName returns the cache file name for the given
// alphabet and reference.
func DefaultBundleName(alpha Alphabet, refname string) string {
	name := "to_away"
	if refname != "HXB2" {
		name += "_" + refname
	}
	if alpha.Name != Nucleotides.Name {
		name += "_" + alpha.Name
	}
	return name + ".gob.gz"
}

// StoreBundle writes b to fnm, gzip-compressed if fnm ends with
// ".gz". The data is written to fnm~ and renamed when complete.
func StoreBundle(fnm string, b *Bundle) error {
	tmp := fnm + "~"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	defer f.Close()
	bufw := bufio.NewWriterSize(f, 1<<20)
	var w io.Writer = bufw
	var zw *pgzip.Writer
	if strings.HasSuffix(fnm, ".gz") {
		zw = pgzip.NewWriter(bufw)
		w = zw
	}
	err = gob.NewEncoder(w).Encode(b)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", fnm, err)
	}
	if zw != nil {
		err = zw.Close()
		if err != nil {
			return err
		}
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}
	log.WithField("filename", fnm).Info("stored results")
	return os.Rename(tmp, fnm)
}

// LoadBundle reads a bundle written by StoreBundle.
func LoadBundle(fnm string) (*Bundle, error) {
	f, err := zopen(fnm)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var b Bundle
	err = gob.NewDecoder(bufio.NewReader(f)).Decode(&b)
	if err != nil {
		return nil, fmt.Errorf("%s: decode: %w", fnm, err)
	}
	return &b, nil
}

func bundlePath(dir, name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, os.PathSeparator) {
		return name
	}
	return filepath.Join(dir, name)
}
