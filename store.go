// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// patientStore reads patient data from a directory tree of numpy
// files:
//
//	patients.csv                                 PatientID,Subtype
//	<pcode>/timepoints.npy                       days since infection
//	<pcode>/<alphabet>/<region>/allele_counts.npy   time x symbol x site
//	<pcode>/<alphabet>/<region>/initial_indices.npy (optional)
//	<pcode>/<alphabet>/<region>/map_<refname>.npy   site x (reference, ..., patient)
//
// Any .npy file may be gzipped (.npy.gz).
type patientStore struct {
	dir string

	loadOnce sync.Once
	loadErr  error
	subtypes map[string]ViralSubtype
}

func NewPatientStore(dir string) PatientSource {
	return &patientStore{dir: dir}
}

func (ps *patientStore) loadSubtypes() error {
	ps.loadOnce.Do(func() {
		fnm := filepath.Join(ps.dir, "patients.csv")
		buf, err := os.ReadFile(fnm)
		if err != nil {
			ps.loadErr = err
			return
		}
		ps.subtypes = map[string]ViralSubtype{}
		for lineNum, csv := range bytes.Split(buf, []byte{'\n'}) {
			csv = bytes.TrimSpace(csv)
			if len(csv) == 0 {
				continue
			}
			split := strings.Split(string(csv), ",")
			if len(split) < 2 {
				ps.loadErr = fmt.Errorf("%s line %d: %d fields < 2: %q", fnm, lineNum+1, len(split), csv)
				return
			}
			if lineNum == 0 && split[0] == "PatientID" {
				continue
			}
			ps.subtypes[split[0]] = ViralSubtype(strings.TrimSpace(split[1]))
		}
	})
	return ps.loadErr
}

func (ps *patientStore) Subtype(pcode string) (ViralSubtype, error) {
	if err := ps.loadSubtypes(); err != nil {
		return "", err
	}
	st, ok := ps.subtypes[pcode]
	if !ok {
		return "", fmt.Errorf("patient %q not listed in %s", pcode, filepath.Join(ps.dir, "patients.csv"))
	}
	return st, nil
}

func (ps *patientStore) regionDir(pcode, region string, alpha Alphabet) string {
	return filepath.Join(ps.dir, pcode, alpha.Name, region)
}

func (ps *patientStore) timepoints(pcode string) ([]float64, error) {
	times, shape, err := readNumpy(filepath.Join(ps.dir, pcode, "timepoints.npy"))
	if err != nil {
		return nil, err
	}
	if len(shape) != 1 {
		return nil, fmt.Errorf("patient %s: timepoints: expected 1-d array, got shape %v", pcode, shape)
	}
	return times, nil
}

// alleleCounts returns the count array and its (time, symbol, site)
// dimensions.
func (ps *patientStore) alleleCounts(pcode, region string, alpha Alphabet) ([]float64, [3]int, error) {
	var dims [3]int
	counts, shape, err := readNumpy(filepath.Join(ps.regionDir(pcode, region, alpha), "allele_counts.npy"))
	if err != nil {
		return nil, dims, err
	}
	if len(shape) != 3 {
		return nil, dims, fmt.Errorf("patient %s region %s: allele counts: expected 3-d array, got shape %v", pcode, region, shape)
	}
	if shape[1] != alpha.Size() {
		return nil, dims, fmt.Errorf("patient %s region %s: allele counts have %d symbols, alphabet %s has %d", pcode, region, shape[1], alpha.Name, alpha.Size())
	}
	copy(dims[:], shape)
	return counts, dims, nil
}

func (ps *patientStore) AlleleFrequencyTrajectories(pcode, region string, alpha Alphabet, minCoverage int) ([]float64, []*AlleleFrequencies, error) {
	times, err := ps.timepoints(pcode)
	if err != nil {
		return nil, nil, err
	}
	counts, dims, err := ps.alleleCounts(pcode, region, alpha)
	if err != nil {
		return nil, nil, err
	}
	ntimes, nsym, nsites := dims[0], dims[1], dims[2]
	if ntimes != len(times) {
		return nil, nil, fmt.Errorf("patient %s region %s: %d timepoints but %d count matrices", pcode, region, len(times), ntimes)
	}
	afs := make([]*AlleleFrequencies, ntimes)
	for t := range afs {
		af := NewAlleleFrequencies(nsym, nsites)
		block := counts[t*nsym*nsites : (t+1)*nsym*nsites]
		for site := 0; site < nsites; site++ {
			cov := 0.0
			for sym := 0; sym < nsym; sym++ {
				cov += block[sym*nsites+site]
			}
			if cov < float64(minCoverage) || cov <= 0 {
				af.MaskSite(site)
				continue
			}
			for sym := 0; sym < nsym; sym++ {
				af.Set(sym, site, block[sym*nsites+site]/cov)
			}
		}
		afs[t] = af
	}
	return times, afs, nil
}

func (ps *patientStore) InitialIndices(pcode, region string, alpha Alphabet) ([]int, error) {
	idx, _, err := readNumpyInts(filepath.Join(ps.regionDir(pcode, region, alpha), "initial_indices.npy"))
	if err == nil {
		return idx, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	// No stored founder sequence: use the most common allele at
	// the first sample.
	counts, dims, err := ps.alleleCounts(pcode, region, alpha)
	if err != nil {
		return nil, err
	}
	if dims[0] == 0 {
		return nil, fmt.Errorf("patient %s region %s: no samples", pcode, region)
	}
	nsym, nsites := dims[1], dims[2]
	idx = make([]int, nsites)
	for site := range idx {
		best := 0
		for sym := 1; sym < nsym; sym++ {
			if counts[sym*nsites+site] > counts[best*nsites+site] {
				best = sym
			}
		}
		idx[site] = best
	}
	return idx, nil
}

func (ps *patientStore) MapToReference(pcode, region string, alpha Alphabet, refname string) (CoordinateMap, error) {
	fnm := filepath.Join(ps.regionDir(pcode, region, alpha), "map_"+refname+".npy")
	data, shape, err := readNumpyInts(fnm)
	if err != nil {
		return CoordinateMap{}, err
	}
	if len(shape) != 2 || shape[1] < 2 {
		return CoordinateMap{}, fmt.Errorf("%s: expected N x 2 (or wider) array, got shape %v", fnm, shape)
	}
	rows, cols := shape[0], shape[1]
	m := CoordinateMap{Reference: make([]int, rows), Patient: make([]int, rows)}
	for i := 0; i < rows; i++ {
		m.Reference[i] = data[i*cols]
		m.Patient[i] = data[i*cols+cols-1]
	}
	return m, nil
}

// referenceStore reads consensus data from
//
//	<refname>/<subtype>/<alphabet>/[<region>/]{consensus,entropy,gap_fraction}.npy
//
// where the region level is present only for alphabets with
// region-local references.
type referenceStore struct {
	dir string
}

func NewReferenceStore(dir string) ReferenceSource {
	return &referenceStore{dir: dir}
}

func (rs *referenceStore) Reference(refname string, subtype ViralSubtype, alpha Alphabet, region string) (*Reference, error) {
	dir := filepath.Join(rs.dir, refname, string(subtype), alpha.Name)
	if alpha.RegionalReference {
		dir = filepath.Join(dir, region)
	}
	log.Debugf("loading reference %s", dir)
	consensus, _, err := readNumpyInts(filepath.Join(dir, "consensus.npy"))
	if err != nil {
		return nil, err
	}
	entropy, _, err := readNumpy(filepath.Join(dir, "entropy.npy"))
	if err != nil {
		return nil, err
	}
	gaps, _, err := readNumpy(filepath.Join(dir, "gap_fraction.npy"))
	if err != nil {
		return nil, err
	}
	ref := &Reference{
		Name:        refname,
		Subtype:     subtype,
		Consensus:   consensus,
		Entropy:     entropy,
		GapFraction: gaps,
	}
	if err := ref.check(); err != nil {
		return nil, err
	}
	return ref, nil
}
