// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package toaway

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// zopen returns a reader for the given file, transparently
// decompressing the input if fnm ends with ".gz".
func zopen(fnm string) (io.ReadCloser, error) {
	f, err := os.Open(fnm)
	if err != nil || !strings.HasSuffix(fnm, ".gz") {
		return f, err
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: gzip: %w", fnm, err)
	}
	return gzipr{rdr, f}, nil
}

// gzipr wraps a ReadCloser and a Closer, presenting a single Close()
// method that closes both wrapped objects.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// findNumpy returns fnm if it exists, otherwise fnm+".gz" if that
// exists, otherwise an os.ErrNotExist error for fnm.
func findNumpy(fnm string) (string, error) {
	for _, try := range []string{fnm, fnm + ".gz"} {
		if _, err := os.Stat(try); err == nil {
			return try, nil
		}
	}
	return "", fmt.Errorf("%s: %w", fnm, os.ErrNotExist)
}

// readNumpy reads an array of any numeric dtype from fnm (or
// fnm.gz), converting the values to float64.
func readNumpy(fnm string) ([]float64, []int, error) {
	fnm, err := findNumpy(fnm)
	if err != nil {
		return nil, nil, err
	}
	f, err := zopen(fnm)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	npy, err := gonpy.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", fnm, err)
	}
	if npy.ColumnMajor {
		return nil, nil, fmt.Errorf("%s: column-major (fortran order) arrays are not supported", fnm)
	}
	data, err := npyFloat64(npy)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", fnm, err)
	}
	return data, npy.Shape, nil
}

func npyFloat64(npy *gonpy.NpyReader) ([]float64, error) {
	switch npy.Dtype {
	case "f8":
		return npy.GetFloat64()
	case "f4":
		v, err := npy.GetFloat32()
		return convertFloat(len(v), func(i int) float64 { return float64(v[i]) }), err
	case "i8":
		v, err := npy.GetInt64()
		return convertFloat(len(v), func(i int) float64 { return float64(v[i]) }), err
	case "i4":
		v, err := npy.GetInt32()
		return convertFloat(len(v), func(i int) float64 { return float64(v[i]) }), err
	case "i2":
		v, err := npy.GetInt16()
		return convertFloat(len(v), func(i int) float64 { return float64(v[i]) }), err
	case "i1":
		v, err := npy.GetInt8()
		return convertFloat(len(v), func(i int) float64 { return float64(v[i]) }), err
	case "u8":
		v, err := npy.GetUint64()
		return convertFloat(len(v), func(i int) float64 { return float64(v[i]) }), err
	case "u4":
		v, err := npy.GetUint32()
		return convertFloat(len(v), func(i int) float64 { return float64(v[i]) }), err
	case "u2":
		v, err := npy.GetUint16()
		return convertFloat(len(v), func(i int) float64 { return float64(v[i]) }), err
	case "u1":
		v, err := npy.GetUint8()
		return convertFloat(len(v), func(i int) float64 { return float64(v[i]) }), err
	default:
		return nil, fmt.Errorf("unsupported numpy dtype %q", npy.Dtype)
	}
}

func convertFloat(n int, get func(int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = get(i)
	}
	return out
}

// readNumpyInts reads an integer-valued array.
func readNumpyInts(fnm string) ([]int, []int, error) {
	data, shape, err := readNumpy(fnm)
	if err != nil {
		return nil, nil, err
	}
	out := make([]int, len(data))
	for i, x := range data {
		if x != float64(int(x)) {
			return nil, nil, fmt.Errorf("%s: element %d is not an integer: %v", fnm, i, x)
		}
		out[i] = int(x)
	}
	return out, shape, nil
}

func writeNumpyFloat64(fnm string, out []float64, shape ...int) error {
	return writeNumpy(fnm, shape, func(npw *gonpy.NpyWriter) error { return npw.WriteFloat64(out) })
}

func writeNumpyInt64(fnm string, out []int64, shape ...int) error {
	return writeNumpy(fnm, shape, func(npw *gonpy.NpyWriter) error { return npw.WriteInt64(out) })
}

func writeNumpy(fnm string, shape []int, write func(*gonpy.NpyWriter) error) error {
	output, err := os.Create(fnm)
	if err != nil {
		return err
	}
	defer output.Close()
	bufw := bufio.NewWriterSize(output, 1<<20)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"filename": fnm,
		"shape":    shape,
	}).Debugf("writing numpy: %s", fnm)
	npw.Shape = shape
	err = write(npw)
	if err != nil {
		return fmt.Errorf("%s: %w", fnm, err)
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return output.Close()
}
