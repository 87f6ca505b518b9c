package hmmlib

import (
	"compress/gzip"
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
)

// Dataset is a simulated observation sequence together with the
// parameters and states that generated it.
type Dataset struct {
	ID     string
	Config Config
	Truth  *Params
	Obs    []int
	State  []int
}

// WriteDataset writes the dataset to a gzip-compressed gob file.
func WriteDataset(fname string, ds *Dataset) error {
	return writeGob(fname, ds)
}

// ReadDataset reads a dataset written by WriteDataset.
func ReadDataset(fname string) (*Dataset, error) {

	var ds Dataset
	if err := readGob(fname, &ds); err != nil {
		return nil, err
	}

	if err := ds.Config.Validate(); err != nil {
		return nil, errors.Wrap(err, fname)
	}
	if ds.Truth != nil {
		if err := ds.Truth.Validate(); err != nil {
			return nil, errors.Wrap(err, fname)
		}
	}
	if err := checkObs(ds.Obs, ds.Config.NSymbol); err != nil {
		return nil, errors.Wrap(err, fname)
	}

	return &ds, nil
}

// WriteFit writes a fit result to a gzip-compressed gob file.
func WriteFit(fname string, res *FitResult) error {
	return writeGob(fname, res)
}

// ReadFit reads a fit result written by WriteFit.
func ReadFit(fname string) (*FitResult, error) {

	var res FitResult
	if err := readGob(fname, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

func writeGob(fname string, v interface{}) error {

	fid, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	defer fid.Close()

	gid := gzip.NewWriter(fid)
	enc := gob.NewEncoder(gid)
	if err := enc.Encode(v); err != nil {
		return errors.Wrapf(err, "encoding %s", fname)
	}

	if err := gid.Close(); err != nil {
		return errors.Wrapf(err, "compressing %s", fname)
	}

	return fid.Close()
}

func readGob(fname string, v interface{}) error {

	fid, err := os.Open(fname)
	if err != nil {
		return errors.Wrap(err, "opening input file")
	}
	defer fid.Close()

	gid, err := gzip.NewReader(fid)
	if err != nil {
		return errors.Wrapf(err, "reading %s", fname)
	}
	defer gid.Close()

	dec := gob.NewDecoder(gid)
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(err, "decoding %s", fname)
	}

	return nil
}
