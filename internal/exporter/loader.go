package exporter

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Format identifies how a trained model is serialised on disk.
type Format string

const (
	FormatHDF5  Format = "hdf5"
	FormatKeras Format = "keras"
)

var (
	hdf5Magic = []byte("\x89HDF\r\n\x1a\n")
	zipMagic  = []byte("PK\x03\x04")
)

// ErrNoModelPath is returned by Load when no path was supplied.
var ErrNoModelPath = errors.New("no model path given")

// TrainedModel is a model file produced by a training run elsewhere.
type TrainedModel struct {
	Path   string
	Format Format
}

// Kind implements Model.
func (m *TrainedModel) Kind() string { return "trained:" + string(m.Format) }

// Load checks that path holds a Keras model: an HDF5 file or a .keras
// archive with a config.json entry.
func Load(path string) (*TrainedModel, error) {
	if path == "" {
		return nil, ErrNoModelPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat model: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedModel, path)
	}

	header := make([]byte, len(hdf5Magic))
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read model header: %w", err)
	}
	header = header[:n]

	switch {
	case bytes.Equal(header, hdf5Magic):
		return &TrainedModel{Path: path, Format: FormatHDF5}, nil
	case bytes.HasPrefix(header, zipMagic):
		if err := checkKerasArchive(f, info.Size()); err != nil {
			return nil, err
		}
		return &TrainedModel{Path: path, Format: FormatKeras}, nil
	default:
		return nil, fmt.Errorf("%w: %s is neither HDF5 nor a .keras archive", ErrUnsupportedModel, path)
	}
}

func checkKerasArchive(r io.ReaderAt, size int64) error {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("open keras archive: %w", err)
	}
	for _, entry := range archive.File {
		if entry.Name == "config.json" {
			return nil
		}
	}
	return fmt.Errorf("%w: keras archive has no config.json", ErrUnsupportedModel)
}
