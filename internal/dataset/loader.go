package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Reader decodes one tabular file format.
type Reader interface {
	CanRead(filename string) bool
	Read(name string, r io.Reader, opt Options) (*Table, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

// ErrUnsupported indicates a format is not supported.
var ErrUnsupported = errors.New("unsupported dataset format")

// Load opens path and decodes it with the reader matching its extension.
func Load(path string, opt Options) (*Table, error) {
	rd, err := readerFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return rd.Read(filepath.Base(path), f, opt)
}

// LoadReader decodes an already-open stream; name selects the format.
func LoadReader(name string, r io.Reader, opt Options) (*Table, error) {
	rd, err := readerFor(name)
	if err != nil {
		return nil, err
	}
	return rd.Read(filepath.Base(name), r, opt)
}

// Supported reports whether some registered reader accepts filename.
func Supported(filename string) bool {
	_, err := readerFor(filename)
	return err == nil
}

func readerFor(name string) (Reader, error) {
	for _, r := range registry {
		if r.CanRead(name) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (use .csv, .tsv or .xlsx)", ErrUnsupported, filepath.Ext(name))
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}
