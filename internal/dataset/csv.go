package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

type csvReader struct{}

func (csvReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvReader) Read(name string, src io.Reader, opt Options) (*Table, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name, data)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Table{Name: name}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	var records [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return FromRecords(name, header, records, opt), nil
}

// sniffDelimiter prefers the extension (.tsv is tab) and otherwise picks the
// most frequent of ',', ';' and tab on the header line.
func sniffDelimiter(name string, data []byte) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	line := data
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestN := ',', 0
	for _, c := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}
