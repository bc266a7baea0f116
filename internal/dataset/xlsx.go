package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

type xlsxReader struct{}

func (xlsxReader) CanRead(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

// Read extracts the selected sheet. The first non-empty row is the header.
func (xlsxReader) Read(name string, src io.Reader, opt Options) (*Table, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	sheets := parseWorkbook(readZipFile(zr, "xl/workbook.xml"))
	rels := parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels"))
	shared := parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml"))

	target, err := resolveSheet(sheets, rels, opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, fmt.Errorf("%w in workbook '%s'", err, name)
	}
	sheetXML := readZipFile(zr, target)
	if sheetXML == nil {
		return nil, fmt.Errorf("read xlsx: sheet part %s not found", target)
	}
	rr := newSheetRowReader(sheetXML, shared)
	var header []string
	for {
		row, ok := rr.Next()
		if !ok {
			return &Table{Name: name}, nil
		}
		if !blankRecord(row) {
			header = row
			break
		}
	}
	var records [][]string
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		records = append(records, row)
	}
	return FromRecords(name, header, records, opt), nil
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

// resolveSheet maps a sheet name or 1-based index to its ZIP part path.
func resolveSheet(sheets []wbSheet, rels map[string]string, sheetName string, sheetIndex int) (string, error) {
	if sheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s.Name, sheetName) {
				if rel, ok := rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
				break
			}
		}
		names := make([]string, len(sheets))
		for i, s := range sheets {
			names[i] = s.Name
		}
		return "", fmt.Errorf("sheet '%s' not found (available sheets: %s)", sheetName, strings.Join(names, ", "))
	}
	idx := sheetIndex
	if idx <= 0 {
		idx = 1
	}
	// Workbook order is what users see as "sheet N"; sheetId can be sparse.
	if idx <= len(sheets) {
		if rel, ok := rels[sheets[idx-1].RID]; ok {
			return normalizeRelPath(rel), nil
		}
	}
	return filepath.ToSlash(filepath.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", idx))), nil
}

// parseWorkbook extracts sheet entries with names and relationship ids.
func parseWorkbook(data []byte) []wbSheet {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sheets []wbSheet
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "sheet" {
			var s wbSheet
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "name":
					s.Name = a.Value
				case "sheetId":
					s.SheetID = atoiSafe(a.Value)
				case "id":
					s.RID = a.Value // r: namespace
				}
			}
			sheets = append(sheets, s)
		}
	}
}

// parseRelationships returns map[r:id]Target.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "Relationship" {
			var id, target string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "Id":
					id = a.Value
				case "Target":
					target = a.Value
				}
			}
			if id != "" && target != "" {
				out[id] = target
			}
		}
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil
			}
			defer rc.Close()
			b, _ := io.ReadAll(rc)
			return b
		}
	}
	return nil
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	var inT, inPhonetic bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			case "rPh":
				inPhonetic = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "rPh":
				inPhonetic = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT && !inPhonetic {
				buf.Write(se)
			}
		}
	}
}

type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
	inRow  bool
	curRow []string
	maxCol int
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

// Next returns the next <row> as a dense slice of cell texts.
func (r *sheetRowReader) Next() ([]string, bool) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				r.inRow = true
				r.curRow = nil
				r.maxCol = 0
			}
			if r.inRow && se.Name.Local == "c" {
				var rAttr, tAttr string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						rAttr = a.Value
					case "t":
						tAttr = a.Value
					}
				}
				colIdx := len(r.curRow)
				if rAttr != "" {
					colIdx = colIndexFromRef(rAttr)
				}
				if colIdx < 0 {
					colIdx = len(r.curRow)
				}
				if colIdx+1 > r.maxCol {
					r.maxCol = colIdx + 1
				}
				val := r.readCellValue(tAttr)
				if len(r.curRow) <= colIdx {
					tmp := make([]string, colIdx+1)
					copy(tmp, r.curRow)
					r.curRow = tmp
				}
				r.curRow[colIdx] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" {
				if len(r.curRow) < r.maxCol {
					tmp := make([]string, r.maxCol)
					copy(tmp, r.curRow)
					r.curRow = tmp
				}
				r.inRow = false
				return r.curRow, true
			}
		}
	}
}

// readCellValue consumes tokens up to </c>, collecting <v> or inline <is><t> text.
func (r *sheetRowReader) readCellValue(tAttr string) string {
	var sb strings.Builder
	var capture bool
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return sb.String()
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				capture = true
			}
		case xml.CharData:
			if capture {
				sb.Write(se)
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "v", "t":
				capture = false
			case "c":
				val := sb.String()
				switch tAttr {
				case "s":
					idx := atoiSafe(val)
					if idx >= 0 && idx < len(r.shared) {
						return r.shared[idx]
					}
					return ""
				case "b":
					if strings.TrimSpace(val) == "1" {
						return "TRUE"
					}
					return "FALSE"
				}
				return val
			}
		}
	}
}

// colIndexFromRef maps refs like "C12" to 2 (0-based index).
func colIndexFromRef(ref string) int {
	i := 0
	for i < len(ref) {
		c := ref[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' {
			i++
			continue
		}
		break
	}
	s := strings.ToUpper(ref[:i])
	idx := 0
	for j := 0; j < len(s); j++ {
		idx = idx*26 + int(s[j]-'A'+1)
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship Target paths to ZIP entry paths.
// Targets may carry a leading slash ("/xl/worksheets/sheet1.xml") that ZIP
// entries do not.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return "xl/" + rel
}
