package template

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// record is one non-blank data row, keyed by header.
type record struct {
	line   int
	values map[string]string
}

type sheet struct {
	headers []string
	records []record
}

// readWorkbook returns every sheet of an .xlsx file by name.
func readWorkbook(data []byte) (map[string]*sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not read spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := map[string]*sheet{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("reading worksheet %q: %w", name, err)
		}
		sheets[name] = toSheet(rows)
	}
	return sheets, nil
}

func toSheet(rows [][]string) *sheet {
	s := &sheet{}
	if len(rows) == 0 {
		return s
	}
	for _, h := range rows[0] {
		s.headers = append(s.headers, strings.TrimSpace(h))
	}
	for i, row := range rows[1:] {
		rec := record{line: i + 2, values: map[string]string{}}
		blank := true
		for j, cell := range row {
			if j >= len(s.headers) || s.headers[j] == "" {
				continue
			}
			v := strings.TrimSpace(cell)
			if v != "" {
				blank = false
			}
			rec.values[s.headers[j]] = v
		}
		if !blank {
			s.records = append(s.records, rec)
		}
	}
	return s
}

func (s *sheet) hasHeader(name string) bool {
	for _, h := range s.headers {
		if h == name {
			return true
		}
	}
	return false
}
