package template

import (
	"fmt"
	"path"
	"slices"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// Validator checks spreadsheets against the schemas of a registry.
type Validator struct {
	registry *Registry
}

func NewValidator(r *Registry) *Validator {
	return &Validator{registry: r}
}

// Validate returns every problem found in the template. An empty list means
// the template is valid. The error is only set when the schema is unknown.
func (v *Validator) Validate(xlsx []byte, schemaPath string) ([]string, error) {
	schema, err := v.registry.ByPath(schemaPath)
	if err != nil {
		return nil, err
	}
	sheets, err := readWorkbook(xlsx)
	if err != nil {
		return []string{err.Error()}, nil
	}

	var problems []string
	seen := map[string]string{}
	for _, ws := range schema.Worksheets {
		sh, ok := sheets[ws.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing worksheet %q", ws.Name))
			continue
		}
		for _, col := range ws.Columns {
			if col.Required && !sh.hasHeader(col.Name) {
				problems = append(problems, fmt.Sprintf("worksheet %q: missing column %q", ws.Name, col.Name))
			}
		}
		for _, rec := range sh.records {
			for _, col := range ws.Columns {
				if msg := checkCell(col, rec.values[col.Name]); msg != "" {
					problems = append(problems, fmt.Sprintf("worksheet %q row %d: %q %s", ws.Name, rec.line, col.Name, msg))
				}
			}
			for _, f := range ws.Files {
				local := rec.values[f.Column]
				if local == "" {
					continue
				}
				where := fmt.Sprintf("worksheet %q row %d", ws.Name, rec.line)
				key := path.Clean(local)
				if prev, dup := seen[key]; dup {
					problems = append(problems, fmt.Sprintf("%s: local file %q is already listed in %s", where, local, prev))
					continue
				}
				seen[key] = where
				if err := CheckPath(local); err != nil {
					problems = append(problems, fmt.Sprintf("%s: local file: %v", where, err))
				}
				dir, err := render(f.Destination, rec.values)
				if err != nil {
					problems = append(problems, fmt.Sprintf("%s: cannot place %q: %v", where, local, err))
					continue
				}
				if err := CheckPath(dir); err != nil {
					problems = append(problems, fmt.Sprintf("%s: destination of %q: %v", where, local, err))
				}
			}
		}
	}
	return problems, nil
}

func checkCell(col Column, v string) string {
	if v == "" {
		if col.Required {
			return "is required"
		}
		return ""
	}
	switch col.Type {
	case TypeInt:
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Sprintf("must be an integer, got %q", v)
		}
	case TypeNumber:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Sprintf("must be a number, got %q", v)
		}
	case TypeDate:
		if _, err := parseDate(v); err != nil {
			return fmt.Sprintf("must be a date (%s), got %q", DateLayout, v)
		}
	case TypeEnum:
		if !slices.Contains(col.Values, v) {
			return fmt.Sprintf("must be one of %v, got %q", col.Values, v)
		}
	}
	return ""
}

// parseDate accepts ISO dates and spreadsheet date serials.
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, v); err == nil {
		return t, nil
	}
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return time.Time{}, err
	}
	return excelize.ExcelDateToTime(serial, false)
}
