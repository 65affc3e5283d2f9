package template

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"
)

// ColumnType restricts the values a column accepts.
type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeInt    ColumnType = "int"
	TypeNumber ColumnType = "number"
	TypeDate   ColumnType = "date"
	TypeEnum   ColumnType = "enum"
)

// DateLayout is the format date cells must use.
const DateLayout = "2006-01-02"

// Column describes one header of a worksheet.
type Column struct {
	Name     string     `yaml:"name"`
	Required bool       `yaml:"required"`
	Type     ColumnType `yaml:"type"`
	Values   []string   `yaml:"values"`
}

// FileColumn names a column whose cells are local file paths the client
// will upload. Destination is the directory the file goes to; {column}
// placeholders are filled from the same row.
type FileColumn struct {
	Column      string `yaml:"column"`
	Destination string `yaml:"destination"`
}

// Worksheet is the expected shape of one sheet of a template. The first
// row holds the headers, every following non-blank row is a record.
type Worksheet struct {
	Name    string       `yaml:"name"`
	Columns []Column     `yaml:"columns"`
	Files   []FileColumn `yaml:"files"`
}

// Schema describes one kind of metadata template.
type Schema struct {
	ID         string      `yaml:"id"`
	Hint       string      `yaml:"hint"`
	Title      string      `yaml:"title"`
	Worksheets []Worksheet `yaml:"worksheets"`

	path string
}

// Path is the file the schema was loaded from.
func (s *Schema) Path() string { return s.path }

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

func (s *Schema) check() error {
	if s.ID == "" {
		return fmt.Errorf("schema has no id")
	}
	if len(s.Worksheets) == 0 {
		return fmt.Errorf("schema %s: no worksheets", s.ID)
	}
	for _, ws := range s.Worksheets {
		cols := make(map[string]bool, len(ws.Columns))
		for _, c := range ws.Columns {
			if cols[c.Name] {
				return fmt.Errorf("schema %s: worksheet %q: duplicate column %q", s.ID, ws.Name, c.Name)
			}
			cols[c.Name] = true
			switch c.Type {
			case "", TypeString, TypeInt, TypeNumber, TypeDate:
			case TypeEnum:
				if len(c.Values) == 0 {
					return fmt.Errorf("schema %s: column %q: enum without values", s.ID, c.Name)
				}
			default:
				return fmt.Errorf("schema %s: column %q: unknown type %q", s.ID, c.Name, c.Type)
			}
		}
		for _, f := range ws.Files {
			if !cols[f.Column] {
				return fmt.Errorf("schema %s: file column %q is not a column of %q", s.ID, f.Column, ws.Name)
			}
			for _, m := range placeholder.FindAllStringSubmatch(f.Destination, -1) {
				if !cols[m[1]] {
					return fmt.Errorf("schema %s: destination %q references unknown column %q", s.ID, f.Destination, m[1])
				}
			}
		}
	}
	return nil
}

// render fills the placeholders of pattern from row.
func render(pattern string, row map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(pattern, func(m string) string {
		name := m[1 : len(m)-1]
		v := strings.TrimSpace(row[name])
		if v == "" {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("no value for %s", strings.Join(missing, ", "))
	}
	return strings.Trim(out, "/"), nil
}

// CheckPath reports whether p can be used as part of an object name as is.
// Relative paths that path.Clean leaves unchanged and that never climb out
// with ".." are accepted.
func CheckPath(p string) error {
	switch {
	case p == "":
		return fmt.Errorf("path is empty")
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("path %q is absolute", p)
	case slices.Contains(strings.Split(p, "/"), ".."):
		return fmt.Errorf("path %q contains \"..\"", p)
	case path.Clean(p) != p:
		return fmt.Errorf("path %q is not clean, use %q", p, path.Clean(p))
	}
	return nil
}
