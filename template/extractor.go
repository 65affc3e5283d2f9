package template

import (
	"encoding/json"
	"fmt"
)

// FileInfo is a file a template says the client will upload.
type FileInfo struct {
	DestinationDir string
	LocalPath      string
}

// Extractor pulls metadata and the list of files out of a valid template.
type Extractor struct {
	registry *Registry
}

func NewExtractor(r *Registry) *Extractor {
	return &Extractor{registry: r}
}

type metadata struct {
	Schema     string                         `json:"schema"`
	Worksheets map[string][]map[string]string `json:"worksheets"`
}

// Extract returns the template's records as JSON and the files it lists,
// in worksheet then row order.
func (e *Extractor) Extract(xlsx []byte, schemaPath, schemaHint string) (json.RawMessage, []FileInfo, error) {
	schema, err := e.registry.ByPath(schemaPath)
	if err != nil {
		return nil, nil, err
	}
	sheets, err := readWorkbook(xlsx)
	if err != nil {
		return nil, nil, err
	}

	md := metadata{Schema: schemaHint, Worksheets: map[string][]map[string]string{}}
	var files []FileInfo
	for _, ws := range schema.Worksheets {
		sh, ok := sheets[ws.Name]
		if !ok {
			return nil, nil, fmt.Errorf("missing worksheet %q", ws.Name)
		}
		rows := make([]map[string]string, 0, len(sh.records))
		for _, rec := range sh.records {
			rows = append(rows, rec.values)
			for _, f := range ws.Files {
				local := rec.values[f.Column]
				if local == "" {
					continue
				}
				dir, err := render(f.Destination, rec.values)
				if err != nil {
					return nil, nil, fmt.Errorf("worksheet %q row %d: %w", ws.Name, rec.line, err)
				}
				files = append(files, FileInfo{DestinationDir: dir, LocalPath: local})
			}
		}
		md.Worksheets[ws.Name] = rows
	}

	blob, err := json.Marshal(md)
	if err != nil {
		return nil, nil, err
	}
	return blob, files, nil
}
