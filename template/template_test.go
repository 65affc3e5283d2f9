package template

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testSchema() *Schema {
	return &Schema{
		ID: "WES",
		Worksheets: []Worksheet{{
			Name: "WES",
			Columns: []Column{
				{Name: "trial", Required: true},
				{Name: "sample", Required: true},
				{Name: "read length", Type: TypeInt},
				{Name: "run date", Type: TypeDate},
				{Name: "platform", Type: TypeEnum, Values: []string{"illumina", "nanopore"}},
				{Name: "forward", Required: true},
				{Name: "reverse"},
			},
			Files: []FileColumn{
				{Column: "forward", Destination: "{trial}/{sample}/wes"},
				{Column: "reverse", Destination: "{trial}/{sample}/wes"},
			},
		}},
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(testSchema())
	require.NoError(t, err)
	return r
}

var header = []any{"trial", "sample", "read length", "run date", "platform", "forward", "reverse"}

// workbook builds an .xlsx with one sheet holding rows under the header.
func workbook(t *testing.T, sheetName string, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheetName))
	require.NoError(t, f.SetSheetRow(sheetName, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheetName, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRegistry_Lookup(t *testing.T) {
	r := testRegistry(t)

	path, ok := r.Path("wes")
	require.True(t, ok)
	id, ok := r.ID(path)
	require.True(t, ok)
	assert.Equal(t, "wes", id)

	_, ok = r.Path(" WES ")
	assert.True(t, ok)
	_, ok = r.Path("olink")
	assert.False(t, ok)
	assert.Equal(t, []string{"wes"}, r.IDs())
}

func TestRegistry_RejectsBadSchemas(t *testing.T) {
	bad := testSchema()
	bad.Worksheets[0].Files[0].Destination = "{trial}/{nope}"
	_, err := NewRegistry(bad)
	assert.ErrorContains(t, err, `unknown column "nope"`)

	_, err = NewRegistry(testSchema(), testSchema())
	assert.ErrorContains(t, err, "duplicate schema id")
}

func TestLoad_ShippedSchemas(t *testing.T) {
	r, err := Load(filepath.Join("..", "etc", "templates"))
	require.NoError(t, err)
	assert.Equal(t, []string{"pbmc", "wes"}, r.IDs())
}

func TestLoad_IDFromFileName(t *testing.T) {
	dir := t.TempDir()
	body := "worksheets:\n  - name: S\n    columns:\n      - name: a\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Olink.yaml"), []byte(body), 0o600))

	r, err := Load(dir)
	require.NoError(t, err)
	path, ok := r.Path("olink")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "Olink.yaml"), path)
}

func TestValidate_Valid(t *testing.T) {
	r := testRegistry(t)
	xlsx := workbook(t, "WES",
		[]any{"10021", "CTTTP01A1.00", 150, "2024-01-31", "illumina", "a.fastq", "b.fastq"},
		[]any{"10021", "CTTTP02A1.00", "", "", "", "c.fastq"},
	)
	path, _ := r.Path("wes")

	problems, err := NewValidator(r).Validate(xlsx, path)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestValidate_Invalid(t *testing.T) {
	r := testRegistry(t)
	xlsx := workbook(t, "WES",
		[]any{"10021", "", "long", "yesterday", "sanger", "a.fastq"},
		[]any{"10021", "CTTTP02A1.00", 100, "", "", "a.fastq"},
	)
	path, _ := r.Path("wes")

	problems, err := NewValidator(r).Validate(xlsx, path)
	require.NoError(t, err)
	assert.Contains(t, problems, `worksheet "WES" row 2: "sample" is required`)
	assert.Contains(t, problems, `worksheet "WES" row 2: "read length" must be an integer, got "long"`)
	assert.Contains(t, problems, `worksheet "WES" row 3: local file "a.fastq" is already listed in worksheet "WES" row 2`)
	assert.Len(t, problems, 6)
}

func TestValidate_UnsafePaths(t *testing.T) {
	r := testRegistry(t)
	xlsx := workbook(t, "WES",
		[]any{"10021", "S1", "", "", "", "../x"},
		[]any{"10021", "S2", "", "", "", "/abs/x"},
		[]any{"10021", "S3", "", "", "", "a.txt", "./a.txt"},
		[]any{"10021", "../..", "", "", "", "e.txt"},
	)
	path, _ := r.Path("wes")

	problems, err := NewValidator(r).Validate(xlsx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`worksheet "WES" row 2: local file: path "../x" contains ".."`,
		`worksheet "WES" row 3: local file: path "/abs/x" is absolute`,
		`worksheet "WES" row 4: local file "./a.txt" is already listed in worksheet "WES" row 4`,
		`worksheet "WES" row 5: destination of "e.txt": path "10021/../../wes" contains ".."`,
	}, problems)
}

func TestCheckPath(t *testing.T) {
	for _, p := range []string{"a.txt", "dir/a.txt", "10021/S1/wes", "a..b"} {
		assert.NoError(t, CheckPath(p), p)
	}
	for _, p := range []string{"", "/abs/x", "../x", "a/../b", "./a.txt", "a//b", "a/"} {
		assert.Error(t, CheckPath(p), p)
	}
}

func TestValidate_WrongSheetAndGarbage(t *testing.T) {
	r := testRegistry(t)
	path, _ := r.Path("wes")
	v := NewValidator(r)

	problems, err := v.Validate(workbook(t, "Other"), path)
	require.NoError(t, err)
	assert.Equal(t, []string{`missing worksheet "WES"`}, problems)

	problems, err = v.Validate([]byte("not a spreadsheet"), path)
	require.NoError(t, err)
	assert.Len(t, problems, 1)

	_, err = v.Validate(workbook(t, "WES"), "unknown.yaml")
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	r := testRegistry(t)
	xlsx := workbook(t, "WES",
		[]any{"10021", "S1", 150, "2024-01-31", "illumina", "a.txt", "b.txt"},
		[]any{"10021", "S2", "", "", "", "c.txt"},
	)
	path, _ := r.Path("wes")

	blob, files, err := NewExtractor(r).Extract(xlsx, path, "wes")
	require.NoError(t, err)
	assert.Equal(t, []FileInfo{
		{DestinationDir: "10021/S1/wes", LocalPath: "a.txt"},
		{DestinationDir: "10021/S1/wes", LocalPath: "b.txt"},
		{DestinationDir: "10021/S2/wes", LocalPath: "c.txt"},
	}, files)

	var md metadata
	require.NoError(t, json.Unmarshal(blob, &md))
	assert.Equal(t, "wes", md.Schema)
	require.Len(t, md.Worksheets["WES"], 2)
	assert.Equal(t, "S2", md.Worksheets["WES"][1]["sample"])
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("45322")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-31", d.Format(DateLayout))

	_, err = parseDate("31/01/2024")
	assert.Error(t, err)
}
