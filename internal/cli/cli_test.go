package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/mimeroute/internal/auth"
	"github.com/mrlokans/mimeroute/internal/storage"
	"github.com/mrlokans/mimeroute/internal/storage/storagetest"
)

const (
	csvType         = "text/csv"
	pdfType         = "application/pdf"
	spreadsheetType = "application/vnd.google-apps.spreadsheet"
)

func newBackend() *storagetest.Backend {
	return storagetest.New(&storage.Capabilities{
		ImportFormats: map[string][]string{csvType: {spreadsheetType}},
		ExportFormats: map[string][]string{spreadsheetType: {pdfType, csvType}},
	})
}

func TestListFlag(t *testing.T) {
	split := &listFlag{split: true}
	require.NoError(t, split.Set("a, b"))
	require.NoError(t, split.Set("c"))
	require.NoError(t, split.Set(","))
	assert.Equal(t, []string{"a", "b", "c"}, split.values)
	assert.Equal(t, "a,b,c", split.String())

	paths := &listFlag{}
	require.NoError(t, paths.Set("x,y.csv"))
	assert.Equal(t, []string{"x,y.csv"}, paths.values)
}

func TestCheckCommand_ParseFlags(t *testing.T) {
	cmd := NewCheckCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-id", "a,b", "-id", "c", "-target", pdfType}))
	assert.Equal(t, []string{"a", "b", "c"}, cmd.IDs.values)

	assert.EqualError(t, NewCheckCommand().ParseFlags([]string{"-target", pdfType}), "at least one -id or -file is required")
	assert.EqualError(t, NewCheckCommand().ParseFlags([]string{"-id", "a"}), "required flag -target not provided")
}

func TestCheckCommand_Run(t *testing.T) {
	backend := newBackend()
	src := backend.AddFile("report", csvType, []byte("a,b\n"))

	var out bytes.Buffer
	cmd := NewCheckCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-id", src.ID + ",missing", "-target", pdfType}))
	cmd.Backend = backend
	cmd.Out = &out

	require.NoError(t, cmd.Run())

	assert.Contains(t, out.String(), "1. report ("+src.ID+"): text/csv -> "+spreadsheetType+" -> application/pdf")
	assert.Contains(t, out.String(), "2. missing: error:")
	assert.Contains(t, out.String(), "1/2 items can be converted")
	assert.Zero(t, backend.MutatingCalls())
}

func TestFormatsCommand_Run(t *testing.T) {
	var out bytes.Buffer
	cmd := NewFormatsCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-json"}))
	cmd.Backend = newBackend()
	cmd.Out = &out

	require.NoError(t, cmd.Run())

	var pairs map[string][]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &pairs))
	assert.Equal(t, []string{pdfType, csvType}, pairs[csvType])
	assert.Equal(t, []string{pdfType, csvType}, pairs[spreadsheetType])

	out.Reset()
	cmd.JSON = false
	require.NoError(t, cmd.Run())
	assert.Contains(t, out.String(), "text/csv -> application/pdf, text/csv\n")
}

func TestConvertCommand_Run(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "numbers.csv")
	require.NoError(t, os.WriteFile(input, []byte("1,2\n"), 0o644))

	backend := newBackend()
	src := backend.AddFile("report", csvType, []byte("a,b\n"))
	outDir := filepath.Join(dir, "out")
	reportDir := filepath.Join(dir, "reports")

	var out bytes.Buffer
	cmd := NewConvertCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"-id", src.ID,
		"-file", input,
		"-type", csvType,
		"-target", pdfType,
		"-out", outDir,
		"-report-dir", reportDir,
	}))
	cmd.Backend = backend
	cmd.Out = &out

	require.NoError(t, cmd.Run())

	data, err := os.ReadFile(filepath.Join(outDir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b\n"), data)

	data, err = os.ReadFile(filepath.Join(outDir, "numbers.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1,2\n"), data)

	assert.Contains(t, out.String(), "Converted 2/2 items to application/pdf")

	reports, err := filepath.Glob(filepath.Join(reportDir, "*.json"))
	require.NoError(t, err)
	require.Len(t, reports, 1)

	raw, err := os.ReadFile(reports[0])
	require.NoError(t, err)
	var report ConvertReport
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, pdfType, report.Target)
	require.Len(t, report.Items, 2)
	assert.Equal(t, []string{csvType, spreadsheetType, pdfType}, report.Items[0].Route)
	assert.Empty(t, report.Items[0].Error)

	for _, id := range backend.Created() {
		assert.False(t, backend.Exists(id), "transient %s left behind", id)
	}
}

func TestConvertCommand_StrictStops(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(image, []byte("\x89PNG\r\n\x1a\n"), 0o644))

	var out bytes.Buffer
	cmd := NewConvertCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-file", image, "-target", pdfType, "-strict", "-out", dir}))
	cmd.Backend = newBackend()
	cmd.Out = &out

	err := cmd.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch stopped early")
	assert.Contains(t, out.String(), "1. image: failed:")
}

func TestThumbnailsCommand_Run(t *testing.T) {
	backend := newBackend()
	src := backend.AddFile("report", csvType, []byte("a"))
	outDir := t.TempDir()

	var out bytes.Buffer
	cmd := NewThumbnailsCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-id", src.ID + ",missing", "-width", "200", "-out", outDir}))
	cmd.Backend = backend
	cmd.Out = &out

	require.NoError(t, cmd.Run())

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(outDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "thumbnail:"+src.ID+":w200", string(data))
	assert.Contains(t, out.String(), "missing: no thumbnail")
	assert.Contains(t, out.String(), "Saved 1/2 thumbnails")
}

func TestThumbnailsCommand_ParseFlags(t *testing.T) {
	assert.EqualError(t, NewThumbnailsCommand().ParseFlags(nil), "required flag -id not provided")
	assert.EqualError(t, NewThumbnailsCommand().ParseFlags([]string{"-id", "a", "-width", "0"}), "-width must be positive")
}

func TestTokenCommand_Run(t *testing.T) {
	var out bytes.Buffer
	cmd := NewTokenCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-cost", "4"}))
	cmd.Out = &out

	require.NoError(t, cmd.Run())

	lines := bytes.Split(out.Bytes(), []byte("\n"))
	require.Greater(t, len(lines), 5)
	token := string(bytes.TrimSpace(lines[1]))
	assert.Len(t, token, 64)
	assert.Contains(t, out.String(), "AUTH_MODE=token")

	hashLine := string(bytes.TrimSpace(lines[5]))
	hash := hashLine[len("AUTH_API_TOKEN_HASH='") : len(hashLine)-1]
	assert.NoError(t, auth.CheckToken(token, hash))
}

func TestReadBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n"), 0o644))

	blob, err := readBlob(path, "")
	require.NoError(t, err)
	assert.Equal(t, "doc", blob.Name)
	assert.Equal(t, pdfType, blob.ContentType)

	blob, err = readBlob(path, "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", blob.ContentType)

	_, err = readBlob(filepath.Join(t.TempDir(), "missing"), "")
	assert.Error(t, err)
}
