package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	"github.com/iammorganparry/clive/apps/sessions/internal/store"
)

const root = `Software\SimonTatham\PuTTY\Sessions`

var codec = models.KeyCodec{Separator: `\`}

func seed(t *testing.T) (*store.MemStore, Source) {
	t.Helper()
	s := store.NewMemStore()
	s.Put(store.Join(root, "S1"), models.Attributes{
		"HostName": models.StringValue(`a\b`),
	})
	s.Put(store.Join(root, "web%20box"), models.Attributes{
		"HostName":   models.StringValue(`say "hi"`),
		"PortNumber": models.DWordValue(22),
		"Compress":   models.IntValue(-1),
	})
	return s, Source{Store: s, Root: root}
}

func sess(key string) *models.Session { return models.NewSession(codec, key, "") }

func TestRegExportEscapesBackslash(t *testing.T) {
	_, src := seed(t)
	var buf bytes.Buffer

	n, err := NewRegExporter(src, "").Export(&buf, []*models.Session{sess("S1")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lines := strings.Split(buf.String(), "\r\n")
	assert.Contains(t, lines, `"HostName"="a\\b"`)
}

func TestRegExportLayout(t *testing.T) {
	ms, src := seed(t)
	var buf bytes.Buffer

	n, err := NewRegExporter(src, DefaultHive).Export(&buf, []*models.Session{sess("S1"), sess("web%20box")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, ms.OpenHandles())

	want := strings.Join([]string{
		"Windows Registry Editor Version 5.00",
		"",
		`[HKEY_CURRENT_USER\Software\SimonTatham\PuTTY\Sessions]`,
		"",
		`[HKEY_CURRENT_USER\Software\SimonTatham\PuTTY\Sessions\S1]`,
		`"HostName"="a\\b"`,
		"",
		`[HKEY_CURRENT_USER\Software\SimonTatham\PuTTY\Sessions\web%20box]`,
		`"Compress"=dword:ffffffff`,
		`"HostName"="say \"hi\""`,
		`"PortNumber"=dword:00000016`,
		"",
		"",
	}, "\r\n")
	assert.Equal(t, want, buf.String())
}

func TestExportSkipsVanishedRecords(t *testing.T) {
	_, src := seed(t)

	for _, e := range []Exporter{NewRegExporter(src, ""), NewYAMLExporter(src)} {
		t.Run(e.FileTypeExtension(), func(t *testing.T) {
			var buf bytes.Buffer
			n, err := e.Export(&buf, []*models.Session{sess("gone"), sess("S1")})
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.NotContains(t, buf.String(), "gone")
		})
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	ms, src := seed(t)
	var buf bytes.Buffer

	n, err := NewYAMLExporter(src).Export(&buf, []*models.Session{sess("S1"), sess("web%20box")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	gotRoot, records, err := ReadDocument(&buf)
	require.NoError(t, err)
	assert.Equal(t, root, gotRoot)
	assert.Equal(t, ms.Record(store.Join(root, "S1")), records["S1"])
	assert.Equal(t, ms.Record(store.Join(root, "web%20box")), records["web%20box"])
}

func TestWriteFile(t *testing.T) {
	_, src := seed(t)
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.reg")
	n, err := WriteFile(NewRegExporter(src, ""), empty, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = os.Stat(empty)
	assert.True(t, os.IsNotExist(err), "no file for an empty selection")

	out := filepath.Join(dir, "out.reg")
	n, err = WriteFile(NewRegExporter(src, ""), out, []*models.Session{sess("S1")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Windows Registry Editor Version 5.00\r\n"))
}

func TestForFormat(t *testing.T) {
	_, src := seed(t)

	e, err := ForFormat("", src, "")
	require.NoError(t, err)
	assert.Equal(t, "Registry File", e.FileTypeDescription())

	e, err = ForFormat("yaml", src, "")
	require.NoError(t, err)
	assert.Equal(t, "yaml", e.FileTypeExtension())

	_, err = ForFormat("csv", src, "")
	assert.Error(t, err)
}
