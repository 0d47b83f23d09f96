package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndtools/mcp-client/pkg/errors"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	return root
}

func TestPath(t *testing.T) {
	p, err := NewFileProvider(t.TempDir())
	require.NoError(t, err)
	defer p.Close()

	full, err := p.Path("payloads/v3/vrf.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Root(), "payloads", "v3", "vrf.json"), full)

	full, err = p.Path("payloads/../prompts/a.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Root(), "prompts", "a.md"), full)

	for _, bad := range []string{"", ".", "..", "../secret", "payloads/../../x", "/etc/passwd"} {
		_, err := p.Path(bad)
		assert.Error(t, err, bad)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation), bad)
	}
}

func TestNewFileProviderRoot(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	root := writeFiles(t, map[string]string{"file.txt": "x"})
	_, err = NewFileProvider(filepath.Join(root, "file.txt"))
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"payloads/vrf.json": `{"vrfName":"ndtools"}`,
		"prompts/role.md":   "You are an Ansible developer.",
	})
	p, err := NewFileProvider(root)
	require.NoError(t, err)
	defer p.Close()

	text, err := p.Text("prompts/role.md")
	require.NoError(t, err)
	assert.Equal(t, "You are an Ansible developer.", text)

	data, err := p.Bytes("payloads/vrf.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"vrfName":"ndtools"}`, string(data))

	_, err = p.Text("prompts/missing.md")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "prompts/missing.md")

	_, err = p.Text("prompts")
	assert.True(t, errors.IsNotFound(err))
}

func TestReadCached(t *testing.T) {
	root := writeFiles(t, map[string]string{"a.txt": "first"})
	p, err := NewFileProvider(root)
	require.NoError(t, err)
	defer p.Close()

	text, err := p.Text("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("second"), 0o644))
	text, err = p.Text("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	p.Invalidate("a.txt")
	text, err = p.Text("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", text)
}

func TestReadUncached(t *testing.T) {
	root := writeFiles(t, map[string]string{"a.txt": "first"})
	p, err := NewFileProvider(root, WithCacheMaxCost(0))
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Text("a.txt")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("second"), 0o644))
	text, err := p.Text("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", text)
}

func TestWalk(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"payloads/v3/vrf.json":  "{}",
		"payloads/v3/md/vrf.md": "# VRF",
		"prompts/role.md":       "role",
	})
	p, err := NewFileProvider(root)
	require.NoError(t, err)
	defer p.Close()

	files, err := p.Walk("payloads")
	require.NoError(t, err)
	assert.Equal(t, []string{"payloads/v3/md/vrf.md", "payloads/v3/vrf.json"}, files)

	files, err = p.Walk("")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = p.Walk("nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestLoadJSON(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"ok.json":    `{"DATA":[{"vrfName":"blue"}],"RETURN_CODE":200}`,
		"bad.json":   `{"DATA":`,
		"null.json":  `null`,
		"array.json": `[1,2]`,
	})
	p, err := NewFileProvider(root)
	require.NoError(t, err)
	defer p.Close()

	doc, err := LoadJSON(p, "ok.json")
	require.NoError(t, err)
	assert.Equal(t, float64(200), doc["RETURN_CODE"])

	var typed struct {
		ReturnCode int `json:"RETURN_CODE"`
	}
	require.NoError(t, LoadJSONInto(p, "ok.json", &typed))
	assert.Equal(t, 200, typed.ReturnCode)

	for _, rel := range []string{"bad.json", "null.json", "array.json"} {
		_, err := LoadJSON(p, rel)
		require.Error(t, err, rel)
		assert.True(t, errors.IsProtocolError(err), rel)
		assert.Contains(t, err.Error(), rel)
	}

	_, err = LoadJSON(p, "missing.json")
	assert.True(t, errors.IsNotFound(err))
}

func TestMarkdownTitle(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"atx", "# VRF payload\n\nBody text.", "VRF payload"},
		{"first of many", "intro\n\n## Attachments\n\n# Later", "Attachments"},
		{"inline markup", "# The `vrf` *attachment* model", "The vrf attachment model"},
		{"setext", "VRF Attachments\n===============\n", "VRF Attachments"},
		{"none", "just a paragraph", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MarkdownTitle([]byte(tt.src)))
		})
	}
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, MimeMarkdown, MimeType("payloads/v3/md/vrf.md"))
	assert.Equal(t, MimeJSON, MimeType("payloads/v3/vrf.JSON"))
	assert.Equal(t, MimeText, MimeType("notes.txt"))
	assert.Equal(t, MimeText, MimeType("README"))
	assert.Equal(t, MimeBinary, MimeType("blob.zzzunknown"))
}
