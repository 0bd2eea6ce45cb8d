package loras

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
loras:
  - name: Icons
    author: strangerzonehf
    model: Flux-Icon-Kit-LoRA
    path: https://huggingface.co/strangerzonehf/Flux-Icon-Kit-LoRA
    trigger_prefix: Icon Kit
    refinement: Refine the prompt so that it describes an icon.
    scale: 1
    steps: 33
    height: 832
    width: 1280
  - name: Tarot
    author: multimodalart
    model: flux-tarot-v1
    path: https://huggingface.co/multimodalart/flux-tarot-v1
    trigger_prefix: a trtcrd of
    trigger_suffix: style of TOK
    scale: 1
    steps: 28
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loras.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	l, err := c.Lookup("https://huggingface.co/strangerzonehf/Flux-Icon-Kit-LoRA/")
	require.NoError(t, err)
	require.Equal(t, "Icon Kit", l.TriggerPrefix)
	require.Equal(t, uint32(1280), l.Width)
	require.Equal(t, float32(1), l.Scale)

	l, err = c.Lookup("https://huggingface.co/multimodalart/flux-tarot-v1")
	require.NoError(t, err)
	require.Equal(t, "style of TOK", l.TriggerSuffix)

	_, err = c.Lookup("https://huggingface.co/evil/model")
	require.ErrorIs(t, err, ErrUnknownLora)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("loras: ["))
	require.Error(t, err)

	_, err = Parse([]byte("loras:\n  - name: x\n"))
	require.ErrorContains(t, err, "has no path")

	_, err = Parse([]byte("loras:\n  - path: a/b\n  - path: a/b/\n"))
	require.ErrorContains(t, err, "duplicate")
}

func TestNilCatalogAcceptsAll(t *testing.T) {
	var c *Catalog
	l, err := c.Lookup("anything")
	require.NoError(t, err)
	require.Equal(t, "anything", l.Path)
	require.Zero(t, c.Len())
}

func TestCreditAccount(t *testing.T) {
	creator, model := CreditAccount("https://huggingface.co/strangerzonehf/Flux-Icon-Kit-LoRA")
	require.Equal(t, "strangerzonehf", creator)
	require.Equal(t, "Flux-Icon-Kit-LoRA", model)

	creator, model = CreditAccount("owner/model")
	require.Equal(t, "unknown", creator)
	require.Equal(t, "unknown", model)
}
