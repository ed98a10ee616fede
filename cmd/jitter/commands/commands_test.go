package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/jitter/am"
	jittest "github.com/teranos/jitter/internal/testing"
	"github.com/teranos/jitter/source"
)

const shopTax = `package tax

// Rate returns the rate for a region.
func Rate(region string) float64 {
	panic("not implemented")
}

var Current = Rate
`

const shopCart = `package cart

import "example.com/shop/tax"

var rate = tax.Rate

func Total(n int) float64 { return float64(n) * rate("eu") }
`

func writeShop(t *testing.T) string {
	t.Helper()
	return jittest.WriteModule(t, map[string]string{
		"go.mod":       "module example.com/shop\n\ngo 1.22\n",
		"tax/tax.go":   shopTax,
		"cart/cart.go": shopCart,
	})
}

// run executes args against a fresh root carrying the persistent flags of
// the jitter binary. Subcommands are package globals, so every flag a test
// depends on is passed explicitly.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("JITTER_CALLER", "")
	am.Reset()
	t.Cleanup(am.Reset)

	root := &cobra.Command{Use: "jitter", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().Bool("json", false, "")
	root.PersistentFlags().String("root", "", "")
	for _, c := range []*cobra.Command{PendingCmd, AliasesCmd, ContextCmd, VersionCmd, AmCmd} {
		root.AddCommand(c)
	}
	t.Cleanup(func() {
		for _, c := range []*cobra.Command{PendingCmd, AliasesCmd, ContextCmd, VersionCmd, AmCmd} {
			root.RemoveCommand(c)
		}
	})

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPendingCmd_JSON(t *testing.T) {
	dir := writeShop(t)

	out, err := run(t, "pending", "--root", dir, "--json=true")
	require.NoError(t, err)

	var entries []pendingEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, pendingEntry{Symbol: "example.com/shop/tax.Rate", File: "tax/tax.go", Line: 4}, entries[0])
}

func TestAliasesCmd(t *testing.T) {
	dir := writeShop(t)

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "aliases", "example.com/shop/tax.Rate", "--root", dir, "--json=true")
		require.NoError(t, err)

		var aliases []source.Alias
		require.NoError(t, json.Unmarshal([]byte(out), &aliases))
		require.Len(t, aliases, 2)
		assert.Equal(t, "example.com/shop/cart", aliases[0].Scope)
		assert.Equal(t, "rate", aliases[0].Local)
		assert.Equal(t, "Current", aliases[1].Local)
	})

	t.Run("none", func(t *testing.T) {
		out, err := run(t, "aliases", "example.com/shop/cart.Total", "--root", dir, "--json=true")
		require.NoError(t, err)
		assert.Equal(t, "[]\n", out)
	})

	t.Run("not a package-level name", func(t *testing.T) {
		_, err := run(t, "aliases", "example.com/shop/tax", "--root", dir, "--json=true")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a package-level name")
	})
}

func TestContextCmd(t *testing.T) {
	jittest.RequireGo(t)
	dir := writeShop(t)

	out, err := run(t, "context", "example.com/shop/tax.Rate", "--root", dir, "--format", "text", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "== target ==")
	assert.Contains(t, out, "example.com/shop/tax.Rate")

	_, err = run(t, "context", "example.com/shop/tax.Missing", "--root", dir, "--format", "text", "--json=false")
	require.Error(t, err)
}

func TestVersionCmd_JSON(t *testing.T) {
	out, err := run(t, "version", "--json=true")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info["version"])
	assert.NotEmpty(t, info["go_version"])
}

func TestAmGet(t *testing.T) {
	out, err := run(t, "am", "get", "capture.max_depth")
	require.NoError(t, err)
	assert.Equal(t, "16", strings.TrimSpace(out))

	_, err = run(t, "am", "get", "capture.no_such_key")
	require.Error(t, err)
}

func TestAmShow(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"toml", "max_depth = 16"},
		{"json", `"max_depth": 16`},
		{"yaml", "max_depth: 16"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := run(t, "am", "show", "--format", tt.format)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}

	_, err := run(t, "am", "show", "--format", "ini")
	require.Error(t, err)
}

func TestAmInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jitter.toml")

	out, err := run(t, "am", "init", path, "--force=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := am.LoadFromFile(path)
	require.NoError(t, err, string(data))
	assert.Equal(t, am.DefaultMaxDepth, cfg.Capture.MaxDepth)

	_, err = run(t, "am", "init", path, "--force=false")
	require.Error(t, err)

	_, err = run(t, "am", "init", path, "--force=true")
	require.NoError(t, err)
	assert.FileExists(t, path+".back1")
}
