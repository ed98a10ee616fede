package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/jitter/errors"
	jittest "github.com/teranos/jitter/internal/testing"
)

const shopMod = "module example.com/shop\n\ngo 1.22\n"

func TestOpen(t *testing.T) {
	root := jittest.WriteModule(t, map[string]string{
		"go.mod":         shopMod,
		"cart/cart.go":   "package cart\n",
		"cart/deep/x.go": "package deep\n",
	})

	snap, err := Open(filepath.Join(root, "cart", "deep"))
	require.NoError(t, err)

	assert.Equal(t, root, snap.Root)
	assert.Equal(t, "example.com/shop", snap.ModulePath)
}

func TestOpen_NoModuleDirective(t *testing.T) {
	root := jittest.WriteModule(t, map[string]string{"go.mod": "go 1.22\n"})

	_, err := Open(root)
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestPaths(t *testing.T) {
	root := jittest.WriteModule(t, map[string]string{
		"go.mod":       shopMod,
		"main.go":      "package main\n",
		"cart/cart.go": "package cart\n",
	})
	snap, err := Open(root)
	require.NoError(t, err)

	tests := []struct {
		path       string
		contains   bool
		rel        string
		importPath string
	}{
		{filepath.Join(root, "main.go"), true, "main.go", "example.com/shop"},
		{filepath.Join(root, "cart", "cart.go"), true, "cart/cart.go", "example.com/shop/cart"},
		{"cart/cart.go", true, "cart/cart.go", "example.com/shop/cart"},
		{"/usr/lib/go/src/runtime/proc.go", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.contains, snap.Contains(tt.path))
			assert.Equal(t, tt.importPath, snap.ImportPath(tt.path))
			if tt.contains {
				assert.Equal(t, tt.rel, snap.Rel(tt.path))
			}
		})
	}

	assert.True(t, snap.InModule("example.com/shop/cart"))
	assert.False(t, snap.InModule("example.com/shopping"))
	assert.True(t, snap.HasPackage("example.com/shop/cart"))
	assert.False(t, snap.HasPackage("example.com/shop/missing"))
	assert.Equal(t, "cart", snap.PackageName("example.com/shop/cart"))
}

func TestFile_ReadOncePerSnapshot(t *testing.T) {
	root := jittest.WriteModule(t, map[string]string{
		"go.mod":       shopMod,
		"cart/cart.go": "package cart\n\nfunc Total() int {\n\treturn 1\n}\n",
	})
	snap, err := Open(root)
	require.NoError(t, err)

	line, err := snap.Line("cart/cart.go", 4)
	require.NoError(t, err)
	assert.Equal(t, "return 1", line)

	// A change on disk mid-run is invisible to this snapshot
	require.NoError(t, os.WriteFile(filepath.Join(root, "cart", "cart.go"),
		[]byte("package cart\n\nfunc Total() int {\n\treturn 2\n}\n"), 0644))

	line, err = snap.Line(filepath.Join(root, "cart", "cart.go"), 4)
	require.NoError(t, err)
	assert.Equal(t, "return 1", line)

	fresh, err := Open(root)
	require.NoError(t, err)
	line, err = fresh.Line("cart/cart.go", 4)
	require.NoError(t, err)
	assert.Equal(t, "return 2", line)

	_, err = snap.Line("cart/cart.go", 99)
	assert.Error(t, err)
}

func TestWalk(t *testing.T) {
	root := jittest.WriteModule(t, map[string]string{
		"go.mod":             shopMod,
		"main.go":            "package main\n",
		"cart/cart.go":       "package cart\n",
		"cart/cart_test.go":  "package cart\n",
		"cart/testdata/x.go": "package x\n",
		"vendor/v/v.go":      "package v\n",
		".hidden/h.go":       "package h\n",
		"_scratch/s.go":      "package s\n",
		"nested/go.mod":      "module other\n",
		"nested/n.go":        "package n\n",
		"broken/broken.go":   "package broken\nfunc {",
		"tax/tax.go":         "package tax\n",
	})

	tests := []struct {
		name string
		opts []Option
		want []string
	}{
		{"without tests", nil, []string{"cart/cart.go", "main.go", "tax/tax.go"}},
		{"with tests", []Option{WithTests(true)}, []string{"cart/cart.go", "cart/cart_test.go", "main.go", "tax/tax.go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Open(root, tt.opts...)
			require.NoError(t, err)

			files, err := snap.Walk(context.Background())
			require.NoError(t, err)

			var rels []string
			for _, f := range files {
				rels = append(rels, f.Rel)
			}
			assert.Equal(t, tt.want, rels)
		})
	}
}

func TestSplitQualified(t *testing.T) {
	tests := []struct {
		in    string
		pkg   string
		names []string
	}{
		{"calculator/interpreter.Interpret", "calculator/interpreter", []string{"Interpret"}},
		{"example.com/shop/cart.Cart.Total", "example.com/shop/cart", []string{"Cart", "Total"}},
		{"example.com/shop", "example.com/shop", []string{}},
		{"main.main", "main", []string{"main"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			pkg, names := SplitQualified(tt.in)
			assert.Equal(t, tt.pkg, pkg)
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestGuessPackageName(t *testing.T) {
	tests := map[string]string{
		"fmt":                            "fmt",
		"gopkg.in/yaml.v3":               "yaml",
		"github.com/go-git/go-git/v5":    "git",
		"github.com/spf13/cobra":         "cobra",
		"golang.org/x/tools/go/packages": "packages",
	}
	for in, want := range tests {
		assert.Equal(t, want, guessPackageName(in), in)
	}
}

func TestParseErrorsSurface(t *testing.T) {
	root := jittest.WriteModule(t, map[string]string{
		"go.mod":           shopMod,
		"broken/broken.go": "package broken\nfunc {",
	})
	snap, err := Open(root)
	require.NoError(t, err)

	_, err = snap.File("broken/broken.go")
	assert.Error(t, err)
}
