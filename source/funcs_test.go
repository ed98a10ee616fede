package source

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jittest "github.com/teranos/jitter/internal/testing"

	"github.com/teranos/jitter/errors"
)

const cartSrc = `package cart

import "example.com/shop/jitter"

// Cart holds line items
type Cart struct {
	Items []int
}

// Total sums the cart.
// See @shop.tax
func (c *Cart) Total() int {
	return 0
}

// Discount is not written yet
func Discount(c *Cart) int {
	panic("not implemented")
}

// Ship is wired through the hook
var Ship = func(c *Cart) error {
	return jitter.Pending(c)
}

var (
	// Refund is grouped
	Refund = func() {
		total := func() int { return 1 }
		_ = total
	}
)
`

func cartSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	root := jittest.WriteModule(t, map[string]string{
		"go.mod":           shopMod,
		"cart/cart.go":     cartSrc,
		"jitter/jitter.go": "package jitter\n\nfunc Pending(args ...any) error { return nil }\n",
		"tax/tax.go":       "package tax\n\n// Rate is pending\nfunc Rate() float64 {\n\tpanic(\"tax: Not Implemented yet\")\n}\n",
	})
	snap, err := Open(root)
	require.NoError(t, err)
	return snap
}

func TestFuncs(t *testing.T) {
	snap := cartSnapshot(t)
	f, err := snap.File("cart/cart.go")
	require.NoError(t, err)

	var names []string
	for _, fn := range Funcs(f) {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"Cart.Total", "Discount", "Ship", "Refund"}, names)
}

func TestEnclosingFunc(t *testing.T) {
	snap := cartSnapshot(t)

	tests := []struct {
		line int
		want string
		doc  bool
	}{
		{13, "Cart.Total", true},
		{18, "Discount", true},
		{23, "Ship", true},
		{29, "Refund", true}, // inside a closure
	}

	for _, tt := range tests {
		fn, err := snap.EnclosingFunc("cart/cart.go", tt.line)
		require.NoError(t, err, "line %d", tt.line)
		assert.Equal(t, tt.want, fn.Name)
		assert.Equal(t, "example.com/shop/cart."+tt.want, fn.QualifiedName())
		assert.Equal(t, tt.doc, fn.Doc != nil)
	}

	_, err := snap.EnclosingFunc("cart/cart.go", 6)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestFindFuncAndType(t *testing.T) {
	snap := cartSnapshot(t)

	fn, err := snap.FindFunc("example.com/shop/cart", "Cart.Total")
	require.NoError(t, err)
	assert.Equal(t, 12, fn.File.LineOf(fn.Pos()))
	assert.Contains(t, fn.Doc.Text(), "@shop.tax")

	td, err := snap.FindType("example.com/shop/cart", "Cart")
	require.NoError(t, err)
	assert.Equal(t, "type Cart struct {\n\tItems []int\n}", td.File.Text(td.Pos(), td.End()))

	_, err = snap.FindFunc("example.com/shop/cart", "Missing")
	assert.True(t, errors.IsNotFoundError(err))
	_, err = snap.FindType("example.com/shop/cart", "Missing")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestIsPending(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"panic not implemented", `panic("not implemented")`, true},
		{"panic mixed case", `panic("Interpret: NOT IMPLEMENTED")`, true},
		{"panic other message", `panic("unreachable")`, false},
		{"hook via selector", `return jitter.Pending(a, b)`, true},
		{"hook bare", `Pending()`, true},
		{"panic of hook", `panic(jitter.Pending())`, true},
		{"nested hook is not top-level", `if x { jitter.Pending() }`, false},
		{"ordinary body", `return 1`, false},
		{"empty body", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package p\nfunc f() {\n" + tt.body + "\n}\n"
			file, err := parser.ParseFile(token.NewFileSet(), "p.go", src, 0)
			require.NoError(t, err)
			body := file.Decls[0].(*ast.FuncDecl).Body
			assert.Equal(t, tt.want, IsPending(body))
		})
	}

	assert.False(t, IsPending(nil))
}

func TestPendingFuncs(t *testing.T) {
	snap := cartSnapshot(t)

	fns, err := snap.PendingFuncs(context.Background())
	require.NoError(t, err)

	var names []string
	for _, fn := range fns {
		names = append(names, fn.QualifiedName())
	}
	assert.Equal(t, []string{
		"example.com/shop/cart.Discount",
		"example.com/shop/cart.Ship",
		"example.com/shop/tax.Rate",
	}, names)
}
