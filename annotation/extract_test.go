package annotation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jittest "github.com/teranos/jitter/internal/testing"
	"github.com/teranos/jitter/resolve"
	"github.com/teranos/jitter/source"
)

const cartSrc = `package cart

// Checkout settles the cart.
// Uses @shop.tax and @billing.tax for levies, @tax::Rate,
// see also @shop/tax again, @nonexistent.module, @bad..path and @cart.Discount.
// It must not call @cart.Checkout.
func Checkout(c Cart) float64 {
	panic("not implemented")
}

type Cart struct {
	Items []Item
}

type Item struct {
	Price float64
}

// Discount is pending too
func Discount(c Cart) float64 {
	panic("not implemented")
}
`

func newExtractor(t *testing.T) (*Extractor, *resolve.Resolver) {
	t.Helper()
	root := jittest.WriteModule(t, map[string]string{
		"go.mod":              "module example.com/shop\n\ngo 1.22\n",
		"cart/cart.go":        cartSrc,
		"tax/tax.go":          "package tax\n\n// Rate is the VAT rate\nfunc Rate() float64 { return 0.2 }\n",
		"billing/tax/levy.go": "package tax\n\nfunc Levy(amount float64) float64 { return amount }\n",
	})
	snap, err := source.Open(root)
	require.NoError(t, err)
	res := resolve.New(snap)
	return NewExtractor(res), res
}

func checkout(t *testing.T, res *resolve.Resolver) *resolve.Declaration {
	t.Helper()
	d, err := res.ResolveDeclaration(context.Background(), "example.com/shop/cart.Checkout")
	require.NoError(t, err)
	return d
}

func TestExtract(t *testing.T) {
	ex, res := newExtractor(t)
	refs, diags := ex.Extract(context.Background(), checkout(t, res))

	type summary struct {
		Raw, Qualified, Alias, Reason string
		Kind                          resolve.Kind
		Pending                       bool
	}
	var got []summary
	for _, r := range refs {
		s := summary{Raw: r.Raw, Alias: r.Alias, Reason: r.Reason, Kind: r.Kind, Pending: r.Pending}
		if r.Target != nil {
			s.Qualified = r.Target.QualifiedName
		}
		got = append(got, s)
	}

	assert.Equal(t, []summary{
		{Raw: "shop.tax", Qualified: "example.com/shop/tax", Alias: "tax", Kind: resolve.KindModule},
		{Raw: "billing.tax", Qualified: "example.com/shop/billing/tax", Alias: "tax2", Kind: resolve.KindModule},
		{Raw: "tax::Rate", Qualified: "example.com/shop/tax.Rate", Alias: "tax.Rate", Kind: resolve.KindFunction},
		{Raw: "nonexistent.module", Reason: "no package or symbol named nonexistent.module in module example.com/shop"},
		{Raw: "cart.Discount", Qualified: "example.com/shop/cart.Discount", Alias: "Discount", Kind: resolve.KindFunction, Pending: true},
		{Raw: "cart.Checkout", Reason: SelfReferential},
	}, got)

	require.Len(t, diags, 1)
	assert.Equal(t, "bad..path", diags[0].Raw)

	module := refs[0].Target
	assert.Equal(t, "tax", module.Location.String())
	assert.Contains(t, module.Text, "func Rate() float64")
}

func TestExtract_Deterministic(t *testing.T) {
	ex, res := newExtractor(t)
	target := checkout(t, res)

	first, _ := ex.Extract(context.Background(), target)
	second, _ := ex.Extract(context.Background(), target)
	assert.Equal(t, first, second)
}

func TestExtract_FollowsCollaboratorTypes(t *testing.T) {
	jittest.RequireGo(t)
	ex, res := newExtractor(t)

	_, _ = ex.Extract(context.Background(), checkout(t, res))

	var names []string
	for _, n := range res.Types() {
		names = append(names, n.QualifiedName)
	}
	// Discount's signature brings in Cart and, through its field, Item
	assert.Equal(t, []string{"example.com/shop/cart.Cart", "example.com/shop/cart.Item"}, names)
}

func TestExtract_NoDoc(t *testing.T) {
	ex, _ := newExtractor(t)
	refs, diags := ex.Extract(context.Background(), &resolve.Declaration{QualifiedName: "example.com/shop/cart.X"})
	assert.Empty(t, refs)
	assert.Empty(t, diags)
}

func TestCandidates(t *testing.T) {
	ex, _ := newExtractor(t)

	tests := map[string][]string{
		"shop.tax":             {"shop/tax", "example.com/shop/tax", "example.com/shop/shop/tax"},
		"tax":                  {"tax", "example.com/shop/tax"},
		"shop":                 {"shop", "example.com/shop", "example.com/shop/shop"},
		"example.com/shop/tax": {"example.com/shop/tax", "example/com/shop/tax", "example.com/shop/example/com/shop/tax"},
	}
	for in, want := range tests {
		assert.Equal(t, want, ex.candidates(in), in)
	}
}

func TestExtract_Methods(t *testing.T) {
	root := jittest.WriteModule(t, map[string]string{
		"go.mod": "module example.com/shop\n\ngo 1.22\n",
		"cart/cart.go": `package cart

type Cart struct{ Items []float64 }

func (c *Cart) Total() float64 { return 0 }

// Invoice bills the cart using @shop.cart.Cart.Total, @cart::Cart.Total
// and @cart.Cart.Missing.
func Invoice(c *Cart) string {
	panic("not implemented")
}
`,
	})
	snap, err := source.Open(root)
	require.NoError(t, err)
	res := resolve.New(snap)
	target, err := res.ResolveDeclaration(context.Background(), "example.com/shop/cart.Invoice")
	require.NoError(t, err)

	refs, diags := NewExtractor(res).Extract(context.Background(), target)
	assert.Empty(t, diags)
	require.Len(t, refs, 2)

	require.NotNil(t, refs[0].Target, refs[0].Reason)
	assert.Equal(t, "shop.cart.Cart.Total", refs[0].Raw)
	assert.Equal(t, "example.com/shop/cart.Cart.Total", refs[0].Target.QualifiedName)
	assert.Equal(t, resolve.KindFunction, refs[0].Kind)

	// @cart::Cart.Total names the same method and is folded into the first
	assert.Equal(t, "cart.Cart.Missing", refs[1].Raw)
	assert.Nil(t, refs[1].Target)
	assert.NotEmpty(t, refs[1].Reason)
}

func TestSplitSymbol(t *testing.T) {
	tests := []struct {
		path           string
		n              int
		prefix, symbol string
		ok             bool
	}{
		{"shop.tax.Rate", 1, "shop.tax", "Rate", true},
		{"shop/cart.Cart.Total", 2, "shop/cart", "Cart.Total", true},
		{"example.com/shop/cart", 2, "", "", false},
		{"Rate", 1, "", "", false},
		{"cart.Total", 2, "", "", false},
	}
	for _, tt := range tests {
		prefix, symbol, ok := splitSymbol(tt.path, tt.n)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.prefix, prefix, tt.path)
		assert.Equal(t, tt.symbol, symbol, tt.path)
	}
}
