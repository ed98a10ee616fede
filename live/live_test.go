package live

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/jitter/errors"
	jittest "github.com/teranos/jitter/internal/testing"
	"github.com/teranos/jitter/source"
)

const rateName = "example.com/m/tax.Rate"

type fakeScanner struct {
	aliases []source.Alias
	err     error
	calls   int
}

func (f *fakeScanner) Aliases(ctx context.Context, importPath, name string) ([]source.Alias, error) {
	f.calls++
	return f.aliases, f.err
}

// stub and its replacements are distinct literals, so each has its own identity
func stub(x int) int   { return -1 }
func double(x int) int { return x * 2 }
func triple(x int) int { return x * 3 }

func TestInstall_PropagatesToAliases(t *testing.T) {
	reg := NewRegistry()
	rate := stub
	local := rate // what `var r = tax.Rate` in another package holds
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Bind(rateName, "example.com/m/cart", "r", &local))

	scan := &fakeScanner{aliases: []source.Alias{
		{Scope: "example.com/m/cart", Local: "r", File: "cart/cart.go", Line: 5, Via: source.ViaImport},
	}}
	rec, err := NewPatcher(reg, scan).Install(context.Background(), rateName, double)
	require.NoError(t, err)

	assert.Equal(t, 8, rate(4))
	assert.Equal(t, 8, local(4))
	assert.Equal(t, StateInstalled, rec.State)
	assert.Equal(t, "example.com/m/tax", rec.Scope)
	assert.Equal(t, []AliasLocation{
		{Scope: "example.com/m/cart", Local: "r", File: "cart/cart.go", Line: 5, Source: "scan"},
	}, rec.Patched)
	assert.Empty(t, rec.Failures)
	assert.NoError(t, rec.Err())
	assert.Contains(t, rec.Old, "live.stub")
	assert.Contains(t, rec.New, "live.double")
}

func TestInstall_Idempotent(t *testing.T) {
	reg := NewRegistry()
	rate := stub
	local := rate
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Bind(rateName, "example.com/m/cart", "r", &local))
	p := NewPatcher(reg, nil)

	first, err := p.Install(context.Background(), rateName, double)
	require.NoError(t, err)
	require.Len(t, first.Patched, 1)

	second, err := p.Install(context.Background(), rateName, double)
	require.NoError(t, err)
	assert.Empty(t, second.Patched)
	assert.Empty(t, second.Failures)
	assert.Equal(t, second.Old, second.New)
	assert.Equal(t, 6, rate(3))
	assert.Equal(t, 6, local(3))
}

func TestInstall_Reinstall(t *testing.T) {
	reg := NewRegistry()
	rate := stub
	early := rate
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Bind(rateName, "example.com/m/a", "early", &early))
	p := NewPatcher(reg, nil)

	_, err := p.Install(context.Background(), rateName, double)
	require.NoError(t, err)
	late := rate
	require.NoError(t, reg.Bind(rateName, "example.com/m/b", "late", &late))

	rec, err := p.Install(context.Background(), rateName, triple)
	require.NoError(t, err)
	assert.Len(t, rec.Patched, 2)
	assert.Equal(t, 9, early(3))
	assert.Equal(t, 9, late(3))
}

func TestInstall_UnknownSymbol(t *testing.T) {
	reg := NewRegistry()
	rate := stub
	require.NoError(t, reg.Declare(rateName, &rate))
	scan := &fakeScanner{}

	rec, err := NewPatcher(reg, scan).Install(context.Background(), "example.com/m/tax.Missing", double)
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.True(t, errors.IsUnknownSymbol(err))

	state, err := reg.State(rateName)
	require.NoError(t, err)
	assert.Equal(t, StatePending, state)
	assert.Equal(t, -1, rate(3))
}

func TestInstall_SignatureMismatch(t *testing.T) {
	var nilFunc func(int) int

	tests := []struct {
		name string
		impl interface{}
	}{
		{"different signature", strings.ToUpper},
		{"not a function", 42},
		{"untyped nil", nil},
		{"nil function", nilFunc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			rate := stub
			local := rate
			require.NoError(t, reg.Declare(rateName, &rate))
			require.NoError(t, reg.Bind(rateName, "example.com/m/cart", "r", &local))

			rec, err := NewPatcher(reg, nil).Install(context.Background(), rateName, tt.impl)
			require.Error(t, err)
			assert.Nil(t, rec)
			assert.True(t, errors.Is(err, errors.ErrSignatureMismatch))

			assert.Equal(t, -1, rate(1))
			assert.Equal(t, -1, local(1))
			state, _ := reg.State(rateName)
			assert.Equal(t, StatePending, state)
		})
	}
}

func TestInstall_NamedFuncTypeAccepted(t *testing.T) {
	type rateFunc func(int) int

	reg := NewRegistry()
	var rate rateFunc = stub
	require.NoError(t, reg.Declare(rateName, &rate))

	_, err := NewPatcher(reg, nil).Install(context.Background(), rateName, double)
	require.NoError(t, err)
	assert.Equal(t, 4, rate(2))
}

func TestInstall_UnloadedAndMissingScopes(t *testing.T) {
	reg := NewRegistry()
	rate := stub
	other := triple
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Bind("example.com/m/tax.Fee", "example.com/m/report", "unrelated", &other))

	scan := &fakeScanner{aliases: []source.Alias{
		{Scope: "example.com/m/invoice", Local: "r", File: "invoice/invoice.go", Line: 7},
		{Scope: "example.com/m/invoice", Local: "r2", File: "invoice/invoice.go", Line: 8},
		{Scope: "example.com/m/report", Local: "rate", File: "report/report.go", Line: 4},
	}}
	rec, err := NewPatcher(reg, scan).Install(context.Background(), rateName, double)
	require.NoError(t, err)

	assert.Equal(t, []string{"example.com/m/invoice"}, rec.Skipped)
	require.Len(t, rec.Failures, 1)
	assert.Equal(t, "example.com/m/report", rec.Failures[0].Scope)
	assert.Equal(t, "rate", rec.Failures[0].Local)
	assert.Equal(t, 4, rec.Failures[0].Line)
	assert.True(t, errors.Is(rec.Err(), errors.ErrPartialPatch))

	assert.Equal(t, 10, rate(5))
	assert.Equal(t, 15, other(5))
}

func TestInstall_DivergedAliasKept(t *testing.T) {
	reg := NewRegistry()
	rate := stub
	local := triple // reassigned by its package after init
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Bind(rateName, "example.com/m/cart", "r", &local))

	scan := &fakeScanner{aliases: []source.Alias{{Scope: "example.com/m/cart", Local: "r"}}}
	rec, err := NewPatcher(reg, scan).Install(context.Background(), rateName, double)
	require.NoError(t, err)

	require.Len(t, rec.Failures, 1)
	assert.Equal(t, 9, local(3))
	assert.Equal(t, 6, rate(3))
}

func TestInstall_ScanErrorRecorded(t *testing.T) {
	reg := NewRegistry()
	rate := stub
	local := rate
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Bind(rateName, "example.com/m/cart", "r", &local))

	scan := &fakeScanner{err: errors.New("walk failed")}
	rec, err := NewPatcher(reg, scan).Install(context.Background(), rateName, double)
	require.NoError(t, err)

	require.Len(t, rec.Failures, 1)
	assert.Contains(t, rec.Failures[0].Reason, "walk failed")
	// the registry still knows the binding
	assert.Equal(t, []AliasLocation{{Scope: "example.com/m/cart", Local: "r", Source: "registry"}}, rec.Patched)
	assert.Equal(t, 2, local(1))
}

func TestInstall_OtherDeclaredSymbolUntouched(t *testing.T) {
	reg := NewRegistry()
	rate := stub
	fee := stub // shares the stub implementation
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Declare("example.com/m/tax.Fee", &fee))

	rec, err := NewPatcher(reg, nil).Install(context.Background(), rateName, double)
	require.NoError(t, err)
	assert.Empty(t, rec.Patched)
	assert.Equal(t, -1, fee(1))
}

func TestInstall_SnapshotScanner(t *testing.T) {
	root := jittest.WriteModule(t, map[string]string{
		"go.mod":         "module example.com/m\n\ngo 1.22\n",
		"tax/tax.go":     "package tax\n\nvar Rate = func(x int) int { return -1 }\n",
		"cart/cart.go":   "package cart\n\nimport \"example.com/m/tax\"\n\nvar rate = tax.Rate\n",
		"audit/a.go":     "package audit\n\nimport t \"example.com/m/tax\"\n\nvar (\n\tr = t.Rate\n)\n",
		"report/r.go":    "package report\n\nimport \"example.com/m/tax\"\n\nvar snapshot = tax.Rate\n",
		"unrelated/u.go": "package unrelated\n\nvar Rate = 3\n",
	})
	snap, err := source.Open(root)
	require.NoError(t, err)

	reg := NewRegistry()
	rate := stub
	cartRate := rate
	reportOther := triple
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Bind(rateName, "example.com/m/cart", "rate", &cartRate))
	require.NoError(t, reg.Bind(rateName, "example.com/m/report", "other", &reportOther))

	rec, err := NewPatcher(reg, snap).Install(context.Background(), rateName, double)
	require.NoError(t, err)

	assert.Equal(t, []AliasLocation{
		{Scope: "example.com/m/cart", Local: "rate", File: "cart/cart.go", Line: 5, Source: "scan"},
	}, rec.Patched)
	assert.Equal(t, []string{"example.com/m/audit"}, rec.Skipped)
	require.Len(t, rec.Failures, 1)
	assert.Equal(t, "example.com/m/report", rec.Failures[0].Scope)
	assert.Equal(t, "snapshot", rec.Failures[0].Local)
	assert.Equal(t, 2, cartRate(1))
}

func TestInstall_SharedStubAliasesStaySeparate(t *testing.T) {
	const feeName = "example.com/m/tax.Fee"
	reg := NewRegistry()
	rate := stub
	fee := stub // both start from the same function
	rateCopy := rate
	feeCopy := fee
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Declare(feeName, &fee))
	require.NoError(t, reg.Bind(rateName, "example.com/m/cart", "rate", &rateCopy))
	require.NoError(t, reg.Bind(feeName, "example.com/m/cart", "fee", &feeCopy))

	rec, err := NewPatcher(reg, nil).Install(context.Background(), rateName, double)
	require.NoError(t, err)
	assert.Equal(t, []AliasLocation{{Scope: "example.com/m/cart", Local: "rate", Source: "registry"}}, rec.Patched)
	assert.Equal(t, 8, rateCopy(4))
	assert.Equal(t, -1, fee(4))
	assert.Equal(t, -1, feeCopy(4))

	// a scan reporting the other symbol's alias does not get it rewritten
	scan := &fakeScanner{aliases: []source.Alias{{Scope: "example.com/m/cart", Local: "fee", File: "cart/cart.go", Line: 6}}}
	rec, err = NewPatcher(reg, scan).Install(context.Background(), rateName, triple)
	require.NoError(t, err)
	require.Len(t, rec.Failures, 1)
	assert.Equal(t, "fee", rec.Failures[0].Local)
	assert.Contains(t, rec.Failures[0].Reason, feeName)
	assert.Equal(t, -1, feeCopy(4))
	assert.Equal(t, 12, rateCopy(4))

	rec, err = NewPatcher(reg, nil).Install(context.Background(), feeName, triple)
	require.NoError(t, err)
	assert.Equal(t, []AliasLocation{{Scope: "example.com/m/cart", Local: "fee", Source: "registry"}}, rec.Patched)
	assert.Equal(t, 12, feeCopy(4))
	assert.Equal(t, 12, rateCopy(4))
}
