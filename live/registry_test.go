package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/jitter/errors"
)

func TestDeclare(t *testing.T) {
	rate := stub
	notFunc := 3
	var nilPtr *func(int) int

	tests := []struct {
		name      string
		qualified string
		ptr       interface{}
		wantErr   bool
	}{
		{"func variable", rateName, &rate, false},
		{"value instead of pointer", rateName, rate, true},
		{"pointer to non-func", rateName, &notFunc, true},
		{"nil pointer", rateName, nilPtr, true},
		{"no name", "example.com/m/tax", &rate, true},
		{"method path", "example.com/m/tax.Table.Rate", &rate, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Declare(tt.qualified, tt.ptr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeclare_Twice(t *testing.T) {
	reg := NewRegistry()
	rate, other := stub, stub
	require.NoError(t, reg.Declare(rateName, &rate))
	assert.NoError(t, reg.Declare(rateName, &rate))
	assert.Error(t, reg.Declare(rateName, &other))
}

func TestLoaded(t *testing.T) {
	reg := NewRegistry()
	rate, local := stub, stub
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Bind(rateName, "example.com/m/cart", "r", &local))

	assert.True(t, reg.Loaded("example.com/m/tax"))
	assert.True(t, reg.Loaded("example.com/m/cart"))
	assert.False(t, reg.Loaded("example.com/m/invoice"))
}

func TestBind_AfterInstallCatchesUp(t *testing.T) {
	reg := NewRegistry()
	rate := stub
	stale := rate
	require.NoError(t, reg.Declare(rateName, &rate))

	_, err := NewPatcher(reg, nil).Install(context.Background(), rateName, double)
	require.NoError(t, err)
	assert.Equal(t, -1, stale(2))

	require.NoError(t, reg.Bind(rateName, "example.com/m/late", "r", &stale))
	assert.Equal(t, 4, stale(2))

	own := triple
	require.NoError(t, reg.Bind(rateName, "example.com/m/late", "own", &own))
	assert.Equal(t, 6, own(2))
}

func TestLookup(t *testing.T) {
	reg := NewRegistry()
	rate := stub
	require.NoError(t, reg.Declare(rateName, &rate))

	ref, err := Lookup[func(int) int](reg, rateName)
	require.NoError(t, err)
	assert.Equal(t, -1, ref.Get()(1))

	_, err = NewPatcher(reg, nil).Install(context.Background(), rateName, triple)
	require.NoError(t, err)
	assert.Equal(t, 3, ref.Get()(1))

	_, err = Lookup[func(string) string](reg, rateName)
	assert.True(t, errors.Is(err, errors.ErrSignatureMismatch))

	_, err = Lookup[func(int) int](reg, "example.com/m/tax.Missing")
	assert.True(t, errors.IsUnknownSymbol(err))
}

func TestSymbols(t *testing.T) {
	reg := NewRegistry()
	rate, fee := stub, stub
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Declare("example.com/m/tax.Fee", &fee))
	_, err := NewPatcher(reg, nil).Install(context.Background(), rateName, double)
	require.NoError(t, err)

	syms := reg.Symbols()
	require.Len(t, syms, 2)
	assert.Equal(t, "example.com/m/tax.Fee", syms[0].Qualified)
	assert.Equal(t, StatePending, syms[0].State)
	assert.Equal(t, rateName, syms[1].Qualified)
	assert.Equal(t, StateInstalled, syms[1].State)
	assert.Contains(t, syms[1].Current, "live.double")

	_, err = reg.State("example.com/m/tax.Missing")
	assert.True(t, errors.IsUnknownSymbol(err))
}

func TestBind_CatchUpFollowsNamedSymbol(t *testing.T) {
	const feeName = "example.com/m/tax.Fee"
	reg := NewRegistry()
	rate, fee := stub, stub
	require.NoError(t, reg.Declare(rateName, &rate))
	require.NoError(t, reg.Declare(feeName, &fee))

	_, err := NewPatcher(reg, nil).Install(context.Background(), rateName, double)
	require.NoError(t, err)

	feeCopy := stub
	require.NoError(t, reg.Bind(feeName, "example.com/m/late", "fee", &feeCopy))
	assert.Equal(t, -1, feeCopy(2))

	rateCopy := stub
	require.NoError(t, reg.Bind(rateName, "example.com/m/late", "rate", &rateCopy))
	assert.Equal(t, 4, rateCopy(2))
}

func TestBind_Invalid(t *testing.T) {
	reg := NewRegistry()
	local := stub

	assert.Error(t, reg.Bind("example.com/m/tax", "example.com/m/cart", "r", &local))
	assert.Error(t, reg.Bind(rateName, "example.com/m/cart", "r", local))
	assert.False(t, reg.Loaded("example.com/m/cart"))

	// the aliased symbol may be declared later
	assert.NoError(t, reg.Bind(rateName, "example.com/m/cart", "r", &local))
}
