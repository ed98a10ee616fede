package display

import (
	"bytes"
	"testing"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot() (*cobra.Command, *cobra.Command) {
	root := &cobra.Command{Use: "jitter"}
	root.PersistentFlags().Bool("json", false, "")
	child := &cobra.Command{Use: "pending", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(child)
	return root, child
}

func TestShouldOutputJSON(t *testing.T) {
	t.Setenv("JITTER_CALLER", "")
	t.Setenv("CURSOR", "")
	t.Setenv("GITHUB_COPILOT", "")

	tests := []struct {
		name   string
		args   []string
		caller string
		want   bool
	}{
		{"default", []string{"pending"}, "", false},
		{"global flag", []string{"--json", "pending"}, "", true},
		{"agent caller", []string{"pending"}, "llm", true},
		{"explicit false beats agent", []string{"pending", "--json=false"}, "llm", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JITTER_CALLER", tt.caller)
			root, child := newRoot()
			root.SetArgs(tt.args)
			require.NoError(t, root.Execute())
			assert.Equal(t, tt.want, ShouldOutputJSON(child))
		})
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"patched": 2}))
	assert.Equal(t, "{\n  \"patched\": 2\n}\n", buf.String())
}

func TestTable(t *testing.T) {
	pterm.DisableStyling()
	t.Cleanup(pterm.EnableStyling)

	var buf bytes.Buffer
	require.NoError(t, Table(&buf, []string{"scope", "local"}, [][]string{{"example.com/m/cart", "rate"}}))
	assert.Contains(t, buf.String(), "scope")
	assert.Contains(t, buf.String(), "example.com/m/cart")
	assert.Contains(t, buf.String(), "rate")
}
