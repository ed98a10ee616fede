package display

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/jitter/errors"
)

// ShouldOutputJSON determines if a command should output JSON based on flags and agent detection
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return IsAgentEnvironment()
	}

	// An explicit --json on the command wins either way
	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}

	if globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json"); globalFlag {
		return true
	}

	return IsAgentEnvironment()
}

// OutputJSON marshals and prints JSON using display.MarshalJSON
func OutputJSON(v interface{}) error {
	return WriteJSON(os.Stdout, v)
}

// WriteJSON writes v to w the way OutputJSON prints it
func WriteJSON(w io.Writer, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// IsAgentEnvironment reports whether the caller is a coding agent rather
// than a person at a terminal. JITTER_CALLER=llm forces it on.
func IsAgentEnvironment() bool {
	if os.Getenv("JITTER_CALLER") == "llm" {
		return true
	}
	for _, key := range []string{"CURSOR", "GITHUB_COPILOT"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}
