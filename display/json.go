package display

import (
	"encoding/json"
	"flag"
)

// MarshalJSON marshals JSON compactly for agents and indented for people
func MarshalJSON(v interface{}) ([]byte, error) {
	// Tests always get indented output so golden strings stay readable
	if flag.Lookup("test.v") != nil {
		return json.MarshalIndent(v, "", "  ")
	}

	if IsAgentEnvironment() {
		// Prefixed so agent tooling does not reformat the payload
		result, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return append([]byte("json:"), result...), nil
	}

	return json.MarshalIndent(v, "", "  ")
}
