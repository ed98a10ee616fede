package bundle

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"gopkg.in/yaml.v3"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/errors"
)

// Encode serialises a bundle as text, json or yaml. All three derive from
// the same Bundle; none re-resolves anything.
func Encode(w io.Writer, b *Bundle, format string) error {
	switch format {
	case am.FormatText, "":
		_, err := io.WriteString(w, Render(b))
		return errors.Wrap(err, "write bundle")
	case am.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(b), "encode bundle as json")
	case am.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(b); err != nil {
			return errors.Wrap(err, "encode bundle as yaml")
		}
		return errors.Wrap(enc.Close(), "encode bundle as yaml")
	default:
		return errors.WithHint(
			errors.Newf("unknown bundle format %q", format),
			"use one of: text, json, yaml")
	}
}

// DescribeArguments renders live argument values, naming them after the
// target's parameters. Values beyond the named parameters (a variadic
// tail) are named argN. Output is deterministic: map keys are sorted and
// pointer addresses left out.
func DescribeArguments(params []string, values []interface{}, maxDepth int) []Argument {
	cfg := spew.ConfigState{
		Indent:                  "  ",
		MaxDepth:                maxDepth,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		DisableMethods:          true,
		SortKeys:                true,
	}

	args := make([]Argument, 0, len(values))
	for i, v := range values {
		name := fmt.Sprintf("arg%d", i)
		if i < len(params) && params[i] != "_" {
			name = params[i]
		}
		args = append(args, Argument{
			Name:  name,
			Type:  typeName(v),
			Value: strings.TrimRight(cfg.Sdump(v), "\n"),
		})
	}
	return args
}

func typeName(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
