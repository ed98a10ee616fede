package annotation

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/jitter/errors"
)

// Severity of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic reports an annotation that could not be parsed. It is kept
// on the bundle with the raw text instead of stopping extraction.
type Diagnostic struct {
	Raw         string   `json:"raw" yaml:"raw"`
	Message     string   `json:"message" yaml:"message"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Range       Range    `json:"range" yaml:"range"`
	Suggestions []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// Error returns the plain form, suitable for logs and bundles
func (d Diagnostic) Error() string {
	msg := fmt.Sprintf("@%s: %s (line %d)", d.Raw, d.Message, d.Range.Start.Line)
	if len(d.Suggestions) > 0 {
		msg += ". Suggestions: " + strings.Join(d.Suggestions, ", ")
	}
	return msg
}

// Err converts the diagnostic to a MalformedAnnotation error
func (d Diagnostic) Err() error {
	return errors.NewMalformedAnnotation(d.Raw, d.Message)
}

// Format renders the diagnostic for a terminal
func (d Diagnostic) Format() string {
	var head string
	switch d.Severity {
	case SeverityWarning:
		head = pterm.Yellow(d.Message)
	default:
		head = pterm.Red(d.Message)
	}

	var sb strings.Builder
	sb.WriteString(head)
	sb.WriteString(fmt.Sprintf("\n  %s @%s", pterm.Yellow("Annotation:"), d.Raw))
	sb.WriteString(fmt.Sprintf("\n  %s line %d, column %d", pterm.Yellow("At:"), d.Range.Start.Line, d.Range.Start.Character+1))
	if len(d.Suggestions) > 0 {
		sb.WriteString("\n" + pterm.Green("Suggestions:"))
		for _, s := range d.Suggestions {
			sb.WriteString("\n  - " + s)
		}
	}
	return sb.String()
}
