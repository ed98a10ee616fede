package display

import (
	"io"

	"github.com/pterm/pterm"
)

// Table renders rows under header as a pterm table
func Table(w io.Writer, header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out+"\n")
	return err
}
