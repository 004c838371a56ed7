package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"portscan/scanner"
)

// Options controls which outcomes are rendered.
type Options struct {
	// ShowClosed includes Closed outcomes. By default only Open and Error
	// outcomes are surfaced.
	ShowClosed bool
}

// Visible reports whether o is rendered under opts.
func (opts Options) Visible(o scanner.Outcome) bool {
	if o.Status == scanner.StatusClosed {
		return opts.ShowClosed
	}
	return true
}

// Line renders an outcome as "Port <n>: <status> <detail>". The detail is the
// trimmed banner for Open ports and the cause for Error ports.
func Line(o scanner.Outcome) string {
	detail := ""
	switch o.Status {
	case scanner.StatusOpen:
		detail = string(bytes.TrimSpace(o.Banner))
	case scanner.StatusError:
		detail = o.Cause
	}
	return fmt.Sprintf("Port %d: %s %s", o.Port, o.Status, detail)
}

// WriteLines writes one line per visible outcome, in result order.
func WriteLines(w io.Writer, result scanner.Result, opts Options) error {
	var sb strings.Builder
	for _, o := range result.Outcomes {
		if !opts.Visible(o) {
			continue
		}
		sb.WriteString(Line(o))
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteJSON writes the complete result, every port included, as indented JSON.
func WriteJSON(w io.Writer, result scanner.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
