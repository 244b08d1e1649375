package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"sigs.k8s.io/yaml"

	"blackbox-operator/internal/reconciler"
	pkgstrings "blackbox-operator/pkg/strings"
)

// OutputFormat represents the supported output formats for CLI commands.
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ValidateOutputFormat validates that the given format string is a supported output format.
func ValidateOutputFormat(format string) error {
	switch OutputFormat(format) {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (valid: table, json, yaml)", format)
	}
}

// StatusView is the status command's view of the unit.
type StatusView struct {
	Container string    `json:"container"`
	Service   string    `json:"service"`
	State     string    `json:"state"`
	Message   string    `json:"message,omitempty"`
	Updated   time.Time `json:"updated,omitempty"`
}

// NewStatusView builds a view from a status record. record may be nil when no
// attempt has been recorded yet.
func NewStatusView(container, service string, record *reconciler.StatusRecord) StatusView {
	view := StatusView{Container: container, Service: service, State: string(reconciler.StateWaiting)}
	if record != nil {
		view.State = string(record.State)
		view.Message = record.Message
		view.Updated = record.Updated
	}
	return view
}

// WriteStatus writes view to w in format.
func WriteStatus(w io.Writer, format OutputFormat, view StatusView, noHeaders bool) error {
	switch format {
	case OutputFormatJSON:
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case OutputFormatYAML:
		data, err := yaml.Marshal(view)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case OutputFormatTable, "":
		t := newTable(w)
		if !noHeaders {
			t.AppendHeader(table.Row{
				text.FgHiCyan.Sprint("CONTAINER"),
				text.FgHiCyan.Sprint("SERVICE"),
				text.FgHiCyan.Sprint("STATE"),
				text.FgHiCyan.Sprint("MESSAGE"),
				text.FgHiCyan.Sprint("UPDATED"),
			})
		}
		t.AppendRow(table.Row{
			view.Container,
			view.Service,
			colorState(view.State),
			pkgstrings.Truncate(view.Message, pkgstrings.DefaultMessageMaxLen),
			formatUpdated(view.Updated),
		})
		t.Render()
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteTargets writes one scrape target per row.
func WriteTargets(w io.Writer, targets []string) {
	t := newTable(w)
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("TARGET")})
	for _, target := range targets {
		t.AppendRow(table.Row{target})
	}
	t.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func colorState(state string) string {
	switch reconciler.State(state) {
	case reconciler.StateActive:
		return text.FgGreen.Sprint(state)
	case reconciler.StateBlocked:
		return text.FgRed.Sprint(state)
	default:
		return text.FgYellow.Sprint(state)
	}
}

func formatUpdated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
