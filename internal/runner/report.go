package runner

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JonMunkholm/sheet2sql/internal/core"
)

// FileResult is the outcome of one input file.
type FileResult struct {
	File     string // base name
	Path     string
	Template string
	Table    string

	Rows     int
	Accepted int
	Rejected int

	CleanedPath    string
	SQLPath        string
	RejectionsPath string

	// xxh3 digests of the input bytes and of the generated script.
	InputDigest  string
	ScriptDigest string

	Duration   time.Duration
	Rejections []core.Rejection
	Err        error
}

// OK reports whether the file was processed. Rejected rows do not make a
// file fail.
func (f FileResult) OK() bool {
	return f.Err == nil
}

// Report summarises a run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Files    []FileResult
}

// Failed returns the number of files that could not be processed.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if !f.OK() {
			n++
		}
	}
	return n
}

// Accepted returns the number of accepted rows across all files.
func (r *Report) Accepted() int {
	n := 0
	for _, f := range r.Files {
		n += f.Accepted
	}
	return n
}

// Rejected returns the number of rejected rows across all files.
func (r *Report) Rejected() int {
	n := 0
	for _, f := range r.Files {
		n += f.Rejected
	}
	return n
}

// Render writes a per-file summary table.
func (r *Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("run " + r.RunID)
	t.AppendHeader(table.Row{"File", "Template", "Rows", "Accepted", "Rejected", "Status"})

	for _, f := range r.Files {
		status := "ok"
		if !f.OK() {
			status = core.FormatUserError(f.Err)
		}
		t.AppendRow(table.Row{f.File, f.Template, f.Rows, f.Accepted, f.Rejected, status})
	}

	t.AppendFooter(table.Row{
		fmt.Sprintf("%d files", len(r.Files)), "", "",
		r.Accepted(), r.Rejected(),
		fmt.Sprintf("%d failed", r.Failed()),
	})
	t.Render()
}

// RenderRejections writes one table row per violation. limit caps the
// number of rejected rows shown; 0 shows all.
func RenderRejections(w io.Writer, rejections []core.Rejection, limit int) {
	if len(rejections) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Row", "Line", "Field", "Rule", "Code", "Value", "Message"})

	shown := rejections
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, rej := range shown {
		line := ""
		if rej.Line > 0 {
			line = fmt.Sprint(rej.Line)
		}
		for _, v := range rej.Violations {
			t.AppendRow(table.Row{rej.Index, line, v.Field, v.Rule, v.Code, truncate(v.Value, 40), v.Message})
		}
	}
	if hidden := len(rejections) - len(shown); hidden > 0 {
		t.AppendFooter(table.Row{"", "", "", "", "", "", fmt.Sprintf("... %d more rejected rows", hidden)})
	}
	t.Render()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
