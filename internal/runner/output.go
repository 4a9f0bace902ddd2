package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/sheet2sql/internal/core"
	"github.com/JonMunkholm/sheet2sql/internal/workbook"
)

// OutputPaths returns where the cleaned file, SQL script and rejection
// report for an input are written: <out>/<name>.<ext>, <out>/<name>.sql and
// <out>/<name>.rejections.json.
func OutputPaths(outputDir, input string, format workbook.Format) (cleaned, script, rejections string) {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+format.Ext()),
		filepath.Join(outputDir, stem+".sql"),
		filepath.Join(outputDir, stem+".rejections.json")
}

// writeOutputs writes the cleaned file, the SQL script and any rejection
// report to temporary files, then publishes them together. A failure at any
// step leaves none of this run's artifacts behind.
func (r *Runner) writeOutputs(input string, out *Output, res *FileResult) error {
	cleanedPath, sqlPath, rejPath := OutputPaths(r.opts.OutputDir, input, out.Format)

	var pending []publish
	defer func() {
		for _, p := range pending {
			os.Remove(p.tmp)
		}
	}()

	cleanedTmp, err := writeTemp(r.opts.OutputDir, func(w io.Writer) error {
		return workbook.Write(w, out.Format, out.Pipeline.Template().FieldNames(), out.Result.Cleaned)
	})
	if err != nil {
		return fmt.Errorf("write cleaned file: %w", err)
	}
	pending = append(pending, publish{cleanedTmp, cleanedPath, "cleaned file"})

	sqlTmp, err := writeTemp(r.opts.OutputDir, func(w io.Writer) error {
		_, err := io.WriteString(w, scriptFile(out.Script))
		return err
	})
	if err != nil {
		return fmt.Errorf("write sql script: %w", err)
	}
	pending = append(pending, publish{sqlTmp, sqlPath, "sql script"})

	withReport := r.opts.WriteRejections && len(out.Result.Rejections) > 0
	if withReport {
		rejTmp, err := writeTemp(r.opts.OutputDir, func(w io.Writer) error {
			return writeRejections(w, res.File, out.Result)
		})
		if err != nil {
			return fmt.Errorf("write rejection report: %w", err)
		}
		pending = append(pending, publish{rejTmp, rejPath, "rejection report"})
	} else if r.opts.WriteRejections {
		// A stale report from an earlier run would contradict this one.
		if err := os.Remove(rejPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale rejection report: %w", err)
		}
	}

	var published []string
	for len(pending) > 0 {
		p := pending[0]
		if err := os.Rename(p.tmp, p.dst); err != nil {
			for _, dst := range published {
				os.Remove(dst)
			}
			return fmt.Errorf("publish %s: %w", p.what, err)
		}
		published = append(published, p.dst)
		pending = pending[1:]
	}

	res.CleanedPath = cleanedPath
	res.SQLPath = sqlPath
	if withReport {
		res.RejectionsPath = rejPath
	}
	return nil
}

// publish is a completed temporary file waiting to be renamed into place.
type publish struct {
	tmp, dst, what string
}

// scriptFile terminates a non-empty script with a newline.
func scriptFile(script string) string {
	if script == "" {
		return ""
	}
	return script + "\n"
}

// writeTemp creates a temporary file in dir, fills it with fill and closes
// it. The file is removed on any failure.
func writeTemp(dir string, fill func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(dir, ".sheet2sql-*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()

	if err := fill(f); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// rejectionReport is the on-disk shape of <name>.rejections.json.
type rejectionReport struct {
	File       string           `json:"file"`
	Template   string           `json:"template"`
	Table      string           `json:"table"`
	Total      int              `json:"total"`
	Accepted   int              `json:"accepted"`
	Rejections []core.Rejection `json:"rejections"`
}

func writeRejections(w io.Writer, file string, res *core.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rejectionReport{
		File:       file,
		Template:   res.Template,
		Table:      res.Table,
		Total:      res.Total,
		Accepted:   res.Accepted(),
		Rejections: res.Rejections,
	})
}
