// Package runner drives the pipeline over a directory of spreadsheets:
// resolve a template per file, transform it, and write the cleaned file,
// the SQL script and a rejection report to the output directory.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sheet2sql/internal/core"
	"github.com/JonMunkholm/sheet2sql/internal/logging"
	"github.com/JonMunkholm/sheet2sql/internal/schema"
	"github.com/JonMunkholm/sheet2sql/internal/workbook"
)

// ErrInputDir is returned when the input directory is missing or unreadable.
var ErrInputDir = errors.New("input directory unavailable")

// Options controls a run.
type Options struct {
	InputDir  string
	OutputDir string

	// Template forces every file through one template. Empty resolves per
	// file by file pattern, then by header match.
	Template string

	// Batch processes files concurrently, at most MaxConcurrent at a time.
	Batch         bool
	MaxConcurrent int

	NullTokens []string

	// WriteRejections writes <base>.rejections.json for files with
	// rejected rows.
	WriteRejections bool

	// DryRun transforms files without writing anything.
	DryRun bool
}

// Runner processes input files against a template registry. A Runner is
// safe for concurrent use.
type Runner struct {
	reg  *schema.Registry
	opts Options

	mu        sync.Mutex
	pipelines map[string]*core.Pipeline
}

// New returns a Runner over reg.
func New(reg *schema.Registry, opts Options) *Runner {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Runner{
		reg:       reg,
		opts:      opts,
		pipelines: make(map[string]*core.Pipeline),
	}
}

// Run processes every supported file in the input directory, in name
// order. Per-file failures are recorded in the report and never stop other
// files; only an unreadable input directory or cancellation is an error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: logging.RunID(ctx), Started: time.Now()}
	if report.RunID == "" {
		report.RunID = logging.NewRunID()
		ctx = logging.WithRunID(ctx, report.RunID)
	}
	logger := logging.FromContext(ctx)

	files, err := ListInputs(r.opts.InputDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Warn("no spreadsheet files found", "dir", r.opts.InputDir)
		report.Finished = time.Now()
		return report, nil
	}

	if !r.opts.DryRun {
		if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	report.Files = make([]FileResult, len(files))

	if r.opts.Batch {
		logger.Info("batch processing enabled", "files", len(files), "max_concurrent", r.opts.MaxConcurrent)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.MaxConcurrent)
		for i, path := range files {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				report.Files[i] = r.ProcessFile(gctx, path)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		logger.Info("processing files one by one", "files", len(files))
		for i, path := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			report.Files[i] = r.ProcessFile(ctx, path)
		}
	}

	report.Finished = time.Now()
	logger.Info("run complete",
		"files", len(report.Files),
		"failed", report.Failed(),
		"accepted", report.Accepted(),
		"rejected", report.Rejected(),
		"duration", report.Finished.Sub(report.Started),
	)
	return report, nil
}

// ProcessFile transforms one file and, unless DryRun, writes its outputs.
// Errors are recorded on the result.
func (r *Runner) ProcessFile(ctx context.Context, path string) FileResult {
	start := time.Now()
	res := FileResult{File: filepath.Base(path), Path: path}
	logger := logging.WithFields(ctx, "file", res.File)
	logger.Info("processing file")

	out, err := r.Transform(path)
	if err == nil && !r.opts.DryRun {
		err = r.writeOutputs(path, out, &res)
	}
	res.Duration = time.Since(start)

	if out != nil {
		res.Template = out.Result.Template
		res.Table = out.Result.Table
		res.Rows = out.Result.Total
		res.Accepted = out.Result.Accepted()
		res.Rejected = len(out.Result.Rejections)
		res.Rejections = out.Result.Rejections
		res.InputDigest = out.InputDigest
		res.ScriptDigest = digest(out.Script)
	}

	if err != nil {
		res.Err = err
		logger.Error("file failed", "error", err, "duration", res.Duration)
		return res
	}

	logger.Info("file processed",
		"template", res.Template,
		"rows", res.Rows,
		"accepted", res.Accepted,
		"rejected", res.Rejected,
		"duration", res.Duration,
	)
	return res
}

// Output is a transformed file held in memory.
type Output struct {
	Format      workbook.Format
	Pipeline    *core.Pipeline
	Result      *core.Result
	Script      string
	InputDigest string
}

// Transform reads, resolves and runs one file without writing anything.
func (r *Runner) Transform(path string) (*Output, error) {
	format, err := workbook.FormatOf(path)
	if err != nil {
		return nil, err
	}

	tmpl, err := r.templateFor(path)
	if err != nil && !errors.Is(err, schema.ErrNoTemplateMatch) {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return r.TransformReader(f, path, format, tmpl)
}

// TransformReader runs src, named name, through tmpl. A nil tmpl is
// resolved from name and then from the header row.
func (r *Runner) TransformReader(src io.Reader, name string, format workbook.Format, tmpl *schema.Template) (*Output, error) {
	h := xxh3.New()
	tbl, err := workbook.Read(io.TeeReader(src, h), format, workbook.ReadOptions{Template: tmpl})
	if err != nil {
		return nil, err
	}
	// Readers may stop before EOF; hash the rest so the digest covers the file.
	if _, err := io.Copy(h, src); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if tmpl == nil {
		if tmpl, err = r.reg.Resolve(name, tbl.Headers); err != nil {
			return nil, err
		}
	}

	p, err := r.pipeline(tmpl)
	if err != nil {
		return nil, err
	}

	result, err := p.Run(tbl.Rows)
	if err != nil {
		return nil, err
	}

	return &Output{
		Format:      format,
		Pipeline:    p,
		Result:      result,
		Script:      core.Script(result.Statements),
		InputDigest: fmt.Sprintf("%016x", h.Sum64()),
	}, nil
}

// templateFor returns the forced template or a file-pattern match. It
// returns ErrNoTemplateMatch when headers are needed to decide.
func (r *Runner) templateFor(path string) (*schema.Template, error) {
	if r.opts.Template != "" {
		return r.reg.Get(r.opts.Template)
	}
	return r.reg.Resolve(path, nil)
}

// pipeline compiles a template once per runner.
func (r *Runner) pipeline(t *schema.Template) (*core.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pipelines[t.Name]; ok {
		return p, nil
	}
	p, err := core.NewPipeline(t, core.WithNullTokens(r.opts.NullTokens))
	if err != nil {
		return nil, err
	}
	r.pipelines[t.Name] = p
	return p, nil
}

func digest(s string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(s))
}

// ListInputs returns the supported spreadsheet files directly inside dir,
// sorted by name. Hidden files and Excel lock files (~$name.xlsx) are
// skipped.
func ListInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInputDir, dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if _, err := workbook.FormatOf(name); err != nil {
			slog.Debug("skipping unsupported file", "file", name)
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
