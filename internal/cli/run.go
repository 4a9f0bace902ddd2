package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2sql/internal/logging"
	"github.com/JonMunkholm/sheet2sql/internal/runner"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Transform every spreadsheet in the input directory",
		Long: `Transform every .csv and .xlsx file in the input directory.

Each file is matched to a template by name pattern, then by header row,
unless --template forces one. For every file the output directory gets the
cleaned file, a .sql script and, when rows were rejected, a
.rejections.json report. A failing file never stops the others.`,
		Example: `  # Process ./input into ./output
  sheet2sql run

  # Process concurrently with a forced template
  sheet2sql run -i exports -o sql --batch -t customers`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}

	f := cmd.Flags()
	f.StringP("input", "i", "", "input directory (default: input)")
	f.StringP("output", "o", "", "output directory (default: output)")
	f.StringP("template", "t", "", "force every file through this template")
	f.Bool("batch", false, "process files concurrently")
	f.Int("max-concurrent", 0, "files processed at once with --batch")
	f.StringSlice("null-tokens", nil, "cell values read as NULL (replaces the defaults)")
	f.Bool("no-rejections", false, "do not write .rejections.json reports")
	f.Bool("dry-run", false, "transform without writing any output")
	f.Int("show-rejections", 10, "rejected rows printed per file; 0 prints none, -1 all")
	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	a := appFrom(cmd)
	f := cmd.Flags()

	pc := &a.cfg.Pipeline
	overrideString(f, "input", &pc.InputDir)
	overrideString(f, "output", &pc.OutputDir)
	overrideString(f, "template", &pc.Template)
	overrideBool(f, "batch", &pc.BatchProcessing)
	overrideInt(f, "max-concurrent", &pc.MaxConcurrent)
	overrideStrings(f, "null-tokens", &pc.NullTokens)
	if noRej, _ := f.GetBool("no-rejections"); noRej {
		pc.WriteRejections = false
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	dryRun, _ := f.GetBool("dry-run")
	show, _ := f.GetInt("show-rejections")

	reg, err := a.registry()
	if err != nil {
		return err
	}

	r := runner.New(reg, runner.Options{
		InputDir:        pc.InputDir,
		OutputDir:       pc.OutputDir,
		Template:        pc.Template,
		Batch:           pc.BatchProcessing,
		MaxConcurrent:   pc.MaxConcurrent,
		NullTokens:      pc.NullTokens,
		WriteRejections: pc.WriteRejections,
		DryRun:          dryRun,
	})

	ctx := logging.WithRunID(cmd.Context(), logging.NewRunID())
	report, err := r.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	report.Render(out)
	if show != 0 {
		for _, fr := range report.Files {
			if fr.Rejected == 0 {
				continue
			}
			fmt.Fprintf(out, "\n%s: %d rejected rows\n", fr.File, fr.Rejected)
			runner.RenderRejections(out, fr.Rejections, max(show, 0))
		}
	}

	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d files failed", n, len(report.Files))
	}
	return nil
}
