package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2sql/internal/runner"
)

// errRowsRejected makes validate exit non-zero when any row fails.
var errRowsRejected = errors.New("rows rejected")

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check one spreadsheet against its template without writing output",
		Example: `  sheet2sql validate input/customers_jan.csv
  sheet2sql validate export.xlsx -t orders --sql > orders.sql`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}

	f := cmd.Flags()
	f.StringP("template", "t", "", "template to use instead of resolving one")
	f.Bool("sql", false, "print the generated script")
	f.Int("limit", 20, "rejected rows to print; 0 prints all")
	f.StringSlice("null-tokens", nil, "cell values read as NULL (replaces the defaults)")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)
	f := cmd.Flags()

	tmpl, _ := f.GetString("template")
	printSQL, _ := f.GetBool("sql")
	limit, _ := f.GetInt("limit")
	nullTokens := a.cfg.Pipeline.NullTokens
	overrideStrings(f, "null-tokens", &nullTokens)

	reg, err := a.registry()
	if err != nil {
		return err
	}

	r := runner.New(reg, runner.Options{Template: tmpl, NullTokens: nullTokens})
	out, err := r.Transform(args[0])
	if err != nil {
		return err
	}

	res := out.Result
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: template %s, table %s: %d rows, %d accepted, %d rejected\n",
		filepath.Base(args[0]), res.Template, res.Table, res.Total, res.Accepted(), len(res.Rejections))

	if printSQL && out.Script != "" {
		io.WriteString(w, out.Script+"\n")
	}
	runner.RenderRejections(w, res.Rejections, limit)

	if n := len(res.Rejections); n > 0 {
		return fmt.Errorf("%w: %d of %d", errRowsRejected, n, res.Total)
	}
	return nil
}
