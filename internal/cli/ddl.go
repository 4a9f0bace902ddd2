package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2sql/internal/core"
)

func newDDLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddl [template...]",
		Short: "Print CREATE TABLE statements for templates",
		Example: `  sheet2sql ddl customers
  sheet2sql ddl --all > schema.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := appFrom(cmd).registry()
			if err != nil {
				return err
			}

			names := args
			if all, _ := cmd.Flags().GetBool("all"); all {
				names = nil
				for _, t := range reg.All() {
					names = append(names, t.Name)
				}
			}
			if len(names) == 0 {
				return errors.New("name at least one template or pass --all")
			}

			stmts := make([]string, 0, len(names))
			for _, name := range names {
				t, err := reg.Get(name)
				if err != nil {
					return err
				}
				p, err := core.NewPipeline(t)
				if err != nil {
					return err
				}
				stmts = append(stmts, p.CreateTableSQL())
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(stmts, "\n\n"))
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "every valid template")
	return cmd
}
