package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2sql/internal/core"
	"github.com/JonMunkholm/sheet2sql/internal/schema"
	"github.com/JonMunkholm/sheet2sql/internal/workbook"
)

func newTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List, show, infer and scaffold templates",
	}
	cmd.AddCommand(
		newTemplatesListCommand(),
		newTemplatesShowCommand(),
		newTemplatesInferCommand(),
		newTemplatesInitCommand(),
	)
	return cmd
}

func newTemplatesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered templates, including invalid ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := appFrom(cmd).registry()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Template", "Table", "Fields", "File patterns", "Status"})
			for _, name := range reg.Names() {
				tmpl, err := reg.Get(name)
				if err != nil {
					t.AppendRow(table.Row{name, "", "", "", core.FormatUserError(err)})
					continue
				}
				t.AppendRow(table.Row{
					tmpl.Name, tmpl.TableName(), len(tmpl.Fields),
					strings.Join(tmpl.FilePatterns, ", "), "ok",
				})
			}
			t.Render()
			return nil
		},
	}
}

func newTemplatesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <template>",
		Short: "Print a template in registry file syntax",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := appFrom(cmd).registry()
			if err != nil {
				return err
			}
			tmpl, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			data, err := schema.MarshalYAML(*tmpl)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newTemplatesInferCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer <file>",
		Short: "Scaffold a template from a spreadsheet's header and sample rows",
		Long: `Scaffold a template from a spreadsheet. Each column gets the narrowest
type every sampled value fits. The result has no rules and every field is
nullable; edit it before adding it to the registry.`,
		Example: `  sheet2sql templates infer input/orders_2024.xlsx --name orders >> templates.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			sample, _ := cmd.Flags().GetInt("sample")
			if name == "" {
				base := filepath.Base(args[0])
				name = schema.Identifier(strings.TrimSuffix(base, filepath.Ext(base)))
			}

			tbl, err := workbook.ReadFile(args[0], workbook.ReadOptions{})
			if err != nil {
				return err
			}
			records := tbl.Records()
			if sample > 0 && len(records) > sample {
				records = records[:sample]
			}

			data, err := schema.MarshalYAML(core.InferTemplate(name, tbl.Headers, records))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().String("name", "", "template name (default: derived from the file name)")
	cmd.Flags().Int("sample", 200, "data rows inspected; 0 inspects all")
	return cmd
}

func newTemplatesInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter template registry file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := appFrom(cmd).cfg.Pipeline.TemplatesFile
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			starter := schema.Starter()
			data, err := schema.MarshalYAML(starter...)
			if err != nil {
				return err
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d templates to %s\n", len(starter), path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}
