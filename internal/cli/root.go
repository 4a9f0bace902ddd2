// Package cli provides the sheet2sql command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2sql/internal/config"
	"github.com/JonMunkholm/sheet2sql/internal/core"
	"github.com/JonMunkholm/sheet2sql/internal/logging"
	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// Version is set at build time.
var Version = "dev"

type appKey struct{}

// app is the state PersistentPreRunE hands to subcommands.
type app struct {
	cfg *config.Config
	reg *schema.Registry
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheet2sql",
		Short: "Turn spreadsheets into validated SQL INSERT scripts",
		Long: `sheet2sql cleans, validates and formats CSV and XLSX files against
declarative templates and writes one INSERT statement per accepted row.

Templates live in a YAML registry file (see "sheet2sql templates init").
Settings come from the environment (SHEET2SQL_*, SERVER_*, UPLOAD_*, LOG_*)
and an optional .env file; flags override both.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pf := cmd.Root().PersistentFlags()
			overrideString(pf, "templates", &cfg.Pipeline.TemplatesFile)
			overrideString(pf, "log-level", &cfg.Logging.Level)
			overrideString(pf, "log-format", &cfg.Logging.Format)

			logging.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			core.TwoDigitYearPivot = cfg.Pipeline.TwoDigitYearPivot

			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{cfg: cfg}))
			return nil
		},
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.String("templates", "", "template registry file (default: templates.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")

	root.AddCommand(
		newRunCommand(),
		newValidateCommand(),
		newTemplatesCommand(),
		newDDLCommand(),
		newServeCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and prints a failure with its support code.
func Execute(ctx context.Context, stderr io.Writer) error {
	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if msg := core.MapError(err); msg.Code != "ERR000" {
			fmt.Fprintf(stderr, "  %s (Code: %s)\n", msg.Action, msg.Code)
		}
	}
	return err
}

func appFrom(cmd *cobra.Command) *app {
	if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
		return a
	}
	panic("cli: command run without PersistentPreRunE")
}

// registry loads the template file once per invocation.
func (a *app) registry() (*schema.Registry, error) {
	if a.reg != nil {
		return a.reg, nil
	}
	path := a.cfg.Pipeline.TemplatesFile
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("template file %s not found (create one with \"sheet2sql templates init\")", path)
	}
	reg, err := schema.Load(path)
	if err != nil {
		return nil, err
	}
	a.reg = reg
	return reg, nil
}
