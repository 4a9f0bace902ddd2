package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2sql/internal/web"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transform API over HTTP",
		Long: `Serve the template registry and one-shot transforms over HTTP:

  GET  /healthz
  GET  /api/templates
  GET  /api/templates/{name}        (?format=yaml)
  GET  /api/templates/{name}/ddl
  POST /api/transform[/{name}]      (?output=json|sql|cleaned)

Stops on interrupt, waiting for in-flight transforms.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("host", "", "interface to bind (default: 0.0.0.0)")
	cmd.Flags().Int("port", 0, "port to listen on (default: 8080)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a := appFrom(cmd)
	overrideString(cmd.Flags(), "host", &a.cfg.Server.Host)
	overrideInt(cmd.Flags(), "port", &a.cfg.Server.Port)
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	reg, err := a.registry()
	if err != nil {
		return err
	}

	slog.Info("configuration loaded", "config", a.cfg.String())
	srv := web.NewServer(reg, a.cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	slog.Info("shutting down", "timeout", a.cfg.Server.ShutdownTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
