package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CreativeUnicorns/suiteprefs/api"
)

var serveAddr string

// serveCmd runs the HTTP API until SIGINT or SIGTERM.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the preference API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "listen-addr", "", "HTTP listen address (overrides server.host and server.port)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, lang := range a.cfg.I18n.Preload {
		a.i18n.LoadTranslationsAsync(ctx, lang)
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Server.Addr()
	}
	server, err := api.NewServer(api.Config{
		ListenAddress: addr,
		ReadTimeout:   a.cfg.Server.ReadTimeout,
		WriteTimeout:  a.cfg.Server.WriteTimeout,
		Store:         a.store,
		Theme:         a.theme,
		I18n:          a.i18n,
		Analytics:     a.analytics,
		Errors:        a.errors,
		Root:          a.root,
		Logger:        a.logger,
		Registry:      a.registry,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("Server exited gracefully")
	return nil
}
