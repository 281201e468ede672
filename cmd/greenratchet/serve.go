package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the evaluation API and Prometheus metrics over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runServe(cmd.Context())
		},
	}
	cmd.Flags().String("listen", ":8080", "address to listen on")
	_ = c.v.BindPFlag("http.listen", cmd.Flags().Lookup("listen"))
	return cmd
}

func (c *cli) runServe(ctx context.Context) error {
	e, err := c.openEngine(ctx, engineOptions{persist: true})
	if err != nil {
		return err
	}
	defer logClose(c.logger, e)

	handler := server.New(e.evaluator, c.logger, server.Config{
		ProjectionMonths: c.cfg.Engine.ProjectionMonths,
		Gatherer:         e.registry,
		History:          e.repos.Results,
	})
	srv := &http.Server{
		Addr:              c.cfg.HTTP.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(signalChan)
		select {
		case sig := <-signalChan:
			c.logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			c.logger.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	c.logger.Info().
		Str("addr", c.cfg.HTTP.Listen).
		Str("database", c.cfg.Database.Driver).
		Str("cache", c.cfg.Cache.Backend).
		Msg("Starting greenratchet API")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone
	return nil
}
