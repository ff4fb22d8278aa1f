package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/covid-pipeline/pkg/api"
	"github.com/hazyhaar/covid-pipeline/pkg/pipeline"
)

func (a *app) deps() api.Deps {
	return api.Deps{
		Runner: a.runner,
		Runs:   a.runs,
		Units:  a.units,
		Tables: api.DuckDBTables{Path: a.cfg.Ingestion.DBPath},
	}
}

func cmdServe(ctx context.Context, args []string) error {
	fs, cfgPath, debug := commonFlags("serve")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	return withApp(*cfgPath, *debug, func(a *app) error {
		if *addr != "" {
			a.cfg.Addr = *addr
		}
		srv := &http.Server{
			Addr:              a.cfg.Addr,
			Handler:           api.NewRouter(a.deps(), a.registry),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if a.cfg.CheckInterval > 0 {
			checker := pipeline.NewChecker(&a.cfg.Ingestion, a.runs, a.metrics, a.logger, a.cfg.CheckInterval)
			go checker.Start(ctx)
		}

		errc := make(chan error, 1)
		go func() {
			a.logger.Info("covid pipeline listening", "addr", a.cfg.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			if err != nil {
				a.logger.Error("server error", "error", err)
				return err
			}
		case <-ctx.Done():
		}

		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func cmdMCP(ctx context.Context, args []string) error {
	fs, cfgPath, debug := commonFlags("mcp")
	fs.Parse(args)

	return withApp(*cfgPath, *debug, func(a *app) error {
		srv := server.NewMCPServer("covid-pipeline", "1.0.0", server.WithToolCapabilities(false))
		api.RegisterMCPTools(srv, a.deps())

		a.logger.Info("serving MCP over stdio")
		stdio := server.NewStdioServer(srv)
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("mcp server", "error", err)
			return err
		}
		return nil
	})
}
