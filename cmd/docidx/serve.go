package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/docidx/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search over HTTP and MCP (foreground)",
	Long: `Serve search over HTTP and MCP.

The HTTP API listens on the configured server port (search, stats, purge,
health). The MCP server listens on the MCP port over streamable HTTP so
agent clients can use the search_documents tool. With --watch the indexer
also runs in the background at the configured interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		return runServer(cmd.Context(), watch)
	},
}

func init() {
	serveCmd.Flags().Bool("watch", false, "also index pending documents in the background")
}

func runServer(parent context.Context, watch bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	appHandler := api.NewAppHandler(api.AppDeps{
		Retriever: a.retriever,
		Stats:     a.vectors,
		Purger:    a,
		Token:     a.cfg.Server.APIToken,
	})
	httpAddr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := &http.Server{
		Addr:    httpAddr,
		Handler: appHandler,
	}

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Retriever: a.retriever,
		Stats:     a.vectors,
	})
	mcpAddr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.MCPPort)
	mcpHTTP := server.NewStreamableHTTPServer(mcpSrv)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		printStep("HTTP API listening on %s", httpAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		printStep("MCP server listening on %s", mcpAddr)
		if err := mcpHTTP.Start(mcpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})

	if watch {
		g.Go(func() error {
			printStep("Background indexing every %s", a.cfg.Indexing.WatchInterval)
			a.indexer.Watch(gCtx, a.cfg.Indexing.WatchInterval)
			return nil
		})
	}

	// Shut both listeners down once the signal arrives or either fails.
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var shutdownErr error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("http shutdown: %w", err)
		}
		if err := mcpHTTP.Shutdown(shutdownCtx); err != nil && shutdownErr == nil {
			shutdownErr = fmt.Errorf("mcp shutdown: %w", err)
		}
		return shutdownErr
	})

	if err := g.Wait(); err != nil {
		return err
	}
	printSuccess("Stopped")
	return nil
}
