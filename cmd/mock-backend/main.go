// Command mock-backend runs a deterministic Chat Completions server for
// local development and demos. It answers refinement, formulation and
// code-generation requests with a fixed production-planning example, so
// the whole pipeline can be exercised without a language model.
//
// Point the ormodeler server at it with:
//
//	ORMODELER_PROVIDER=openai
//	ORMODELER_PROVIDER_URL=http://localhost:9090/v1
//	ORMODELER_MODEL=mock-model
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuss/ormodeler/pkg/provider/openai/openaitest"
	"github.com/rhuss/ormodeler/pkg/transport"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	backend := openaitest.New(openaitest.DefaultAnswers())
	srv := &http.Server{
		Addr: ":" + port,
		Handler: transport.Chain(
			transport.Recovery(),
			transport.Logging(slog.Default()),
		)(backend.Handler()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "model", openaitest.ModelName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
