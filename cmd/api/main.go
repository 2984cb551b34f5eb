package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pressdesk/internal/attachparse"
	"pressdesk/internal/config"
	"pressdesk/internal/invoke"
	"pressdesk/internal/langfuse"
	"pressdesk/internal/llm"
	"pressdesk/internal/pipeline"
	"pressdesk/internal/prompt"
	"pressdesk/internal/runstore"
	"pressdesk/internal/trace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	llmCli, err := llm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		log.Fatal(err)
	}
	cli := llm.Wrap(llmCli, llm.Retry(3, 0), llm.WithLogging(nil))
	defer cli.Close()

	lf := langfuse.New(cfg.Langfuse.Host, cfg.Langfuse.PublicKey, cfg.Langfuse.SecretKey)
	if lf.Configured() {
		log.Printf("Langfuse connected: %s", cfg.Langfuse.Host)
	} else {
		log.Printf("Langfuse inactive; remote prompts and tracing disabled")
	}
	tracer := trace.NewEmitter(lf)

	store, err := runstore.NewFromEnv()
	if err != nil {
		log.Printf("run store unavailable: %v", err)
	}
	defer store.Close()

	orch := &pipeline.Orchestrator{
		Resolver: prompt.NewResolver(cfg.PromptDir, lf),
		Gateway:  invoke.New(cli, tracer),
		Tracer:   tracer,
		Parser:   attachparse.New(),
	}
	hub := newRunHub(orch, prompt.NewRegistry(cfg.PromptDir, lf), store)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prompts", hub.handleListPrompts)
	mux.HandleFunc("POST /api/runs", hub.handleStartRun)
	mux.HandleFunc("GET /api/runs/{id}", hub.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/ws", hub.handleRunLogWS)

	srv := NewServer(cfg.Port, mux)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
