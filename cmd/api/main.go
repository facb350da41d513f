package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elicit/internal/doc"
	"elicit/internal/gateway/config"
	"elicit/internal/gateway/handler"
	"elicit/internal/gateway/server"
	"elicit/internal/interview"
	"elicit/internal/llmclient"
	"elicit/internal/retrieval"
	"elicit/internal/schema"
	"elicit/internal/store/document"
	"elicit/internal/store/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	registry, err := loadSchemas(cfg.Schema.Dir)
	if err != nil {
		log.Fatalf("load role schemas: %v", err)
	}

	llm := buildLLM(cfg.LLM)
	if llm != nil {
		defer llm.Close()
	}

	sessionStore, err := session.NewFromEnv(cfg.Session.PostgresDSN, cfg.Session.Dir)
	if err != nil {
		log.Fatalf("init session store: %v", err)
	}
	documentStore := buildDocumentStore(cfg.Document)

	index, err := retrieval.NewIndex()
	if err != nil {
		log.Fatalf("init retrieval index: %v", err)
	}

	sessions := interview.NewRegistry(sessionStore)
	engine := interview.NewEngine(registry, interview.NewClassifier(llm), interview.NewGenerator(llm), index)
	svc := handler.NewService(engine, sessions, documentStore, index, doc.NewGenerator(llm))

	srv := server.New(cfg.Port, server.NewMux(svc))
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func loadSchemas(dir string) (*schema.Registry, error) {
	if dir != "" {
		return schema.Load(dir)
	}
	return schema.LoadDefault()
}

func buildLLM(cfg config.LLMConfig) llmclient.Client {
	switch cfg.Provider {
	case "gemini":
		client, err := llmclient.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Printf("gemini client unavailable, falling back to static catalogs: %v", err)
			return nil
		}
		return client
	case "mistral":
		client, err := llmclient.NewMistralClient(cfg.MistralAPIKey, cfg.MistralModel)
		if err != nil {
			log.Printf("mistral client unavailable, falling back to static catalogs: %v", err)
			return nil
		}
		return client
	default:
		log.Printf("no model backend configured, running on static catalogs")
		return nil
	}
}

func buildDocumentStore(cfg config.DocumentConfig) document.Store {
	if cfg.Endpoint != "" {
		store, err := document.NewS3Store(document.S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
		if err == nil {
			return store
		}
		log.Printf("s3 document store unavailable, using local directory: %v", err)
	}
	store, err := document.NewDirStore(cfg.Dir)
	if err != nil {
		log.Fatalf("init document store: %v", err)
	}
	return store
}
