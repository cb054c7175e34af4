package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/finboard/backend/internal/api"
	"github.com/finboard/backend/internal/auth"
	"github.com/finboard/backend/internal/categorize"
	"github.com/finboard/backend/internal/detect"
	"github.com/finboard/backend/internal/logger"
	"github.com/finboard/backend/internal/service"
	"github.com/finboard/backend/internal/store"
)

const localDevUser = "local-dev-user"

func main() {
	log := logger.New()
	ctx := context.Background()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8111"
	}

	useMemoryStore := os.Getenv("USE_MEMORY_STORE") == "true" || os.Getenv("ENV") == "local"
	skipAuth := os.Getenv("SKIP_AUTH") == "true"

	// Detection policy: embedded defaults unless a YAML override is given.
	cfg := detect.DefaultConfig()
	if path := os.Getenv("DETECT_CONFIG"); path != "" {
		var err error
		cfg, err = detect.LoadConfig(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("[server] failed to load detection config")
		}
		log.Info().Str("path", path).Msg("[server] loaded detection config override")
	}

	var st store.Store
	var authMiddleware func(http.Handler) http.Handler

	if useMemoryStore {
		log.Info().Msg("[server] using in-memory store for local development")
		st = store.NewMemoryStore()
		authMiddleware = auth.LocalDev(localDevUser)
	} else {
		projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
		if projectID == "" {
			log.Fatal().Msg("[server] GOOGLE_CLOUD_PROJECT is required when not using the memory store")
		}

		firestoreClient, err := firestore.NewClient(ctx, projectID)
		if err != nil {
			log.Fatal().Err(err).Msg("[server] failed to create firestore client")
		}
		defer firestoreClient.Close()
		st = store.NewFirestoreStore(firestoreClient)

		if skipAuth {
			log.Warn().Msg("[server] SKIP_AUTH enabled, using fixed user (seeding/testing only)")
			authMiddleware = auth.LocalDev(localDevUser)
		} else {
			m, err := auth.NewMiddleware(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("[server] failed to initialize firebase auth")
			}
			authMiddleware = m.RequireAuth
		}
	}

	// Remote categorizer is optional; without an API key imports fall back
	// to the local rule table.
	var remote categorize.Categorizer
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		g, err := categorize.NewGeminiCategorizer(ctx, apiKey)
		if err != nil {
			log.Fatal().Err(err).Msg("[server] failed to create gemini categorizer")
		}
		remote = g
		log.Info().Msg("[server] gemini categorizer enabled")
	}
	chain := categorize.NewChain(remote, categorize.NewRuleCategorizer(), log)

	subscriptions := service.NewSubscriptionService(st, cfg, log)
	imports := service.NewImportService(st, chain, log)
	handler := api.NewHandler(imports, subscriptions, log)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:1234",
			"http://127.0.0.1:1234",
			"https://*.vercel.app",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"User-Agent",
		},
		AllowCredentials: true,
	})

	// Health stays outside the auth middleware so load balancers can probe
	// without a token.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("/v1/", authMiddleware(handler.Routes()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}

	log.Info().Str("port", port).Msg("[server] starting")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("[server] server stopped")
	}
}
