/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and wires the
generation pipeline to its presentation callers.
*/
package server

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"

	"github.com/yamini7043/HealthCare-MediBotAI/internal/database"
	"github.com/yamini7043/HealthCare-MediBotAI/internal/geminiservice"
	"github.com/yamini7043/HealthCare-MediBotAI/internal/metrics"
	"github.com/yamini7043/HealthCare-MediBotAI/internal/pipeline"
)

// identifyCacheSize bounds the LRU of identification responses. Identical
// merged symptom text yields identical results, so caching is safe.
const identifyCacheSize = 256

// Server holds the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	// log is the structured logger shared by handlers.
	log zerolog.Logger

	// db is the optional consultation-history store; nil when disabled.
	db database.Service

	// pipeline is the generation core exposed by this API.
	pipeline *pipeline.Pipeline

	// metrics backs the /metrics route and stage instrumentation.
	metrics *metrics.Metrics

	// identifyCache serves repeated identification requests without a
	// model call.
	identifyCache *lru.Cache[string, pipeline.ConditionResult]
}

// NewServer initializes the application and returns a configured
// *http.Server. It reads configuration from environment variables and sets
// production-ready network timeouts. db may be nil (history disabled).
func NewServer(logger zerolog.Logger, db database.Service) *http.Server {
	// Attempt to parse port from environment; fallback to 8080 if not set or invalid.
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port == 0 {
		port = 8080
	}

	m := metrics.New()
	transport := geminiservice.NewGeminiTransport(logger)
	client := geminiservice.NewClient(logger, transport)

	cache, err := lru.New[string, pipeline.ConditionResult](identifyCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to build identify cache: %s", err))
	}

	newApp := &Server{
		port:          port,
		log:           logger,
		db:            db,
		pipeline:      pipeline.New(logger, client, pipeline.WithMetrics(m)),
		metrics:       m,
		identifyCache: cache,
	}

	// Configure the standard library http.Server with the application's router and timeouts.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(), // Injected from routes.go
		IdleTimeout:  time.Minute,             // Time to wait for the next request on keep-alive connections.
		ReadTimeout:  30 * time.Second,        // Maximum duration for reading the entire request (image bodies are large).
		WriteTimeout: 120 * time.Second,       // Maximum duration before timing out writes of the response.
	}

	return server
}
