// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/pathwayprop/pathway/pkg/logging"
	"github.com/pathwayprop/pathway/services/analysis"
	"github.com/pathwayprop/pathway/services/documents"
	"github.com/pathwayprop/pathway/services/facts"
	"github.com/pathwayprop/pathway/services/gatekeeper"
	"github.com/pathwayprop/pathway/services/gatekeeper/rulesets"
	"github.com/pathwayprop/pathway/services/llm"
	"github.com/pathwayprop/pathway/services/orchestrator/observability"
	"github.com/pathwayprop/pathway/services/orchestrator/routes"
	"github.com/pathwayprop/pathway/services/rag"
	"github.com/pathwayprop/pathway/services/scoring"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "pathway-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("pathway-orchestrator")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newDocumentStore connects to Weaviate when WEAVIATE_SERVICE_URL is set
// and valid; otherwise it falls back to the in-process store so the
// service still comes up for fact-only analyses.
func newDocumentStore(ctx context.Context) documents.Store {
	weaviateURL := os.Getenv("WEAVIATE_SERVICE_URL")
	// Sanitize: trim quotes and whitespace in case the runtime passes them literally
	weaviateURL = strings.Trim(weaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set or empty. Running with the in-memory document store.")
		return documents.NewMemoryStore()
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid. Running with the in-memory document store.",
			"url", weaviateURL, "error", err)
		return documents.NewMemoryStore()
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client", "error", err)
		return documents.NewMemoryStore()
	}

	store := documents.NewWeaviateStore(client)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure Weaviate schema: %v", err)
	}
	slog.Info("Connected to Weaviate", "host", parsedURL.Host)
	return store
}

// newFactProviders wires the configured external fact sources. Missing
// endpoints degrade to incomplete facts rather than failing startup.
func newFactProviders() []facts.Provider {
	var providers []facts.Provider

	if spatialURL := os.Getenv("SPATIAL_SERVICE_URL"); spatialURL != "" {
		rps := 5.0
		if raw := os.Getenv("SPATIAL_SERVICE_RPS"); raw != "" {
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
				rps = parsed
			}
		}
		providers = append(providers, facts.NewSpatialProvider(spatialURL, rps))
	} else {
		slog.Warn("SPATIAL_SERVICE_URL not set; spatial facts will be reported incomplete")
	}

	// The yield provider is always registered: it derives gross_yield_pct
	// from the listing figures, consulting the valuation service only when
	// no asking price is given.
	var valuer facts.ValuationProvider
	if valuationURL := os.Getenv("VALUATION_SERVICE_URL"); valuationURL != "" {
		valuer = facts.NewHTTPValuationProvider(valuationURL)
	} else {
		slog.Warn("VALUATION_SERVICE_URL not set; yields require a listed asking price")
	}
	providers = append(providers, facts.NewYieldProvider(valuer))

	return providers
}

// loadRuleSet reads the gatekeeper rules from PATHWAY_RULES_PATH when set,
// falling back to the embedded Victorian defaults.
func loadRuleSet() (*gatekeeper.RuleSet, error) {
	if path := os.Getenv("PATHWAY_RULES_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		slog.Info("Loading gatekeeper rules", "path", path)
		return gatekeeper.Load(data)
	}
	return gatekeeper.Load(rulesets.VicDefault)
}

func main() {
	port := os.Getenv("ORCHESTRATOR_PORT")
	if port == "" {
		port = "9180"
	}

	appLogger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "orchestrator",
		JSON:    true,
		LogDir:  os.Getenv("PATHWAY_LOG_DIR"),
	})
	defer appLogger.Close()
	slog.SetDefault(appLogger.Slog())

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	store := newDocumentStore(context.Background())

	log.Println("Configuring the LLM client")
	llmClient, err := llm.NewClientFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	embedder, err := llm.NewEmbedderFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize embedder: %v", err)
	}

	pipeline := documents.NewPipeline(
		documents.NewChunker(documents.DefaultChunkerConfig()), embedder, store)
	ragEngine := rag.NewEngine(store, embedder, llmClient, rag.DefaultConfig())

	ruleSet, err := loadRuleSet()
	if err != nil {
		log.Fatalf("Failed to load gatekeeper rules: %v", err)
	}
	slog.Info("Gatekeeper rules loaded", "version", ruleSet.Version, "rules", len(ruleSet.Rules))
	gkEngine := gatekeeper.NewEngine(ruleSet, gatekeeper.DefaultEngineConfig())

	adapter := facts.NewAdapter(facts.DefaultAdapterConfig(), newFactProviders()...)

	runner := analysis.NewRunner(adapter, gkEngine, ragEngine,
		analysis.DefaultAnalyzers(), scoring.NewAggregator(nil))
	runner.SetObserver(func(a analysis.Analysis) {
		metrics.ActiveAnalyses.Dec()
		metrics.AnalysesTotal.WithLabelValues(string(a.Status)).Inc()
		metrics.AnalysisDurationSeconds.WithLabelValues(string(a.Status)).
			Observe(a.FinishedAt.Sub(a.StartedAt).Seconds())
		if a.Gatekeeper != nil {
			metrics.GatekeeperVerdictsTotal.WithLabelValues(string(a.Gatekeeper.Verdict)).Inc()
		}
	})

	router := gin.Default()
	router.Use(otelgin.Middleware("pathway-orchestrator"))

	routes.SetupRoutes(router, runner, pipeline, ragEngine, metrics)

	log.Println("Starting the orchestrator server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
