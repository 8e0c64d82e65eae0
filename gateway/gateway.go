// Package gateway is the local HTTP surface of the bridge: a stateless
// request/response shim between one companion client and the reasoning
// collaborator. The wire contract is deliberately thin — raw UTF-8 text in,
// raw UTF-8 text out, one message per turn — and the gateway never exposes
// the bridge's internal capture or collaboration structures.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ariannamethod/body/collab"
	"github.com/ariannamethod/body/config"
	"github.com/ariannamethod/body/internal/metrics"
	"github.com/ariannamethod/body/perception"
	"github.com/ariannamethod/body/resonance"
	"github.com/ariannamethod/body/types"
)

// Responder is the reasoning collaborator: it turns one user text into one
// reply text. The engine behind it is out of scope here; the bridge only
// carries its words.
type Responder interface {
	Respond(ctx context.Context, userText string) (string, error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, userText string) (string, error)

// Respond implements Responder.
func (f ResponderFunc) Respond(ctx context.Context, userText string) (string, error) {
	return f(ctx, userText)
}

// Gateway serves the bridge's HTTP endpoints.
type Gateway struct {
	responder    Responder
	orchestrator *perception.Orchestrator
	dispatcher   *collab.Dispatcher
	log          resonance.Log
	collector    *metrics.Collector
	gatherer     prometheus.Gatherer
	cfg          config.ServerConfig
	logger       *zap.Logger

	startedAt time.Time
}

// New creates the gateway.
func New(
	responder Responder,
	orchestrator *perception.Orchestrator,
	dispatcher *collab.Dispatcher,
	log resonance.Log,
	collector *metrics.Collector,
	gatherer prometheus.Gatherer,
	cfg config.ServerConfig,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		responder:    responder,
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		log:          log,
		collector:    collector,
		gatherer:     gatherer,
		cfg:          cfg,
		logger:       logger.With(zap.String("component", "gateway")),
		startedAt:    time.Now().UTC(),
	}
}

// Handler builds the full HTTP handler: routes plus the middleware chain.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", g.handleChat)
	mux.HandleFunc("GET /history", g.handleHistory)
	mux.HandleFunc("GET /status", g.handleStatus)
	mux.HandleFunc("GET /health", g.handleHealth)
	if g.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
	}

	middlewares := []Middleware{
		Recovery(g.logger),
		RequestLogger(g.logger),
	}
	if g.cfg.RateLimitRPS > 0 {
		middlewares = append(middlewares, RateLimit(g.cfg.RateLimitRPS, g.cfg.RateLimitBurst))
	}
	if g.collector != nil {
		middlewares = append(middlewares, MetricsMiddleware(g.collector))
	}
	return Chain(mux, middlewares...)
}

// pendingTargets snapshots which targets currently hold a pending message.
func (g *Gateway) pendingTargets() map[string]string {
	pending := make(map[string]string)
	if g.dispatcher == nil {
		return pending
	}
	for _, target := range []types.TargetApp{
		types.TargetClaude, types.TargetGPT, types.TargetGemini,
		types.TargetPerplexity, types.TargetGrok,
	} {
		if msg := g.dispatcher.Pending(target); msg != nil {
			pending[string(target)] = msg.ID
		}
	}
	return pending
}
