// Package perception coordinates sensor captures: single-flight per channel,
// retry with linear backoff, artifact storage for file-producing channels,
// and a resonance log entry for every completed operation.
package perception

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariannamethod/body/artifacts"
	"github.com/ariannamethod/body/config"
	"github.com/ariannamethod/body/internal/metrics"
	"github.com/ariannamethod/body/resonance"
	"github.com/ariannamethod/body/sensors"
	"github.com/ariannamethod/body/types"
)

// Orchestrator owns the capture pipeline for all channels.
type Orchestrator struct {
	registry *sensors.Registry
	store    artifacts.Store
	log      resonance.Log
	cfg      config.SensorsConfig
	logger   *zap.Logger
	metrics  *metrics.Collector

	mu       sync.Mutex
	inflight map[types.ChannelKind]bool
}

// NewOrchestrator wires the capture pipeline together.
func NewOrchestrator(registry *sensors.Registry, store artifacts.Store, log resonance.Log, cfg config.SensorsConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		store:    store,
		log:      log,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "perception")),
		inflight: make(map[types.ChannelKind]bool),
	}
}

// WithMetrics attaches the metrics collector. Optional.
func (o *Orchestrator) WithMetrics(c *metrics.Collector) *Orchestrator {
	o.metrics = c
	return o
}

// perceptionRecord is the payload persisted with every perception entry.
type perceptionRecord struct {
	Status   types.CaptureStatus `json:"status"`
	Context  string              `json:"context,omitempty"`
	Attempts int                 `json:"attempts"`
	Data     map[string]string   `json:"data,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Perceive runs one capture on the named channel. The result always carries
// a terminal status; the error return is reserved for infrastructure
// problems (unknown channel, artifact or log persistence failure).
//
// A second Perceive on a channel that is already mid-capture does not queue:
// it returns a device-busy result immediately.
func (o *Orchestrator) Perceive(ctx context.Context, kind types.ChannelKind, contextLabel string, params map[string]string) (*types.CaptureResult, error) {
	channel, err := o.registry.Get(kind)
	if err != nil {
		return nil, err
	}

	req := types.NewCaptureRequest(kind, contextLabel, params)
	start := time.Now()

	if !o.tryAcquireFlight(kind) {
		o.logger.Warn("capture rejected, channel busy", zap.String("channel", string(kind)))
		if o.metrics != nil {
			o.metrics.RecordCapture(string(kind), string(types.CaptureDeviceBusy), 0, 0)
		}
		return &types.CaptureResult{
			Request:    req,
			Status:     types.CaptureDeviceBusy,
			CapturedAt: time.Now().UTC(),
			Err:        "channel already mid-capture",
		}, nil
	}
	defer o.releaseFlight(kind)

	result := o.acquireWithRetry(ctx, channel, req)
	if o.metrics != nil {
		o.metrics.RecordCapture(string(kind), string(result.Status), result.Attempts, time.Since(start))
	}

	if result.OK() {
		if producesFile, ext := channel.ProducesArtifact(); producesFile {
			artifact, err := o.store.Put(ctx, kind, result.CapturedAt, ext, result.Payload)
			if err != nil {
				return nil, err
			}
			if o.metrics != nil {
				o.metrics.RecordArtifact(string(kind), len(result.Payload))
			}
			result.ArtifactID = artifact.ID
			result.Payload = nil
		}
	}

	if err := o.record(ctx, result); err != nil {
		// A capture the log cannot witness did not happen as far as the
		// rest of the system is concerned.
		return nil, err
	}

	return result, nil
}

// acquireWithRetry runs capture attempts until a terminal status. Only
// timeout and device-busy are retried, with linear backoff between attempts.
func (o *Orchestrator) acquireWithRetry(ctx context.Context, channel sensors.Channel, req *types.CaptureRequest) *types.CaptureResult {
	cc := o.cfg.ByKind(channel.Kind())

	var result *types.CaptureResult
	for attempt := 1; attempt <= cc.Retries+1; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, channel.Timeout())
		result, _ = channel.Acquire(attemptCtx, req)
		cancel()

		result.Attempts = attempt

		fail := result.Failure()
		if fail == nil || !types.IsRetryable(fail) {
			break
		}
		if attempt > cc.Retries {
			break
		}

		delay := time.Duration(attempt) * cc.Backoff
		o.logger.Warn("capture attempt failed, retrying",
			zap.String("channel", string(channel.Kind())),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(fail),
		)

		select {
		case <-ctx.Done():
			return result
		case <-time.After(delay):
		}
	}

	if result.Status == types.CapturePermissionDenied {
		// name the missing permission so the client can render a
		// remediation hint next to the channel
		if perm := channel.NeedsPermission(); perm != "" {
			if result.Data == nil {
				result.Data = make(map[string]string)
			}
			result.Data["permission"] = perm
		}
	}

	return result
}

// record appends the perception entry for result.
func (o *Orchestrator) record(ctx context.Context, result *types.CaptureResult) error {
	payload, err := json.Marshal(perceptionRecord{
		Status:   result.Status,
		Context:  result.Request.Context,
		Attempts: result.Attempts,
		Data:     result.Data,
		Error:    result.Err,
	})
	if err != nil {
		return err
	}

	_, err = o.log.Append(ctx, &types.ResonanceEntry{
		Kind:    types.EntryPerception,
		Channel: string(result.Request.Channel),
		Ref:     result.ArtifactID,
		Payload: string(payload),
	})
	return err
}

// PerceiveMoment captures several channels concurrently, one result per
// channel. A channel whose pipeline fails outright is reported as a failed
// result rather than aborting its siblings.
func (o *Orchestrator) PerceiveMoment(ctx context.Context, contextLabel string, kinds ...types.ChannelKind) map[types.ChannelKind]*types.CaptureResult {
	var (
		mu      sync.Mutex
		results = make(map[types.ChannelKind]*types.CaptureResult, len(kinds))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		g.Go(func() error {
			result, err := o.Perceive(gctx, kind, contextLabel, nil)
			if err != nil {
				result = &types.CaptureResult{
					Request:    types.NewCaptureRequest(kind, contextLabel, nil),
					Status:     types.CaptureFailed,
					CapturedAt: time.Now().UTC(),
					Err:        err.Error(),
				}
			}
			mu.Lock()
			results[kind] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) tryAcquireFlight(kind types.ChannelKind) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[kind] {
		return false
	}
	o.inflight[kind] = true
	return true
}

func (o *Orchestrator) releaseFlight(kind types.ChannelKind) {
	o.mu.Lock()
	delete(o.inflight, kind)
	o.mu.Unlock()
}
