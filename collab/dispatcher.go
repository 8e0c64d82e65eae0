package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariannamethod/body/config"
	"github.com/ariannamethod/body/internal/metrics"
	"github.com/ariannamethod/body/resonance"
	"github.com/ariannamethod/body/types"
)

// Dispatcher sends tagged messages to external AI applications and
// correlates inbound replies positionally: the most recent still-pending
// message per target wins. At most one pending message per target is the
// supported mode; while one is outstanding, further dispatches to that
// target are rejected.
type Dispatcher struct {
	transport MessageTransport
	log       resonance.Log
	cfg       config.CollabConfig
	logger    *zap.Logger
	metrics   *metrics.Collector

	now func() time.Time

	mu      sync.Mutex
	pending map[types.TargetApp]*types.CollaborationMessage

	sweepOnce sync.Once
	sweepStop chan struct{}
}

// NewDispatcher creates a dispatcher delivering through transport.
func NewDispatcher(transport MessageTransport, log resonance.Log, cfg config.CollabConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		log:       log,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "dispatcher")),
		now:       time.Now,
		pending:   make(map[types.TargetApp]*types.CollaborationMessage),
		sweepStop: make(chan struct{}),
	}
}

// WithMetrics attaches the metrics collector. Optional.
func (d *Dispatcher) WithMetrics(c *metrics.Collector) *Dispatcher {
	d.metrics = c
	return d
}

func (d *Dispatcher) recordPendingGauge(target types.TargetApp) {
	if d.metrics == nil {
		return
	}
	n := 0
	d.mu.Lock()
	if d.pending[target] != nil {
		n = 1
	}
	d.mu.Unlock()
	d.metrics.SetPending(string(target), n)
}

// Dispatch tags body with the configured persona and delivers it to every
// target. The check is atomic over all targets: if any of them still has a
// pending message, nothing is sent and the call fails with DISPATCH_PENDING.
func (d *Dispatcher) Dispatch(ctx context.Context, body string, targets ...types.TargetApp) ([]*types.CollaborationMessage, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("dispatch needs at least one target")
	}
	for _, target := range targets {
		if !target.Valid() {
			return nil, fmt.Errorf("unknown target app: %s", target)
		}
	}

	msgs := make([]*types.CollaborationMessage, len(targets))
	for i, target := range targets {
		msgs[i] = &types.CollaborationMessage{
			ID:        uuid.NewString(),
			Persona:   d.cfg.Persona,
			Target:    target,
			Body:      body,
			Direction: types.DirectionOutbound,
			State:     types.StatePending,
			SentAt:    d.now().UTC(),
		}
	}

	// check and reserve under one lock acquisition, so two concurrent
	// dispatches to the same target cannot both pass the check
	d.mu.Lock()
	for _, target := range targets {
		if p := d.pending[target]; p != nil {
			d.mu.Unlock()
			return nil, types.NewError(types.ErrDispatchPending,
				fmt.Sprintf("target %s still has pending message %s", target, p.ID))
		}
	}
	for i, target := range targets {
		d.pending[target] = msgs[i]
	}
	d.mu.Unlock()

	sent := make([]*types.CollaborationMessage, 0, len(targets))
	for i, target := range targets {
		msg := msgs[i]

		deliverCtx, cancel := context.WithTimeout(ctx, d.cfg.DeliverTimeout)
		deliverErr := d.transport.Deliver(deliverCtx, target, msg.Tagged())
		cancel()

		// every attempt is witnessed, delivered or not
		if err := d.recordDispatch(ctx, msg, deliverErr); err != nil {
			d.release(targets[i:], msgs[i:])
			return sent, err
		}
		if deliverErr != nil {
			if d.metrics != nil {
				d.metrics.RecordDispatch(string(target), "failed")
			}
			d.release(targets[i:], msgs[i:])
			return sent, deliverErr
		}

		if d.metrics != nil {
			d.metrics.RecordDispatch(string(target), "delivered")
		}
		d.recordPendingGauge(target)

		d.logger.Info("message dispatched",
			zap.String("id", msg.ID),
			zap.String("target", string(target)),
			zap.String("transport", d.transport.Name()),
		)
		sent = append(sent, msg)
	}

	return sent, nil
}

// release drops reservations that never became delivered messages. Identity
// is compared so a newer reservation taken in the meantime is left alone.
func (d *Dispatcher) release(targets []types.TargetApp, msgs []*types.CollaborationMessage) {
	d.mu.Lock()
	for i, target := range targets {
		if d.pending[target] == msgs[i] {
			delete(d.pending, target)
		}
	}
	d.mu.Unlock()
	for _, target := range targets {
		d.recordPendingGauge(target)
	}
}

// AcceptReply attributes raw inbound text to the pending message for
// target. With no live pending message the reply is not dropped: it is
// logged as an unmatched dialogue turn and the call returns UNMATCHED_REPLY.
func (d *Dispatcher) AcceptReply(ctx context.Context, target types.TargetApp, raw string) (*types.CollaborationMessage, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown target app: %s", target)
	}

	now := d.now().UTC()

	d.mu.Lock()
	msg := d.pending[target]
	if msg != nil && msg.ExpiredBy(now, d.cfg.ExpiryWindow) {
		// the sweeper has not come around yet; a stale paste must not be
		// attributed to the expired message
		msg.State = types.StateExpired
		delete(d.pending, target)
		msg = nil
	}
	if msg != nil {
		msg.State = types.StateAnswered
		msg.ReceivedAt = &now
		msg.ReplyBody = raw
		delete(d.pending, target)
	}
	d.mu.Unlock()

	if msg == nil {
		if d.metrics != nil {
			d.metrics.RecordReply(string(target), "unmatched")
		}
		if err := d.recordUnmatched(ctx, target, raw); err != nil {
			return nil, err
		}
		return nil, types.NewError(types.ErrUnmatchedReply,
			fmt.Sprintf("no pending message for target %s", target))
	}

	if d.metrics != nil {
		d.metrics.RecordReply(string(target), "matched")
	}
	d.recordPendingGauge(target)

	if err := d.recordReply(ctx, msg); err != nil {
		return nil, err
	}

	d.logger.Info("reply correlated",
		zap.String("id", msg.ID),
		zap.String("target", string(target)),
	)
	return msg, nil
}

// Sweep expires every pending message older than the correlation window.
// Returns the expired messages.
func (d *Dispatcher) Sweep(ctx context.Context, now time.Time) []*types.CollaborationMessage {
	d.mu.Lock()
	var expired []*types.CollaborationMessage
	for target, msg := range d.pending {
		if msg.ExpiredBy(now, d.cfg.ExpiryWindow) {
			msg.State = types.StateExpired
			delete(d.pending, target)
			expired = append(expired, msg)
		}
	}
	d.mu.Unlock()

	for _, msg := range expired {
		d.logger.Warn("pending message expired without reply",
			zap.String("id", msg.ID),
			zap.String("target", string(msg.Target)),
			zap.Duration("window", d.cfg.ExpiryWindow),
		)
		d.recordPendingGauge(msg.Target)
	}
	return expired
}

// StartSweeper runs the expiry sweep on the configured interval until
// StopSweeper or ctx cancellation.
func (d *Dispatcher) StartSweeper(ctx context.Context) {
	d.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(d.cfg.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-d.sweepStop:
					return
				case <-ticker.C:
					d.Sweep(ctx, d.now().UTC())
				}
			}
		}()
	})
}

// StopSweeper stops the background sweeper.
func (d *Dispatcher) StopSweeper() {
	select {
	case <-d.sweepStop:
	default:
		close(d.sweepStop)
	}
}

// Pending returns the pending message for target, or nil.
func (d *Dispatcher) Pending(target types.TargetApp) *types.CollaborationMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending[target]
}

// RestorePending rebuilds the pending set from the resonance log after a
// restart: delivered dispatches with no later reply, still inside the
// correlation window, become pending again.
func (d *Dispatcher) RestorePending(ctx context.Context) error {
	answered := make(map[string]bool)
	latest := make(map[types.TargetApp]*types.CollaborationMessage)

	var after uint64
	for {
		entries, err := d.log.After(ctx, after, 200)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			after = e.Seq
			switch e.Kind {
			case types.EntryReply:
				answered[e.Ref] = true
			case types.EntryDispatch:
				var rec dispatchRecord
				if err := json.Unmarshal([]byte(e.Payload), &rec); err != nil || !rec.Delivered {
					continue
				}
				latest[rec.Message.Target] = rec.Message
			}
		}
	}

	now := d.now().UTC()
	restored := 0

	d.mu.Lock()
	for target, msg := range latest {
		if answered[msg.ID] || msg.ExpiredBy(now, d.cfg.ExpiryWindow) {
			continue
		}
		d.pending[target] = msg
		restored++
	}
	d.mu.Unlock()

	if restored > 0 {
		d.logger.Info("pending correlations restored from log", zap.Int("count", restored))
	}
	return nil
}

// dispatchRecord is the payload persisted with every dispatch entry.
type dispatchRecord struct {
	Message   *types.CollaborationMessage `json:"message"`
	Delivered bool                        `json:"delivered"`
	Error     string                      `json:"error,omitempty"`
}

func (d *Dispatcher) recordDispatch(ctx context.Context, msg *types.CollaborationMessage, deliverErr error) error {
	rec := dispatchRecord{Message: msg, Delivered: deliverErr == nil}
	if deliverErr != nil {
		rec.Error = deliverErr.Error()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = d.log.Append(ctx, &types.ResonanceEntry{
		Kind:    types.EntryDispatch,
		Channel: string(msg.Target),
		Ref:     msg.ID,
		Payload: string(payload),
	})
	return err
}

func (d *Dispatcher) recordReply(ctx context.Context, msg *types.CollaborationMessage) error {
	// the logged leg is the inbound half of the exchange
	inbound := *msg
	inbound.Direction = types.DirectionInbound
	payload, err := json.Marshal(&inbound)
	if err != nil {
		return err
	}
	_, err = d.log.Append(ctx, &types.ResonanceEntry{
		Kind:    types.EntryReply,
		Channel: string(msg.Target),
		Ref:     msg.ID,
		Payload: string(payload),
	})
	return err
}

func (d *Dispatcher) recordUnmatched(ctx context.Context, target types.TargetApp, raw string) error {
	_, err := d.log.Append(ctx, &types.ResonanceEntry{
		Kind:    types.EntryDialogue,
		Channel: string(target),
		Payload: raw,
	})
	return err
}
