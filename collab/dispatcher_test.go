package collab

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariannamethod/body/config"
	"github.com/ariannamethod/body/resonance"
	"github.com/ariannamethod/body/types"
)

// capturingRelay records every delivered message.
type capturingRelay struct {
	mu        sync.Mutex
	delivered []string
	fail      bool
	slow      time.Duration
}

func (r *capturingRelay) deliver(ctx context.Context, target types.TargetApp, tagged string) error {
	if r.slow > 0 {
		time.Sleep(r.slow)
	}
	if r.fail {
		return errors.New("relay unavailable")
	}
	r.mu.Lock()
	r.delivered = append(r.delivered, string(target)+": "+tagged)
	r.mu.Unlock()
	return nil
}

func newTestDispatcher(t *testing.T, log resonance.Log) (*Dispatcher, *capturingRelay) {
	t.Helper()

	relay := &capturingRelay{}
	cfg := config.DefaultCollabConfig()
	d := NewDispatcher(NewRelayTransport("relay", relay.deliver), log, cfg, zap.NewNop())
	return d, relay
}

func TestDispatch_PingPongAnswered(t *testing.T) {
	log := resonance.NewMemoryLog()
	d, relay := newTestDispatcher(t, log)
	ctx := context.Background()

	sent, err := d.Dispatch(ctx, "ping", types.TargetClaude)
	require.NoError(t, err)
	require.Len(t, sent, 1)

	assert.Equal(t, types.StatePending, sent[0].State)
	assert.Equal(t, "[Arianna] ping", sent[0].Tagged())
	require.Len(t, relay.delivered, 1)
	assert.Equal(t, "claude: [Arianna] ping", relay.delivered[0])

	answered, err := d.AcceptReply(ctx, types.TargetClaude, "pong")
	require.NoError(t, err)

	assert.Equal(t, sent[0].ID, answered.ID, "the reply correlates to the ping dispatch")
	assert.Equal(t, types.StateAnswered, answered.State)
	assert.Equal(t, "pong", answered.ReplyBody)
	require.NotNil(t, answered.ReceivedAt)
	assert.Nil(t, d.Pending(types.TargetClaude))

	dispatches, err := log.Recent(ctx, types.EntryDispatch, 10)
	require.NoError(t, err)
	require.Len(t, dispatches, 1)
	assert.Equal(t, sent[0].ID, dispatches[0].Ref)

	replies, err := log.Recent(ctx, types.EntryReply, 10)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, sent[0].ID, replies[0].Ref)
	assert.Contains(t, replies[0].Payload, `"direction":"inbound"`,
		"the reply entry records the inbound leg")
}

func TestDispatch_ConcurrentSameTargetAdmitsOne(t *testing.T) {
	d, relay := newTestDispatcher(t, resonance.NewMemoryLog())
	relay.slow = 20 * time.Millisecond
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Dispatch(ctx, "ping", types.TargetClaude)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var accepted, rejected int
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case types.GetErrorCode(err) == types.ErrDispatchPending:
			rejected++
		default:
			t.Fatalf("unexpected dispatch error: %v", err)
		}
	}
	assert.Equal(t, 1, accepted, "exactly one concurrent dispatch may win the pending slot")
	assert.Equal(t, 1, rejected)
	assert.Len(t, relay.delivered, 1, "the rejected dispatch must not reach the transport")
	require.NotNil(t, d.Pending(types.TargetClaude))
}

func TestDispatch_SecondDispatchWhilePendingRejected(t *testing.T) {
	d, relay := newTestDispatcher(t, resonance.NewMemoryLog())
	ctx := context.Background()

	_, err := d.Dispatch(ctx, "first", types.TargetClaude)
	require.NoError(t, err)

	_, err = d.Dispatch(ctx, "second", types.TargetClaude)
	require.Error(t, err)
	assert.Equal(t, types.ErrDispatchPending, types.GetErrorCode(err))
	assert.Len(t, relay.delivered, 1, "the rejected dispatch must not reach the transport")
}

func TestDispatch_MultipleTargetsGetDistinctIDs(t *testing.T) {
	d, _ := newTestDispatcher(t, resonance.NewMemoryLog())

	sent, err := d.Dispatch(context.Background(), "broadcast",
		types.TargetClaude, types.TargetGPT, types.TargetGemini)
	require.NoError(t, err)
	require.Len(t, sent, 3)

	ids := make(map[string]bool)
	for _, msg := range sent {
		assert.False(t, ids[msg.ID], "id %s assigned twice", msg.ID)
		ids[msg.ID] = true
		assert.NotNil(t, d.Pending(msg.Target))
	}
}

func TestDispatch_AtomicOverTargets(t *testing.T) {
	d, relay := newTestDispatcher(t, resonance.NewMemoryLog())
	ctx := context.Background()

	_, err := d.Dispatch(ctx, "first", types.TargetGPT)
	require.NoError(t, err)

	// gpt is busy, so the whole broadcast is rejected including claude
	_, err = d.Dispatch(ctx, "broadcast", types.TargetClaude, types.TargetGPT)
	require.Error(t, err)
	assert.Equal(t, types.ErrDispatchPending, types.GetErrorCode(err))
	assert.Nil(t, d.Pending(types.TargetClaude))
	assert.Len(t, relay.delivered, 1)
}

func TestDispatch_DeliveryFailureLeavesNothingPending(t *testing.T) {
	log := resonance.NewMemoryLog()
	d, relay := newTestDispatcher(t, log)
	relay.fail = true

	_, err := d.Dispatch(context.Background(), "lost", types.TargetClaude)
	require.Error(t, err)
	assert.Equal(t, types.ErrDeliveryFailed, types.GetErrorCode(err))
	assert.Nil(t, d.Pending(types.TargetClaude))

	// the failed attempt is still witnessed
	dispatches, err := log.Recent(context.Background(), types.EntryDispatch, 10)
	require.NoError(t, err)
	require.Len(t, dispatches, 1)
	assert.Contains(t, dispatches[0].Payload, `"delivered":false`)
}

func TestAcceptReply_NoPendingIsUnmatchedDialogue(t *testing.T) {
	log := resonance.NewMemoryLog()
	d, _ := newTestDispatcher(t, log)

	msg, err := d.AcceptReply(context.Background(), types.TargetGrok, "unsolicited thoughts")
	require.Error(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, types.ErrUnmatchedReply, types.GetErrorCode(err))

	dialogue, err := log.Recent(context.Background(), types.EntryDialogue, 10)
	require.NoError(t, err)
	require.Len(t, dialogue, 1, "an unmatched reply is logged, not dropped")
	assert.Equal(t, "unsolicited thoughts", dialogue[0].Payload)
}

func TestAcceptReply_LateReplyAfterExpiryIsUnmatched(t *testing.T) {
	log := resonance.NewMemoryLog()
	d, _ := newTestDispatcher(t, log)
	ctx := context.Background()

	base := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	sent, err := d.Dispatch(ctx, "ping", types.TargetClaude)
	require.NoError(t, err)

	// the clock moves past the correlation window before the sweeper runs
	d.now = func() time.Time { return base.Add(d.cfg.ExpiryWindow + time.Minute) }

	msg, err := d.AcceptReply(ctx, types.TargetClaude, "stale paste")
	require.Error(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, types.ErrUnmatchedReply, types.GetErrorCode(err))
	assert.Equal(t, types.StateExpired, sent[0].State)

	// the expired id accepts nothing later either
	_, err = d.AcceptReply(ctx, types.TargetClaude, "again")
	require.Error(t, err)
	assert.Equal(t, types.ErrUnmatchedReply, types.GetErrorCode(err))
}

func TestSweep_ExpiresOnlyPastWindow(t *testing.T) {
	d, _ := newTestDispatcher(t, resonance.NewMemoryLog())
	ctx := context.Background()

	base := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }
	_, err := d.Dispatch(ctx, "old", types.TargetClaude)
	require.NoError(t, err)

	d.now = func() time.Time { return base.Add(5 * time.Minute) }
	_, err = d.Dispatch(ctx, "fresh", types.TargetGPT)
	require.NoError(t, err)

	expired := d.Sweep(ctx, base.Add(d.cfg.ExpiryWindow+time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, types.TargetClaude, expired[0].Target)
	assert.Equal(t, types.StateExpired, expired[0].State)

	assert.Nil(t, d.Pending(types.TargetClaude))
	assert.NotNil(t, d.Pending(types.TargetGPT), "the fresh message survives the sweep")
}

func TestRestorePending_RebuildsFromLog(t *testing.T) {
	log := resonance.NewMemoryLog()
	ctx := context.Background()

	first, _ := newTestDispatcher(t, log)
	sentClaude, err := first.Dispatch(ctx, "unanswered", types.TargetClaude)
	require.NoError(t, err)
	_, err = first.Dispatch(ctx, "answered", types.TargetGPT)
	require.NoError(t, err)
	_, err = first.AcceptReply(ctx, types.TargetGPT, "done")
	require.NoError(t, err)

	// a fresh process with the same log
	second, _ := newTestDispatcher(t, log)
	require.NoError(t, second.RestorePending(ctx))

	restored := second.Pending(types.TargetClaude)
	require.NotNil(t, restored)
	assert.Equal(t, sentClaude[0].ID, restored.ID)
	assert.Equal(t, types.StatePending, restored.State)

	assert.Nil(t, second.Pending(types.TargetGPT), "an answered dispatch is not restored")
}

func TestStartSweeper_ExpiresInBackground(t *testing.T) {
	log := resonance.NewMemoryLog()
	relay := &capturingRelay{}
	cfg := config.DefaultCollabConfig()
	cfg.ExpiryWindow = 10 * time.Millisecond
	cfg.SweepInterval = 5 * time.Millisecond
	d := NewDispatcher(NewRelayTransport("relay", relay.deliver), log, cfg, zap.NewNop())

	_, err := d.Dispatch(context.Background(), "fleeting", types.TargetClaude)
	require.NoError(t, err)

	d.StartSweeper(context.Background())
	defer d.StopSweeper()

	assert.Eventually(t, func() bool {
		return d.Pending(types.TargetClaude) == nil
	}, time.Second, 5*time.Millisecond)
}
