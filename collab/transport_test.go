package collab

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariannamethod/body/types"
)

// recordingRunner captures every command invocation and fails the commands
// listed in failOn.
type recordingRunner struct {
	invocations [][]string
	failOn      map[string]bool
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.invocations = append(r.invocations, append([]string{name}, args...))
	if r.failOn[name] {
		return nil, []byte(name + " failed"), errors.New("exit status 1")
	}
	return nil, nil, nil
}

func testApps() map[string]string {
	return map[string]string{
		"claude": "com.anthropic.claude",
		"gpt":    "com.openai.chatgpt",
	}
}

func TestIntentTransport_ClipboardThenLaunch(t *testing.T) {
	runner := &recordingRunner{}
	tr := NewIntentTransport(testApps(), runner, zap.NewNop())

	err := tr.Deliver(context.Background(), types.TargetClaude, "[Arianna] hello")
	require.NoError(t, err)

	require.Len(t, runner.invocations, 2)
	assert.Equal(t, []string{"termux-clipboard-set", "[Arianna] hello"}, runner.invocations[0])
	assert.Equal(t, []string{"am", "start", "-n", "com.anthropic.claude/.MainActivity"}, runner.invocations[1])
}

func TestIntentTransport_FallsBackToShareSheet(t *testing.T) {
	runner := &recordingRunner{failOn: map[string]bool{"am": true}}
	tr := NewIntentTransport(testApps(), runner, zap.NewNop())

	err := tr.Deliver(context.Background(), types.TargetGPT, "[Arianna] hi")
	require.NoError(t, err)

	require.Len(t, runner.invocations, 3)
	assert.Equal(t, []string{"termux-open", "--send", "[Arianna] hi"}, runner.invocations[2])
}

func TestIntentTransport_UnknownTarget(t *testing.T) {
	tr := NewIntentTransport(testApps(), &recordingRunner{}, zap.NewNop())

	err := tr.Deliver(context.Background(), types.TargetGrok, "[Arianna] hi")
	require.Error(t, err)
	assert.Equal(t, types.ErrDeliveryFailed, types.GetErrorCode(err))
}

func TestIntentTransport_ClipboardFailureAborts(t *testing.T) {
	runner := &recordingRunner{failOn: map[string]bool{"termux-clipboard-set": true}}
	tr := NewIntentTransport(testApps(), runner, zap.NewNop())

	err := tr.Deliver(context.Background(), types.TargetClaude, "msg")
	require.Error(t, err)
	assert.Equal(t, types.ErrDeliveryFailed, types.GetErrorCode(err))
	assert.Len(t, runner.invocations, 1, "no launch after a failed clipboard handoff")
}

func TestClipboardTransport_SharesTaggedText(t *testing.T) {
	runner := &recordingRunner{}
	tr := NewClipboardTransport(runner, zap.NewNop())

	err := tr.Deliver(context.Background(), types.TargetGemini, "[Arianna] ping")
	require.NoError(t, err)

	require.Len(t, runner.invocations, 2)
	assert.Equal(t, []string{"termux-clipboard-set", "[Arianna] ping"}, runner.invocations[0])
	assert.Equal(t, []string{"termux-open", "--send", "[Arianna] ping"}, runner.invocations[1])
}

func TestRelayTransport_WrapsErrors(t *testing.T) {
	tr := NewRelayTransport("test-relay", func(ctx context.Context, target types.TargetApp, tagged string) error {
		return errors.New("relay down")
	})

	err := tr.Deliver(context.Background(), types.TargetClaude, "msg")
	require.Error(t, err)
	assert.Equal(t, types.ErrDeliveryFailed, types.GetErrorCode(err))
	assert.Equal(t, "test-relay", tr.Name())
}
