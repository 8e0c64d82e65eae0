// Package collab multiplexes persona-tagged messages out to third-party AI
// applications and correlates the human-mediated replies that come back.
// Delivery is best-effort over OS inter-app mechanisms; correlation is
// positional (most recent pending message per target), because the target
// apps never echo a correlation id.
package collab

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariannamethod/body/sensors"
	"github.com/ariannamethod/body/types"
)

// MessageTransport hands one tagged message to a target application.
// Implementations differ only in the OS mechanism; the dispatcher's
// correlation logic never depends on which transport carried a message.
type MessageTransport interface {
	Name() string
	Deliver(ctx context.Context, target types.TargetApp, tagged string) error
}

const (
	clipboardSetCommand = "termux-clipboard-set"
	shareCommand        = "termux-open"
	activityManager     = "am"
)

// IntentTransport copies the message to the clipboard and launches the
// target application directly. When the launch fails (app not installed,
// activity renamed) it falls back to the generic share sheet.
type IntentTransport struct {
	apps   map[string]string // target name -> android package
	runner sensors.Runner
	logger *zap.Logger
}

// NewIntentTransport creates the direct-intent transport. apps maps target
// names to Android package names.
func NewIntentTransport(apps map[string]string, runner sensors.Runner, logger *zap.Logger) *IntentTransport {
	return &IntentTransport{
		apps:   apps,
		runner: runner,
		logger: logger.With(zap.String("component", "intent_transport")),
	}
}

func (t *IntentTransport) Name() string { return "intent" }

// Deliver implements MessageTransport.
func (t *IntentTransport) Deliver(ctx context.Context, target types.TargetApp, tagged string) error {
	pkg, ok := t.apps[string(target)]
	if !ok {
		return types.NewError(types.ErrDeliveryFailed,
			fmt.Sprintf("no package mapping for target %q", target))
	}

	// The receiving app has no inbox we can write to; the clipboard is the
	// handoff surface, the launch just brings the app forward.
	if _, stderr, err := t.runner.Run(ctx, clipboardSetCommand, tagged); err != nil {
		return types.NewError(types.ErrDeliveryFailed, "clipboard handoff failed: "+string(stderr)).WithCause(err)
	}

	if _, stderr, err := t.runner.Run(ctx, activityManager, "start", "-n", pkg+"/.MainActivity"); err != nil {
		t.logger.Warn("direct launch failed, falling back to share sheet",
			zap.String("target", string(target)),
			zap.String("stderr", string(stderr)),
		)
		if _, stderr, err := t.runner.Run(ctx, shareCommand, "--send", tagged); err != nil {
			return types.NewError(types.ErrDeliveryFailed, "share fallback failed: "+string(stderr)).WithCause(err)
		}
	}

	t.logger.Info("message delivered",
		zap.String("target", string(target)),
		zap.Int("chars", len(tagged)),
	)
	return nil
}

// ClipboardTransport skips the direct launch entirely and always goes
// through the share sheet. Useful when target packages are unknown.
type ClipboardTransport struct {
	runner sensors.Runner
	logger *zap.Logger
}

// NewClipboardTransport creates the share-sheet transport.
func NewClipboardTransport(runner sensors.Runner, logger *zap.Logger) *ClipboardTransport {
	return &ClipboardTransport{
		runner: runner,
		logger: logger.With(zap.String("component", "clipboard_transport")),
	}
}

func (t *ClipboardTransport) Name() string { return "clipboard" }

// Deliver implements MessageTransport.
func (t *ClipboardTransport) Deliver(ctx context.Context, target types.TargetApp, tagged string) error {
	if _, stderr, err := t.runner.Run(ctx, clipboardSetCommand, tagged); err != nil {
		return types.NewError(types.ErrDeliveryFailed, "clipboard handoff failed: "+string(stderr)).WithCause(err)
	}
	if _, stderr, err := t.runner.Run(ctx, shareCommand, "--send", tagged); err != nil {
		return types.NewError(types.ErrDeliveryFailed, "share sheet failed: "+string(stderr)).WithCause(err)
	}
	t.logger.Info("message shared", zap.String("target", string(target)))
	return nil
}

// RelayTransport delivers through an injected function. It backs the
// accessibility-relay integration and test doubles.
type RelayTransport struct {
	name  string
	relay func(ctx context.Context, target types.TargetApp, tagged string) error
}

// NewRelayTransport wraps relay as a transport.
func NewRelayTransport(name string, relay func(ctx context.Context, target types.TargetApp, tagged string) error) *RelayTransport {
	return &RelayTransport{name: name, relay: relay}
}

func (t *RelayTransport) Name() string { return t.name }

// Deliver implements MessageTransport.
func (t *RelayTransport) Deliver(ctx context.Context, target types.TargetApp, tagged string) error {
	if err := t.relay(ctx, target, tagged); err != nil {
		return types.NewError(types.ErrDeliveryFailed, "relay delivery failed").WithCause(err)
	}
	return nil
}

// Ensure all transports implement MessageTransport
var (
	_ MessageTransport = (*IntentTransport)(nil)
	_ MessageTransport = (*ClipboardTransport)(nil)
	_ MessageTransport = (*RelayTransport)(nil)
)
