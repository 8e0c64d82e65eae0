package sensors

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ariannamethod/body/config"
	"github.com/ariannamethod/body/types"
)

// Registry holds the configured channels, one per kind.
type Registry struct {
	channels map[types.ChannelKind]Channel
}

// NewRegistry builds the four standard channels from cfg, all sharing one
// runner.
func NewRegistry(cfg config.SensorsConfig, runner Runner, logger *zap.Logger) *Registry {
	return &Registry{
		channels: map[types.ChannelKind]Channel{
			types.ChannelCamera:        NewCamera(cfg.Camera.Command, cfg.Camera.Timeout, runner, logger),
			types.ChannelMicrophone:    NewMicrophone(cfg.Microphone.Command, cfg.Microphone.Timeout, runner, logger),
			types.ChannelGPS:           NewLocation(cfg.GPS.Command, cfg.GPS.Timeout, runner, logger),
			types.ChannelAccelerometer: NewMotion(cfg.Accelerometer.Command, cfg.Accelerometer.Timeout, runner, logger),
		},
	}
}

// Get returns the channel for kind.
func (r *Registry) Get(kind types.ChannelKind) (Channel, error) {
	ch, ok := r.channels[kind]
	if !ok {
		return nil, fmt.Errorf("no channel registered for kind %q", kind)
	}
	return ch, nil
}

// Kinds returns the registered channel kinds.
func (r *Registry) Kinds() []types.ChannelKind {
	kinds := make([]types.ChannelKind, 0, len(r.channels))
	for k := range r.channels {
		kinds = append(kinds, k)
	}
	return kinds
}

// Register replaces or adds a channel. Used by tests and by deployments
// with nonstandard capture utilities.
func (r *Registry) Register(ch Channel) {
	r.channels[ch.Kind()] = ch
}
