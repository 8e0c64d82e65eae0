package sensors

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ariannamethod/body/types"
)

const (
	defaultMotionCommand = "termux-sensor"
	accelerometerSensor  = "accelerometer"
)

// Motion reads a single accelerometer sample through the OS sensor utility.
// Structured-data channel, no permission grant required.
type Motion struct {
	command string
	timeout time.Duration
	runner  Runner
	logger  *zap.Logger
}

// NewMotion creates the accelerometer channel.
func NewMotion(command string, timeout time.Duration, runner Runner, logger *zap.Logger) *Motion {
	if command == "" {
		command = defaultMotionCommand
	}
	return &Motion{
		command: command,
		timeout: timeout,
		runner:  runner,
		logger:  logger.With(zap.String("component", "sensor_accelerometer")),
	}
}

func (m *Motion) Kind() types.ChannelKind          { return types.ChannelAccelerometer }
func (m *Motion) Timeout() time.Duration           { return m.timeout }
func (m *Motion) NeedsPermission() string          { return "" }
func (m *Motion) ProducesArtifact() (bool, string) { return false, "" }

// Acquire takes one sample. The sensor utility keys its JSON output by the
// device-specific sensor name, so the first entry with three values wins.
func (m *Motion) Acquire(ctx context.Context, req *types.CaptureRequest) (*types.CaptureResult, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	stdout, stderr, runErr := m.runner.Run(ctx, m.command,
		"-s", accelerometerSensor,
		"-n", "1",
	)

	if status, msg := classifyRunError(ctx, stderr, runErr); status != types.CaptureOK {
		m.logger.Warn("accelerometer read failed",
			zap.String("status", string(status)),
			zap.String("detail", msg),
		)
		return failure(req, status, msg), nil
	}

	var readings map[string]struct {
		Values []float64 `json:"values"`
	}
	if err := json.Unmarshal(stdout, &readings); err != nil {
		return failure(req, types.CaptureFailed, "sensor utility returned no sample"), nil
	}

	for _, r := range readings {
		if len(r.Values) < 3 {
			continue
		}
		result := success(req)
		result.Data = map[string]string{
			"x": strconv.FormatFloat(r.Values[0], 'f', -1, 64),
			"y": strconv.FormatFloat(r.Values[1], 'f', -1, 64),
			"z": strconv.FormatFloat(r.Values[2], 'f', -1, 64),
		}
		m.logger.Debug("accelerometer sample acquired")
		return result, nil
	}

	return failure(req, types.CaptureFailed, "sensor utility returned no sample"), nil
}

// Ensure Motion implements Channel
var _ Channel = (*Motion)(nil)
