package sensors

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ariannamethod/body/types"
)

const (
	defaultMicrophoneCommand = "termux-microphone-record"
	defaultRecordSeconds     = 5
)

// Microphone records a fixed-length audio clip through the OS recorder.
type Microphone struct {
	command string
	timeout time.Duration
	runner  Runner
	logger  *zap.Logger
}

// NewMicrophone creates the microphone channel.
func NewMicrophone(command string, timeout time.Duration, runner Runner, logger *zap.Logger) *Microphone {
	if command == "" {
		command = defaultMicrophoneCommand
	}
	return &Microphone{
		command: command,
		timeout: timeout,
		runner:  runner,
		logger:  logger.With(zap.String("component", "sensor_microphone")),
	}
}

func (m *Microphone) Kind() types.ChannelKind          { return types.ChannelMicrophone }
func (m *Microphone) Timeout() time.Duration           { return m.timeout }
func (m *Microphone) NeedsPermission() string          { return "android.permission.RECORD_AUDIO" }
func (m *Microphone) ProducesArtifact() (bool, string) { return true, "wav" }

// Acquire records one clip into a scratch file and returns its bytes.
// The "duration" request parameter sets the clip length in seconds; it is
// clamped below the channel timeout so the recorder can finish on its own.
func (m *Microphone) Acquire(ctx context.Context, req *types.CaptureRequest) (*types.CaptureResult, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	seconds := defaultRecordSeconds
	if v, err := strconv.Atoi(param(req, "duration", "")); err == nil && v > 0 {
		seconds = v
	}
	if max := int(m.timeout/time.Second) - 1; max > 0 && seconds > max {
		seconds = max
	}

	scratch, err := os.MkdirTemp("", "body-mic-")
	if err != nil {
		return failure(req, types.CaptureFailed, "scratch dir: "+err.Error()), nil
	}
	defer os.RemoveAll(scratch)

	clipPath := filepath.Join(scratch, "clip.wav")

	_, stderr, runErr := m.runner.Run(ctx, m.command,
		"-f", clipPath,
		"-d", strconv.Itoa(seconds),
	)

	if status, msg := classifyRunError(ctx, stderr, runErr); status != types.CaptureOK {
		m.logger.Warn("audio capture failed",
			zap.String("status", string(status)),
			zap.String("detail", msg),
		)
		return failure(req, status, msg), nil
	}

	data, err := os.ReadFile(clipPath)
	if err != nil || len(data) == 0 {
		return failure(req, types.CaptureFailed, "recorder produced no audio"), nil
	}

	result := success(req)
	result.Payload = data
	result.Data = map[string]string{"duration_s": strconv.Itoa(seconds)}
	m.logger.Debug("audio recorded", zap.Int("bytes", len(data)), zap.Int("seconds", seconds))
	return result, nil
}

// Ensure Microphone implements Channel
var _ Channel = (*Microphone)(nil)
