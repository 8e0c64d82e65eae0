package sensors

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ariannamethod/body/types"
)

const defaultCameraCommand = "termux-camera-photo"

// Camera captures a single photo through the OS camera utility.
type Camera struct {
	command string
	timeout time.Duration
	runner  Runner
	logger  *zap.Logger
}

// NewCamera creates the camera channel. An empty command selects the
// platform default utility.
func NewCamera(command string, timeout time.Duration, runner Runner, logger *zap.Logger) *Camera {
	if command == "" {
		command = defaultCameraCommand
	}
	return &Camera{
		command: command,
		timeout: timeout,
		runner:  runner,
		logger:  logger.With(zap.String("component", "sensor_camera")),
	}
}

func (c *Camera) Kind() types.ChannelKind          { return types.ChannelCamera }
func (c *Camera) Timeout() time.Duration           { return c.timeout }
func (c *Camera) NeedsPermission() string          { return "android.permission.CAMERA" }
func (c *Camera) ProducesArtifact() (bool, string) { return true, "jpg" }

// Acquire shoots one photo into a scratch file and returns its bytes.
// The "facing" request parameter selects the camera id (0 = back).
func (c *Camera) Acquire(ctx context.Context, req *types.CaptureRequest) (*types.CaptureResult, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	scratch, err := os.MkdirTemp("", "body-camera-")
	if err != nil {
		return failure(req, types.CaptureFailed, "scratch dir: "+err.Error()), nil
	}
	defer os.RemoveAll(scratch)

	photoPath := filepath.Join(scratch, "frame.jpg")
	facing := param(req, "facing", "0")

	_, stderr, runErr := c.runner.Run(ctx, c.command, "-c", facing, photoPath)

	if status, msg := classifyRunError(ctx, stderr, runErr); status != types.CaptureOK {
		c.logger.Warn("photo capture failed",
			zap.String("status", string(status)),
			zap.String("detail", msg),
		)
		return failure(req, status, msg), nil
	}

	data, err := os.ReadFile(photoPath)
	if err != nil || len(data) == 0 {
		return failure(req, types.CaptureFailed, "capture utility produced no image"), nil
	}

	result := success(req)
	result.Payload = data
	c.logger.Debug("photo captured", zap.Int("bytes", len(data)), zap.String("facing", facing))
	return result, nil
}

// Ensure Camera implements Channel
var _ Channel = (*Camera)(nil)
