package sensors

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ariannamethod/body/types"
)

const defaultLocationCommand = "termux-location"

// Location resolves one GPS fix through the OS location utility. It is a
// structured-data channel: no artifact is produced.
type Location struct {
	command string
	timeout time.Duration
	runner  Runner
	logger  *zap.Logger
}

// NewLocation creates the GPS channel.
func NewLocation(command string, timeout time.Duration, runner Runner, logger *zap.Logger) *Location {
	if command == "" {
		command = defaultLocationCommand
	}
	return &Location{
		command: command,
		timeout: timeout,
		runner:  runner,
		logger:  logger.With(zap.String("component", "sensor_gps")),
	}
}

func (l *Location) Kind() types.ChannelKind          { return types.ChannelGPS }
func (l *Location) Timeout() time.Duration           { return l.timeout }
func (l *Location) NeedsPermission() string          { return "android.permission.ACCESS_FINE_LOCATION" }
func (l *Location) ProducesArtifact() (bool, string) { return false, "" }

// locationFix is the JSON shape the location utility prints on success.
type locationFix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Altitude  float64 `json:"altitude"`
	Provider  string  `json:"provider"`
}

// Acquire requests one fix. The "provider" request parameter selects the
// location source (gps, network, passive); gps is the default.
func (l *Location) Acquire(ctx context.Context, req *types.CaptureRequest) (*types.CaptureResult, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	provider := param(req, "provider", "gps")

	stdout, stderr, runErr := l.runner.Run(ctx, l.command, "-p", provider)

	if status, msg := classifyRunError(ctx, stderr, runErr); status != types.CaptureOK {
		l.logger.Warn("location fix failed",
			zap.String("status", string(status)),
			zap.String("detail", msg),
		)
		return failure(req, status, msg), nil
	}

	var fix locationFix
	if err := json.Unmarshal(stdout, &fix); err != nil || len(stdout) == 0 {
		return failure(req, types.CaptureFailed, "location utility returned no fix"), nil
	}

	result := success(req)
	result.Data = map[string]string{
		"latitude":  strconv.FormatFloat(fix.Latitude, 'f', -1, 64),
		"longitude": strconv.FormatFloat(fix.Longitude, 'f', -1, 64),
		"accuracy":  strconv.FormatFloat(fix.Accuracy, 'f', -1, 64),
		"altitude":  strconv.FormatFloat(fix.Altitude, 'f', -1, 64),
		"provider":  fix.Provider,
	}
	l.logger.Debug("location fix acquired",
		zap.Float64("accuracy_m", fix.Accuracy),
		zap.String("provider", fix.Provider),
	)
	return result, nil
}

// Ensure Location implements Channel
var _ Channel = (*Location)(nil)
