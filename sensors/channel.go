// Package sensors wraps the on-device capture utilities (termux-api style
// commands) behind a uniform Channel contract. Each channel owns one OS
// capture primitive, declares its timeout and permission needs, and maps
// subprocess outcomes onto capture statuses.
package sensors

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/ariannamethod/body/types"
)

// Channel is one sensor modality backed by an external capture process.
type Channel interface {
	// Kind identifies the channel.
	Kind() types.ChannelKind

	// Timeout is the per-attempt deadline for this channel.
	Timeout() time.Duration

	// NeedsPermission names the runtime permission the capture utility
	// requires, or "" when none is needed.
	NeedsPermission() string

	// ProducesArtifact reports whether a successful capture yields file
	// bytes, and the file extension if so. Channels that return structured
	// readings report false.
	ProducesArtifact() (bool, string)

	// Acquire performs one capture attempt. The returned result always has
	// a terminal status; the error is non-nil only for invalid requests,
	// never for capture failures (those are statuses).
	Acquire(ctx context.Context, req *types.CaptureRequest) (*types.CaptureResult, error)
}

// ErrNilRequest is returned by Acquire for a nil capture request.
var ErrNilRequest = errors.New("sensors: nil capture request")

// permissionMarkers are the stderr fragments the Android capture utilities
// emit when a runtime permission grant is missing.
var permissionMarkers = [][]byte{
	[]byte("permission"),
	[]byte("Permission"),
	[]byte("SecurityException"),
}

// classifyRunError maps a finished capture process onto a capture status.
// Precedence: deadline beats everything (the process was killed, whatever
// it wrote is garbage), then permission denial, then plain failure.
func classifyRunError(ctx context.Context, stderr []byte, runErr error) (types.CaptureStatus, string) {
	if ctx.Err() == context.DeadlineExceeded || errors.Is(runErr, context.DeadlineExceeded) {
		return types.CaptureTimeout, "capture did not finish before deadline"
	}
	for _, marker := range permissionMarkers {
		if bytes.Contains(stderr, marker) {
			return types.CapturePermissionDenied, string(bytes.TrimSpace(stderr))
		}
	}
	if runErr != nil {
		msg := string(bytes.TrimSpace(stderr))
		if msg == "" {
			msg = runErr.Error()
		}
		return types.CaptureFailed, msg
	}
	return types.CaptureOK, ""
}

// failure builds a terminal non-ok result for req.
func failure(req *types.CaptureRequest, status types.CaptureStatus, msg string) *types.CaptureResult {
	return &types.CaptureResult{
		Request:    req,
		Status:     status,
		CapturedAt: time.Now().UTC(),
		Err:        msg,
	}
}

// success builds an ok result for req.
func success(req *types.CaptureRequest) *types.CaptureResult {
	return &types.CaptureResult{
		Request:    req,
		Status:     types.CaptureOK,
		CapturedAt: time.Now().UTC(),
	}
}

// param reads a request parameter with a fallback.
func param(req *types.CaptureRequest, key, fallback string) string {
	if req.Params != nil {
		if v, ok := req.Params[key]; ok && v != "" {
			return v
		}
	}
	return fallback
}
