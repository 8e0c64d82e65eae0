package types

import "time"

// ChannelKind identifies one sensor modality and its OS capture primitive.
type ChannelKind string

const (
	ChannelCamera        ChannelKind = "camera"
	ChannelMicrophone    ChannelKind = "microphone"
	ChannelGPS           ChannelKind = "gps"
	ChannelAccelerometer ChannelKind = "accelerometer"
)

// Valid reports whether the channel kind is one the bridge knows about.
func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelCamera, ChannelMicrophone, ChannelGPS, ChannelAccelerometer:
		return true
	}
	return false
}

// CaptureStatus is the terminal outcome of a capture attempt.
type CaptureStatus string

const (
	CaptureOK               CaptureStatus = "ok"
	CaptureTimeout          CaptureStatus = "timeout"
	CapturePermissionDenied CaptureStatus = "permission-denied"
	CaptureDeviceBusy       CaptureStatus = "device-busy"
	CaptureFailed           CaptureStatus = "failed"
)

// CaptureRequest describes one sensor acquisition. Immutable after creation.
type CaptureRequest struct {
	Channel     ChannelKind       `json:"channel"`
	Params      map[string]string `json:"params,omitempty"`
	Context     string            `json:"context,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
}

// NewCaptureRequest creates a capture request stamped with the current time.
func NewCaptureRequest(channel ChannelKind, contextLabel string, params map[string]string) *CaptureRequest {
	return &CaptureRequest{
		Channel:     channel,
		Params:      params,
		Context:     contextLabel,
		RequestedAt: time.Now().UTC(),
	}
}

// CaptureResult is produced exactly once per CaptureRequest.
// ArtifactID is set only for file-producing channels on success;
// Data carries structured readings (GPS fix, accelerometer axes).
type CaptureResult struct {
	Request    *CaptureRequest   `json:"request"`
	Status     CaptureStatus     `json:"status"`
	ArtifactID string            `json:"artifact_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	// Payload carries the raw captured bytes between the channel and the
	// artifact store. It never leaves the process.
	Payload    []byte    `json:"-"`
	Attempts   int       `json:"attempts,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
	Err        string    `json:"error,omitempty"`
}

// OK reports whether the capture succeeded.
func (r *CaptureResult) OK() bool {
	return r != nil && r.Status == CaptureOK
}

// Failure converts a non-OK result into a structured error carrying the
// channel, the mapped error code, and whether a retry may help. Returns nil
// for successful results.
func (r *CaptureResult) Failure() *Error {
	if r == nil || r.Status == CaptureOK {
		return nil
	}
	e := NewError(StatusToCode(r.Status), r.Err).
		WithChannel(r.Request.Channel).
		WithRetryable(r.Status == CaptureTimeout || r.Status == CaptureDeviceBusy)
	if perm := r.Data["permission"]; perm != "" {
		e = e.WithPermission(perm)
	}
	return e
}
