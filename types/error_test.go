package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrPermissionDenied, "camera permission missing").
		WithCause(root).
		WithChannel(ChannelCamera).
		WithPermission("android.permission.CAMERA").
		WithRetryable(false)

	if GetErrorCode(err) != ErrPermissionDenied {
		t.Fatalf("expected code %s, got %s", ErrPermissionDenied, GetErrorCode(err))
	}
	if IsRetryable(err) {
		t.Fatalf("permission denial must not be retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if err.Permission != "android.permission.CAMERA" {
		t.Fatalf("expected permission detail to survive for the client hint")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestStatusToCode(t *testing.T) {
	t.Parallel()

	cases := map[CaptureStatus]ErrorCode{
		CaptureTimeout:          ErrTimeout,
		CapturePermissionDenied: ErrPermissionDenied,
		CaptureDeviceBusy:       ErrDeviceBusy,
		CaptureFailed:           ErrCaptureFailed,
		CaptureOK:               "",
	}
	for status, want := range cases {
		if got := StatusToCode(status); got != want {
			t.Fatalf("StatusToCode(%s) = %s, want %s", status, got, want)
		}
	}
}
