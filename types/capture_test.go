package types

import "testing"

func TestCaptureResult_Failure(t *testing.T) {
	t.Parallel()

	ok := &CaptureResult{Request: &CaptureRequest{Channel: ChannelGPS}, Status: CaptureOK}
	if ok.Failure() != nil {
		t.Fatalf("a successful capture has no failure")
	}

	timeout := &CaptureResult{
		Request: &CaptureRequest{Channel: ChannelCamera},
		Status:  CaptureTimeout,
		Err:     "deadline exceeded",
	}
	fail := timeout.Failure()
	if fail.Code != ErrTimeout {
		t.Fatalf("expected %s, got %s", ErrTimeout, fail.Code)
	}
	if fail.Channel != ChannelCamera {
		t.Fatalf("expected the failure to name its channel")
	}
	if !IsRetryable(fail) {
		t.Fatalf("a timeout must be retryable")
	}

	denied := &CaptureResult{
		Request: &CaptureRequest{Channel: ChannelCamera},
		Status:  CapturePermissionDenied,
		Data:    map[string]string{"permission": "android.permission.CAMERA"},
	}
	fail = denied.Failure()
	if IsRetryable(fail) {
		t.Fatalf("permission denial must not be retryable")
	}
	if fail.Permission != "android.permission.CAMERA" {
		t.Fatalf("expected the missing permission on the error, got %q", fail.Permission)
	}
}
