package sensors

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner executes one external capture process and returns its output.
// It is the seam between channels and the OS; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs real processes via os/exec. The context deadline kills
// the process; partial output written by a killed process is discarded by
// the caller along with the timeout status.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), err
}

// Ensure ExecRunner implements Runner
var _ Runner = ExecRunner{}
