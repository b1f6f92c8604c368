// internal/sweep/submitter.go
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/mwiater/prefbench/internal/logging"
)

// Submitter hands a written job document to the cluster.
type Submitter interface {
	Submit(ctx context.Context, jobFile string) error
}

// ExecSubmitter runs `<bin> experiment create <file> --workspace <workspace>`
// for every job without waiting for it to finish.
type ExecSubmitter struct {
	Bin       string
	Workspace string
	Stdout    io.Writer
	Stderr    io.Writer

	mu      sync.Mutex
	started []*exec.Cmd
}

// NewExecSubmitter returns a submitter that invokes bin against workspace.
func NewExecSubmitter(bin, workspace string) *ExecSubmitter {
	return &ExecSubmitter{Bin: bin, Workspace: workspace, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Args returns the argument list used to submit jobFile.
func (s *ExecSubmitter) Args(jobFile string) []string {
	return []string{"experiment", "create", jobFile, "--workspace", s.Workspace}
}

// Submit starts the submission process and returns once it is running.
func (s *ExecSubmitter) Submit(ctx context.Context, jobFile string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := exec.Command(s.Bin, s.Args(jobFile)...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	logging.LogEvent("running: %s", RenderCommand(cmd.Args))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.Bin, err)
	}

	s.mu.Lock()
	s.started = append(s.started, cmd)
	s.mu.Unlock()
	return nil
}

// Wait blocks until every started submission exits and joins their errors.
func (s *ExecSubmitter) Wait() error {
	s.mu.Lock()
	started := s.started
	s.started = nil
	s.mu.Unlock()

	var errs []error
	for _, cmd := range started {
		if err := cmd.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", RenderCommand(cmd.Args), err))
		}
	}
	return errors.Join(errs...)
}
