// Package infer defines the inference engine collaborator consumed by the
// orchestration core. The engine itself (tokenization, sampling, decoding)
// lives behind the Engine interface.
package infer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Engine is the local inference collaborator. Run blocks until generation
// finishes or ctx is done. Engines that cannot abort mid-generation keep
// running; callers racing Run against cancellation simply discard the result.
type Engine interface {
	Run(ctx context.Context, prompt string) (string, error)
	Loaded() bool
}

// Func adapts a plain function to the Engine interface. Used by tests and
// by embedders that bring their own inference runtime.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Run(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func (f Func) Loaded() bool { return true }

// CommandEngine shells out to a model-runner binary for each prompt. The
// prompt is written to stdin and the generated text is read from stdout.
// Cancellation kills the subprocess through exec.CommandContext.
type CommandEngine struct {
	bin  string
	args []string
}

// NewCommandEngine creates an engine that execs bin with args per prompt.
func NewCommandEngine(bin string, args ...string) *CommandEngine {
	return &CommandEngine{bin: bin, args: args}
}

// Loaded reports whether the model-runner binary is resolvable.
func (e *CommandEngine) Loaded() bool {
	if e.bin == "" {
		return false
	}
	_, err := exec.LookPath(e.bin)
	return err == nil
}

// Run executes one prompt and returns the trimmed stdout of the runner.
func (e *CommandEngine) Run(ctx context.Context, prompt string) (string, error) {
	if e.bin == "" {
		return "", fmt.Errorf("no model runner configured")
	}

	cmd := exec.CommandContext(ctx, e.bin, e.args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("run model: %s", msg)
	}

	return strings.TrimSpace(stdout.String()), nil
}
