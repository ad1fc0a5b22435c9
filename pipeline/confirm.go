package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// ArtifactEnv carries the artifact path to an external approval command
const ArtifactEnv = "TRENDWAVE_ARTIFACT"

// Confirmer decides whether a rendered artifact should be uploaded
type Confirmer interface {
	Confirm(ctx context.Context, artifact string) (bool, error)
}

// ConsoleConfirmer asks on Out and reads the answer from In. One reader
// goroutine serves every call, so a cancelled prompt leaves the next line for
// the following one.
type ConsoleConfirmer struct {
	In  io.Reader
	Out io.Writer

	once    sync.Once
	lines   chan string // closed at end of input
	readErr error       // set before lines is closed
}

// NewConsoleConfirmer reads answers from stdin
func NewConsoleConfirmer() *ConsoleConfirmer {
	return &ConsoleConfirmer{In: os.Stdin, Out: os.Stdout}
}

func (c *ConsoleConfirmer) startReader() {
	c.lines = make(chan string)
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(c.In)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
		c.readErr = sc.Err()
	}()
}

// Confirm accepts "y" or "yes" in any case. End of input means no.
func (c *ConsoleConfirmer) Confirm(ctx context.Context, artifact string) (bool, error) {
	c.once.Do(c.startReader)
	fmt.Fprintf(c.Out, "Upload %s to YouTube? (y/n): ", artifact)

	select {
	case line, ok := <-c.lines:
		if !ok {
			if c.readErr != nil {
				return false, fmt.Errorf("read confirmation: %w", c.readErr)
			}
			return false, nil
		}
		return IsYes(line), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// IsYes reports whether answer is an affirmative reply
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// AutoConfirmer answers every prompt the same way
type AutoConfirmer struct {
	Answer bool
}

func (a AutoConfirmer) Confirm(_ context.Context, artifact string) (bool, error) {
	if a.Answer {
		log.Printf("[confirm] Auto-approved upload of %s", artifact)
	} else {
		log.Printf("[confirm] Uploads disabled, keeping %s local", artifact)
	}
	return a.Answer, nil
}

// CommandConfirmer runs an external approval hook. Exit status 0 approves;
// any other exit status declines.
type CommandConfirmer struct {
	Command []string
}

// NewCommandConfirmer splits a shell-style command line on whitespace
func NewCommandConfirmer(cmdline string) (*CommandConfirmer, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, errors.New("empty approval command")
	}
	return &CommandConfirmer{Command: fields}, nil
}

func (c *CommandConfirmer) Confirm(ctx context.Context, artifact string) (bool, error) {
	if len(c.Command) == 0 {
		return false, errors.New("empty approval command")
	}
	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	cmd.Env = append(os.Environ(), ArtifactEnv+"="+artifact)
	out, err := cmd.CombinedOutput()
	if err == nil {
		log.Printf("[confirm] ✅ Approval hook accepted %s", artifact)
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		log.Printf("[confirm] Approval hook declined %s (exit %d): %s", artifact, exitErr.ExitCode(), strings.TrimSpace(string(out)))
		return false, nil
	}
	return false, fmt.Errorf("approval hook %s: %w", c.Command[0], err)
}
