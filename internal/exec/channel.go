// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

// Package exec implements the execution channel: a long-lived interactive
// shell subprocess bound to a single plan, whose commands are serialized
// through a FIFO queue so that a resource's refresh/plan/apply callbacks
// observe one consistent, mutating shell environment.
package exec

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/creack/pty"
	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-shellwords"

	"github.com/codify-dev/codify-plugin-lib-go/internal/diag"
)

// Result is the outcome of one command run on a Channel.
type Result struct {
	Status   string
	ExitCode int
	Data     string
}

// KillResult is the outcome of tearing a Channel down.
type KillResult struct {
	ExitCode int
	Signal   string
}

// SpawnOptions configures one command sent to a Channel. A zero value is a
// valid default.
type SpawnOptions struct {
	// Dir is advisory only: the channel's actual working directory is
	// whatever the shell's own state currently is, since `cd` issued in a
	// previous command on this same channel persists. When set, it is
	// applied with `cd <Dir> &&` in front of the command.
	Dir string
}

// Channel owns one interactive shell subprocess and the FIFO queue that
// serializes every command sent to it.
type Channel struct {
	logger hclog.Logger
	queue  *ticketQueue

	mu      sync.Mutex
	cmd     *exec.Cmd
	pty     *os.File
	reader  *bufio.Reader
	killed  bool
	counter int
}

// New spawns a fresh interactive shell bound to a new Channel. shellPath
// defaults to "/bin/sh" when empty.
func New(logger hclog.Logger, shellPath string) (*Channel, error) {
	if shellPath == "" {
		shellPath = "/bin/sh"
	}
	cmd := exec.Command(shellPath)
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("starting execution channel shell: %w", err)
	}
	return &Channel{
		logger: logger,
		queue:  newTicketQueue(),
		cmd:    cmd,
		pty:    f,
		reader: bufio.NewReader(f),
	}, nil
}

// Spawn runs cmdline on the channel and returns an error if the command
// could not be run at all or exited non-zero.
func (c *Channel) Spawn(ctx context.Context, cmdline string, opts SpawnOptions) (Result, error) {
	res, err := c.run(ctx, cmdline, opts)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &diag.SpawnError{Cmd: cmdline, ExitCode: res.ExitCode, Data: res.Data}
	}
	return res, nil
}

// SpawnSafe runs cmdline and never returns an error for a non-zero exit
// code: the caller inspects Result.ExitCode instead.
func (c *Channel) SpawnSafe(ctx context.Context, cmdline string, opts SpawnOptions) Result {
	res, err := c.run(ctx, cmdline, opts)
	if err != nil {
		return Result{Status: "error", ExitCode: -1, Data: err.Error()}
	}
	return res
}

func (c *Channel) run(ctx context.Context, cmdline string, opts SpawnOptions) (Result, error) {
	ticket := c.queue.enqueue()
	defer c.queue.dequeue(ticket)

	c.mu.Lock()
	if c.killed {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("execution channel has been killed")
	}
	c.counter++
	marker := fmt.Sprintf("__codify_exec_%d__", c.counter)
	full := cmdline
	if opts.Dir != "" {
		full = fmt.Sprintf("cd %s && %s", shellQuote(opts.Dir), cmdline)
	}

	if c.logger != nil {
		// Tokenized purely for readable debug output; the command itself is
		// sent to the shell as one line, not argv-split.
		if tokens, err := shellwords.Parse(cmdline); err == nil {
			c.logger.Debug("spawn", "argv", tokens, "ticket", ticket)
		}
	}

	echoLine := fmt.Sprintf("echo %s:$?", marker)
	if _, err := fmt.Fprintf(c.pty, "%s\n%s\n", full, echoLine); err != nil {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("writing to execution channel: %w", err)
	}

	// The pty echoes back everything written to it before any command
	// output appears; skip those echoed lines so Result.Data only carries
	// the command's own output.
	pendingEcho := append(strings.Split(full, "\n"), echoLine)

	var out bytes.Buffer
	exitCode := -1
	for {
		select {
		case <-ctx.Done():
			c.mu.Unlock()
			return Result{}, ctx.Err()
		default:
		}
		line, err := c.reader.ReadString('\n')
		if line != "" {
			if code, ok := parseMarker(line, marker); ok {
				exitCode = code
				break
			}
			if len(pendingEcho) > 0 && strings.TrimRight(line, "\r\n") == pendingEcho[0] {
				pendingEcho = pendingEcho[1:]
			} else {
				out.WriteString(line)
			}
		}
		if err != nil {
			c.mu.Unlock()
			return Result{}, fmt.Errorf("reading from execution channel: %w", err)
		}
	}
	c.mu.Unlock()

	return Result{
		Status:   "complete",
		ExitCode: exitCode,
		Data:     strings.TrimRight(out.String(), "\n"),
	}, nil
}

// shellQuote single-quotes a path for safe interpolation into a shell
// command line, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func parseMarker(line, marker string) (int, bool) {
	trimmed := strings.TrimSpace(line)
	prefix := marker + ":"
	if !strings.HasPrefix(trimmed, prefix) {
		return 0, false
	}
	code, err := strconv.Atoi(strings.TrimPrefix(trimmed, prefix))
	if err != nil {
		return 0, false
	}
	return code, true
}

// Kill tears the channel's subprocess down. It is idempotent: calling Kill
// on an already-killed channel is a no-op that reports a zero exit.
func (c *Channel) Kill() (KillResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.killed {
		return KillResult{}, nil
	}
	c.killed = true
	_ = c.pty.Close()
	if err := c.cmd.Process.Kill(); err != nil {
		return KillResult{}, fmt.Errorf("killing execution channel: %w", err)
	}
	state, _ := c.cmd.Process.Wait()
	result := KillResult{Signal: "killed"}
	if state != nil {
		result.ExitCode = state.ExitCode()
	}
	return result, nil
}
