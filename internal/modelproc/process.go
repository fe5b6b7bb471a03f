// Package modelproc runs a Python model service as a child process.
//
// The wire protocol is the one used by every model script shipped with mudra:
// each request is a 4-byte big-endian length followed by a JPEG payload on stdin,
// and each response is a single JSON line on stdout.
package modelproc

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultIdleTimeout is how long an unused process stays alive.
const DefaultIdleTimeout = 30 * time.Second

// ErrScriptNotFound is returned when the service script cannot be located.
var ErrScriptNotFound = errors.New("model script not found")

// Config describes how to launch a model service.
type Config struct {
	Script      string
	Python      string
	Args        []string
	IdleTimeout time.Duration
}

// Process owns one long-lived child process. Calls are serialized.
type Process struct {
	config    Config
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
	logger    zerolog.Logger
}

// New creates a Process. The child is started lazily on the first Call.
func New(config Config) *Process {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.Python == "" {
		config.Python = FindPython()
	}
	return &Process{
		config: config,
		logger: log.With().Str("component", "modelproc").Str("script", filepath.Base(config.Script)).Logger(),
	}
}

// Call sends payload and decodes the JSON response line into out.
func (p *Process) Call(payload []byte, out any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureStarted(); err != nil {
		return err
	}

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(payload)))

	if _, err := p.stdin.Write(length); err != nil {
		p.fail()
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := p.stdin.Write(payload); err != nil {
		p.fail()
		return fmt.Errorf("write data: %w", err)
	}

	line, err := p.stdout.ReadString('\n')
	if err != nil {
		p.fail()
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal([]byte(line), out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	p.resetIdleTimer()
	return nil
}

// Close shuts down the child process.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown()
}

func (p *Process) ensureStarted() error {
	if p.started {
		return nil
	}
	if p.config.Script == "" {
		return ErrScriptNotFound
	}

	args := append([]string{p.config.Script}, p.config.Args...)
	p.cmd = exec.Command(p.config.Python, args...)

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	p.cmd.Stderr = os.Stderr

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start model service: %w", err)
	}

	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)
	p.started = true
	p.logger.Debug().Int("pid", p.cmd.Process.Pid).Msg("model service started")

	return nil
}

// fail tears the child down after a broken exchange so the next call restarts it.
func (p *Process) fail() {
	if err := p.shutdown(); err != nil {
		p.logger.Warn().Err(err).Msg("model service exited")
	}
}

func (p *Process) shutdown() error {
	if !p.started {
		return nil
	}

	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}

	if p.stdin != nil {
		p.stdin.Close()
	}

	err := p.cmd.Wait()
	p.started = false
	p.cmd = nil
	p.stdin = nil
	p.stdout = nil

	return err
}

func (p *Process) resetIdleTimer() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	p.idleTimer = time.AfterFunc(p.config.IdleTimeout, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.shutdown()
	})
}

// FindScript looks for a script by file name in the usual install locations.
// An explicit path is returned as-is when it exists.
func FindScript(explicit, name string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", name),
		filepath.Join("..", "scripts", name),
		filepath.Join(execDir, "scripts", name),
		filepath.Join(os.Getenv("HOME"), ".mudra", "scripts", name),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// FindPython looks for a virtualenv interpreter and falls back to python3.
func FindPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return "python3"
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return "python3"
}
