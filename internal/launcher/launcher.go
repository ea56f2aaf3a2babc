// Package launcher starts and stops stream servers as background processes
// so other tools can hand a viewer URL to a user.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/zachmartin/fermia-camera/internal/config"
)

var (
	ErrUnknownVariant = errors.New("unknown stream variant")
	ErrNotRunning     = errors.New("stream server not running")
)

// Launcher manages one stream server process per variant. Process ids are
// kept in pid files under StateDir so a later invocation can stop them.
type Launcher struct {
	// Command is the stream server executable.
	Command string
	// Args are placed before the --variant and --listen flags.
	Args []string
	// Env is appended to the current environment of the child.
	Env []string

	StateDir     string
	ReadyTimeout time.Duration
	Variants     map[string]config.Variant

	// HostIP returns the address put into returned URLs.
	HostIP func() string

	Log zerolog.Logger
}

// New returns a launcher for the fermia-stream executable.
func New(command, stateDir string, log zerolog.Logger) *Launcher {
	return &Launcher{
		Command:      command,
		StateDir:     stateDir,
		ReadyTimeout: 15 * time.Second,
		Variants:     config.Variants,
		HostIP:       LocalIP,
		Log:          log.With().Str("component", "launcher").Logger(),
	}
}

func (l *Launcher) variant(name string) (config.Variant, error) {
	v, ok := l.Variants[name]
	if !ok {
		return config.Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v, nil
}

func (l *Launcher) pidFile(name string) string {
	return filepath.Join(l.StateDir, "fermia-stream-"+name+".pid")
}

// URL is the viewer address of a variant.
func (l *Launcher) URL(name string) (string, error) {
	v, err := l.variant(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d", l.HostIP(), v.Port), nil
}

// Start launches the variant's server unless something already listens on
// its port, waits for it to accept connections, and returns its URL.
func (l *Launcher) Start(ctx context.Context, name string) (string, error) {
	v, err := l.variant(name)
	if err != nil {
		return "", err
	}
	url, _ := l.URL(name)
	addr := fmt.Sprintf("127.0.0.1:%d", v.Port)

	if listening(addr) {
		l.Log.Info().Str("variant", name).Str("url", url).Msg("stream server already running")
		return url, nil
	}

	if err := os.MkdirAll(l.StateDir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(l.StateDir, "fermia-stream-"+name+".log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open server log: %w", err)
	}
	defer logFile.Close()

	args := append(append([]string{}, l.Args...), "--variant", name, "--listen", fmt.Sprintf(":%d", v.Port))
	cmd := exec.Command(l.Command, args...)
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", l.Command, err)
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	pid := cmd.Process.Pid
	if err := os.WriteFile(l.pidFile(name), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		cmd.Process.Kill()
		return "", fmt.Errorf("write pid file: %w", err)
	}
	l.Log.Info().Str("variant", name).Int("pid", pid).Msg("stream server started")

	if err := waitListening(ctx, addr, l.ReadyTimeout, exited); err != nil {
		cmd.Process.Kill()
		os.Remove(l.pidFile(name))
		return "", err
	}
	return url, nil
}

// Stop sends SIGTERM to the variant's recorded server process.
func (l *Launcher) Stop(name string) error {
	if _, err := l.variant(name); err != nil {
		return err
	}
	raw, err := os.ReadFile(l.pidFile(name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotRunning
	}
	if err != nil {
		return err
	}
	defer os.Remove(l.pidFile(name))

	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("corrupt pid file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return ErrNotRunning
		}
		return err
	}
	l.Log.Info().Str("variant", name).Int("pid", pid).Msg("stream server signalled")
	return nil
}

func listening(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func waitListening(ctx context.Context, addr string, timeout time.Duration, exited <-chan error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if listening(addr) {
			return nil
		}
		select {
		case err := <-exited:
			return fmt.Errorf("stream server exited before listening: %v", err)
		case <-ctx.Done():
			return fmt.Errorf("stream server not listening on %s: %w", addr, ctx.Err())
		case <-tick.C:
		}
	}
}

// LocalIP returns the address of the interface that routes outward, or
// 127.0.0.1. No packet is sent.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if a, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return a.IP.String()
	}
	return "127.0.0.1"
}
