// Package testkit starts SeekQL servers for end-to-end tests.
package testkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/sha1n/seekql/internal/app"
)

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Port       int    // Uses free port if 0
	DataDir    string // Uses a temp dir if empty
	ConfigFile string // Uses a file in a temp dir if empty
	AuthType   string // Defaults to "none"
	APIKeys    string // Comma-separated keys for apikey auth
}

// NewTestFlags creates a configured pflag.FlagSet for an HTTP server on localhost
func NewTestFlags(t testing.TB, opts FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	if opts.Port == 0 {
		opts.Port = MustGetFreePort(t)
	}
	if opts.DataDir == "" {
		opts.DataDir = t.TempDir()
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = filepath.Join(t.TempDir(), "seekql.config.yml")
	}
	if opts.AuthType == "" {
		opts.AuthType = "none"
	}

	_ = flags.Set("transport", "http")
	_ = flags.Set("host", "127.0.0.1")
	_ = flags.Set("port", fmt.Sprintf("%d", opts.Port))
	_ = flags.Set("data-dir", opts.DataDir)
	_ = flags.Set("config", opts.ConfigFile)
	_ = flags.Set("auth-type", opts.AuthType)
	_ = flags.Set("log-level", "error")
	if opts.APIKeys != "" {
		_ = flags.Set("auth-api-keys", opts.APIKeys)
	}

	return flags
}

// Server is a running SeekQL HTTP server
type Server struct {
	BaseURL string

	cancel context.CancelFunc
	done   chan error
}

// StartServer runs the server with the given flags and waits until /health
// answers. The server is stopped when the test ends.
func StartServer(t testing.TB, flags *pflag.FlagSet) *Server {
	t.Helper()

	port, err := flags.GetInt("port")
	if err != nil {
		t.Fatalf("Failed to read port flag: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		BaseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() {
		s.done <- app.RunWithDeps(ctx, app.DefaultRunParams(), flags, "test")
	}()
	t.Cleanup(func() { _ = s.Stop() })

	if err := s.waitHealthy(10 * time.Second); err != nil {
		t.Fatalf("Server did not start: %v", err)
	}
	return s
}

// Stop shuts the server down and waits for it to release the data directory
func (s *Server) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.cancel = nil
	return <-s.done
}

func (s *Server) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-s.done:
			s.cancel()
			s.cancel = nil
			if err == nil {
				err = errors.New("server exited")
			}
			return err
		default:
		}

		resp, err := http.Get(s.BaseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("timed out after %s", timeout)
}
