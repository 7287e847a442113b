package shared

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestTruncate(t *testing.T) {
	tc := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "shorter than limit", in: "abc", n: 5, want: "abc"},
		{name: "exact limit", in: "abcde", n: 5, want: "abcde"},
		{name: "ascii cut", in: "abcdef", n: 3, want: "abc"},
		{name: "multibyte runes", in: "ñandú ñandú", n: 5, want: "ñandú"},
		{name: "non-positive limit", in: "abc", n: 0, want: "abc"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tc := map[string]log.Level{
		"debug":   log.DebugLevel,
		" WARN ":  log.WarnLevel,
		"error":   log.ErrorLevel,
		"":        log.InfoLevel,
		"verbose": log.InfoLevel,
	}
	for in, want := range tc {
		t.Run(in, func(t *testing.T) {
			if got := ParseLogLevel(in); got != want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
			}
		})
	}
}

func TestLoggers(t *testing.T) {
	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "post", "p1")
		logger.Info("hello")

		if !strings.Contains(buf.String(), "post=p1") {
			t.Errorf("expected field in output, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger creates parent dirs", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "prism.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Info("written")

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log: %v", err)
		}
		if !strings.Contains(string(data), "written") {
			t.Errorf("expected log line in file, got %q", data)
		}
	})
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState failed: %v", err)
	}
	b, _ := GenerateState()
	if a == b || len(a) != 43 {
		t.Errorf("expected distinct 43-char states, got %q and %q", a, b)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "state.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0600); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte(`{"a":2}`), 0600); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != `{"a":2}` {
		t.Errorf("unexpected content %q", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "sub", ".prism-*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestOpenBrowser(t *testing.T) {
	origRuntime, origGetenv, origStart := getRuntime, getenv, startCmd
	t.Cleanup(func() { getRuntime, getenv, startCmd = origRuntime, origGetenv, origStart })

	tc := []struct {
		name     string
		goos     string
		env      map[string]string
		wantArgs []string
		wantErr  error
	}{
		{name: "macOS", goos: "darwin", wantArgs: []string{"open", "https://x"}},
		{name: "linux desktop", goos: "linux", env: map[string]string{"DISPLAY": ":0"}, wantArgs: []string{"xdg-open", "https://x"}},
		{name: "wayland", goos: "linux", env: map[string]string{"WAYLAND_DISPLAY": "wayland-0"}, wantArgs: []string{"xdg-open", "https://x"}},
		{name: "headless linux", goos: "linux", wantErr: ErrNoBrowser},
		{name: "BROWSER wins", goos: "linux", env: map[string]string{"BROWSER": "firefox --new-tab"}, wantArgs: []string{"firefox", "--new-tab", "https://x"}},
		{name: "unsupported platform", goos: "plan9", wantErr: ErrNoBrowser},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			var started []string
			getRuntime = func() string { return tt.goos }
			getenv = func(key string) string { return tt.env[key] }
			startCmd = func(cmd *exec.Cmd) error {
				started = cmd.Args
				return nil
			}

			err := OpenBrowser("https://x")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("OpenBrowser() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenBrowser() error = %v", err)
			}
			if !slices.Equal(started, tt.wantArgs) {
				t.Errorf("started %v, want %v", started, tt.wantArgs)
			}
		})
	}

	t.Run("start failure", func(t *testing.T) {
		getRuntime = func() string { return "darwin" }
		getenv = func(string) string { return "" }
		startCmd = func(*exec.Cmd) error { return errors.New("exec: not found") }

		if err := OpenBrowser("https://x"); !errors.Is(err, ErrNoBrowser) {
			t.Errorf("OpenBrowser() error = %v, want ErrNoBrowser", err)
		}
	})
}
