package shared

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ErrNoBrowser is returned when no browser can be launched, e.g. over SSH. Callers print the URL instead.
var ErrNoBrowser = errors.New("no browser available")

var (
	getRuntime = func() string { return runtime.GOOS }
	getenv     = os.Getenv
	startCmd   = func(cmd *exec.Cmd) error { return cmd.Start() }
)

// browserCommand picks the command that opens url. $BROWSER wins on every platform.
func browserCommand(url string) (*exec.Cmd, error) {
	if b := strings.TrimSpace(getenv("BROWSER")); b != "" {
		fields := strings.Fields(b)
		return exec.Command(fields[0], append(fields[1:], url)...), nil
	}

	switch rt := getRuntime(); rt {
	case "darwin":
		return exec.Command("open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	case "linux", "freebsd", "openbsd", "netbsd":
		if getenv("DISPLAY") == "" && getenv("WAYLAND_DISPLAY") == "" {
			return nil, fmt.Errorf("%w: no graphical session", ErrNoBrowser)
		}
		return exec.Command("xdg-open", url), nil
	default:
		return nil, fmt.Errorf("%w: unsupported platform %s", ErrNoBrowser, rt)
	}
}

// OpenBrowser opens url in the user's browser without waiting for it to exit.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(url)
	if err != nil {
		return err
	}
	if err := startCmd(cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrNoBrowser, err)
	}
	return nil
}
