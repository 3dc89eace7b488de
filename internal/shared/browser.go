package shared

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// OpenBrowser launches the system browser on url so the user can approve an OAuth grant.
//
// The BROWSER environment variable, when set, names the command to use instead of the platform default.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(url)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func browserCommand(url string) (*exec.Cmd, error) {
	if b := os.Getenv("BROWSER"); b != "" {
		return exec.Command(b, url), nil
	}

	switch rt := getRuntime(); rt {
	case "darwin":
		return exec.Command("open", url), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	default:
		return nil, fmt.Errorf("%w: unsupported platform %s", ErrNotImplemented, rt)
	}
}
