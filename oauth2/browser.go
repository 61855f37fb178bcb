package oauth2

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// browserCommand returns the command that opens url on goos. A non-empty
// $BROWSER wins over the platform default.
func browserCommand(goos, browserEnv, url string) (string, []string, error) {
	if browserEnv != "" {
		return browserEnv, []string{url}, nil
	}
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	}
	return "", nil, fmt.Errorf("no browser launcher for %s, open the URL manually", goos)
}

// OpenBrowser shows the consent page in the user's browser. It returns once
// the launcher has started; the launcher is reaped in the background.
func OpenBrowser(url string) error {
	name, args, err := browserCommand(runtime.GOOS, os.Getenv("BROWSER"), url)
	if err != nil {
		return err
	}
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
