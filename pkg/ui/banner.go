package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/riskgate/riskgate/pkg/defaults"
)

// Version information - these can be overridden at build time via ldflags:
// go build -ldflags "-X github.com/riskgate/riskgate/pkg/ui.Version=1.0.0"
var (
	Version   = defaults.Version
	BuildDate = "dev"
	Commit    = "dev"
)

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses most output)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		// Use ASCII profile to disable colors
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// ASCII art banner
const bannerArt = `
         _      __                  __
   _____(_)____/ /______ _____ _____/ /____
  / ___/ / ___/ //_/ __ '/ __ '/ __  / _ \
 / /  / (__  ) ,< / /_/ / /_/ / /_/ /  __/
/_/  /_/____/_/|_|\__, /\__,_/\__,_/\___/
                 /____/
`

// PrintBanner prints the application banner with version info to stderr.
func PrintBanner() {
	if IsSilent() {
		return
	}
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(os.Stderr, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(os.Stderr, "                 %s\n\n", VersionStyle.Render("v"+Version))
}

// PrintVersion prints the full version line to stdout.
func PrintVersion() {
	fmt.Printf("%s %s (built %s, commit %s)\n", defaults.ToolName, Version, BuildDate, Commit)
}
