package document

import (
	"context"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Generator describes the machine that produced a report.
type Generator struct {
	Hostname  string
	OSName    string
	OSVersion string
}

// String renders "hostname (OS version)".
func (g Generator) String() string {
	system := strings.TrimSpace(g.OSName + " " + g.OSVersion)
	if system == "" {
		return g.Hostname
	}
	return g.Hostname + " (" + system + ")"
}

// DetectGenerator reads host information through gopsutil. Missing fields
// fall back to os.Hostname and "unknown".
func DetectGenerator(ctx context.Context) Generator {
	g := Generator{OSVersion: "unknown"}
	info, err := host.InfoWithContext(ctx)
	if err == nil {
		g.Hostname = info.Hostname
		g.OSName = info.Platform
		if g.OSName == "" {
			g.OSName = info.OS
		}
		if info.PlatformVersion != "" {
			g.OSVersion = info.PlatformVersion
		}
	}
	if g.Hostname == "" {
		g.Hostname, _ = os.Hostname()
	}
	return g
}
