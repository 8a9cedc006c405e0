// Package version carries build metadata for ssdpd and the product token it
// announces in SSDP SERVER headers.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Product is the token used in SERVER headers and CLI output
const Product = "ssdpd"

// Version and Commit may be injected with
//
//	-ldflags "-X github.com/muurk/ssdpd/internal/version.Version=v1.2.3 -X github.com/muurk/ssdpd/internal/version.Commit=abc1234"
//
// and otherwise come from the module's build info.
var (
	Version = ""
	Commit  = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(info)
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// applyBuildInfo fills whichever of Version and Commit is still empty
func applyBuildInfo(info *debug.BuildInfo) {
	if info == nil {
		return
	}
	if Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	vcs := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			vcs[strings.TrimPrefix(s.Key, "vcs.")] = s.Value
		}
	}

	if rev := vcs["revision"]; Commit == "" && rev != "" {
		Commit = rev[:min(len(rev), 7)]
		if vcs["modified"] == "true" {
			Commit += "-dirty"
		}
	}
	if Version == "" {
		if t, err := time.Parse(time.RFC3339, vcs["time"]); err == nil {
			Version = "dev-" + t.UTC().Format("20060102")
		}
	}
}

// Full returns "<version> (commit: <commit>)"
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// ServerHeader returns a UPnP SERVER value, "<os>/<go version> UPnP/1.1 ssdpd/<version>"
func ServerHeader() string {
	return fmt.Sprintf("%s/%s UPnP/1.1 %s/%s",
		runtime.GOOS,
		strings.TrimPrefix(runtime.Version(), "go"),
		Product,
		strings.TrimPrefix(Version, "v"),
	)
}
