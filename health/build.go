package health

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"
)

type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime time.Time
	GoVersion string
}

// readBuildInfo prefers BUILD_* environment variables and falls back to the
// VCS stamps the Go toolchain embeds in the binary.
func readBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   envOr("BUILD_VERSION", "dev"),
		Commit:    envOr("BUILD_COMMIT", ""),
		GoVersion: runtime.Version(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = setting.Value
				}
			case "vcs.time":
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					info.BuildTime = t
				}
			}
		}
	}

	if raw := os.Getenv("BUILD_TIME"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			info.BuildTime = t
		}
	}

	if info.Commit == "" {
		info.Commit = "unknown"
	}

	return info
}

func (b BuildInfo) String() string {
	commit := b.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}

	built := "unknown"
	if !b.BuildTime.IsZero() {
		built = b.BuildTime.Format("2006-01-02")
	}

	return fmt.Sprintf("%s-%s (%s, %s)", b.Version, commit, built, b.GoVersion)
}

func getBuildInfo() string {
	return readBuildInfo().String()
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
