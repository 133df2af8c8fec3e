package config

import "fmt"

// Linker-injected build metadata variables. These are set at compile time via
// -ldflags, for example:
//
//	go build -ldflags "-X regionwatch/internal/config.version=1.2.3 \
//	    -X regionwatch/internal/config.commit=$(git rev-parse --short HEAD)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo constructs a BuildInfo from the linker-injected variables.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// UserAgent returns the product token sent to upstream providers, e.g.
// "regionwatch/1.2.3 (abc1234)".
func (b BuildInfo) UserAgent(service string) string {
	return fmt.Sprintf("%s/%s (%s)", service, b.Version, b.Commit)
}
