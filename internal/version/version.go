// Package version carries the build identity of rednetctl and the SDK.
//
// The variables are stamped at link time:
//
//	go build -ldflags "-X github.com/rednet-io/rednet-go/internal/version.Version=1.0.0 \
//	                   -X github.com/rednet-io/rednet-go/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rednet-io/rednet-go/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is a snapshot of the build identity plus the runtime it runs on.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current build info.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// IsRelease reports whether the binary was stamped with a version.
func (i Info) IsRelease() bool {
	return i.Version != "" && i.Version != "dev"
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s) built %s, %s %s", i.Version, i.Commit, i.BuildTime, i.GoVersion, i.Platform)
}

// String returns a one-line version string.
func String() string {
	return Get().String()
}
