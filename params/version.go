// Package params holds build-time version metadata shared by the CLI
// entrypoints.
package params

import "fmt"

var (
	// Following vars are injected through the build flags.
	GitCommit string
	GitBranch string
	GitTag    string
)

// Version format: Major.Minor.Build
const (
	VersionMajor    = 0 // breaking changes to the fact-file schema
	VersionMinor    = 1 // new relations or CLI flags
	VersionBuild    = 0 // patch level
	VersionModifier = "" // modifier component (alpha, beta, stable)
)

func withModifier(vsn string) string {
	if VersionModifier != "" {
		vsn += "-" + VersionModifier
	}
	return vsn
}

// Version holds the textual version string.
var Version = func() string {
	return fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionBuild)
}()

// VersionWithMeta holds the textual version string including the modifier.
var VersionWithMeta = withModifier(Version)

// VersionWithCommit appends the short git commit hash, when known, to
// VersionWithMeta.
func VersionWithCommit(gitCommit, gitDate string) string {
	vsn := VersionWithMeta
	if len(gitCommit) >= 8 {
		vsn += "-" + gitCommit[:8]
	}
	return vsn
}
