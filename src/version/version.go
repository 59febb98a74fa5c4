package version

// Flag contains extra info about the version, such as "rc1". It is empty for
// releases.
const Flag = ""

var (
	// Version is the full version string
	Version = "0.3.0"

	// GitCommit is set with --ldflags "-X github.com/dcfnet/dcf/src/version.GitCommit=$(git rev-parse HEAD)"
	GitCommit string
)

func init() {
	if Flag != "" {
		Version += "-" + Flag
	}

	if len(GitCommit) >= 8 {
		Version += "-" + GitCommit[:8]
	}
}

// Info returns the version together with the versions of the interfaces a
// node exposes to other processes.
func Info(pluginVersion string) map[string]string {
	return map[string]string{
		"version":        Version,
		"plugin_version": pluginVersion,
		"git_commit":     GitCommit,
	}
}
