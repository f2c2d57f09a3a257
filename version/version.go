package version

import "runtime/debug"

// You can set the version at build time using something like:
// go build -ldflags "-X github.com/vsariola/quanta/version.Version=$(git describe --dirty)"

var Version string

// Hash is the short VCS revision the binary was built from, suffixed with
// -dirty if the tree had local modifications.
var Hash = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return revision(info.Settings)
}()

var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	if Hash != "" {
		return Hash
	}
	return "devel"
}()

func revision(settings []debug.BuildSetting) string {
	hash, modified := "", false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			hash = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if len(hash) > 7 {
		hash = hash[:7]
	}
	if hash != "" && modified {
		hash += "-dirty"
	}
	return hash
}
