// Package version reports the build version, set at link time with
// -ldflags "-X appdeck/internal/application/version.version=1.2.3".
package version

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	version = "0.0.0"
	commit  = ""
	// Regular expression to match version pattern like "1.2.3" in "1.2.3-beta"
	versionRegex = regexp.MustCompile(`(\d+\.\d+\.\d+)`)
)

func GetVersion() string {
	return version
}

// GetCommit returns the source revision the binary was built from, if known.
func GetCommit() string {
	return commit
}

func GetNumericVersion() int {
	return ParseNumericVersion(version)
}

// String renders the version for humans.
func String() string {
	s := version + " (#" + strconv.Itoa(GetNumericVersion()) + ")"
	if commit != "" {
		s += " " + commit
	}
	return s
}

func ParseNumericVersion(semVer string) int {
	matches := versionRegex.FindStringSubmatch(semVer)
	if len(matches) > 1 {
		semVer = matches[1]
	}

	parts := strings.Split(semVer, ".")
	result := 0
	for _, part := range parts {
		num, _ := strconv.Atoi(part)
		result = result*1000 + num
	}
	return result
}
