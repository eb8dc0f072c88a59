package internal

import (
	"fmt"
	"runtime"
)

// Version is the current version of the client.
// This should be updated with each release.
const Version = "0.1.0"

// VersionString is the full version line printed by --version.
func VersionString() string {
	return fmt.Sprintf("chatroom %s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
