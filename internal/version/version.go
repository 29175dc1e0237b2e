// Package version holds the release version of the titan binary.
package version

// Version is overridden at build time with
//
//	go build -ldflags "-X github.com/AaronLay10/TitanMedia/internal/version.Version=x.y.z"
var Version = "0.1.0"
