// Package buildinfo reports the version of the running binary.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/notehub-dev/notehub/internal/infra/buildinfo.Version=v1.0.0"
//
// When they are not, Get falls back to what the Go toolchain embedded
// (module version, vcs.revision, vcs.time).
package buildinfo
