// Package version reports the build stamped into the captiongen binary:
//
//	go build -ldflags "-X github.com/kbukum/captiongen/version.Version=1.2.0 \
//	  -X github.com/kbukum/captiongen/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/captiongen
//
// Values not stamped are filled from the module's VCS build settings.
package version
