// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"io"

	"github.com/loonghao/vx-sub002/pkg/semver"
)

type (
	// VersionSource lists the installable versions of a runtime. The
	// network lives behind this port; everything else in the pipeline is
	// offline-deterministic.
	VersionSource interface {
		Versions(ctx context.Context, runtime string) ([]semver.Candidate, error)
	}

	// Installer places runtime versions into the managed store.
	Installer interface {
		// Install downloads and unpacks runtime@version into the store.
		Install(ctx context.Context, runtime, version string) error
		// InstallBundle unpacks a local offline bundle into the store.
		InstallBundle(ctx context.Context, runtime, version, bundlePath string) error
	}

	// BundleStore locates offline bundles that can satisfy an install
	// without the network.
	BundleStore interface {
		// Lookup returns the concrete version and archive path of a local
		// bundle satisfying the request, if one exists.
		Lookup(runtime, request string) (version, path string, ok bool)
	}

	// Command is everything a Runner needs to spawn one process.
	Command struct {
		Path   string
		Args   []string
		Env    []string
		Dir    string
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Runner spawns the prepared process and reports its exit code.
	// Swappable so tests never fork.
	Runner interface {
		Run(ctx context.Context, cmd Command) (int, error)
	}
)
