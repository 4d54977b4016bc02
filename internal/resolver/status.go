// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"

	"github.com/loonghao/vx-sub002/pkg/semver"
)

// StatusKind classifies where a runtime was found, if anywhere.
type StatusKind int

const (
	// StatusNotInstalled means the runtime is known but absent from both
	// the managed store and the system PATH.
	StatusNotInstalled StatusKind = iota
	// StatusUnknown means the runtime name is not in the catalog. It
	// orders like NotInstalled but is distinguished in diagnostics.
	StatusUnknown
	// StatusStoreManaged means a matching version exists in the managed
	// store with its executable confirmed present.
	StatusStoreManaged
	// StatusSystem means the executable was found on the system PATH.
	StatusSystem
)

// String returns the human-readable name of the status kind.
func (k StatusKind) String() string {
	switch k {
	case StatusStoreManaged:
		return "managed"
	case StatusSystem:
		return "system"
	case StatusUnknown:
		return "unknown"
	default:
		return "not installed"
	}
}

// Status reports where a runtime was found.
type Status struct {
	Kind StatusKind
	// Version is the concrete store version for managed runtimes. Empty
	// for system runtimes, whose version is only learned by probing.
	Version string
	// Path is the executable path. Empty unless installed.
	Path string
}

// Installed reports whether the runtime is usable from somewhere.
func (s Status) Installed() bool {
	return s.Kind == StatusStoreManaged || s.Kind == StatusSystem
}

// CheckStatus classifies a runtime. An empty request means "any installed
// version"; a non-empty request restricts the managed store to matching
// versions and rules out the system PATH entirely, since the version of a
// system executable cannot be trusted to match without probing.
//
// The configured status order decides which location wins when both could
// satisfy an unversioned request.
func (r *Resolver) CheckStatus(ctx context.Context, name, request string) Status {
	spec, ok := r.catalog.GetSpec(name)
	if !ok {
		return Status{Kind: StatusUnknown}
	}

	if request != "" {
		return r.storeStatus(name, spec.ExecutableName(), request)
	}

	if r.systemFirst {
		if st := r.systemStatus(spec.ExecutableName()); st.Installed() {
			return st
		}
		return r.storeStatus(name, spec.ExecutableName(), "")
	}

	if st := r.storeStatus(name, spec.ExecutableName(), ""); st.Installed() {
		return st
	}
	return r.systemStatus(spec.ExecutableName())
}

// storeStatus looks for a matching version in the managed store. A hit is
// only reported when the version's executable is confirmed present, so a
// half-removed install never masquerades as managed.
func (r *Resolver) storeStatus(name, exeName, request string) Status {
	storeName, ok := r.catalog.StoreName(name)
	if !ok {
		storeName = name
	}

	versions := r.store.InstalledVersions(storeName)
	candidates := make([]semver.Candidate, 0, len(versions))
	for _, v := range versions {
		c, err := semver.NewCandidate(v, false)
		if err != nil {
			continue
		}
		candidates = append(candidates, c)
	}

	if request == "" {
		request = "latest"
	}
	picked, ok := semver.Resolve(request, candidates, r.resolveOpts)
	if !ok {
		return Status{Kind: StatusNotInstalled}
	}

	dir := r.store.VersionDir(storeName, picked.Version)
	loc, ok := r.disc.FindExecutable(dir, exeName)
	if !ok {
		return Status{Kind: StatusNotInstalled}
	}
	return Status{Kind: StatusStoreManaged, Version: picked.Version, Path: loc.Path}
}

// systemStatus looks for the executable on the system PATH.
func (r *Resolver) systemStatus(exeName string) Status {
	path, err := r.lookPath(exeName)
	if err != nil {
		return Status{Kind: StatusNotInstalled}
	}
	return Status{Kind: StatusSystem, Path: path}
}

// LatestInstalled returns the newest managed store version of a runtime,
// ignoring the system PATH. Bundled tools resolve through their parent's
// store entry.
func (r *Resolver) LatestInstalled(name string) (Status, bool) {
	spec, ok := r.catalog.GetSpec(name)
	if !ok {
		return Status{Kind: StatusUnknown}, false
	}
	st := r.storeStatus(name, spec.ExecutableName(), "")
	return st, st.Installed()
}

// IsInstalled reports whether a runtime is usable from the store or the
// system PATH.
func (r *Resolver) IsInstalled(ctx context.Context, name string) bool {
	return r.CheckStatus(ctx, name, "").Installed()
}
