// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/loonghao/vx-sub002/internal/config"
	"github.com/loonghao/vx-sub002/internal/discover"
	"github.com/loonghao/vx-sub002/internal/issue"
	"github.com/loonghao/vx-sub002/internal/store"
	"github.com/loonghao/vx-sub002/pkg/provider"
	"github.com/loonghao/vx-sub002/pkg/semver"
)

type (
	// Options tunes resolution behavior. The zero value checks the store
	// first, prefers stable releases, and uses the current platform.
	Options struct {
		// Order controls store-vs-system precedence for unversioned requests.
		Order config.StatusOrder
		// PreferLTS biases "latest" toward LTS candidates.
		PreferLTS bool
		// IncludePrereleases admits prereleases without an explicit
		// prerelease request.
		IncludePrereleases bool
		// Platform overrides runtime.GOOS, for tests.
		Platform string
		// LookPath overrides exec.LookPath, for tests.
		LookPath func(string) (string, error)
		// Probe overrides the system version probe, for tests.
		Probe ProbeFunc
	}

	// Resolver classifies runtimes and validates their dependencies.
	Resolver struct {
		catalog provider.Catalog
		store   store.Store
		disc    *discover.Discovery

		goos        string
		systemFirst bool
		resolveOpts semver.ResolveOptions

		// lookPath and probe are swappable for tests.
		lookPath func(string) (string, error)
		probe    ProbeFunc
	}

	// Resolution is the full answer for one runtime request. It carries
	// everything the pipeline needs to decide whether to install, abort,
	// or execute.
	Resolution struct {
		Runtime string
		Request string
		Status  Status

		// Executable is the resolved path when installed, or the bare
		// executable name when an install is still needed.
		Executable string
		// Version is the concrete managed version, empty for system
		// installs and pending installs.
		Version string
		// CommandPrefix replaces direct invocation for tools that run
		// through another runtime, e.g. ["python", "-m", "pip"].
		CommandPrefix []string

		// NeedsInstall is true when no location satisfies the request.
		NeedsInstall bool
		// MissingDependencies lists required dependencies that are not
		// installed anywhere.
		MissingDependencies []string
		// InstallOrder lists everything to install, dependencies before
		// dependents, the requested runtime last.
		InstallOrder []string
		// Incompatible lists installed dependencies outside their
		// declared version bounds.
		Incompatible []*issue.IncompatibleDependencyError
		// UnsupportedPlatforms lists involved runtimes that do not
		// support the current platform.
		UnsupportedPlatforms []string
	}
)

// New creates a Resolver over the given catalog, store, and discovery.
func New(catalog provider.Catalog, st store.Store, disc *discover.Discovery, opts Options) *Resolver {
	goos := opts.Platform
	if goos == "" {
		goos = runtime.GOOS
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	probe := opts.Probe
	if probe == nil {
		probe = ProbeVersion
	}
	return &Resolver{
		catalog:     catalog,
		store:       st,
		disc:        disc,
		goos:        goos,
		systemFirst: opts.Order == config.StatusOrderSystemFirst,
		resolveOpts: semver.ResolveOptions{
			PreferLTS:          opts.PreferLTS,
			IncludePrereleases: opts.IncludePrereleases,
		},
		lookPath: lookPath,
		probe:    probe,
	}
}

// Resolve answers a runtime request: where the runtime is (or that it
// needs installing), whether its required dependencies are present and
// within bounds, and what to install in which order.
//
// Unknown runtime names are an error; every other finding is carried in
// the Resolution so the caller can decide how to act.
func (r *Resolver) Resolve(ctx context.Context, name, request string) (*Resolution, error) {
	spec, ok := r.catalog.GetSpec(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnknownRuntime, name)
	}

	res := &Resolution{
		Runtime:       spec.Name,
		Request:       request,
		CommandPrefix: spec.CommandPrefix,
	}

	// Platform support is checked before any install decision.
	if !spec.SupportsPlatform(r.goos) {
		res.UnsupportedPlatforms = append(res.UnsupportedPlatforms, spec.Name)
	}

	res.Status = r.CheckStatus(ctx, name, request)
	res.NeedsInstall = !res.Status.Installed()
	if res.Status.Installed() {
		res.Executable = res.Status.Path
		res.Version = res.Status.Version
	} else {
		res.Executable = spec.ExecutableName()
	}

	for _, dep := range spec.RequiredDependencies() {
		depSpec, known := r.catalog.GetSpec(dep.Runtime)
		if known && !depSpec.SupportsPlatform(r.goos) {
			res.UnsupportedPlatforms = append(res.UnsupportedPlatforms, depSpec.Name)
		}

		depStatus := r.CheckStatus(ctx, dep.Runtime, "")
		if !depStatus.Installed() {
			res.MissingDependencies = append(res.MissingDependencies, dep.Runtime)
			continue
		}
		if bad := r.checkBounds(ctx, spec.Name, dep, depStatus); bad != nil {
			res.Incompatible = append(res.Incompatible, bad)
		}
	}

	res.InstallOrder = r.installOrder(ctx, spec.Name, res.MissingDependencies, res.NeedsInstall)
	return res, nil
}

// checkBounds validates one installed dependency against its declared
// [min, max] bounds. Managed installs carry their version; system installs
// are probed. A failed probe or an unparseable version assumes
// compatibility rather than blocking execution on a flaky probe.
func (r *Resolver) checkBounds(ctx context.Context, runtimeName string, dep provider.Dependency, st Status) *issue.IncompatibleDependencyError {
	if dep.MinVersion == "" && dep.MaxVersion == "" {
		return nil
	}

	installed := st.Version
	if installed == "" {
		probed, err := r.probe(ctx, st.Path)
		if err != nil {
			return nil
		}
		installed = probed
	}

	v, err := semver.Parse(installed)
	if err != nil {
		return nil
	}

	fail := func() *issue.IncompatibleDependencyError {
		return &issue.IncompatibleDependencyError{
			Runtime:     runtimeName,
			Dependency:  dep.Runtime,
			Installed:   installed,
			Min:         dep.MinVersion,
			Max:         dep.MaxVersion,
			Recommended: dep.RecommendedVersion,
		}
	}

	if dep.MinVersion != "" {
		if lower, err := semver.Parse(dep.MinVersion); err == nil && semver.Compare(v, lower) < 0 {
			return fail()
		}
	}
	if dep.MaxVersion != "" {
		if upper, err := semver.Parse(dep.MaxVersion); err == nil && semver.Compare(v, upper) > 0 {
			return fail()
		}
	}
	return nil
}

// installOrder expands the missing dependencies transitively and appends
// the primary runtime when it also needs installing. Each name appears
// once, in first-seen order, with dependencies before their dependents.
func (r *Resolver) installOrder(ctx context.Context, primary string, missing []string, needsPrimary bool) []string {
	seen := make(map[string]bool)
	var order []string

	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		if spec, ok := r.catalog.GetSpec(name); ok {
			for _, dep := range spec.RequiredDependencies() {
				if seen[dep.Runtime] {
					continue
				}
				if !r.CheckStatus(ctx, dep.Runtime, "").Installed() {
					visit(dep.Runtime)
				}
			}
		}
		order = append(order, name)
	}

	for _, name := range missing {
		visit(name)
	}
	if needsPrimary && !seen[primary] {
		order = append(order, primary)
	}
	return order
}
