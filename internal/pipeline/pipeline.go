// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/loonghao/vx-sub002/internal/config"
	"github.com/loonghao/vx-sub002/internal/discover"
	"github.com/loonghao/vx-sub002/internal/index"
	"github.com/loonghao/vx-sub002/internal/issue"
	"github.com/loonghao/vx-sub002/internal/project"
	"github.com/loonghao/vx-sub002/internal/resolver"
	"github.com/loonghao/vx-sub002/internal/store"
	"github.com/loonghao/vx-sub002/pkg/provider"
	"github.com/loonghao/vx-sub002/pkg/semver"

	"github.com/charmbracelet/log"
)

type (
	// Deps wires the pipeline's collaborators. Config, Runner, and Logger
	// get sensible defaults when nil; everything else is required.
	Deps struct {
		Config    *config.Config
		Project   *project.Config
		Catalog   provider.Catalog
		Store     store.Store
		Discovery *discover.Discovery
		Index     *index.Index
		Resolver  *resolver.Resolver
		Versions  VersionSource
		Installer Installer
		Bundles   BundleStore
		Runner    Runner
		Logger    *log.Logger
	}

	// Pipeline runs tools through resolve, ensure, prepare, execute.
	Pipeline struct {
		cfg       *config.Config
		proj      *project.Config
		catalog   provider.Catalog
		store     store.Store
		disc      *discover.Discovery
		index     *index.Index
		resolver  *resolver.Resolver
		versions  VersionSource
		installer Installer
		bundles   BundleStore
		runner    Runner
		logger    *log.Logger
	}

	// ExecuteRequest describes one tool invocation.
	ExecuteRequest struct {
		// Tool is the runtime name or alias to run.
		Tool string
		// Version is the version request. Empty falls back to the project
		// pin, then to "latest".
		Version string
		// Args are passed to the tool verbatim.
		Args []string
		// WorkDir is the child's working directory. Empty inherits ours.
		WorkDir string
		// Extras are ad-hoc runtimes injected into the environment for
		// this run only.
		Extras []string

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Prepared is a fully resolved invocation, ready to spawn.
	Prepared struct {
		Tool    string
		Version string
		// Path is the executable to spawn.
		Path string
		// PrefixArgs precede the user's arguments, e.g. ["-m", "pip"]
		// for module-style tools or ["yarn"] under corepack.
		PrefixArgs []string
		Env        []string
		Dir        string
	}
)

// New assembles a Pipeline from its collaborators.
func New(deps Deps) *Pipeline {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	runner := deps.Runner
	if runner == nil {
		runner = NewRunner()
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "vx",
		})
	}
	return &Pipeline{
		cfg:       cfg,
		proj:      deps.Project,
		catalog:   deps.Catalog,
		store:     deps.Store,
		disc:      deps.Discovery,
		index:     deps.Index,
		resolver:  deps.Resolver,
		versions:  deps.Versions,
		installer: deps.Installer,
		bundles:   deps.Bundles,
		runner:    runner,
		logger:    logger,
	}
}

// Execute runs a tool end to end and returns its exit code. Pipeline
// failures (resolution, install, spawn) return -1 with the error; once
// the child runs, its own exit code is returned. Cache and index
// checkpoints happen either way.
func (p *Pipeline) Execute(ctx context.Context, req ExecuteRequest) (int, error) {
	defer p.checkpoint()

	prep, err := p.Prepare(ctx, req)
	if err != nil {
		return -1, err
	}

	runCtx := ctx
	if p.cfg.SpawnTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.SpawnTimeout)
		defer cancel()
	}

	args := make([]string, 0, len(prep.PrefixArgs)+len(req.Args))
	args = append(args, prep.PrefixArgs...)
	args = append(args, req.Args...)

	p.logger.Debug("spawning", "tool", prep.Tool, "version", prep.Version, "path", prep.Path)
	code, err := p.runner.Run(runCtx, Command{
		Path:   prep.Path,
		Args:   args,
		Env:    prep.Env,
		Dir:    prep.Dir,
		Stdin:  req.Stdin,
		Stdout: req.Stdout,
		Stderr: req.Stderr,
	})
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return code, fmt.Errorf("%s timed out after %s", prep.Tool, p.cfg.SpawnTimeout)
	}
	return code, err
}

// Prepare resolves a request, installs what is missing when policy
// allows, and composes the execution environment. It never spawns.
func (p *Pipeline) Prepare(ctx context.Context, req ExecuteRequest) (*Prepared, error) {
	request := req.Version
	if request == "" {
		request, _ = p.proj.Pin(req.Tool)
	}

	res, err := p.resolver.Resolve(ctx, req.Tool, request)
	if err != nil {
		return nil, err
	}

	if len(res.UnsupportedPlatforms) > 0 {
		return nil, &issue.UnsupportedPlatformError{
			Platform: runtime.GOOS,
			Runtimes: res.UnsupportedPlatforms,
		}
	}
	if len(res.Incompatible) > 0 {
		return nil, res.Incompatible[0]
	}

	autoInstall := p.proj.AutoInstall(p.cfg.AutoInstall)
	spec, _ := p.catalog.GetSpec(req.Tool)

	// Proxy-managed versions never install directly; the parent's own
	// mechanism provides them at run time. The threshold check needs a
	// concrete version, so unresolved requests are pinned down first.
	target := firstNonEmpty(res.Version, request)
	if spec.Proxy != nil && res.Version == "" {
		target = p.resolveProxyTarget(ctx, spec, request)
	}
	proxied := proxyApplies(spec, target)

	// A proxied primary drops out of the install plan; only its
	// dependencies still count as pending work.
	pending := res.InstallOrder
	if proxied {
		pending = without(pending, res.Runtime)
	}

	if len(pending) > 0 {
		if !autoInstall {
			missing := res.MissingDependencies
			if proxied {
				// prepareProxy reports the parent by name below.
				missing = without(missing, spec.Proxy.Parent)
			}
			if len(missing) > 0 {
				return nil, &issue.MissingDependencyError{
					Runtime: res.Runtime,
					Missing: missing,
				}
			}
			if !proxied {
				return nil, fmt.Errorf("%s@%s: %w", res.Runtime, request, issue.ErrInstallDisabled)
			}
		} else {
			if err := p.ensure(ctx, res, request, proxied); err != nil {
				return nil, err
			}

			res, err = p.resolver.Resolve(ctx, req.Tool, request)
			if err != nil {
				return nil, err
			}
			if res.NeedsInstall && !proxied {
				return nil, fmt.Errorf("%s@%s still unavailable after install", res.Runtime, request)
			}
		}
	}

	prefix := spec.CommandPrefix
	if proxied {
		prefix, err = p.prepareProxy(ctx, spec, target, autoInstall)
		if err != nil {
			return nil, err
		}
	}

	env, err := p.composeEnv(ctx, spec, res, autoInstall, req.Extras)
	if err != nil {
		return nil, err
	}

	version := res.Version
	if proxied {
		version = target
	}
	prep := &Prepared{
		Tool:    res.Runtime,
		Version: version,
		Path:    res.Executable,
		Env:     env,
		Dir:     req.WorkDir,
	}
	if len(prefix) > 0 {
		prep.Path = p.resolveCommandHead(ctx, prefix[0], spec, proxied)
		prep.PrefixArgs = prefix[1:]
	}
	return prep, nil
}

// ensure walks the install order, dependencies before dependents. Any
// failure aborts the pipeline. With skipPrimary the requested runtime
// itself is left alone, as proxy setup provides it another way.
func (p *Pipeline) ensure(ctx context.Context, res *resolver.Resolution, request string, skipPrimary bool) error {
	spec, _ := p.catalog.GetSpec(res.Runtime)
	recommended := make(map[string]string)
	for _, dep := range spec.RequiredDependencies() {
		recommended[dep.Runtime] = dep.RecommendedVersion
	}

	for _, name := range res.InstallOrder {
		want := recommended[name]
		if name == res.Runtime {
			if skipPrimary {
				continue
			}
			want = request
		}
		if _, err := p.ensureInstalled(ctx, name, want); err != nil {
			return err
		}
	}
	return nil
}

// ensureInstalled resolves a concrete version for one runtime and
// installs it. Bundled tools are a no-op: they arrive with their parent.
// Offline runs are only satisfiable from local bundles.
func (p *Pipeline) ensureInstalled(ctx context.Context, name, request string) (string, error) {
	spec, ok := p.catalog.GetSpec(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", provider.ErrUnknownRuntime, name)
	}
	if spec.ProvidedBy != "" {
		p.logger.Debug("bundled tool ships with its parent", "tool", spec.Name, "parent", spec.ProvidedBy)
		return "", nil
	}
	if request == "" {
		request = "latest"
	}

	if p.cfg.Offline {
		return p.installFromBundle(ctx, spec.Name, request)
	}

	candidates, err := p.versions.Versions(ctx, spec.Name)
	if err != nil {
		return "", issue.WrapWithContext(err, "list versions", spec.Name)
	}

	opts := semver.ResolveOptions{
		PreferLTS:          p.cfg.PreferLTS && spec.PreferLTS,
		IncludePrereleases: p.cfg.IncludePrereleases,
	}
	picked, ok := semver.Resolve(request, candidates, opts)
	if !ok {
		lowest, highest := semver.Bounds(candidates)
		return "", &issue.UnresolvableVersionError{
			Runtime:   spec.Name,
			Requested: request,
			Lowest:    lowest,
			Highest:   highest,
		}
	}

	if p.store.HasVersion(spec.Name, picked.Version) {
		return picked.Version, nil
	}

	p.logger.Info("installing", "runtime", spec.Name, "version", picked.Version)
	if err := p.installer.Install(ctx, spec.Name, picked.Version); err != nil {
		return "", issue.WrapWithContext(err, "install runtime", spec.Name+"@"+picked.Version)
	}
	if p.index != nil {
		p.index.AddVersion(spec.Name, picked.Version)
	}
	return picked.Version, nil
}

// resolveProxyTarget pins an uninstalled proxy candidate's request to a
// concrete version, consulting the same sources an install would, but
// without installing anything. A request that cannot be pinned is
// returned as-is; it then fails the threshold parse and takes the
// direct-install path, where the real resolution error surfaces.
func (p *Pipeline) resolveProxyTarget(ctx context.Context, spec *provider.RuntimeSpec, request string) string {
	if request == "" {
		request = "latest"
	}
	if _, err := semver.Parse(request); err == nil {
		return request
	}

	if p.cfg.Offline {
		if p.bundles != nil {
			if version, _, ok := p.bundles.Lookup(spec.Name, request); ok {
				return version
			}
		}
		return request
	}

	candidates, err := p.versions.Versions(ctx, spec.Name)
	if err != nil {
		return request
	}
	picked, ok := semver.Resolve(request, candidates, semver.ResolveOptions{
		PreferLTS:          p.cfg.PreferLTS && spec.PreferLTS,
		IncludePrereleases: p.cfg.IncludePrereleases,
	})
	if !ok {
		return request
	}
	return picked.Version
}

// installFromBundle satisfies an install without the network, or fails
// with the offline-specific error so callers can suggest bundle
// workflows instead of retrying downloads.
func (p *Pipeline) installFromBundle(ctx context.Context, name, request string) (string, error) {
	if p.bundles == nil {
		return "", &issue.OfflineError{Runtime: name, Requested: request}
	}
	version, path, ok := p.bundles.Lookup(name, request)
	if !ok {
		return "", &issue.OfflineError{Runtime: name, Requested: request}
	}

	p.logger.Info("installing from bundle", "runtime", name, "version", version, "bundle", path)
	if err := p.installer.InstallBundle(ctx, name, version, path); err != nil {
		return "", issue.WrapWithContext(err, "install bundle", path)
	}
	if p.index != nil {
		p.index.AddVersion(name, version)
	}
	return version, nil
}

// composeEnv gathers every contributing tool and layers the environment.
func (p *Pipeline) composeEnv(ctx context.Context, spec *provider.RuntimeSpec, res *resolver.Resolution, autoInstall bool, extraNames []string) ([]string, error) {
	var depNames []string
	for _, dep := range spec.RequiredDependencies() {
		depNames = append(depNames, dep.Runtime)
	}

	extras := make([]ResolvedTool, 0, len(extraNames))
	for _, name := range extraNames {
		if !p.resolver.IsInstalled(ctx, name) {
			if !autoInstall {
				return nil, &issue.MissingDependencyError{Runtime: res.Runtime, Missing: []string{name}}
			}
			if _, err := p.ensureInstalled(ctx, name, ""); err != nil {
				return nil, err
			}
		}
		extras = append(extras, p.resolveTools(ctx, name)...)
	}

	in := composeInput{
		specEnv:    spec.Env,
		deps:       p.resolveTools(ctx, depNames...),
		companions: p.resolveTools(ctx, p.proj.Companions(res.Runtime)...),
		extras:     extras,
		executable: res.Executable,
	}
	if p.proj != nil {
		in.projectEnv = p.proj.Env
	}

	env := compose(hostEnvConfig{
		mode:  p.cfg.Isolation.Mode,
		allow: p.cfg.Isolation.Allow,
	}, in)
	return envSlice(env), nil
}

// resolveTools turns runtime names into environment contributors.
// Uninstalled names contribute nothing; system installs contribute only
// their spec variables, having no managed root to point at.
func (p *Pipeline) resolveTools(ctx context.Context, names ...string) []ResolvedTool {
	var out []ResolvedTool
	for _, name := range names {
		spec, ok := p.catalog.GetSpec(name)
		if !ok {
			continue
		}
		status := p.resolver.CheckStatus(ctx, name, "")
		if !status.Installed() {
			continue
		}

		tool := ResolvedTool{Name: spec.Name, Env: spec.Env}
		if status.Kind == resolver.StatusStoreManaged {
			storeName, ok := p.catalog.StoreName(name)
			if !ok {
				storeName = spec.Name
			}
			tool.Root = p.store.VersionDir(storeName, status.Version)
			tool.Bin = filepath.Dir(status.Path)
		}
		out = append(out, tool)
	}
	return out
}

// resolveCommandHead maps the first element of a command prefix to a
// spawnable path: a catalog runtime resolves normally, a proxy helper is
// searched next to its parent (corepack ships inside node's bin), and
// anything else is left for PATH lookup at spawn time.
func (p *Pipeline) resolveCommandHead(ctx context.Context, head string, spec *provider.RuntimeSpec, proxied bool) string {
	if status := p.resolver.CheckStatus(ctx, head, ""); status.Installed() {
		return status.Path
	}
	if proxied && spec.Proxy != nil {
		if parent, ok := p.resolver.LatestInstalled(spec.Proxy.Parent); ok {
			if loc, found := p.disc.FindExecutable(filepath.Dir(parent.Path), head); found {
				return loc.Path
			}
		}
	}
	return head
}

// IsToolInstalled reports whether a tool is usable from the store or the
// system PATH.
func (p *Pipeline) IsToolInstalled(ctx context.Context, name string) bool {
	return p.resolver.IsInstalled(ctx, name)
}

// LatestTool returns the newest managed install of a tool.
func (p *Pipeline) LatestTool(name string) (resolver.Status, bool) {
	return p.resolver.LatestInstalled(name)
}

// checkpoint flushes the discovery caches and the runtime index. Failures
// are logged, never fatal: losing a cache costs a rescan, not correctness.
func (p *Pipeline) checkpoint() {
	if p.disc != nil {
		if err := p.disc.Checkpoint(); err != nil {
			p.logger.Warn("cache checkpoint failed", "err", err)
		}
	}
	if p.index != nil {
		if err := p.index.Save(); err != nil {
			p.logger.Warn("index save failed", "err", err)
		}
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func without(names []string, drop string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}
