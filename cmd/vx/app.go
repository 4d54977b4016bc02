// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loonghao/vx-sub002/internal/bundle"
	"github.com/loonghao/vx-sub002/internal/config"
	"github.com/loonghao/vx-sub002/internal/discover"
	"github.com/loonghao/vx-sub002/internal/index"
	"github.com/loonghao/vx-sub002/internal/issue"
	"github.com/loonghao/vx-sub002/internal/pipeline"
	"github.com/loonghao/vx-sub002/internal/project"
	"github.com/loonghao/vx-sub002/internal/resolver"
	"github.com/loonghao/vx-sub002/internal/store"
	"github.com/loonghao/vx-sub002/pkg/platform"
	"github.com/loonghao/vx-sub002/pkg/provider"
	"github.com/loonghao/vx-sub002/pkg/semver"

	"github.com/charmbracelet/log"
)

const (
	exeCacheFile = "exe.cache"
	binCacheFile = "bin.cache"
	indexFile    = "index.gob"
	bundlesDir   = "bundles"
	manifestsDir = "manifests"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer; all Cobra command handlers build an App and
	// delegate resolution and execution through its Pipeline and Resolver.
	App struct {
		Config   *config.Config
		Project  *project.Config
		Catalog  *provider.StaticCatalog
		Store    store.Store
		Index    *index.Index
		Resolver *resolver.Resolver
		Pipeline *pipeline.Pipeline
		Logger   *log.Logger

		disc *discover.Discovery
	}

	// unavailableBackend stands in for the download and archive-install
	// collaborators, which ship separately from the resolution core.
	// Any attempt to reach the network or unpack an archive fails with
	// guidance instead of a nil-interface panic.
	unavailableBackend struct{}
)

// newApp assembles the production dependency graph: configuration,
// project file, provider catalog, managed store, discovery caches,
// runtime index, resolver, and pipeline.
func newApp(ctx context.Context) (*App, error) {
	cfg, err := loadConfigOrDefaults(ctx)
	if err != nil {
		return nil, err
	}

	proj, err := findProject()
	if err != nil {
		return nil, err
	}

	catalog, err := openCatalog(cfg)
	if err != nil {
		return nil, err
	}

	storeDir, err := cfg.StoreDir()
	if err != nil {
		return nil, issue.WrapWithOperation(err, "locate the managed store")
	}
	st := store.New(storeDir)

	cacheDir, err := cfg.CacheDir()
	if err != nil {
		return nil, issue.WrapWithOperation(err, "locate the cache directory")
	}
	disc := discover.NewDiscovery(
		discover.OpenCache(filepath.Join(cacheDir, exeCacheFile)),
		discover.OpenCache(filepath.Join(cacheDir, binCacheFile)),
	)
	idx := index.Open(filepath.Join(cacheDir, indexFile))

	baseDir, err := config.BaseDir()
	if err != nil {
		return nil, issue.WrapWithOperation(err, "locate the vx base directory")
	}

	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "vx",
		Level:  level,
	})

	// Inside a Flatpak or Snap sandbox the PATH belongs to the sandbox
	// image, not the host, so system lookups are misleading. Prefer the
	// managed store regardless of the configured order.
	order := cfg.StatusOrder
	if sandboxType := platform.DetectSandbox(); sandboxType != platform.SandboxNone {
		logger.Debug("sandbox detected, preferring managed store", "sandbox", sandboxType)
		order = config.StatusOrderStoreFirst
	}

	res := resolver.New(catalog, st, disc, resolver.Options{
		Order:              order,
		PreferLTS:          cfg.PreferLTS,
		IncludePrereleases: cfg.IncludePrereleases,
	})

	backend := unavailableBackend{}
	pipe := pipeline.New(pipeline.Deps{
		Config:    cfg,
		Project:   proj,
		Catalog:   catalog,
		Store:     st,
		Discovery: disc,
		Index:     idx,
		Resolver:  res,
		Versions:  backend,
		Installer: backend,
		Bundles:   bundle.Open(filepath.Join(baseDir, bundlesDir)),
		Logger:    logger,
	})

	return &App{
		Config:   cfg,
		Project:  proj,
		Catalog:  catalog,
		Store:    st,
		Index:    idx,
		Resolver: res,
		Pipeline: pipe,
		Logger:   logger,
		disc:     disc,
	}, nil
}

// Checkpoint flushes the discovery caches and the runtime index. Commands
// that resolve outside the pipeline call this before returning.
func (a *App) Checkpoint() {
	if err := a.disc.Checkpoint(); err != nil {
		a.Logger.Warn("saving discovery caches failed", "err", err)
	}
	if err := a.Index.Save(); err != nil {
		a.Logger.Warn("saving runtime index failed", "err", err)
	}
}

// loadConfigOrDefaults loads configuration via the provider. An explicit
// --config path must load cleanly; on the default path a broken or
// unreadable file degrades to defaults with a warning so every command
// stays operational.
func loadConfigOrDefaults(ctx context.Context) (*config.Config, error) {
	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err == nil {
		return cfg, nil
	}
	if cfgFile != "" {
		return nil, err
	}

	fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
	return config.DefaultConfig(), nil
}

// findProject walks up from the working directory looking for a vx.toml.
// No project file is fine; a file that fails to parse is not.
func findProject() (*project.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	proj, _, err := project.Find(wd)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return proj, nil
}

// openCatalog loads the built-in runtime manifests plus any extra
// manifest directories: the config dir's manifests/ subdirectory when it
// exists, then the directories named in the configuration.
func openCatalog(cfg *config.Config) (*provider.StaticCatalog, error) {
	var dirs []string
	if configDir, err := config.ConfigDir(); err == nil {
		candidate := filepath.Join(configDir, manifestsDir)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			dirs = append(dirs, candidate)
		}
	}
	dirs = append(dirs, cfg.ManifestDirs...)

	catalog, err := provider.NewCatalog(dirs...)
	if err != nil {
		return nil, issue.WrapWithOperation(err, "load runtime manifests")
	}

	return catalog, nil
}

// Versions reports that the network-backed version source is not wired in.
func (unavailableBackend) Versions(_ context.Context, runtime string) ([]semver.Candidate, error) {
	return nil, backendUnavailable("list versions", runtime)
}

// Install reports that the download backend is not wired in.
func (unavailableBackend) Install(_ context.Context, runtime, version string) error {
	return backendUnavailable("install runtime", runtime+"@"+version)
}

// InstallBundle reports that the archive installer is not wired in.
func (unavailableBackend) InstallBundle(_ context.Context, runtime, version, bundlePath string) error {
	return issue.NewErrorContext().
		WithOperation("install bundle").
		WithResource(bundlePath).
		WithSuggestion("Unpack the bundle manually into the vx store directory").
		Wrap(errors.New("no install backend is configured in this build")).
		Build()
}

func backendUnavailable(operation, resource string) error {
	return issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		WithSuggestion("Install the runtime manually under the vx store directory").
		WithSuggestion("Enable offline mode and drop a bundle into the bundles directory").
		Wrap(errors.New("no install backend is configured in this build")).
		Build()
}
