// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loonghao/vx-sub002/internal/config"
	"github.com/loonghao/vx-sub002/internal/discover"
	"github.com/loonghao/vx-sub002/internal/issue"
	"github.com/loonghao/vx-sub002/internal/project"
	"github.com/loonghao/vx-sub002/internal/resolver"
	"github.com/loonghao/vx-sub002/internal/store"
	"github.com/loonghao/vx-sub002/pkg/provider"
	"github.com/loonghao/vx-sub002/pkg/semver"
)

// --- fakes ---

type fakeVersions struct {
	byRuntime map[string][]semver.Candidate
	err       error
}

func (f *fakeVersions) Versions(_ context.Context, runtime string) ([]semver.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byRuntime[runtime], nil
}

// fakeInstaller materializes installs as real store layouts so the
// post-install re-resolution finds them.
type fakeInstaller struct {
	store store.Store
	// exes lists the executables each runtime install ships.
	exes map[string][]string

	installs []string
	bundles  []string
	err      error
}

func (f *fakeInstaller) place(runtime, version string) error {
	bin := filepath.Join(f.store.VersionDir(runtime, version), "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		return err
	}
	exes := f.exes[runtime]
	if len(exes) == 0 {
		exes = []string{runtime}
	}
	for _, exe := range exes {
		if err := os.WriteFile(filepath.Join(bin, exe), []byte("#!/bin/sh\n"), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeInstaller) Install(_ context.Context, runtime, version string) error {
	if f.err != nil {
		return f.err
	}
	f.installs = append(f.installs, runtime+"@"+version)
	return f.place(runtime, version)
}

func (f *fakeInstaller) InstallBundle(_ context.Context, runtime, version, bundlePath string) error {
	if f.err != nil {
		return f.err
	}
	f.bundles = append(f.bundles, runtime+"@"+version+"<-"+bundlePath)
	return f.place(runtime, version)
}

type fakeBundles struct {
	version, path string
}

func (f *fakeBundles) Lookup(runtime, request string) (string, string, bool) {
	if f.version == "" {
		return "", "", false
	}
	return f.version, f.path, true
}

type fakeRunner struct {
	code    int
	waitCtx bool

	ran  bool
	last Command
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) (int, error) {
	f.ran = true
	f.last = cmd
	if f.waitCtx {
		<-ctx.Done()
	}
	return f.code, nil
}

// --- fixture ---

type fixture struct {
	store     store.Store
	pipeline  *Pipeline
	installer *fakeInstaller
	runner    *fakeRunner
}

func candidates(t *testing.T, specs ...string) []semver.Candidate {
	t.Helper()
	out := make([]semver.Candidate, 0, len(specs))
	for _, s := range specs {
		version, lts := s, false
		if rest, found := strings.CutSuffix(s, "+lts"); found {
			version, lts = rest, true
		}
		c, err := semver.NewCandidate(version, lts)
		if err != nil {
			t.Fatalf("candidate %q: %v", s, err)
		}
		out = append(out, c)
	}
	return out
}

func toolchainSpecs() []provider.RuntimeSpec {
	return []provider.RuntimeSpec{
		{Name: "node", PreferLTS: true},
		{
			Name:       "npm",
			ProvidedBy: "node",
			Dependencies: []provider.Dependency{
				{Runtime: "node", Required: true, MinVersion: "14.0.0", RecommendedVersion: "20.11.0"},
			},
		},
		{
			Name: "python",
			Env:  map[string]string{"PYTHONDONTWRITEBYTECODE": "1"},
		},
		{
			Name:          "pip",
			ProvidedBy:    "python",
			CommandPrefix: []string{"python", "-m", "pip"},
			Dependencies: []provider.Dependency{
				{Runtime: "python", Required: true, MinVersion: "3.8.0"},
			},
		},
		{
			Name: "yarn",
			Dependencies: []provider.Dependency{
				{Runtime: "node", Required: true, MinVersion: "16.0.0", RecommendedVersion: "20.11.0"},
			},
			Proxy: &provider.ProxyRule{
				MinVersion:    "2.0.0",
				Parent:        "node",
				CommandPrefix: []string{"corepack", "yarn"},
			},
		},
		{Name: "go"},
	}
}

func newFixture(t *testing.T, cfg *config.Config, proj *project.Config, versions map[string][]semver.Candidate) *fixture {
	t.Helper()

	cat, err := provider.NewCatalogFromSpecs(toolchainSpecs()...)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	st := store.New(t.TempDir())
	disc := discover.NewDiscovery(nil, nil)
	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Isolation.Mode = config.IsolationNone
	}

	res := resolver.New(cat, st, disc, resolver.Options{
		Order:     cfg.StatusOrder,
		PreferLTS: cfg.PreferLTS,
		LookPath:  func(string) (string, error) { return "", errors.New("not on PATH") },
		Probe:     func(context.Context, string) (string, error) { return "", errors.New("no probe") },
	})

	installer := &fakeInstaller{
		store: st,
		exes: map[string][]string{
			"node":   {"node", "npm", "corepack"},
			"python": {"python", "pip"},
		},
	}
	runner := &fakeRunner{}

	p := New(Deps{
		Config:    cfg,
		Project:   proj,
		Catalog:   cat,
		Store:     st,
		Discovery: disc,
		Resolver:  res,
		Versions:  &fakeVersions{byRuntime: versions},
		Installer: installer,
		Runner:    runner,
	})
	return &fixture{store: st, pipeline: p, installer: installer, runner: runner}
}

func installInStore(t *testing.T, f *fixture, runtime, version string) {
	t.Helper()
	if err := f.installer.place(runtime, version); err != nil {
		t.Fatalf("place %s@%s: %v", runtime, version, err)
	}
}

// --- tests ---

func TestExecuteInstalledTool(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	installInStore(t, f, "node", "20.11.0")

	code, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "node", Args: []string{"--eval", "1"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != 0 {
		t.Errorf("code = %d, want 0", code)
	}
	if !f.runner.ran {
		t.Fatal("runner never invoked")
	}

	wantBin := filepath.Join(f.store.VersionDir("node", "20.11.0"), "bin")
	if filepath.Dir(f.runner.last.Path) != wantBin {
		t.Errorf("spawned %q, want executable under %q", f.runner.last.Path, wantBin)
	}
	if len(f.runner.last.Args) != 2 || f.runner.last.Args[0] != "--eval" {
		t.Errorf("args = %v", f.runner.last.Args)
	}
	if len(f.installer.installs) != 0 {
		t.Errorf("unexpected installs: %v", f.installer.installs)
	}

	// The executable's own directory lands at the end of PATH.
	for _, entry := range f.runner.last.Env {
		if strings.HasPrefix(entry, "PATH=") && !strings.HasSuffix(entry, wantBin) {
			t.Errorf("PATH should end with %q: %s", wantBin, entry)
		}
	}
}

func TestExecuteAutoInstallPrefersLTS(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, map[string][]semver.Candidate{
		"node": candidates(t, "22.1.0", "20.11.0+lts", "18.17.0+lts"),
	})

	code, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "node"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != 0 {
		t.Errorf("code = %d", code)
	}
	if len(f.installer.installs) != 1 || f.installer.installs[0] != "node@20.11.0" {
		t.Errorf("installs = %v, want [node@20.11.0]", f.installer.installs)
	}
}

func TestExecuteBundledToolInstallsParent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, map[string][]semver.Candidate{
		"node": candidates(t, "20.11.0+lts"),
	})

	_, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "npm"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// npm itself is never installed: it ships with node.
	if len(f.installer.installs) != 1 || f.installer.installs[0] != "node@20.11.0" {
		t.Errorf("installs = %v, want only the parent", f.installer.installs)
	}
	if base := filepath.Base(f.runner.last.Path); base != "npm" {
		t.Errorf("spawned %q, want npm", f.runner.last.Path)
	}
	// The parent dependency publishes its markers.
	root := f.store.VersionDir("node", "20.11.0")
	wantMarker := "VX_NODE_ROOT=" + root
	found := false
	for _, entry := range f.runner.last.Env {
		if entry == wantMarker {
			found = true
		}
	}
	if !found {
		t.Errorf("env missing %q: %v", wantMarker, f.runner.last.Env)
	}
}

func TestExecuteAutoInstallDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.AutoInstall = false
	cfg.Isolation.Mode = config.IsolationNone
	f := newFixture(t, cfg, nil, nil)

	_, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "npm"})
	if !errors.Is(err, issue.ErrMissingDependency) {
		t.Errorf("err = %v, want ErrMissingDependency", err)
	}
	if f.runner.ran {
		t.Error("runner must not run when installs are disabled and missing")
	}
}

func TestExecuteOffline(t *testing.T) {
	t.Parallel()

	t.Run("no bundle", func(t *testing.T) {
		t.Parallel()
		cfg := config.DefaultConfig()
		cfg.Offline = true
		cfg.Isolation.Mode = config.IsolationNone
		f := newFixture(t, cfg, nil, nil)

		_, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "node", Version: "20"})
		if !errors.Is(err, issue.ErrOffline) {
			t.Errorf("err = %v, want ErrOffline", err)
		}
	})

	t.Run("bundle satisfies", func(t *testing.T) {
		t.Parallel()
		cfg := config.DefaultConfig()
		cfg.Offline = true
		cfg.Isolation.Mode = config.IsolationNone
		f := newFixture(t, cfg, nil, nil)
		f.pipeline.bundles = &fakeBundles{version: "20.11.0", path: "/bundles/node-20.11.0.tar.zst"}

		code, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "node", Version: "20"})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if code != 0 {
			t.Errorf("code = %d", code)
		}
		if len(f.installer.bundles) != 1 || !strings.HasPrefix(f.installer.bundles[0], "node@20.11.0") {
			t.Errorf("bundle installs = %v", f.installer.bundles)
		}
		if len(f.installer.installs) != 0 {
			t.Errorf("network installs = %v, want none offline", f.installer.installs)
		}
	})
}

func TestExecuteUnresolvableVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, map[string][]semver.Candidate{
		"node": candidates(t, "18.17.0", "20.11.0"),
	})

	_, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "node", Version: "99"})
	var unres *issue.UnresolvableVersionError
	if !errors.As(err, &unres) {
		t.Fatalf("err = %v, want UnresolvableVersionError", err)
	}
	if unres.Lowest != "18.17.0" || unres.Highest != "20.11.0" {
		t.Errorf("bounds = %s..%s", unres.Lowest, unres.Highest)
	}
}

func TestExecuteProxyManagedVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, map[string][]semver.Candidate{
		"node": candidates(t, "20.11.0+lts"),
	})

	code, err := f.pipeline.Execute(context.Background(), ExecuteRequest{
		Tool:    "yarn",
		Version: "3.1.0",
		Args:    []string{"install"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != 0 {
		t.Errorf("code = %d", code)
	}

	// yarn is never installed directly; only the parent is.
	for _, in := range f.installer.installs {
		if strings.HasPrefix(in, "yarn@") {
			t.Errorf("yarn installed directly: %v", f.installer.installs)
		}
	}

	// Spawn goes through corepack from node's bin with the tool name prefixed.
	if base := filepath.Base(f.runner.last.Path); base != "corepack" {
		t.Errorf("spawned %q, want corepack", f.runner.last.Path)
	}
	if len(f.runner.last.Args) != 2 || f.runner.last.Args[0] != "yarn" || f.runner.last.Args[1] != "install" {
		t.Errorf("args = %v, want [yarn install]", f.runner.last.Args)
	}
}

func TestExecuteProxyManagedUnversioned(t *testing.T) {
	t.Parallel()

	// An open request must resolve to a concrete version before the
	// proxy threshold is checked: the latest yarn line is corepack
	// territory even though "latest" itself is not a parseable version.
	f := newFixture(t, nil, nil, map[string][]semver.Candidate{
		"node": candidates(t, "20.11.0+lts"),
		"yarn": candidates(t, "1.22.19", "4.1.0"),
	})

	prep, err := f.pipeline.Prepare(context.Background(), ExecuteRequest{Tool: "yarn"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if prep.Version != "4.1.0" {
		t.Errorf("version = %q, want 4.1.0", prep.Version)
	}
	if base := filepath.Base(prep.Path); base != "corepack" {
		t.Errorf("head = %q, want corepack", prep.Path)
	}
	if len(prep.PrefixArgs) != 1 || prep.PrefixArgs[0] != "yarn" {
		t.Errorf("prefix args = %v, want [yarn]", prep.PrefixArgs)
	}

	// Only the parent lands in the store.
	if len(f.installer.installs) != 1 || f.installer.installs[0] != "node@20.11.0" {
		t.Errorf("installs = %v, want [node@20.11.0]", f.installer.installs)
	}
}

func TestExecuteProxyManagedNoInstallNeeded(t *testing.T) {
	t.Parallel()

	// With the parent already present the proxy path has nothing to
	// install, so disabling auto-install must not block it.
	cfg := config.DefaultConfig()
	cfg.AutoInstall = false
	cfg.Isolation.Mode = config.IsolationNone

	f := newFixture(t, cfg, nil, nil)
	installInStore(t, f, "node", "20.11.0")

	code, err := f.pipeline.Execute(context.Background(), ExecuteRequest{
		Tool:    "yarn",
		Version: "3.1.0",
		Args:    []string{"--version"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != 0 {
		t.Errorf("code = %d", code)
	}
	if len(f.installer.installs) != 0 {
		t.Errorf("unexpected installs: %v", f.installer.installs)
	}
	if base := filepath.Base(f.runner.last.Path); base != "corepack" {
		t.Errorf("spawned %q, want corepack", f.runner.last.Path)
	}
}

func TestExecuteProxyManagedMissingParentInstallDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.AutoInstall = false
	cfg.Isolation.Mode = config.IsolationNone

	f := newFixture(t, cfg, nil, nil)

	_, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "yarn", Version: "3.1.0"})
	if !errors.Is(err, issue.ErrProxyParentRequired) {
		t.Fatalf("err = %v, want ErrProxyParentRequired", err)
	}
	var proxyErr *issue.ProxyParentRequiredError
	if !errors.As(err, &proxyErr) || proxyErr.Parent != "node" {
		t.Errorf("unexpected error shape: %v", err)
	}
}

func TestProxyParentRequired(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	cat := f.pipeline.catalog
	spec, _ := cat.GetSpec("yarn")

	_, err := f.pipeline.prepareProxy(context.Background(), spec, "3.1.0", false)
	if !errors.Is(err, issue.ErrProxyParentRequired) {
		t.Fatalf("err = %v, want ErrProxyParentRequired", err)
	}
	var proxyErr *issue.ProxyParentRequiredError
	if !errors.As(err, &proxyErr) || proxyErr.Parent != "node" {
		t.Errorf("unexpected error shape: %v", err)
	}
}

func TestProxyApplies(t *testing.T) {
	t.Parallel()

	spec := &provider.RuntimeSpec{
		Name:  "yarn",
		Proxy: &provider.ProxyRule{MinVersion: "2.0.0", Parent: "node"},
	}

	tests := []struct {
		version string
		want    bool
	}{
		{"1.22.19", false},
		{"2.0.0", true},
		{"3.1.0", true},
		{"", false},
		{"latest", false},
	}
	for _, tt := range tests {
		if got := proxyApplies(spec, tt.version); got != tt.want {
			t.Errorf("proxyApplies(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
	if proxyApplies(&provider.RuntimeSpec{Name: "node"}, "3.0.0") {
		t.Error("spec without proxy rule should never apply")
	}
}

func TestExecuteCommandPrefixModuleTool(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	installInStore(t, f, "python", "3.11.4")

	_, err := f.pipeline.Execute(context.Background(), ExecuteRequest{
		Tool: "pip",
		Args: []string{"install", "requests"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if base := filepath.Base(f.runner.last.Path); base != "python" {
		t.Errorf("spawned %q, want python", f.runner.last.Path)
	}
	want := []string{"-m", "pip", "install", "requests"}
	if len(f.runner.last.Args) != len(want) {
		t.Fatalf("args = %v, want %v", f.runner.last.Args, want)
	}
	for i := range want {
		if f.runner.last.Args[i] != want[i] {
			t.Fatalf("args = %v, want %v", f.runner.last.Args, want)
		}
	}
}

func TestExecuteUsesProjectPin(t *testing.T) {
	t.Parallel()

	proj := &project.Config{Tools: map[string]string{"node": "18"}}
	f := newFixture(t, nil, proj, nil)
	installInStore(t, f, "node", "18.17.0")
	installInStore(t, f, "node", "20.11.0")

	prep, err := f.pipeline.Prepare(context.Background(), ExecuteRequest{Tool: "node"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if prep.Version != "18.17.0" {
		t.Errorf("Version = %q, want pinned 18.17.0", prep.Version)
	}
}

func TestExecuteExtrasInjection(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	installInStore(t, f, "node", "20.11.0")
	installInStore(t, f, "go", "1.22.0")

	_, err := f.pipeline.Execute(context.Background(), ExecuteRequest{
		Tool:   "node",
		Extras: []string{"go"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	goBin := filepath.Join(f.store.VersionDir("go", "1.22.0"), "bin")
	var path, marker string
	for _, entry := range f.runner.last.Env {
		if v, ok := strings.CutPrefix(entry, "PATH="); ok {
			path = v
		}
		if v, ok := strings.CutPrefix(entry, "VX_GO_ROOT="); ok {
			marker = v
		}
	}
	if !strings.Contains(path, goBin) {
		t.Errorf("PATH %q missing extra bin %q", path, goBin)
	}
	if marker != f.store.VersionDir("go", "1.22.0") {
		t.Errorf("VX_GO_ROOT = %q", marker)
	}
}

func TestExecuteCompanionMarkers(t *testing.T) {
	t.Parallel()

	proj := &project.Config{Tools: map[string]string{"node": "20", "python": "3.11"}}
	f := newFixture(t, nil, proj, nil)
	installInStore(t, f, "node", "20.11.0")
	installInStore(t, f, "python", "3.11.4")

	_, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "node"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	found := false
	for _, entry := range f.runner.last.Env {
		if strings.HasPrefix(entry, "VX_PYTHON_ROOT=") {
			found = true
		}
	}
	if !found {
		t.Error("companion python should publish its root marker")
	}
}

func TestExecuteSpawnTimeout(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Isolation.Mode = config.IsolationNone
	cfg.SpawnTimeout = 10 * time.Millisecond
	f := newFixture(t, cfg, nil, nil)
	installInStore(t, f, "node", "20.11.0")
	f.runner.waitCtx = true
	f.runner.code = 137

	code, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "node"})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v, want timeout", err)
	}
	if code != 137 {
		t.Errorf("code = %d, want the child's code", code)
	}
}

func TestExecutePropagatesChildExitCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	installInStore(t, f, "node", "20.11.0")
	f.runner.code = 42

	code, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "node"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if code != 42 {
		t.Errorf("code = %d, want 42", code)
	}
}

func TestCheckpointPersistsCaches(t *testing.T) {
	t.Parallel()

	cachePath := filepath.Join(t.TempDir(), "exe.cache")
	disc := discover.NewDiscovery(discover.OpenCache(cachePath), nil)

	f := newFixture(t, nil, nil, nil)
	f.pipeline.disc = disc
	// Rebuild the resolver over the persistent cache.
	f.pipeline.resolver = resolver.New(f.pipeline.catalog, f.store, disc, resolver.Options{
		LookPath: func(string) (string, error) { return "", errors.New("not on PATH") },
	})
	installInStore(t, f, "node", "20.11.0")

	if _, err := f.pipeline.Execute(context.Background(), ExecuteRequest{Tool: "node"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(cachePath); err != nil {
		t.Errorf("cache not persisted after execute: %v", err)
	}
}

func TestIsToolInstalled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	installInStore(t, f, "node", "20.11.0")

	ctx := context.Background()
	if !f.pipeline.IsToolInstalled(ctx, "node") {
		t.Error("node should be installed")
	}
	if f.pipeline.IsToolInstalled(ctx, "python") {
		t.Error("python should not be installed")
	}
	if status, ok := f.pipeline.LatestTool("node"); !ok || status.Version != "20.11.0" {
		t.Errorf("LatestTool = %+v, %v", status, ok)
	}
}
