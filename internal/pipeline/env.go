// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/loonghao/vx-sub002/internal/config"
)

type (
	// hostEnvConfig controls how much of the host environment seeds the
	// composed environment.
	hostEnvConfig struct {
		mode  config.IsolationMode
		allow []string
		// environ overrides os.Environ for tests.
		environ func() []string
	}

	// ResolvedTool is one runtime that contributes to the composed
	// environment: a dependency, a companion, or an ad-hoc extra.
	ResolvedTool struct {
		Name string
		// Root is the managed version directory. Empty for system tools,
		// which contribute no marker variables.
		Root string
		// Bin is the directory holding the tool's executables.
		Bin string
		// Env are the tool's spec-declared variables, merged without
		// overriding anything already set.
		Env map[string]string
	}

	// composeInput gathers every layer of the environment, lowest
	// precedence first.
	composeInput struct {
		// specEnv are the invoked runtime's static variables.
		specEnv map[string]string
		// projectEnv comes from the project file's [env] table.
		projectEnv map[string]string
		// deps are the invoked runtime's required dependencies.
		deps []ResolvedTool
		// companions are tools pinned alongside the invoked one.
		companions []ResolvedTool
		// extras are ad-hoc injections requested for this run only.
		extras []ResolvedTool
		// executable is the resolved path of the tool being spawned; its
		// parent directory lands at the end of PATH unconditionally.
		executable string
	}
)

// hostEnv seeds the composition from the host per the isolation mode.
// Marker variables owned by the composer (VX_*_ROOT, VX_*_BIN) are
// dropped so a nested run never inherits stale locations.
func hostEnv(cfg hostEnvConfig) map[string]string {
	env := make(map[string]string)
	if cfg.mode == config.IsolationNone {
		return env
	}

	allowSet := make(map[string]struct{})
	if cfg.mode == config.IsolationAllowlist {
		for _, name := range cfg.allow {
			allowSet[name] = struct{}{}
		}
	}

	environ := cfg.environ
	if environ == nil {
		environ = os.Environ
	}

	for _, entry := range environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || ownedMarker(name) {
			continue
		}
		if cfg.mode == config.IsolationAllowlist {
			if _, ok := allowSet[name]; !ok {
				continue
			}
		}
		env[name] = value
	}

	return env
}

// compose layers the execution environment. Precedence, lowest first:
// host environment, spec-declared variables, project variables,
// dependency markers, companion markers, extra-dependency variables
// (merged without overriding). PATH is assembled separately: extras and
// dependencies are prepended, the invoked executable's parent directory
// is appended last.
func compose(cfg hostEnvConfig, in composeInput) map[string]string {
	env := hostEnv(cfg)

	maps.Copy(env, in.specEnv)
	maps.Copy(env, in.projectEnv)

	var prepend []string
	addBin := func(dir string) {
		if dir == "" {
			return
		}
		for _, seen := range prepend {
			if seen == dir {
				return
			}
		}
		prepend = append(prepend, dir)
	}

	for _, dep := range in.deps {
		setMarkers(env, dep)
		addBin(dep.Bin)
	}
	for _, comp := range in.companions {
		setMarkers(env, comp)
		addBin(comp.Bin)
	}
	for _, extra := range in.extras {
		setMarkers(env, extra)
		addBin(extra.Bin)
		for _, key := range sortedKeys(extra.Env) {
			if _, exists := env[key]; !exists {
				env[key] = extra.Env[key]
			}
		}
	}

	env["PATH"] = assemblePath(prepend, env["PATH"], in.executable)
	return env
}

// setMarkers publishes VX_<NAME>_ROOT and VX_<NAME>_BIN for a managed
// tool. System tools have no managed root and publish nothing.
func setMarkers(env map[string]string, tool ResolvedTool) {
	if tool.Root == "" {
		return
	}
	key := markerKey(tool.Name)
	env["VX_"+key+"_ROOT"] = tool.Root
	if tool.Bin != "" {
		env["VX_"+key+"_BIN"] = tool.Bin
	}
}

func assemblePath(prepend []string, base, executable string) string {
	parts := make([]string, 0, len(prepend)+2)
	parts = append(parts, prepend...)
	if base != "" {
		parts = append(parts, base)
	}
	// A bare executable name (pending install, proxy head) has no parent
	// directory worth adding.
	if filepath.IsAbs(executable) {
		parts = append(parts, filepath.Dir(executable))
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// markerKey uppercases a runtime name for use in a variable name,
// mapping anything outside [A-Z0-9] to underscores.
func markerKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ownedMarker reports whether a host variable is one the composer
// publishes itself.
func ownedMarker(name string) bool {
	return strings.HasPrefix(name, "VX_") &&
		(strings.HasSuffix(name, "_ROOT") || strings.HasSuffix(name, "_BIN"))
}

// envSlice flattens an environment map for exec, sorted for stable
// comparison in tests.
func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for _, key := range sortedKeys(env) {
		out = append(out, key+"="+env[key])
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
