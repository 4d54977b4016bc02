// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"

	"github.com/loonghao/vx-sub002/internal/issue"
	"github.com/loonghao/vx-sub002/pkg/provider"
	"github.com/loonghao/vx-sub002/pkg/semver"
)

// proxyState tracks the setup of a proxy-managed version. The states only
// move forward: NeedsParent -> ParentInstalling -> Retrying -> Ready, with
// Failed reachable from any of them.
type proxyState int

const (
	proxyNeedsParent proxyState = iota
	proxyParentInstalling
	proxyRetrying
	proxyReady
	proxyFailed
)

func (s proxyState) String() string {
	switch s {
	case proxyNeedsParent:
		return "needs-parent"
	case proxyParentInstalling:
		return "parent-installing"
	case proxyRetrying:
		return "retrying"
	case proxyReady:
		return "ready"
	default:
		return "failed"
	}
}

// proxyApplies reports whether a concrete version falls under the spec's
// proxy rule. Versions below the rule's threshold install directly.
func proxyApplies(spec *provider.RuntimeSpec, version string) bool {
	if spec.Proxy == nil || version == "" {
		return false
	}
	v, err := semver.Parse(version)
	if err != nil {
		return false
	}
	threshold, err := semver.Parse(spec.Proxy.MinVersion)
	if err != nil {
		return false
	}
	return semver.Compare(v, threshold) >= 0
}

// prepareProxy drives the proxy state machine for one version: make sure
// the declared parent runtime exists (installing it when policy allows),
// then hand back the command prefix that replaces direct invocation.
//
// A missing parent is a hard failure, never a silent substitution with a
// non-proxy version.
func (p *Pipeline) prepareProxy(ctx context.Context, spec *provider.RuntimeSpec, version string, autoInstall bool) ([]string, error) {
	rule := spec.Proxy
	state := proxyNeedsParent

	fail := func(cause error) ([]string, error) {
		state = proxyFailed
		p.logger.Debug("proxy setup failed", "tool", spec.Name, "state", state.String())
		return nil, &issue.ProxyParentRequiredError{
			Runtime: spec.Name,
			Version: version,
			Parent:  rule.Parent,
			Cause:   cause,
		}
	}

	if !p.resolver.IsInstalled(ctx, rule.Parent) {
		if !autoInstall {
			return fail(issue.ErrInstallDisabled)
		}

		state = proxyParentInstalling
		p.logger.Debug("installing proxy parent", "tool", spec.Name, "parent", rule.Parent, "state", state.String())
		if _, err := p.ensureInstalled(ctx, rule.Parent, ""); err != nil {
			return fail(err)
		}

		state = proxyRetrying
		if !p.resolver.IsInstalled(ctx, rule.Parent) {
			return fail(fmt.Errorf("%s still unavailable after install", rule.Parent))
		}
	}

	state = proxyReady
	p.logger.Debug("proxy ready", "tool", spec.Name, "parent", rule.Parent, "state", state.String())

	prefix := rule.CommandPrefix
	if len(prefix) == 0 {
		prefix = []string{rule.Parent, spec.Name}
	}
	return prefix, nil
}
