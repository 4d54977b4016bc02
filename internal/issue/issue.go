// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic detection via errors.Is.
var (
	// ErrUnresolvableVersion marks a version request no candidate satisfies.
	ErrUnresolvableVersion = errors.New("unresolvable version")

	// ErrMissingDependency marks required dependencies that are not installed.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrIncompatibleDependency marks an installed dependency whose version
	// falls outside the declared bounds.
	ErrIncompatibleDependency = errors.New("incompatible dependency")

	// ErrUnsupportedPlatform marks runtimes that cannot run on the current
	// platform, detected before any install attempt.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrOffline marks an install that needs the network while the system
	// is offline and no local bundle satisfies the request. Distinct from
	// generic network failures so callers can suggest bundle workflows.
	ErrOffline = errors.New("offline and no bundle available")

	// ErrProxyParentRequired marks a proxy-managed version whose parent
	// runtime is unavailable and could not be installed.
	ErrProxyParentRequired = errors.New("proxy parent runtime required")

	// ErrInstallDisabled marks a pipeline abort because installs were
	// needed while automatic installation is disabled by configuration.
	ErrInstallDisabled = errors.New("automatic installation disabled")
)

type (
	// UnresolvableVersionError reports a version request that matched no
	// candidate, carrying the bounds of the candidate set that was
	// searched so the message can show what is available.
	UnresolvableVersionError struct {
		Runtime   string
		Requested string
		// Lowest and Highest bound the searched candidate set.
		// Both empty means no candidates existed at all.
		Lowest  string
		Highest string
	}

	// MissingDependencyError reports required dependencies that are not
	// installed, listed in install order.
	MissingDependencyError struct {
		Runtime string
		Missing []string
	}

	// IncompatibleDependencyError reports one installed dependency whose
	// version falls outside the declared bounds.
	IncompatibleDependencyError struct {
		Runtime    string
		Dependency string
		Installed  string
		// Min and Max are the declared bounds; empty means unbounded.
		Min string
		Max string
		// Recommended is the version to suggest installing instead.
		Recommended string
	}

	// UnsupportedPlatformError reports runtimes that do not support the
	// current platform.
	UnsupportedPlatformError struct {
		Platform string
		Runtimes []string
	}

	// OfflineError reports an install that requires the network while the
	// system is offline and no offline bundle satisfies the request.
	OfflineError struct {
		Runtime   string
		Requested string
	}

	// ProxyParentRequiredError reports a proxy-managed version whose
	// parent runtime is unavailable. The request is never silently
	// downgraded to a version the parent is not needed for.
	ProxyParentRequiredError struct {
		Runtime string
		Version string
		Parent  string
		Cause   error
	}
)

// Error implements the error interface.
func (e *UnresolvableVersionError) Error() string {
	if e.Lowest == "" && e.Highest == "" {
		return fmt.Sprintf("no version of %s satisfies %q (no versions available)", e.Runtime, e.Requested)
	}
	return fmt.Sprintf("no version of %s satisfies %q (available: %s to %s)",
		e.Runtime, e.Requested, e.Lowest, e.Highest)
}

// Unwrap returns ErrUnresolvableVersion for errors.Is compatibility.
func (e *UnresolvableVersionError) Unwrap() error { return ErrUnresolvableVersion }

// Error implements the error interface.
func (e *MissingDependencyError) Error() string {
	verb := "are"
	if len(e.Missing) == 1 {
		verb = "is"
	}
	return fmt.Sprintf("%s requires %s, which %s not installed",
		e.Runtime, strings.Join(e.Missing, ", "), verb)
}

// Unwrap returns ErrMissingDependency for errors.Is compatibility.
func (e *MissingDependencyError) Unwrap() error { return ErrMissingDependency }

// Error implements the error interface.
func (e *IncompatibleDependencyError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "%s requires %s %s, found %s",
		e.Runtime, e.Dependency, describeBounds(e.Min, e.Max), e.Installed)
	if e.Recommended != "" {
		fmt.Fprintf(&msg, " (recommended: %s)", e.Recommended)
	}
	return msg.String()
}

// Unwrap returns ErrIncompatibleDependency for errors.Is compatibility.
func (e *IncompatibleDependencyError) Unwrap() error { return ErrIncompatibleDependency }

// Error implements the error interface.
func (e *UnsupportedPlatformError) Error() string {
	verb := "are"
	if len(e.Runtimes) == 1 {
		verb = "is"
	}
	return fmt.Sprintf("%s %s not supported on %s",
		strings.Join(e.Runtimes, ", "), verb, e.Platform)
}

// Unwrap returns ErrUnsupportedPlatform for errors.Is compatibility.
func (e *UnsupportedPlatformError) Unwrap() error { return ErrUnsupportedPlatform }

// Error implements the error interface.
func (e *OfflineError) Error() string {
	return fmt.Sprintf("cannot install %s@%s: offline and no matching bundle is available",
		e.Runtime, e.Requested)
}

// Unwrap returns ErrOffline for errors.Is compatibility.
func (e *OfflineError) Unwrap() error { return ErrOffline }

// Error implements the error interface.
func (e *ProxyParentRequiredError) Error() string {
	msg := fmt.Sprintf("%s@%s is managed through %s, which is required but unavailable",
		e.Runtime, e.Version, e.Parent)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns ErrProxyParentRequired for errors.Is compatibility.
// The cause is deliberately not part of the unwrap chain: callers branch
// on the proxy condition, not on the underlying installer failure.
func (e *ProxyParentRequiredError) Unwrap() error { return ErrProxyParentRequired }

func describeBounds(minVersion, maxVersion string) string {
	switch {
	case minVersion != "" && maxVersion != "":
		return fmt.Sprintf(">=%s <=%s", minVersion, maxVersion)
	case minVersion != "":
		return ">=" + minVersion
	case maxVersion != "":
		return "<=" + maxVersion
	default:
		return "any version"
	}
}
