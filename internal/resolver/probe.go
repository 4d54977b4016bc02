// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"
)

// probeTimeout bounds how long a version probe may run. Interpreters that
// hang on --version would otherwise stall every resolution.
const probeTimeout = 5 * time.Second

// versionPattern extracts the first dotted version from probe output,
// tolerating banners like "Python 3.11.4" or "v20.11.0 (LTS)".
var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// ProbeFunc asks an executable for its version. Implementations return
// the extracted version string or an error when it cannot be determined.
type ProbeFunc func(ctx context.Context, exe string) (string, error)

// ProbeVersion runs "<exe> --version" and extracts the first dotted
// version number from the combined output. Tools that print their version
// to stderr (older Python) are covered by combining the streams.
func ProbeVersion(ctx context.Context, exe string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, exe, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("probe %s: %w", exe, err)
	}

	v := versionPattern.FindString(string(out))
	if v == "" {
		return "", fmt.Errorf("probe %s: no version in output %q", exe, trimForError(out))
	}
	return v, nil
}

func trimForError(out []byte) string {
	const keep = 64
	if len(out) <= keep {
		return string(out)
	}
	return string(out[:keep]) + "..."
}
