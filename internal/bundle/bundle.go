// SPDX-License-Identifier: MPL-2.0

// Package bundle locates offline install archives. A bundle directory
// holds files named "<runtime>-<version>.vxbundle"; lookups resolve a
// version request against the archives present so installs can proceed
// without the network.
package bundle

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/loonghao/vx-sub002/pkg/semver"
)

// Suffix is the file extension bundle archives must carry.
const Suffix = ".vxbundle"

// runtimeNameRegex validates the runtime part of a bundle file name:
// lowercase alphanumeric with interior hyphens, starting with a letter.
var runtimeNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// Dir is a bundle store backed by a flat directory of archives.
// A missing directory behaves as an empty store.
type Dir struct {
	root string
}

// Open returns a bundle store rooted at the given directory.
func Open(root string) Dir {
	return Dir{root: root}
}

// Root returns the directory this store reads from.
func (d Dir) Root() string { return d.root }

// Lookup returns the concrete version and archive path of a local bundle
// satisfying the request, if one exists. An empty request means "latest".
func (d Dir) Lookup(runtime, request string) (version, path string, ok bool) {
	if request == "" {
		request = "latest"
	}

	versions := d.versionsFor(runtime)
	if len(versions) == 0 {
		return "", "", false
	}

	candidates := make([]semver.Candidate, 0, len(versions))
	for _, v := range versions {
		cand, err := semver.NewCandidate(v, false)
		if err != nil {
			continue
		}
		candidates = append(candidates, cand)
	}

	picked, found := semver.Resolve(request, candidates, semver.ResolveOptions{})
	if !found {
		return "", "", false
	}

	return picked.Version, filepath.Join(d.root, runtime+"-"+picked.Version+Suffix), true
}

// versionsFor lists the archive versions present for one runtime.
func (d Dir) versionsFor(runtime string) []string {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, version, ok := ParseFileName(entry.Name())
		if !ok || name != runtime {
			continue
		}
		versions = append(versions, version)
	}

	return versions
}

// ParseFileName splits a bundle file name into its runtime and version
// parts. The expected shape is "<runtime>-<version>.vxbundle" where the
// version starts with a digit; the split happens at the first hyphen
// followed by a digit, so hyphenated runtime names stay intact.
func ParseFileName(fileName string) (runtime, version string, ok bool) {
	if !strings.HasSuffix(fileName, Suffix) {
		return "", "", false
	}
	stem := strings.TrimSuffix(fileName, Suffix)

	for i := 1; i < len(stem)-1; i++ {
		if stem[i] != '-' {
			continue
		}
		if stem[i+1] < '0' || stem[i+1] > '9' {
			continue
		}
		runtime, version = stem[:i], stem[i+1:]
		if !runtimeNameRegex.MatchString(runtime) {
			return "", "", false
		}
		if _, err := semver.Parse(version); err != nil {
			return "", "", false
		}
		return runtime, version, true
	}

	return "", "", false
}
