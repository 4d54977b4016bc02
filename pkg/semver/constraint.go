// SPDX-License-Identifier: MPL-2.0

package semver

import (
	"sort"
	"strings"
)

// ConstraintKind discriminates the parsed constraint variants.
type ConstraintKind int

// Constraint variants, from most to least specific.
const (
	// KindInvalid matches nothing. Produced for unparseable requests.
	KindInvalid ConstraintKind = iota
	// KindExact requires an exact version match ("1.2.3", "2.0.0-beta.1").
	KindExact
	// KindPartial pins major and minor ("3.11").
	KindPartial
	// KindMajor pins the major segment only ("20").
	KindMajor
	// KindWildcard pins leading segments with a trailing ".*" ("1.2.*").
	KindWildcard
	// KindRange is an AND of operator/version bounds (">=1.0, <2.0").
	KindRange
	// KindCaret is a caret request ("^1.2.3").
	KindCaret
	// KindTilde is a tilde request ("~1.2.3").
	KindTilde
	// KindLatest selects the newest stable version ("", "latest").
	KindLatest
	// KindAny matches every stable version ("*").
	KindAny
)

type (
	// Constraint is a parsed version request. Constraints are parsed fresh
	// per call and carry no state beyond the parse result.
	Constraint struct {
		Kind ConstraintKind
		// Raw is the original request string.
		Raw string
		// Version is the reference version for Exact, Caret, and Tilde.
		Version Version
		// Major and Minor are the pinned segments for Major, Partial, and
		// Wildcard constraints.
		Major, Minor int
		// HasMinor reports whether a Wildcard constraint pins the minor
		// segment ("1.2.*") or only the major ("1.*").
		HasMinor bool
		// Bounds are the conjunctive range clauses for Range constraints.
		Bounds []Bound
	}

	// Bound is one operator/version clause of a range constraint.
	Bound struct {
		Op      string
		Version Version
	}

	// ResolveOptions tune constraint resolution.
	ResolveOptions struct {
		// PreferLTS restricts "latest" to LTS-flagged candidates first,
		// falling through to all candidates when none carry the flag.
		PreferLTS bool
		// IncludePrereleases allows prerelease candidates in the primary
		// match pass for every constraint kind.
		IncludePrereleases bool
	}
)

// rangeOps are tried longest-token-first so ">=" is never read as ">".
var rangeOps = []string{">=", "<=", "!=", ">", "<"}

// ParseConstraint parses a version request string. Unparseable input yields
// a KindInvalid constraint, which matches nothing.
func ParseConstraint(s string) Constraint {
	raw := s
	s = strings.TrimSpace(s)

	switch s {
	case "", "latest":
		return Constraint{Kind: KindLatest, Raw: raw}
	case "*":
		return Constraint{Kind: KindAny, Raw: raw}
	}

	if rest, ok := strings.CutPrefix(s, "^"); ok {
		return parseAnchored(KindCaret, raw, rest)
	}
	if rest, ok := strings.CutPrefix(s, "~"); ok {
		return parseAnchored(KindTilde, raw, rest)
	}

	if strings.ContainsAny(s, "<>!") || strings.Contains(s, ">=") || strings.Contains(s, "<=") {
		return parseRange(raw, s)
	}

	if rest, ok := strings.CutSuffix(s, ".*"); ok {
		return parseWildcard(raw, rest)
	}

	v, err := Parse(s)
	if err != nil {
		return Constraint{Kind: KindInvalid, Raw: raw}
	}
	switch {
	case v.Segments == 1 && v.Prerelease == "":
		return Constraint{Kind: KindMajor, Raw: raw, Major: v.Major}
	case v.Segments == 2 && v.Prerelease == "":
		return Constraint{Kind: KindPartial, Raw: raw, Major: v.Major, Minor: v.Minor}
	default:
		return Constraint{Kind: KindExact, Raw: raw, Version: v}
	}
}

func parseAnchored(kind ConstraintKind, raw, rest string) Constraint {
	v, err := Parse(rest)
	if err != nil {
		return Constraint{Kind: KindInvalid, Raw: raw}
	}
	return Constraint{Kind: kind, Raw: raw, Version: v}
}

func parseWildcard(raw, rest string) Constraint {
	v, err := Parse(rest)
	if err != nil || v.Prerelease != "" || v.Segments > 2 {
		return Constraint{Kind: KindInvalid, Raw: raw}
	}
	return Constraint{
		Kind:     KindWildcard,
		Raw:      raw,
		Major:    v.Major,
		Minor:    v.Minor,
		HasMinor: v.Segments == 2,
	}
}

func parseRange(raw, s string) Constraint {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(tokens) == 0 {
		return Constraint{Kind: KindInvalid, Raw: raw}
	}

	bounds := make([]Bound, 0, len(tokens))
	for _, tok := range tokens {
		op := ""
		for _, candidate := range rangeOps {
			if strings.HasPrefix(tok, candidate) {
				op = candidate
				break
			}
		}
		if op == "" {
			// A bare version inside a range is an implicit ">=".
			op = ">="
		} else {
			tok = tok[len(op):]
		}
		v, err := Parse(tok)
		if err != nil {
			return Constraint{Kind: KindInvalid, Raw: raw}
		}
		bounds = append(bounds, Bound{Op: op, Version: v})
	}
	return Constraint{Kind: KindRange, Raw: raw, Bounds: bounds}
}

// IsSpecific reports whether the constraint names a concrete version line
// (Exact, Partial, Major, Wildcard). Specific requests are allowed to fall
// back to prerelease candidates when no stable candidate matches; Latest,
// Any, and Range never take that fallback.
func (c Constraint) IsSpecific() bool {
	switch c.Kind {
	case KindExact, KindPartial, KindMajor, KindWildcard:
		return true
	default:
		return false
	}
}

// Matches reports whether a single version satisfies the constraint,
// ignoring prerelease admission policy (the resolver handles that).
func (c Constraint) Matches(v Version) bool {
	switch c.Kind {
	case KindLatest, KindAny:
		return true
	case KindExact:
		return Compare(v, c.Version) == 0
	case KindMajor:
		return v.Major == c.Major
	case KindPartial:
		return v.Major == c.Major && v.Minor == c.Minor
	case KindWildcard:
		if v.Major != c.Major {
			return false
		}
		return !c.HasMinor || v.Minor == c.Minor
	case KindRange:
		for _, b := range c.Bounds {
			if !b.holds(v) {
				return false
			}
		}
		return true
	case KindCaret:
		return c.caretMatches(v)
	case KindTilde:
		return Compare(v, c.Version) >= 0 && v.Major == c.Version.Major && v.Minor == c.Version.Minor
	default:
		return false
	}
}

// caretMatches implements caret semantics: upgrades are allowed within the
// leftmost non-zero segment of the reference version.
func (c Constraint) caretMatches(v Version) bool {
	base := c.Version
	if Compare(v, base) < 0 {
		return false
	}
	switch {
	case base.Major > 0:
		return v.Major == base.Major
	case base.Minor > 0:
		return v.Major == 0 && v.Minor == base.Minor
	default:
		return v.Major == 0 && v.Minor == 0 && v.Patch == base.Patch
	}
}

func (b Bound) holds(v Version) bool {
	cmp := Compare(v, b.Version)
	switch b.Op {
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case "!=":
		return cmp != 0
	default:
		return false
	}
}

// Resolve picks the best candidate for a version request. It returns false
// when the request is invalid or no candidate satisfies it.
//
// The candidate list is scanned in descending version order. Prerelease
// candidates are excluded unless explicitly allowed, either via options or
// by the request itself carrying a prerelease suffix. When "latest" is
// resolved with LTS preference, LTS-flagged candidates are tried first.
// A specific request (major / major.minor / exact / wildcard) that matches
// no stable candidate is retried with prereleases admitted, so a request
// for a not-yet-stable line can resolve to its only existing prerelease.
func Resolve(request string, candidates []Candidate, opts ResolveOptions) (Candidate, bool) {
	c := ParseConstraint(request)
	if c.Kind == KindInvalid || len(candidates) == 0 {
		return Candidate{}, false
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Compare(sorted[i].Parsed, sorted[j].Parsed) > 0
	})

	allowPre := opts.IncludePrereleases || c.Version.Prerelease != ""

	if c.Kind == KindLatest && opts.PreferLTS {
		for _, cand := range sorted {
			if !cand.LTS {
				continue
			}
			if cand.Prerelease && !allowPre {
				continue
			}
			if c.Matches(cand.Parsed) {
				return cand, true
			}
		}
		// No LTS candidate: fall through to the full scan.
	}

	for _, cand := range sorted {
		if cand.Prerelease && !allowPre {
			continue
		}
		if c.Matches(cand.Parsed) {
			return cand, true
		}
	}

	if !allowPre && c.IsSpecific() {
		for _, cand := range sorted {
			if c.Matches(cand.Parsed) {
				return cand, true
			}
		}
	}

	return Candidate{}, false
}

// Bounds returns the lowest and highest candidate version strings, used to
// report available ranges in unresolvable-version errors. Both are empty
// when the candidate list is empty.
func Bounds(candidates []Candidate) (lowest, highest string) {
	if len(candidates) == 0 {
		return "", ""
	}
	lo, hi := candidates[0], candidates[0]
	for _, cand := range candidates[1:] {
		if Compare(cand.Parsed, lo.Parsed) < 0 {
			lo = cand
		}
		if Compare(cand.Parsed, hi.Parsed) > 0 {
			hi = cand
		}
	}
	return lo.Version, hi.Version
}
