package semver

import (
	"fmt"
	"sort"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const resolverLogPrefix = "semver:resolver"

// NormalizeVersion parses a loosely written version ("1", "v1.2", "1.2.3-beta") and
// returns its canonical major.minor.patch[-pre][+meta] form.
func NormalizeVersion(version string) (string, error) {
	v := strings.TrimSpace(version)
	if v == "" {
		return "", fmt.Errorf("%s - version is required", resolverLogPrefix)
	}
	sv, err := masterminds.NewVersion(v)
	if err != nil {
		return "", fmt.Errorf("%s - invalid version %q: %w", resolverLogPrefix, version, err)
	}
	return sv.String(), nil
}

// ParseConstraint parses a version constraint. A bare major ("2") is widened to "^2.0.0".
func ParseConstraint(constraint string) (*masterminds.Constraints, error) {
	c := strings.TrimSpace(constraint)
	if IsMajorOnly(c) {
		c = "^" + c + ".0.0"
	}
	parsed, err := masterminds.NewConstraint(c)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid version constraint %q: %w", resolverLogPrefix, constraint, err)
	}
	return parsed, nil
}

// Satisfies reports whether version matches constraint. An empty constraint matches everything;
// an unparseable version or constraint matches nothing.
func Satisfies(version, constraint string) bool {
	if strings.TrimSpace(constraint) == "" {
		return true
	}
	c, err := ParseConstraint(constraint)
	if err != nil {
		return false
	}
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return false
	}
	return c.Check(sv)
}

// Compare orders two versions; unparseable versions sort after parseable ones and by string otherwise.
func Compare(a, b string) int {
	va, errA := masterminds.NewVersion(a)
	vb, errB := masterminds.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// SortDesc sorts items by the version returned from versionOf, highest first. The sort is stable.
func SortDesc[T any](items []T, versionOf func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return Compare(versionOf(items[i]), versionOf(items[j])) > 0
	})
}

// Latest returns the index of the highest version in versions that satisfies constraint, or -1.
func Latest(versions []string, constraint string) int {
	best := -1
	for i, v := range versions {
		if !Satisfies(v, constraint) {
			continue
		}
		if best == -1 || Compare(v, versions[best]) > 0 {
			best = i
		}
	}
	return best
}
