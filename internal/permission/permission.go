// Package permission implements the dotted-wildcard permission grammar and
// the composable matcher tree used to authorize protocol actions.
package permission

import (
	"fmt"
	"regexp"
	"strings"
)

var validPattern = regexp.MustCompile(`^((?:[A-Za-z_-]+|\*{1,2})(?:\.(?:[A-Za-z_-]+|\*{1,2}))*)$`)

// Matcher is anything that can decide whether it grants another Matcher.
type Matcher interface {
	Matches(other Matcher) bool
	// AsPermission reports the concrete Permission this matcher represents,
	// if it is one. Composite matchers return ok=false.
	AsPermission() (Permission, bool)
}

// Permission is a single dotted, wildcard-capable permission string such as
// "file.upload" or "instance.*.stop".
type Permission struct {
	raw     string
	pattern *regexp.Regexp
}

// New validates and constructs a Permission from its string form.
func New(s string) (Permission, error) {
	if !validPattern.MatchString(s) {
		return Permission{}, fmt.Errorf("permission: invalid pattern %q", s)
	}
	return Permission{raw: s, pattern: compilePattern(s)}, nil
}

// MustNew is New but panics on an invalid pattern; used for constants.
func MustNew(s string) Permission {
	p, err := New(s)
	if err != nil {
		panic(err)
	}
	return p
}

func compilePattern(s string) *regexp.Regexp {
	segments := strings.Split(s, ".")
	parts := make([]string, len(segments))
	for i, seg := range segments {
		switch seg {
		case "**":
			parts[i] = `\S+(?:\s\S+)*`
		case "*":
			parts[i] = `\S+`
		default:
			parts[i] = regexp.QuoteMeta(seg)
		}
	}
	body := strings.Join(parts, `\s`)
	return regexp.MustCompile(`^` + body + `(\s.+)?$`)
}

// String returns the permission's dotted form.
func (p Permission) String() string { return p.raw }

// AsPermission implements Matcher.
func (p Permission) AsPermission() (Permission, bool) { return p, true }

// Matches reports whether p (as a granted permission, possibly containing
// wildcards) covers other. Only concrete permissions are compared this way;
// composite matchers on the other side are asked to match against p instead,
// mirroring the delegation the original grammar performs via as_permission.
func (p Permission) Matches(other Matcher) bool {
	if concrete, ok := other.AsPermission(); ok {
		candidate := strings.ReplaceAll(concrete.raw, ".", " ")
		return p.pattern.MatchString(candidate)
	}
	return false
}

// Set is an ordered collection of permissions granted to a connection.
type Set struct {
	perms []Permission
}

// NewSet builds a Set from permission strings, validating each.
func NewSet(strs []string) (Set, error) {
	var s Set
	for _, str := range strs {
		p, err := New(str)
		if err != nil {
			return Set{}, err
		}
		s.perms = append(s.perms, p)
	}
	return s, nil
}

// Matches reports whether any permission in the set grants other.
func (s Set) Matches(other Matcher) bool {
	for _, p := range s.perms {
		if p.Matches(other) {
			return true
		}
	}
	return false
}

// AsPermission implements Matcher; a Set is never itself a single permission.
func (s Set) AsPermission() (Permission, bool) { return Permission{}, false }

// Strings returns the set's permissions in their dotted string form.
func (s Set) Strings() []string {
	out := make([]string, len(s.perms))
	for i, p := range s.perms {
		out[i] = p.raw
	}
	return out
}
