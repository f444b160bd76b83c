package pep440

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"
)

// Version is the full [N!]N(.N)*[{a|b|rc}N][.postN][.devN][+local] grammar:
// an epoch, a release segment, an optional pre/post/dev suffix, and an
// optional local-version label.
type Version = LocalVersion

// ParseVersion parses and normalizes str into a Version.
func ParseVersion(str string) (*Version, error) {
	ver, err := parseVersion(str)
	if err != nil {
		return nil, fmt.Errorf("pep440.ParseVersion: %w", err)
	}
	return ver, nil
}

// PublicVersion is a version identifier with no local-version label:
// epoch, release segment, and optional pre-release, post-release and
// developmental-release suffixes, each independent of the others.
type PublicVersion struct {
	Epoch   int
	Release []int
	Pre     *PreRelease
	Post    *int
	Dev     *int
}

// PreRelease is the "{a|b|rc}N" suffix: L is the normalized phase letter
// ("a", "b", or "rc"), N the number within that phase.
type PreRelease struct {
	L string
	N int
}

// GoString implements fmt.GoStringer.
func (ver PublicVersion) GoString() string {
	pre := "nil"
	if ver.Pre != nil {
		pre = fmt.Sprintf("&%#v", *ver.Pre)
	}
	post := "nil"
	if ver.Post != nil {
		post = fmt.Sprintf("intPtr(%#v)", *ver.Post)
	}
	dev := "nil"
	if ver.Dev != nil {
		dev = fmt.Sprintf("intPtr(%#v)", *ver.Dev)
	}
	return fmt.Sprintf("pep440.PublicVersion{Epoch:%d, Release:%#v, Pre:%s, Post:%s, Dev:%s}",
		ver.Epoch, ver.Release, pre, post, dev)
}

func (ver PublicVersion) writeTo(ret *strings.Builder) {
	if ver.Epoch > 0 {
		fmt.Fprintf(ret, "%d!", ver.Epoch)
	}
	if len(ver.Release) == 0 {
		panic("invalid version: no release segments")
	}
	fmt.Fprintf(ret, "%d", ver.Release[0])
	for _, segment := range ver.Release[1:] {
		fmt.Fprintf(ret, ".%d", segment)
	}
	if ver.Pre != nil {
		fmt.Fprintf(ret, "%s%d", ver.Pre.L, ver.Pre.N)
	}
	if ver.Post != nil {
		fmt.Fprintf(ret, ".post%d", *ver.Post)
	}
	if ver.Dev != nil {
		fmt.Fprintf(ret, ".dev%d", *ver.Dev)
	}
}

// String implements fmt.Stringer. String does not perform any normalization.
func (ver PublicVersion) String() string {
	var ret strings.Builder
	ver.writeTo(&ret)
	return ret.String()
}

// LocalVersion appends an opaque "+label" to a PublicVersion: build
// metadata that breaks ties between otherwise-equal public versions
// (e.g. a downstream rebuild of an upstream release) but that specifier
// matching ignores, except for a "==" clause that carries a local label
// itself.
type LocalVersion struct {
	PublicVersion
	Local []intstr.IntOrString
}

// GoString implements fmt.GoStringer.
func (ver LocalVersion) GoString() string {
	return fmt.Sprintf("pep440.LocalVersion{PublicVersion:%#v, Local:%#v}",
		ver.PublicVersion, ver.Local)
}

// String implements fmt.Stringer. String does not perform any normalization.
func (ver LocalVersion) String() string {
	var ret strings.Builder
	ver.PublicVersion.writeTo(&ret)
	sep := "+"
	for _, local := range ver.Local {
		ret.WriteString(sep)
		ret.WriteString(local.String())
		sep = "."
	}
	return ret.String()
}

// cmpLocalSegment orders one dot-separated local-version segment: numeric
// segments compare by value, alphabetic segments compare case-insensitively
// by text, and a numeric segment always outranks an alphabetic one at the
// same position. A missing segment sorts below a present one.
func cmpLocalSegment(a, b *intstr.IntOrString) int {
	switch {
	case a == nil && b == nil:
		panic("should not happen: cmpLocal shouldn't have bothered calling this")
	case a == nil && b != nil:
		return -1
	case a != nil && b == nil:
		return 1
	}
	switch {
	case a.Type == intstr.Int && b.Type == intstr.Int:
		return int(a.IntVal - b.IntVal)
	case a.Type == intstr.String && b.Type == intstr.String:
		switch {
		case a.StrVal < b.StrVal:
			return -1
		case a.StrVal > b.StrVal:
			return 1
		}
		return 0
	case a.Type == intstr.Int && b.Type == intstr.String:
		return 1
	case a.Type == intstr.String && b.Type == intstr.Int:
		return -1
	default:
		panic("should not happen: invalid intstr.IntOrString")
	}
}

func cmpLocal(a, b LocalVersion) int {
	for i := 0; i < len(a.Local) || i < len(b.Local); i++ {
		var aSeg, bSeg *intstr.IntOrString
		if i < len(a.Local) {
			aSeg = &(a.Local[i])
		}
		if i < len(b.Local) {
			bSeg = &(b.Local[i])
		}
		if d := cmpLocalSegment(aSeg, bSeg); d != 0 {
			return d
		}
	}
	return 0
}

// Cmp returns a number < 0 if version 'a' is less than version 'b', > 0 if 'a' is greater than 'b',
// or 0 if they are equal.  This is similar to the C-language strcmp.  You may think of this as
// returning the result of arithmetic subtraction "a-b"; though only the sign is defined; the
// magnitude may be anything.
func (a LocalVersion) Cmp(b LocalVersion) int {
	if d := a.PublicVersion.Cmp(b.PublicVersion); d != 0 {
		return d
	}
	return cmpLocal(a, b)
}

// IsFinal reports whether ver carries no pre/post/dev suffix (and, for a
// LocalVersion, no local label): a plain release-segment-only version.
func (ver PublicVersion) IsFinal() bool {
	return ver.Pre == nil && ver.Post == nil && ver.Dev == nil
}

func (ver LocalVersion) IsFinal() bool {
	return ver.PublicVersion.IsFinal() && len(ver.Local) == 0
}

func (ver PublicVersion) releaseSegment(n int) int {
	if n < len(ver.Release) {
		return ver.Release[n]
	}
	return 0
}

// cmpRelease compares release segments component-by-component, treating a
// missing trailing component as zero (so "1.0" == "1.0.0").
func cmpRelease(a, b PublicVersion) int {
	for i := 0; i < len(a.Release) || i < len(b.Release); i++ {
		if diff := a.releaseSegment(i) - b.releaseSegment(i); diff != 0 {
			return diff
		}
	}
	return 0
}

func (ver PublicVersion) Major() int { return ver.releaseSegment(0) }
func (ver PublicVersion) Minor() int { return ver.releaseSegment(1) }
func (ver PublicVersion) Micro() int { return ver.releaseSegment(2) }

// preReleaseOrder maps every spelling PEP 440 accepts for a pre-release
// phase to its ordering rank; "c" is an accepted legacy alias for "rc".
//
//nolint:gochecknoglobals // Would be 'const'.
var preReleaseOrder = map[string]int{
	"a":     -3,
	"alpha": -3,

	"b":    -2,
	"beta": -2,

	"rc":      -1,
	"c":       -1,
	"pre":     -1,
	"preview": -1,

	// absent: 0,
}

// cmpPreRelease orders the pre-release suffix: a bare dev release with no
// post segment sorts below every named phase, absent sorts at 0 (a final
// release), and within a phase ties break on the numeric component.
func cmpPreRelease(a, b PublicVersion) int {
	var aL, aN, bL, bN int
	var ok bool
	if a.Pre != nil {
		aL, ok = preReleaseOrder[a.Pre.L]
		if !ok {
			panic(fmt.Errorf("invalid pre-release string: %q", a.Pre.L))
		}
		aN = a.Pre.N
	} else if a.Dev != nil && a.Post == nil {
		aL = -4
	}
	if b.Pre != nil {
		bL, ok = preReleaseOrder[b.Pre.L]
		if !ok {
			panic(fmt.Errorf("invalid pre-release string: %q", b.Pre.L))
		}
		bN = b.Pre.N
	} else if b.Dev != nil && b.Post == nil {
		bL = -4
	}
	if aL != bL {
		return aL - bL
	}
	return aN - bN
}

// cmpPostRelease orders the .postN suffix; absent sorts below every
// present value, since a post-release follows its corresponding release.
func cmpPostRelease(a, b PublicVersion) int {
	aPost := -1
	if a.Post != nil {
		aPost = *a.Post
	}
	bPost := -1
	if b.Post != nil {
		bPost = *b.Post
	}
	return aPost - bPost
}

// IsPreRelease reports whether ver carries a pre-release or dev suffix:
// the admission gate a Requirement uses to exclude pre-releases by default.
func (ver PublicVersion) IsPreRelease() bool {
	return ver.Pre != nil || ver.Dev != nil
}

// cmpDevRelease orders the .devN suffix; a dev release always sorts below
// its corresponding non-dev release.
func cmpDevRelease(a, b PublicVersion) int {
	switch {
	case a.Dev == nil && b.Dev == nil:
		return 0
	case a.Dev == nil && b.Dev != nil:
		return 1
	case a.Dev != nil && b.Dev == nil:
		return -1
	default:
		return (*a.Dev) - (*b.Dev)
	}
}

// cmpEpoch orders the "N!" epoch prefix; an absent epoch is 0.
func cmpEpoch(a, b PublicVersion) int {
	return a.Epoch - b.Epoch
}

// Normalize reparses ver through its own String() form, folding away the
// alternate spellings (case, separators, omitted pre/post/dev numerals,
// leading "v") that ParseVersion accepts but never emits.
func (ver PublicVersion) Normalize() (*PublicVersion, error) {
	n, err := ParseVersion(ver.String())
	if err != nil {
		return nil, err
	}
	return &n.PublicVersion, nil
}

func (ver LocalVersion) Normalize() (*LocalVersion, error) {
	n, err := ParseVersion(ver.String())
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Cmp returns a number < 0 if version 'a' is less than version 'b', > 0 if 'a' is greater than 'b',
// or 0 if they are equal.  This is similar to the C-language strcmp.  You may think of this as
// returning the result of arithmetic subtraction "a-b"; though only the sign is defined; the
// magnitude may be anything.
//
// Ordering descends through epoch, then release segment, then the
// pre/post/dev suffix precedence chain: devN < aN < bN < rcN < (final) <
// postN, with devN of a given suffix always sorting just below it.
func (a PublicVersion) Cmp(b PublicVersion) int {
	if d := cmpEpoch(a, b); d != 0 {
		return d
	}
	if d := cmpRelease(a, b); d != 0 {
		return d
	}
	if d := cmpPreRelease(a, b); d != 0 {
		return d
	}
	if d := cmpPostRelease(a, b); d != 0 {
		return d
	}
	if d := cmpDevRelease(a, b); d != 0 {
		return d
	}
	return 0
}
