// Package pep425 implements PEP 425 -- Compatibility Tags for Built
// Distributions: the (interpreter, ABI, platform) triple that decides
// whether a prebuilt wheel can run on a given target, plus the
// dot-compressed shorthand ("py2.py3-none-any") that lets one filename
// cover several triples at once.
//
// https://www.python.org/dev/peps/pep-0425/
package pep425

import (
	"strings"
)

// Tag is a single (interpreter, abi, platform) compatibility triple, e.g.
// {Interpreter: "cp39", ABI: "cp39", Platform: "manylinux1_x86_64"}.
type Tag struct {
	Interpreter string
	ABI         string
	Platform    string
}

// Decompress expands a dot-compressed Tag (any of its three fields may be
// a "."-separated list, as in "py2.py3-none-any") into the full cartesian
// product of single-valued Tags it represents.
func (t Tag) Decompress() []Tag {
	var ret []Tag
	for _, interp := range strings.Split(t.Interpreter, ".") {
		for _, abi := range strings.Split(t.ABI, ".") {
			for _, plat := range strings.Split(t.Platform, ".") {
				ret = append(ret, Tag{interp, abi, plat})
			}
		}
	}
	return ret
}

func (t Tag) String() string {
	return t.Interpreter + "-" + t.ABI + "-" + t.Platform
}

// Intersect returns whether any tag in tag-list 'a' matches any tag in tag-list 'b'; considering
// compressed tag sets.
func Intersect(a, b []Tag) bool {
	for _, a1 := range a {
		for _, a2 := range a1.Decompress() {
			for _, b1 := range b {
				for _, b2 := range b1.Decompress() {
					if a2 == b2 {
						return true
					}
				}
			}
		}
	}
	return false
}

// Installer is a list of tags that an installer supports, ordered from most-preferred to
// least-preferred.
//
// To get this for a live Python install, use the command:
//
//	python -c $'import packaging.tags\nfor tag in packaging.tags.sys_tags(): print(tag)'
type Installer []Tag

func (inst Installer) Supports(t Tag) bool {
	return Intersect([]Tag(inst), []Tag{t})
}

// Preference returns a numeric representation of how much this Tag is preferred by the installer;
// may be used to sort things by Tag preference; lower values are more preferred.  The returned
// value is in the range [1,len(inst+1)]; the zero value is safe to use as "unset".
func (inst Installer) Preference(t Tag) int {
	for i, it := range inst {
		if Intersect([]Tag{it}, []Tag{t}) {
			return i + 1
		}
	}
	return len(inst) + 1
}
