// Package pep440 implements PEP 440 -- Version Identification and Dependency
// Specification: the public/local version grammar, the ordering rules
// that decide which of two versions is newer, and the comma-separated
// specifier-clause syntax ("~=", "==", "!=", "<=", ">=", "<", ">") used to
// constrain a set of candidate versions down to the ones a requirement
// actually admits.
//
// https://www.python.org/dev/peps/pep-0440/
//
// Glossary, for the identifiers below:
//
//   - "Epoch" is the optional "N!" prefix used to escape an otherwise
//     unsortable legacy versioning scheme.
//   - "Release segment" is the dotted N.N.N... core.
//   - "Pre-release" (a/b/rc), "Post-release" (.postN) and "Developmental
//     release" (.devN) are the three optional suffixes, each independently
//     orderable per the PEP's precedence rules.
//   - "Local version" (+label) is the opaque build-metadata suffix that
//     breaks ties between otherwise-equal public versions but is ignored
//     by specifier matching.
package pep440
