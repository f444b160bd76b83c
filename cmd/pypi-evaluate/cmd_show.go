// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/datawire/dlib/dlog"
	"github.com/spf13/cobra"

	"github.com/pypi-tools/pyindex/pkg/cliutil"
	"github.com/pypi-tools/pyindex/pkg/pep440"
	"github.com/pypi-tools/pyindex/pkg/pep503"
	"github.com/pypi-tools/pyindex/pkg/pyeval"
	"github.com/pypi-tools/pyindex/pkg/pypa/simple_repo_api"
	"github.com/pypi-tools/pyindex/pkg/pysession"
	"github.com/pypi-tools/pyindex/pkg/pytarget"
)

// defaultIndexURL is used when --index-url is not given; pep503.Collector
// itself takes fully-formed Links, so it has no notion of a default index.
const defaultIndexURL = "https://pypi.org/simple/"

func init() {
	var flags struct {
		IndexURLs     []string
		PythonVersion string
		AllowYanked   bool
		OnlyBinary    bool
		ShowSignature bool
	}
	cmd := &cobra.Command{
		Use:   "show REQUIREMENT",
		Short: "Evaluate every link on an index against a requirement and print the best match",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		Long: "Given a requirement like `requests==2.28.1` or a bare package name, fetch the " +
			"Simple Repository page for that package from one or more indexes (repeat " +
			"--index-url to search several), evaluate every candidate link against the " +
			"requirement, and print the selected wheel or source archive." +
			"\n\n" +
			"LIMITATION: direct-reference URLs (`name @ https://...`) are not recognized; " +
			"only index-hosted candidates are evaluated.",

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req, err := parseRequirement(args[0])
			if err != nil {
				return err
			}

			pyVer, err := parsePyVersion(flags.PythonVersion)
			if err != nil {
				return err
			}
			target := pytarget.New(pyVer, nil, "", nil)

			indexURLs := flags.IndexURLs
			if len(indexURLs) == 0 {
				indexURLs = []string{defaultIndexURL}
			}
			sources := make([]*pep503.Link, 0, len(indexURLs))
			for _, indexURL := range indexURLs {
				source, err := pep503.New(indexURL+pep503.NormalizeName(req.Name)+"/", "", "", "", "", nil, pep503.DistMetadata{})
				if err != nil {
					return err
				}
				sources = append(sources, source)
			}

			session := pysession.New(nil, "pypi-evaluate/0")
			client := simple_repo_api.NewClient(session, target)

			evaluator := &pyeval.Evaluator{
				PackageName: req.Name,
				Session:     session,
				Target:      target,
				AllowYanked: flags.AllowYanked,
				Hashes:      req.Hashes,
			}
			if flags.OnlyBinary {
				fc, err := pyeval.NewFormatControl(true, false)
				if err != nil {
					return err
				}
				evaluator.FormatControl = fc
			}

			matches, err := client.FindMatchesAcrossIndexes(ctx, sources, evaluator, req, nil)
			if err != nil {
				dlog.Warnf(ctx, "some indexes could not be searched: %s", err)
			}
			if len(matches) == 0 {
				return fmt.Errorf("no candidate on %s satisfies %s", strings.Join(indexURLs, ", "), args[0])
			}

			best, err := client.SelectBest(matches)
			if err != nil {
				return err
			}

			dlog.Infof(ctx, "matched %d candidate(s), selected %s", len(matches), best.Link.Filename())
			fmt.Fprintf(os.Stdout, "%s %s %s\n", best.Name, best.Version, best.Link.Redacted())

			if flags.ShowSignature {
				sig, err := client.Collector.FetchSignature(ctx, best.Link)
				switch {
				case err == nil:
					fmt.Fprintf(os.Stdout, "signature: %d bytes\n", len(sig))
				case errors.Is(err, pep503.ErrNoSignature):
					fmt.Fprintln(os.Stdout, "signature: none")
				default:
					dlog.Warnf(ctx, "fetching signature for %s: %s", best.Link.Redacted(), err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&flags.IndexURLs, "index-url", nil,
		"Simple-Repository index to query (default PyPI); repeatable to search several indexes")
	cmd.Flags().StringVar(&flags.PythonVersion, "python-version", "",
		"Target interpreter version as MAJOR.MINOR (default 3.9)")
	cmd.Flags().BoolVar(&flags.AllowYanked, "allow-yanked", false, "Consider yanked releases")
	cmd.Flags().BoolVar(&flags.OnlyBinary, "only-binary", false, "Reject source archives")
	cmd.Flags().BoolVar(&flags.ShowSignature, "show-signature", false,
		"Fetch and report the detached GPG signature (data-gpg-sig) for the selected link")

	argparser.AddCommand(cmd)
}

// parseRequirement accepts `name`, `name==1.2.3`, or the other PEP 440
// comparison operators; it does not (yet) parse extras or environment
// markers.
func parseRequirement(s string) (*pyeval.Requirement, error) {
	for _, op := range []string{"~=", "===", "==", "!=", "<=", ">=", "<", ">"} {
		if idx := strings.Index(s, op); idx >= 0 {
			name := strings.TrimSpace(s[:idx])
			specStr := s[idx:]
			spec, err := pep440.ParseSpecifierSet(specStr)
			if err != nil {
				return nil, fmt.Errorf("invalid version specifier %q: %w", specStr, err)
			}
			return &pyeval.Requirement{Name: name, VersionOrURL: pyeval.VersionSpecifierOf(spec)}, nil
		}
	}
	return &pyeval.Requirement{Name: strings.TrimSpace(s)}, nil
}

func parsePyVersion(s string) ([2]int, error) {
	if s == "" {
		return pytarget.DefaultPyVersion, nil
	}
	var major, minor int
	if _, err := fmt.Sscanf(s, "%d.%d", &major, &minor); err != nil {
		return [2]int{}, fmt.Errorf("invalid --python-version %q: expected MAJOR.MINOR", s)
	}
	return [2]int{major, minor}, nil
}
