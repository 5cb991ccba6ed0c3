// Package ignore computes the exclusion set for an archive operation by
// collecting .gitignore files across the tree and expanding their patterns
// into root-relative glob patterns for the archiver.
//
// Negation lines ("!pattern") are not supported and are skipped entirely; a
// re-included file stays excluded. This is a deliberate gap vs. full
// gitignore semantics.
package ignore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SpecFileName is the ignore-spec filename searched for in the tree.
const SpecFileName = ".gitignore"

// vcsMetaDirs are version-control metadata directories excluded at any depth.
var vcsMetaDirs = []string{".git", ".hg", ".svn"}

// Rule is one expanded exclusion pattern. Anchored rules match only at the
// position encoded in the pattern; unanchored source lines have already been
// expanded into an anchored pair by the resolver.
type Rule struct {
	Pattern  string
	Anchored bool
}

// Resolver computes exclusion rules for a tree.
type Resolver struct {
	// Fixed exclusions seeded before any ignore-spec is read: the backup
	// directory, the preference file, and anything from global config.
	Fixed []string
}

// Resolve walks the tree rooted at root, reads every ignore-spec file, and
// returns the full rule list. Unreadable spec files are skipped.
func (r *Resolver) Resolve(root string) ([]Rule, error) {
	var rules []Rule
	for _, f := range r.Fixed {
		rules = append(rules, Rule{Pattern: f, Anchored: true})
	}
	for _, d := range vcsMetaDirs {
		rules = append(rules,
			Rule{Pattern: d, Anchored: false},
			Rule{Pattern: "**/" + d, Anchored: false},
		)
	}

	specs, err := findSpecFiles(root, r.Fixed)
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		relDir, err := filepath.Rel(root, filepath.Dir(spec))
		if err != nil {
			continue
		}
		if relDir == "." {
			relDir = ""
		}
		relDir = filepath.ToSlash(relDir)

		data, err := os.ReadFile(spec)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			rules = append(rules, ExpandLine(line, relDir)...)
		}
	}
	return rules, nil
}

// ExpandLine translates one ignore-spec line into zero or more rules.
// relDir is the spec file's directory relative to the tree root, slash
// separated, empty when the spec sits at the root.
func ExpandLine(line, relDir string) []Rule {
	pattern := strings.TrimSpace(line)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return nil
	}
	// Negation is out of scope; dropping the line keeps the base pattern's
	// exclusion in force rather than emitting a bogus "!..." glob.
	if strings.HasPrefix(pattern, "!") {
		return nil
	}
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "" {
		return nil
	}

	if strings.HasPrefix(pattern, "/") {
		// Root-anchored relative to the spec's own directory.
		pattern = strings.TrimPrefix(pattern, "/")
		if relDir != "" {
			pattern = relDir + "/" + pattern
		}
		return []Rule{{Pattern: pattern, Anchored: true}}
	}

	// Unanchored: the pattern matches at any depth under the spec's
	// directory, which takes two globs to express.
	if relDir != "" {
		return []Rule{
			{Pattern: relDir + "/" + pattern},
			{Pattern: relDir + "/**/" + pattern},
		}
	}
	return []Rule{
		{Pattern: pattern},
		{Pattern: "**/" + pattern},
	}
}

// Patterns deduplicates rules and returns their patterns sorted, ready for
// the archiver's exclude-list input.
func Patterns(rules []Rule) []string {
	seen := make(map[string]bool, len(rules))
	var out []string
	for _, r := range rules {
		if r.Pattern == "" || seen[r.Pattern] {
			continue
		}
		seen[r.Pattern] = true
		out = append(out, r.Pattern)
	}
	sort.Strings(out)
	return out
}

// findSpecFiles locates every ignore-spec file under root. VCS metadata
// directories and fixed-excluded directories (the backup dir in particular)
// are not descended into; their contents are excluded anyway.
func findSpecFiles(root string, fixed []string) ([]string, error) {
	skip := make(map[string]bool, len(vcsMetaDirs)+len(fixed))
	for _, d := range vcsMetaDirs {
		skip[d] = true
	}
	for _, f := range fixed {
		skip[f] = true
	}
	var specs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != root && skip[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() == SpecFileName {
			specs = append(specs, path)
		}
		return nil
	})
	return specs, err
}
