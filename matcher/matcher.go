package matcher

import (
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/flyingphish/intune-os-checker/catalog"
	"github.com/flyingphish/intune-os-checker/utils"
)

// Status is the support classification of one device row.
type Status string

const (
	Supported      Status = "Supported"
	SecurityOnly   Status = "Security Updates Only"
	EndOfLife      Status = "End of Life"
	UnknownVersion Status = "Unknown Version"
)

// NotAvailable fills result fields that have no value on the matched release.
const NotAvailable = "N/A"

// Query is one device row to classify.
type Query struct {
	RowID      int
	Family     catalog.Family
	RawVersion string
}

// Result is the classification of one device row. String fields carry
// NotAvailable when the matched release lacks the value or no release
// matched. Codename is filled for Android; IsLatest for iOS/iPadOS and macOS.
type Result struct {
	RowID        int
	Status       Status
	ReleaseLabel string
	ReleaseDate  string
	EOLDate      string
	Codename     string
	IsLatest     *bool
}

// mainlineMarker tags the mainline servicing branch in Windows release
// labels. When one build number aliases two branches, the marked one wins.
const mainlineMarker = "(W)"

// stripRules run in order over the raw device string before the canonical
// key is derived. Kept as a table so the cleanup policy is inspectable.
var stripRules = []struct {
	name string
	re   *regexp.Regexp
	repl string
}{
	{"build metadata in parentheses", regexp.MustCompile(`\s*\([^)]*\)`), ""},
	{"leading Version/OS token", regexp.MustCompile(`(?i)^\s*(version|os)\s+`), ""},
}

var versionRun = regexp.MustCompile(`\d[\d.]*`)

// Match classifies one device version string against a family catalog as of
// today. It is a pure function of its inputs: every query yields exactly one
// result and no input panics. A nil catalog stands for a family whose
// catalog fetch failed; all its queries resolve to UnknownVersion.
func Match(q Query, cat *catalog.Catalog, today time.Time) Result {
	res := Result{
		RowID:        q.RowID,
		Status:       UnknownVersion,
		ReleaseLabel: NotAvailable,
		ReleaseDate:  NotAvailable,
		EOLDate:      NotAvailable,
		Codename:     NotAvailable,
	}
	if !q.Family.Known() {
		return res
	}

	version := dottedVersion(q.RawVersion)
	key := canonicalKey(q.Family, version)
	if key == "" || cat == nil || cat.Empty() {
		return res
	}

	var candidates []*catalog.Release
	if q.Family.ExactBuild() {
		candidates = cat.Lookup(key)
	} else {
		candidates = cat.LookupPrefix(key)
	}
	rel := disambiguate(candidates)
	if rel == nil {
		return res
	}

	res.Status = deriveStatus(rel, today)
	if label := rel.Label(); label != "" {
		res.ReleaseLabel = label
	}
	if rel.ReleaseDate != nil {
		res.ReleaseDate = rel.ReleaseDate.Format("2006-01-02")
	}
	res.EOLDate = rel.EOL.Display()
	if q.Family == catalog.Android && rel.Codename != "" {
		res.Codename = rel.Codename
	}
	if q.Family == catalog.IOS || q.Family == catalog.MacOS {
		latest := version == rel.Latest
		res.IsLatest = &latest
	}
	return res
}

// dottedVersion reduces a raw device string to its leading digits-and-dots
// run: "Version 14.2.1 (beta)" -> "14.2.1". Returns "" when no version-like
// token exists.
func dottedVersion(raw string) string {
	s := utils.TrimSpaceNewline(raw)
	for _, rule := range stripRules {
		s = rule.re.ReplaceAllString(s, rule.repl)
	}
	return strings.Trim(versionRun.FindString(s), ".")
}

// canonicalKey shapes the dotted version into the family's match-key form.
// Windows needs a bare build number; a two-component version like "10.0"
// names no build and cannot be matched.
func canonicalKey(family catalog.Family, version string) string {
	if version == "" || !family.ExactBuild() {
		return version
	}
	parts := strings.Split(version, ".")
	switch {
	case len(parts) >= 3:
		return parts[2]
	case len(parts) == 1:
		return parts[0]
	}
	return ""
}

func disambiguate(candidates []*catalog.Release) *catalog.Release {
	if len(candidates) == 0 {
		return nil
	}
	marked := lo.Filter(candidates, func(rel *catalog.Release, _ int) bool {
		return strings.Contains(rel.ReleaseLabel, mainlineMarker)
	})
	if len(marked) > 0 {
		return marked[0]
	}
	// candidates arrive in catalog order, most recent release first
	return candidates[0]
}

func deriveStatus(rel *catalog.Release, today time.Time) Status {
	switch {
	case rel.EOL.Over(today):
		return EndOfLife
	case rel.Support.Over(today):
		return SecurityOnly
	}
	return Supported
}
