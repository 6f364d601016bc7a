package catalog

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/exp/slices"

	"github.com/flyingphish/intune-os-checker/endoflife"
	"github.com/flyingphish/intune-os-checker/utils"
)

// Family is one of the OS ecosystems the checker knows how to classify.
type Family string

const (
	Windows Family = "Windows"
	Android Family = "Android"
	IOS     Family = "iOS/iPadOS"
	MacOS   Family = "macOS"
)

func (f Family) Known() bool {
	switch f {
	case Windows, Android, IOS, MacOS:
		return true
	}
	return false
}

// ExactBuild reports whether the family matches on exact build numbers.
// Windows builds are precise integers; the other families match on dotted
// version prefixes.
func (f Family) ExactBuild() bool {
	return f == Windows
}

// Expiry is a support deadline from the catalog: a date, an explicit boolean
// (true = already over with no date published, false = not yet determined),
// or nothing at all.
type Expiry struct {
	Date *time.Time
	Flag *bool
}

// Known reports whether the deadline is asserted at all, by date or by an
// explicit "already over" flag.
func (e Expiry) Known() bool {
	return e.Date != nil || (e.Flag != nil && *e.Flag)
}

// Over reports whether the deadline has passed as of today. The comparison
// is at date granularity, so a deadline is not over on its own day even when
// today carries a time-of-day component. An unknown deadline is never over.
func (e Expiry) Over(today time.Time) bool {
	if e.Date != nil {
		y, m, d := today.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).After(*e.Date)
	}
	return e.Flag != nil && *e.Flag
}

func (e Expiry) Display() string {
	if e.Date == nil {
		return "N/A"
	}
	return e.Date.Format("2006-01-02")
}

// Release is one normalized OS release.
type Release struct {
	Family       Family
	Cycle        string
	ReleaseLabel string
	Codename     string
	Latest       string
	ReleaseDate  *time.Time
	Support      Expiry
	EOL          Expiry
	MatchKeys    []string
}

// Label returns the display label for the release, falling back to the cycle.
func (r Release) Label() string {
	if r.ReleaseLabel != "" {
		return r.ReleaseLabel
	}
	return r.Cycle
}

// Catalog is a read-only set of releases for one family, ordered most recent
// first (releases with no release date last) and indexed by match key.
type Catalog struct {
	family   Family
	releases []*Release
	index    map[string][]*Release
}

func (c *Catalog) Family() Family { return c.family }

func (c *Catalog) Empty() bool { return len(c.releases) == 0 }

// Releases returns the releases in catalog order.
func (c *Catalog) Releases() []*Release { return c.releases }

// Lookup returns the releases whose match keys contain key exactly, in
// catalog order.
func (c *Catalog) Lookup(key string) []*Release {
	return c.index[key]
}

// LookupPrefix returns the releases whose match keys equal key or are a
// dotted prefix of it, in catalog order. A key "14" claims "14" and "14.2.1"
// but not "140"; a key "10.15" claims "10.15.7".
func (c *Catalog) LookupPrefix(key string) []*Release {
	var matched []*Release
	for _, rel := range c.releases {
		ok := slices.ContainsFunc(rel.MatchKeys, func(k string) bool {
			return k == key || strings.HasPrefix(key, k+".")
		})
		if ok {
			matched = append(matched, rel)
		}
	}
	return matched
}

// Normalize converts raw API releases for a family into a queryable catalog.
// Records with malformed date fields stay matchable but are dropped from
// dating decisions with a warning. Zero records yield a valid empty catalog.
func Normalize(family Family, raw []endoflife.Release) *Catalog {
	if !family.Known() {
		panic(fmt.Sprintf("catalog: unknown OS family %q", family))
	}

	releases := make([]*Release, 0, len(raw))
	for _, r := range raw {
		rel := &Release{
			Family:       family,
			Cycle:        utils.TrimSpaceNewline(string(r.Cycle)),
			ReleaseLabel: r.ReleaseLabel,
			Codename:     r.Codename,
			Latest:       r.Latest,
		}
		if rel.Cycle == "" {
			log.Printf("dropping %s release with empty cycle", family)
			continue
		}
		if r.ReleaseDate != "" {
			if t, err := dateparse.ParseAny(r.ReleaseDate); err != nil {
				log.Printf("%s %s: unparseable release date %q", family, rel.Cycle, r.ReleaseDate)
			} else {
				rel.ReleaseDate = &t
			}
		}
		rel.Support = parseExpiry(family, rel.Cycle, "support", r.Support)
		rel.EOL = parseExpiry(family, rel.Cycle, "eol", r.EOL)
		rel.MatchKeys = matchKeys(family, rel)
		releases = append(releases, rel)
	}

	slices.SortStableFunc(releases, func(a, b *Release) int {
		switch {
		case a.ReleaseDate == nil && b.ReleaseDate == nil:
			return 0
		case a.ReleaseDate == nil:
			return 1
		case b.ReleaseDate == nil:
			return -1
		}
		return b.ReleaseDate.Compare(*a.ReleaseDate)
	})

	index := make(map[string][]*Release)
	for _, rel := range releases {
		for _, key := range rel.MatchKeys {
			index[key] = append(index[key], rel)
		}
	}

	return &Catalog{
		family:   family,
		releases: releases,
		index:    index,
	}
}

func parseExpiry(family Family, cycle, field string, e endoflife.Expiration) Expiry {
	if e.Bool != nil {
		return Expiry{Flag: e.Bool}
	}
	if e.Date == "" {
		return Expiry{}
	}
	t, err := dateparse.ParseAny(e.Date)
	if err != nil {
		log.Printf("%s %s: unparseable %s date %q, ignored for support decisions", family, cycle, field, e.Date)
		return Expiry{}
	}
	return Expiry{Date: &t}
}

func matchKeys(family Family, rel *Release) []string {
	if !family.ExactBuild() {
		return []string{rel.Cycle}
	}
	// Windows identifies a release by its build number, the third component
	// of the full version, e.g. "10.0.19045" -> "19045".
	if build := BuildNumber(rel.Latest); build != "" {
		return []string{build}
	}
	return nil
}

// BuildNumber extracts the Windows build number from a full dotted version.
// It returns "" when the version has fewer than three components.
func BuildNumber(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
