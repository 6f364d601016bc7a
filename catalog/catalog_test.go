package catalog_test

import (
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingphish/intune-os-checker/catalog"
	"github.com/flyingphish/intune-os-checker/endoflife"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func Test_Normalize(t *testing.T) {
	got := catalog.Normalize(catalog.Windows, []endoflife.Release{
		{
			Cycle:        "10-1607",
			ReleaseLabel: "10 1607",
			Latest:       "10.0.14393",
			ReleaseDate:  "2016-08-02",
			EOL:          endoflife.Expiration{Date: "2018-04-10"},
		},
		{
			Cycle:        "10-22h2",
			ReleaseLabel: "10 22H2",
			Latest:       "10.0.19045",
			ReleaseDate:  "2022-10-18",
			Support:      endoflife.Expiration{Date: "2025-10-14"},
			EOL:          endoflife.Expiration{Date: "2025-10-14"},
		},
	})

	want := []*catalog.Release{
		{
			Family:       catalog.Windows,
			Cycle:        "10-22h2",
			ReleaseLabel: "10 22H2",
			Latest:       "10.0.19045",
			ReleaseDate:  date(2022, time.October, 18),
			Support:      catalog.Expiry{Date: date(2025, time.October, 14)},
			EOL:          catalog.Expiry{Date: date(2025, time.October, 14)},
			MatchKeys:    []string{"19045"},
		},
		{
			Family:       catalog.Windows,
			Cycle:        "10-1607",
			ReleaseLabel: "10 1607",
			Latest:       "10.0.14393",
			ReleaseDate:  date(2016, time.August, 2),
			EOL:          catalog.Expiry{Date: date(2018, time.April, 10)},
			MatchKeys:    []string{"14393"},
		},
	}

	// most recent release first
	if diff := pretty.Compare(got.Releases(), want); diff != "" {
		t.Errorf("Normalize: diff (-got +want):\n%s", diff)
	}

	assert.Equal(t, catalog.Windows, got.Family())
	assert.False(t, got.Empty())
	require.Len(t, got.Lookup("19045"), 1)
	assert.Equal(t, "10 22H2", got.Lookup("19045")[0].ReleaseLabel)
	assert.Empty(t, got.Lookup("1904"))
}

func Test_Normalize_Ordering(t *testing.T) {
	got := catalog.Normalize(catalog.Android, []endoflife.Release{
		{Cycle: "12", ReleaseDate: "2021-10-04"},
		{Cycle: "undated"},
		{Cycle: "14", ReleaseDate: "2023-10-04"},
		{Cycle: "13", ReleaseDate: "2022-08-15"},
	})

	var cycles []string
	for _, rel := range got.Releases() {
		cycles = append(cycles, rel.Cycle)
	}
	// undated releases sort last
	assert.Equal(t, []string{"14", "13", "12", "undated"}, cycles)
}

func Test_Normalize_MalformedData(t *testing.T) {
	t.Run("bad dates keep the record matchable", func(t *testing.T) {
		got := catalog.Normalize(catalog.Android, []endoflife.Release{
			{Cycle: "14", ReleaseDate: "not a date", EOL: endoflife.Expiration{Date: "also not a date"}},
		})

		require.Len(t, got.Releases(), 1)
		rel := got.Releases()[0]
		assert.Nil(t, rel.ReleaseDate)
		assert.False(t, rel.EOL.Known())
		assert.Equal(t, []string{"14"}, rel.MatchKeys)
		require.Len(t, got.LookupPrefix("14.2"), 1)
	})

	t.Run("empty cycle is dropped", func(t *testing.T) {
		got := catalog.Normalize(catalog.Android, []endoflife.Release{
			{Cycle: "  "},
			{Cycle: "14"},
		})
		assert.Len(t, got.Releases(), 1)
	})

	t.Run("windows release without a full latest version gets no keys", func(t *testing.T) {
		got := catalog.Normalize(catalog.Windows, []endoflife.Release{
			{Cycle: "10-22h2", Latest: "10.0"},
		})
		require.Len(t, got.Releases(), 1)
		assert.Empty(t, got.Releases()[0].MatchKeys)
	})

	t.Run("no records yield a valid empty catalog", func(t *testing.T) {
		got := catalog.Normalize(catalog.MacOS, nil)
		assert.True(t, got.Empty())
		assert.Empty(t, got.Lookup("14"))
		assert.Empty(t, got.LookupPrefix("14"))
	})
}

func Test_Normalize_UnknownFamilyPanics(t *testing.T) {
	assert.Panics(t, func() {
		catalog.Normalize(catalog.Family("TempleOS"), nil)
	})
}

func Test_Catalog_LookupPrefix(t *testing.T) {
	cat := catalog.Normalize(catalog.MacOS, []endoflife.Release{
		{Cycle: "14", ReleaseDate: "2023-09-26"},
		{Cycle: "10.15", ReleaseDate: "2019-10-07"},
		{Cycle: "10.14", ReleaseDate: "2018-09-24"},
	})

	tests := []struct {
		key  string
		want []string
	}{
		{"14", []string{"14"}},
		{"14.2.1", []string{"14"}},
		{"10.15.7", []string{"10.15"}},
		{"10.15", []string{"10.15"}},
		{"140", nil},
		{"1", nil},
		{"10", nil},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var cycles []string
			for _, rel := range cat.LookupPrefix(tt.key) {
				cycles = append(cycles, rel.Cycle)
			}
			assert.Equal(t, tt.want, cycles)
		})
	}
}

func Test_Expiry(t *testing.T) {
	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	over := true
	notYet := false

	tests := []struct {
		name        string
		expiry      catalog.Expiry
		wantKnown   bool
		wantOver    bool
		wantDisplay string
	}{
		{"unset", catalog.Expiry{}, false, false, "N/A"},
		{"future date", catalog.Expiry{Date: date(2025, time.January, 1)}, true, false, "2025-01-01"},
		{"past date", catalog.Expiry{Date: date(2023, time.January, 1)}, true, true, "2023-01-01"},
		{"same day", catalog.Expiry{Date: date(2024, time.January, 1)}, true, false, "2024-01-01"},
		{"explicitly over", catalog.Expiry{Flag: &over}, true, true, "N/A"},
		{"not yet determined", catalog.Expiry{Flag: &notYet}, false, false, "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKnown, tt.expiry.Known())
			assert.Equal(t, tt.wantOver, tt.expiry.Over(today))
			assert.Equal(t, tt.wantDisplay, tt.expiry.Display())
		})
	}

	t.Run("deadline day with a wall-clock today", func(t *testing.T) {
		afternoon := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)
		e := catalog.Expiry{Date: date(2024, time.January, 1)}
		assert.False(t, e.Over(afternoon))
		assert.True(t, e.Over(afternoon.AddDate(0, 0, 1)))
	})
}

func Test_BuildNumber(t *testing.T) {
	assert.Equal(t, "19045", catalog.BuildNumber("10.0.19045"))
	assert.Equal(t, "22631", catalog.BuildNumber("10.0.22631.2861"))
	assert.Equal(t, "", catalog.BuildNumber("10.0"))
	assert.Equal(t, "", catalog.BuildNumber(""))
}
