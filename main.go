package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/flyingphish/intune-os-checker/catalog"
	"github.com/flyingphish/intune-os-checker/config"
	"github.com/flyingphish/intune-os-checker/endoflife"
	"github.com/flyingphish/intune-os-checker/inventory"
	"github.com/flyingphish/intune-os-checker/matcher"
)

const banner = `
    ____      __                         ____  _____       ________              __
   /  _/___  / /___  ______  ___        / __ \/ ___/      / ____/ /_  ___  _____/ /_____  _____
   / // __ \/ __/ / / / __ \/ _ \______/ / / /\__ \______/ /   / __ \/ _ \/ ___/ //_/ _ \/ ___/
 _/ // / / / /_/ /_/ / / / /  __/_____/ /_/ /___/ /_____/ /___/ / / /  __/ /__/ ,< /  __/ /
/___/_/ /_/\__/\__,_/_/ /_/\___/      \____//____/      \____/_/ /_/\___/\___/_/|_|\___/_/

by @FlyingPhishy - Why isn't this an accessible feature in Intune?
`

var (
	file       = flag.String("f", "", "path to the Intune .xlsx export to process")
	sheet      = flag.String("s", "", "name of the sheet to read devices from")
	configPath = flag.String("c", "", "optional YAML file overriding the OS family table")
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	fmt.Print(banner)
	flag.Parse()
	if *file == "" || *sheet == "" {
		flag.Usage()
		return xerrors.New("both -f and -s must be specified")
	}

	appFs := afero.NewOsFs()
	families, err := config.Load(appFs, *configPath)
	if err != nil {
		return xerrors.Errorf("family config error: %w", err)
	}

	// A failed fetch degrades that family to Unknown Version, it never
	// aborts the run.
	client := endoflife.NewClient()
	catalogs := make(map[catalog.Family]*catalog.Catalog)
	for _, fam := range families {
		releases, err := client.FetchReleases(fam.Product)
		if err != nil {
			log.Printf("skipping %s catalog: %v", fam.Family, err)
			continue
		}
		catalogs[fam.Family] = catalog.Normalize(fam.Family, releases)
	}

	store := inventory.NewStore(*file, inventory.WithFs(appFs))
	log.Printf("Loading data from %s...", *file)
	if err := store.Load(); err != nil {
		return err
	}
	header, rows, err := store.Rows(*sheet)
	if err != nil {
		return err
	}
	log.Printf("loaded %d device rows from sheet %q", len(rows), *sheet)

	// classification runs against the calendar date, not the wall clock
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	claimed := make(map[int]struct{}, len(rows))
	for _, fam := range families {
		famRows := lo.Filter(rows, func(row inventory.Row, _ int) bool {
			return fam.MatchOS(row.OS)
		})
		if len(famRows) == 0 {
			log.Printf("no %s devices in sheet %q", fam.Family, *sheet)
			continue
		}

		log.Printf("Processing %s data...", fam.Family)
		cat := catalogs[fam.Family]
		results := make(map[int]matcher.Result, len(famRows))
		bar := pb.StartNew(len(famRows))
		for _, row := range famRows {
			claimed[row.Index] = struct{}{}
			q := matcher.Query{RowID: row.Index, Family: fam.Family, RawVersion: row.OSVersion}
			results[row.Index] = matcher.Match(q, cat, today)
			bar.Increment()
		}
		bar.Finish()

		if err := store.WriteFamily(string(fam.Family), header, famRows, results, fam.Extras); err != nil {
			return xerrors.Errorf("failed to write %s results: %w", fam.Family, err)
		}
	}

	warnUnclaimed(rows, claimed)

	if err := store.Save(); err != nil {
		return err
	}
	log.Println("Successfully updated the workbook with support data.")
	return nil
}

// warnUnclaimed logs each distinct OS value no family claimed, once.
func warnUnclaimed(rows []inventory.Row, claimed map[int]struct{}) {
	warned := make(map[string]struct{})
	for _, row := range rows {
		if _, ok := claimed[row.Index]; ok || row.OS == "" {
			continue
		}
		if _, ok := warned[row.OS]; ok {
			continue
		}
		warned[row.OS] = struct{}{}
		log.Printf("unrecognized OS %q, leaving its rows unclassified", row.OS)
	}
}
