package main

import (
	"fmt"

	c "kslab/internal"
	"kslab/internal/sizeclass"

	"github.com/spf13/cobra"
)

var (
	classesZoneSize	uint
)

func init() {
	cmd := newClassesCmd()
	cmd.Flags().UintVar(&classesZoneSize, "zone-size", 0, "Zone size in bytes used for the chunks-per-zone column (default 128KiB)")
	rootCmd.AddCommand(cmd)
}

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:	"classes",
		Short:	"Show the size-class table",
		Long: `The classes command lists every zone size class: its index, chunk size,
alignment guarantee, smallest request served and chunks per zone.

Example:
  kslab classes
  kslab classes --zone-size 32768 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses()
		},
	}
}

type classRow struct {
	Index	int		`json:"index"`
	Size	uintptr	`json:"size"`
	Align	uintptr	`json:"align"`
	Min		uintptr	`json:"min"`
	PerZone	int		`json:"per_zone"`
}

func runClasses() error {
	zoneSize, err := zoneSizeFlag(classesZoneSize)
	if err != nil {
		return err
	}

	var rows []classRow
	for _, cl := range sizeclass.Table() {
		rows = append(rows, classRow{
			Index:		cl.Index,
			Size:		cl.Size,
			Align:		cl.Align,
			Min:		cl.Min,
			PerZone:	chunksPerZone(zoneSize, cl.Size),
		})
	}

	if jsonOut {
		return printJSON(rows)
	}
	printInfo("%5s %8s %6s %8s %9s\n", "CLASS", "SIZE", "ALIGN", "MIN", "PER ZONE")
	for _, r := range rows {
		printInfo("%5d %8d %6d %8d %9d\n", r.Index, r.Size, r.Align, r.Min, r.PerZone)
	}
	printVerbose("%d classes, zone size %d\n", len(rows), zoneSize)
	return nil
}

// chunksPerZone mirrors how a zone is carved: a 64 byte header, pushed up to
// the chunk size for power of two chunks.
func chunksPerZone(zoneSize uintptr, size uintptr) int {
	off := uintptr(64)
	if c.IsPow2(size) {
		off = c.RoundUp(off, size)
	}
	if off >= zoneSize {
		return 0
	}
	return int((zoneSize - off) / size)
}

func zoneSizeFlag(v uint) (uintptr, error) {
	if v == 0 {
		return c.ZONE_SIZE_DEFAULT, nil
	}
	zs := uintptr(v)
	if !c.IsPow2(zs) || zs < c.ZONE_SIZE_MIN || zs > c.ZONE_SIZE_MAX {
		return 0, fmt.Errorf("zone size must be a power of two in [%d, %d], got %d",
			c.ZONE_SIZE_MIN, c.ZONE_SIZE_MAX, v)
	}
	return zs, nil
}
