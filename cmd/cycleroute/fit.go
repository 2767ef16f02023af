package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/lucasjlepore/cycleroute/fitdump"
	"github.com/lucasjlepore/cycleroute/fitexport"
	"github.com/spf13/cobra"
)

func newFitInspectCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "fit-inspect <course.fit>",
		Short: "Decode a FIT course and list its course points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read fit: %w", err)
			}
			course, err := fitexport.Inspect(data)
			if err != nil {
				return err
			}
			units, err := a.unitSystem()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, course)
			}
			fmt.Fprintf(out, "Course: %s (%s)\n", course.Name, course.Sport)
			fmt.Fprintf(out, "Records: %d (%d with altitude)\n", course.Records, course.RecordsWithAlt)
			fmt.Fprintf(out, "Distance: %s | Events: %d\n", units.FormatDistance(course.DistanceMeters), course.Events)
			for _, cp := range course.CoursePoints {
				fmt.Fprintf(out, "- %8s | %-12s | %s\n", units.FormatDistance(cp.DistanceMeters), cp.Type, cp.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the course as JSON")
	return cmd
}

func newFitDumpCmd(a *app) *cobra.Command {
	var jsonl bool
	cmd := &cobra.Command{
		Use:   "fit-dump <file.fit>",
		Short: "Walk the raw records of a FIT file and check its CRCs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read fit: %w", err)
			}
			dump, err := fitdump.Parse(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonl {
				return dump.MarshalJSONL(out)
			}
			fmt.Fprintf(out, "Header: %d bytes, protocol %d, profile %d, data %d bytes (%s)\n",
				dump.Header.Size, dump.Header.ProtocolVersion, dump.Header.ProfileVersion, dump.Header.DataSize, dump.Header.DataType)
			fmt.Fprintf(out, "Header CRC: %s\n", crcStatus(dump.HeaderCRC))
			fmt.Fprintf(out, "File CRC:   %s\n", crcStatus(dump.FileCRC))

			counts := map[uint16]int{}
			for _, g := range dump.MessageSequence() {
				counts[g]++
			}
			globals := make([]uint16, 0, len(counts))
			for g := range counts {
				globals = append(globals, g)
			}
			sort.Slice(globals, func(i, j int) bool { return globals[i] < globals[j] })
			fmt.Fprintf(out, "Records: %d\n", len(dump.Records))
			for _, g := range globals {
				name := fitdump.MessageName(g)
				if name == "" {
					name = "unknown"
				}
				fmt.Fprintf(out, "- %3d %-14s %d\n", g, name, counts[g])
			}
			if !dump.FileCRC.Valid {
				return fmt.Errorf("file crc mismatch: stored %#04x, computed %#04x", dump.FileCRC.Stored, dump.FileCRC.Computed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonl, "jsonl", false, "write every record as one JSON line")
	return cmd
}

func crcStatus(c fitdump.CRC) string {
	switch {
	case !c.Present:
		return "absent"
	case c.Valid:
		return fmt.Sprintf("ok (%#04x)", c.Stored)
	}
	return fmt.Sprintf("mismatch (stored %#04x, computed %#04x)", c.Stored, c.Computed)
}
