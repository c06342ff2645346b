// replaycheck compares N recordings of the same session for byte-exact
// agreement and reports where they diverge.
//
//	replaycheck [-report out.json] [-catalog catalog.db] [-archive] a.rec b.rec ...
//
// Exit status: 0 when the files agree, 1 on mismatch, 2 on usage errors.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"quickstep.gg/internal/catalog"
	"quickstep.gg/internal/replay"
)

func main() {
	var (
		reportPath  = flag.String("report", "", "write the full JSON report to this path ('-' for stdout)")
		catalogPath = flag.String("catalog", "", "record the run in this catalog db (optional)")
		archive     = flag.Bool("archive", false, "compress each input file to .zst after a clean run")
	)
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: replaycheck [flags] file.rec [file.rec ...]")
		os.Exit(2)
	}

	rep, err := replay.Validate(paths)
	if err != nil {
		fmt.Fprintln(os.Stderr, "validate:", err)
		os.Exit(2)
	}

	fmt.Printf("session seed=%d players=%d input_size=%d files=%d frames=%d\n",
		rep.Seed, rep.PlayerCount, rep.InputSize, len(rep.Files), rep.FramesCompared)
	if rep.IsValid {
		fmt.Println("replay ok: all files agree")
	} else {
		fmt.Printf("replay MISMATCH: %d disagreements\n", rep.MismatchCount)
		for _, m := range rep.Mismatches {
			fmt.Printf("  frame=%d player=%d byte=%d %s vs %s\n",
				m.Frame, m.Player, m.Offset, m.BaseFile, m.File)
		}
	}

	raw, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal report:", err)
		os.Exit(2)
	}
	if *reportPath == "-" {
		fmt.Println(string(raw))
	} else if *reportPath != "" {
		if err := os.WriteFile(*reportPath, append(raw, '\n'), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "write report:", err)
			os.Exit(2)
		}
	}

	if *catalogPath != "" {
		if err := recordRun(*catalogPath, rep, raw); err != nil {
			fmt.Fprintln(os.Stderr, "catalog:", err)
			os.Exit(2)
		}
	}

	if rep.IsValid && *archive {
		for _, p := range paths {
			dst, err := replay.Archive(p)
			if err != nil {
				fmt.Fprintln(os.Stderr, "archive:", err)
				os.Exit(2)
			}
			fmt.Printf("archived %s -> %s\n", p, dst)
		}
	}

	if !rep.IsValid {
		os.Exit(1)
	}
}

func recordRun(path string, rep replay.Report, raw []byte) error {
	c, err := catalog.Open(path)
	if err != nil {
		return err
	}
	c.RecordValidation(catalog.ValidationRow{
		Seed:          rep.Seed,
		Files:         rep.Files,
		IsValid:       rep.IsValid,
		MismatchCount: rep.MismatchCount,
		ReportJSON:    string(raw),
	})
	for _, f := range rep.Files {
		c.RecordSession(catalog.SessionRow{
			Path:        f,
			Seed:        rep.Seed,
			PlayerCount: rep.PlayerCount,
			InputSize:   rep.InputSize,
			Frames:      int32(rep.FramesCompared),
		})
	}
	c.Flush()
	return c.Close()
}
