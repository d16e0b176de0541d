// Package main provides buildcheck, a dry-run tool for chapter sources.
// It runs segmentation, group packing, and span mapping over a chapter JSON
// file without synthesizing any audio, using a speech-rate estimate for
// segment durations. Useful for previewing how a chapter will be cut before
// spending TTS credits on it.
package main

import (
	"encoding/json/v2"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/grouper"
	"github.com/inkcast/inkcast-server/internal/segment"
	"github.com/inkcast/inkcast-server/internal/spans"
)

// estimateMsPerChar approximates narration speed. Around 15 characters per
// second is typical for English audiobook narration.
const estimateMsPerChar = 66

func main() {
	groupMs := flag.Int64("group-ms", grouper.DefaultTargetDurationMs, "target group duration in milliseconds")
	verbose := flag.Bool("v", false, "print every segment")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Usage: buildcheck [-group-ms N] [-v] <chapter.json>")
	}

	path := flag.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open source: %v", err)
	}
	defer f.Close()

	var source domain.ChapterSource
	if err := json.UnmarshalRead(f, &source); err != nil {
		log.Fatalf("Failed to parse source: %v", err)
	}

	fmt.Printf("Checking: %s\n", path)
	fmt.Printf("Book: %s  Chapter: %d  %q\n", source.BookID, source.ChapterIndex, source.Title)
	fmt.Printf("Chunks: %d  Paragraphs: %d\n\n", len(source.Chunks), len(source.Paragraphs))

	segs, err := segment.NewNormalizer(segment.DefaultOptions()).Process(source.Chunks)
	if err != nil {
		log.Fatalf("Segmentation failed: %v", err)
	}

	fmt.Printf("Segments: %d\n", len(segs))
	for i := range segs {
		segs[i].DurationMs = int64(len(segs[i].TextNormalized)) * estimateMsPerChar
		if *verbose {
			fmt.Printf("  [%d] %5dms %s\n", segs[i].SegmentIndex, segs[i].DurationMs, truncate(segs[i].Text, 70))
		}
	}

	groups, err := grouper.Pack(segs, *groupMs)
	if err != nil {
		log.Fatalf("Group packing failed: %v", err)
	}
	if err := grouper.Validate(groups); err != nil {
		log.Fatalf("Group validation failed: %v", err)
	}

	var totalMs int64
	fmt.Printf("\nGroups: %d (target %dms, estimated durations)\n", len(groups), *groupMs)
	for _, g := range groups {
		totalMs += g.DurationMs
		fmt.Printf("  [%d] segments %d-%d  start %6dms  duration %6dms\n",
			g.GroupIndex, g.StartSegmentIndex, g.EndSegmentIndex, g.StartTimeMs, g.DurationMs)
	}
	fmt.Printf("Estimated chapter duration: %.1fs\n", float64(totalMs)/1000)

	packed := make([]domain.Segment, 0, len(segs))
	for _, g := range groups {
		packed = append(packed, g.Segments...)
	}

	paragraphSpans, err := spans.Map(source.Paragraphs, packed)
	if err != nil {
		log.Fatalf("Span mapping failed: %v", err)
	}

	report := spans.ValidateCoverage(paragraphSpans, len(packed))
	fmt.Printf("\nSpans: %d\n", len(paragraphSpans))
	for _, span := range paragraphSpans {
		fmt.Printf("  para %3d -> segments %d-%d\n",
			span.ParagraphIndex, span.StartSegmentIndex, span.EndSegmentIndex)
	}

	if !report.Valid() {
		log.Fatalf("Coverage validation failed: %v", report.Err())
	}
	fmt.Println("\nCoverage OK: every segment belongs to exactly one span.")
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
