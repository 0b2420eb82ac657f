package interfaces

import (
	"bytes"
	"strings"
	"testing"
	"time"

	settlement "hivegrid/internal/settlement/domain"
)

func sampleEntries() []settlement.JournalEntry {
	settledAt := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	return []settlement.JournalEntry{
		{Meter: "0x0000000000000000000000000000000000000101", Hive: "0x0000000000000000000000000000000000000200", Slot: settlement.Slot(2026*12 + 2), Net: 1100, SettledAt: settledAt},
		{Meter: "0x0000000000000000000000000000000000000102", Hive: "0x0000000000000000000000000000000000000200", Slot: settlement.Slot(2026*12 + 2), Net: -800, SettledAt: settledAt},
	}
}

func TestBuildJournalCSV(t *testing.T) {
	out, err := BuildJournalCSV(sampleEntries())
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	text := string(out)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "2026-02") || !strings.Contains(lines[1], "1100") {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
	if !strings.Contains(lines[2], "-800") {
		t.Fatalf("unexpected second row: %q", lines[2])
	}
}

func TestBuildJournalXLSX(t *testing.T) {
	out, err := BuildJournalXLSX(sampleEntries())
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(out, []byte("PK")) {
		t.Fatalf("output is not a zip archive")
	}
}

func TestBuildJournalPDF(t *testing.T) {
	out, err := BuildJournalPDF(sampleEntries())
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF document")
	}
}
