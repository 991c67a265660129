package services

import (
	"strings"
	"testing"
)

func TestSplitThreePagesTwoChunksEach(t *testing.T) {
	// 3 pages of 1500 chars each with chunk size 1000 / overlap 200
	// yields exactly 6 chunks, 2 per page.
	seg := NewSegmenter(1000, 200)
	pages := []PageText{
		{Number: 1, Text: strings.Repeat("a", 1500)},
		{Number: 2, Text: strings.Repeat("b", 1500)},
		{Number: 3, Text: strings.Repeat("c", 1500)},
	}

	segments := seg.Split(pages)
	if len(segments) != 6 {
		t.Fatalf("expected 6 segments, got %d", len(segments))
	}

	wantPages := []int{1, 1, 2, 2, 3, 3}
	for i, s := range segments {
		if s.Page != wantPages[i] {
			t.Errorf("segment %d: expected page %d, got %d", i, wantPages[i], s.Page)
		}
	}

	// Without natural boundaries the cuts are hard: 0-1000 then 800-1500.
	if segments[0].Start != 0 || segments[0].End != 1000 {
		t.Errorf("first segment bounds: got [%d,%d)", segments[0].Start, segments[0].End)
	}
	if segments[1].Start != 800 || segments[1].End != 1500 {
		t.Errorf("second segment bounds: got [%d,%d)", segments[1].Start, segments[1].End)
	}
}

func TestSplitShortPageSingleChunk(t *testing.T) {
	seg := NewSegmenter(1000, 200)
	segments := seg.Split([]PageText{{Number: 7, Text: "a short page"}})

	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Page != 7 || segments[0].Text != "a short page" {
		t.Errorf("unexpected segment: %+v", segments[0])
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	seg := NewSegmenter(1000, 200)
	first := strings.Repeat("x", 800)
	second := strings.Repeat("y", 600)
	text := first + "\n\n" + second

	segments := seg.Split([]PageText{{Number: 1, Text: text}})
	if len(segments) < 2 {
		t.Fatalf("expected at least 2 segments, got %d", len(segments))
	}
	// The first cut lands right after the paragraph break, not at 1000.
	if segments[0].End != len(first)+2 {
		t.Errorf("expected cut at paragraph boundary %d, got %d", len(first)+2, segments[0].End)
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	seg := NewSegmenter(1000, 200)
	sentence := strings.Repeat("z", 697) + ". " // boundary ends at 699
	text := sentence + strings.Repeat("w", 800)

	segments := seg.Split([]PageText{{Number: 1, Text: text}})
	if segments[0].End != 699 {
		t.Errorf("expected cut at sentence boundary 699, got %d", segments[0].End)
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	seg := NewSegmenter(1000, 200)
	pages := []PageText{
		{Number: 1, Text: strings.Repeat("Some sentence here. ", 120)},
		{Number: 2, Text: strings.Repeat("Another paragraph.\n\n", 90)},
	}

	first := seg.Split(pages)
	for i := 0; i < 3; i++ {
		again := seg.Split(pages)
		if len(again) != len(first) {
			t.Fatalf("run %d: segment count changed: %d vs %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d: segment %d changed: %+v vs %+v", i, j, again[j], first[j])
			}
		}
	}
}

func TestSplitCoversFullPage(t *testing.T) {
	seg := NewSegmenter(1000, 200)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 80)
	page := PageText{Number: 1, Text: text}

	segments := seg.Split([]PageText{page})
	if len(segments) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segments))
	}

	// Offsets must tile the page: each segment begins at or before the
	// previous end (overlap), and together they reach from 0 to len(text).
	if segments[0].Start != 0 {
		t.Errorf("first segment starts at %d", segments[0].Start)
	}
	for i := 1; i < len(segments); i++ {
		if segments[i].Start > segments[i-1].End {
			t.Errorf("gap between segment %d end %d and segment %d start %d",
				i-1, segments[i-1].End, i, segments[i].Start)
		}
	}
	if last := segments[len(segments)-1]; last.End != len(text) {
		t.Errorf("last segment ends at %d, page length %d", last.End, len(text))
	}

	// Dropping the overlap region reconstructs the page text losslessly.
	var rebuilt strings.Builder
	rebuilt.WriteString(segments[0].Text)
	for i := 1; i < len(segments); i++ {
		skip := segments[i-1].End - segments[i].Start
		rebuilt.WriteString(segments[i].Text[skip:])
	}
	if rebuilt.String() != text {
		t.Error("reconstructed text does not match original page text")
	}
}

func TestSplitEmptyAndBlankPages(t *testing.T) {
	seg := NewSegmenter(1000, 200)
	segments := seg.Split([]PageText{
		{Number: 1, Text: ""},
		{Number: 2, Text: "   \n  "},
	})
	if len(segments) != 0 {
		t.Errorf("expected no segments for blank pages, got %d", len(segments))
	}
}
