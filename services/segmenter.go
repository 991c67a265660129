package services

import (
	"regexp"
	"strings"
)

// PageText is the extracted text of one document page.
type PageText struct {
	Number int
	Text   string
}

// Segment is one chunk of page text. Start and End are byte offsets
// within the page, so consecutive segments overlap by design.
type Segment struct {
	Text  string
	Page  int
	Start int
	End   int
}

// Segmenter splits page text into overlapping windows, preferring
// paragraph and sentence boundaries over hard character cuts. Pure and
// deterministic: identical input always yields identical segments.
type Segmenter struct {
	chunkSize      int
	overlap        int
	paragraphRegex *regexp.Regexp
	sentenceRegex  *regexp.Regexp
}

func NewSegmenter(chunkSize, overlap int) *Segmenter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Segmenter{
		chunkSize:      chunkSize,
		overlap:        overlap,
		paragraphRegex: regexp.MustCompile(`\n\n+`),
		sentenceRegex:  regexp.MustCompile(`[.!?]+\s+`),
	}
}

// Split chunks each page independently, so a segment's page number is
// always the page its content began on.
func (s *Segmenter) Split(pages []PageText) []Segment {
	var segments []Segment
	for _, page := range pages {
		segments = append(segments, s.splitPage(page)...)
	}
	return segments
}

func (s *Segmenter) splitPage(page PageText) []Segment {
	text := page.Text
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// A short page is exactly one segment.
	if len(text) <= s.chunkSize {
		return []Segment{{Text: text, Page: page.Number, Start: 0, End: len(text)}}
	}

	var segments []Segment
	start := 0
	for start < len(text) {
		end := start + s.chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = s.breakPoint(text, start, end)
		}

		segments = append(segments, Segment{
			Text:  text[start:end],
			Page:  page.Number,
			Start: start,
			End:   end,
		})
		if end == len(text) {
			break
		}

		next := end - s.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return segments
}

// breakPoint picks a natural cut at or before hardEnd. Paragraph breaks
// win over sentence ends; neither may land before the window midpoint,
// which keeps segments from degenerating.
func (s *Segmenter) breakPoint(text string, start, hardEnd int) int {
	window := text[start:hardEnd]
	earliest := len(window) / 2

	if cut := lastBoundary(s.paragraphRegex, window, earliest); cut > 0 {
		return start + cut
	}
	if cut := lastBoundary(s.sentenceRegex, window, earliest); cut > 0 {
		return start + cut
	}
	return hardEnd
}

func lastBoundary(re *regexp.Regexp, window string, earliest int) int {
	locs := re.FindAllStringIndex(window, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		if locs[i][1] >= earliest {
			return locs[i][1]
		}
	}
	return 0
}
