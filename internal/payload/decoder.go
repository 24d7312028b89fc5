// Package payload finds and decodes the instruction hidden inside an
// extracted page, then resolves it into a structured directive.
package payload

import (
	"encoding/base64"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"quizrunner/internal/task"
)

// candidateRun matches a contiguous run of base64-alphabet characters,
// padding and embedded line breaks included. Runs shorter than 100 characters
// are incidental noise and never carry a real payload.
var candidateRun = regexp.MustCompile(`[A-Za-z0-9+/=\r\n]{100,}`)

// defaultMarkers are fragments whose presence in decoded text identifies a
// genuine instruction payload, as opposed to base64-looking noise that happens
// to decode.
var defaultMarkers = []string{
	"instruction",
	"assignment",
	"download the file",
}

// Candidate is one scored decode attempt. Candidates form an explicit ranked
// list so the precedence rules are testable on their own.
type Candidate struct {
	Raw       string // base64 run as found, whitespace stripped
	Index     int    // discovery order within the search text
	Decoded   string // empty when the run is not valid base64
	MarkerHit bool
}

// Score ranks a candidate: a marker hit dominates everything, then plain
// decode success. Ties are broken by discovery order at selection time.
func (c Candidate) Score() int {
	switch {
	case c.MarkerHit:
		return 2
	case c.Decoded != "":
		return 1
	default:
		return 0
	}
}

// Decoder extracts the most plausible embedded payload from a page extract.
type Decoder struct {
	markers []string
	logger  *zap.Logger
}

// NewDecoder builds a decoder with the default marker set.
func NewDecoder(logger *zap.Logger) *Decoder {
	return NewDecoderWithMarkers(logger, defaultMarkers)
}

// NewDecoderWithMarkers builds a decoder with a custom marker set.
func NewDecoderWithMarkers(logger *zap.Logger, markers []string) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{markers: markers, logger: logger}
}

// Decode selects and decodes the best candidate payload from the extract.
// It returns nil when the search text contains no candidate run at all, and
// a payload with MarkerHit=false when only a lower-confidence fallback
// (first successfully decoded run) is available.
func (d *Decoder) Decode(extract *task.PageExtract) *task.DecodedPayload {
	search := extract.SearchText()
	if search == "" {
		return nil
	}

	candidates := d.rank(search)
	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	if best.Decoded == "" {
		// Runs existed but none decoded; the miss is terminal upstream.
		d.logger.Debug("no candidate decoded", zap.Int("candidates", len(candidates)))
		return nil
	}

	d.logger.Debug("payload selected",
		zap.Int("candidates", len(candidates)),
		zap.Bool("marker_hit", best.MarkerHit),
		zap.Int("decoded_len", len(best.Decoded)))

	return &task.DecodedPayload{
		Text:      best.Decoded,
		Candidate: best.Raw,
		MarkerHit: best.MarkerHit,
	}
}

// rank scans the search text and returns all candidates ordered best-first:
// highest score wins, earliest discovery breaks ties. The first element is
// therefore the selection the decoder makes.
func (d *Decoder) rank(search string) []Candidate {
	runs := candidateRun.FindAllString(search, -1)
	candidates := make([]Candidate, 0, len(runs))

	for i, run := range runs {
		c := Candidate{Raw: stripWhitespace(run), Index: i}
		if raw, err := base64.StdEncoding.DecodeString(c.Raw); err == nil && utf8.Valid(raw) {
			c.Decoded = string(raw)
			c.MarkerHit = d.matchesMarker(c.Decoded)
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score() != candidates[j].Score() {
			return candidates[i].Score() > candidates[j].Score()
		}
		return candidates[i].Index < candidates[j].Index
	})
	return candidates
}

func (d *Decoder) matchesMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range d.markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}
