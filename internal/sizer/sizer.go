// Package sizer computes the width of the chat input so its underline follows the typed text.
package sizer

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

// MirroredProperties are copied from the visible input onto the mirror before measuring.
var MirroredProperties = []string{
	"font-size",
	"font-style",
	"font-weight",
	"font-family",
	"line-height",
	"text-transform",
	"letter-spacing",
}

// Style holds computed CSS property values keyed by property name.
type Style map[string]string

// Input is the visible text field.
type Input struct {
	Value     string `json:"value"`
	Style     Style  `json:"style,omitempty"`
	Width     string `json:"width"`
	Underline bool   `json:"underline"`
}

// Mirror is the hidden element used for measuring.
type Mirror struct {
	ID    string
	Style Style
	Text  string
}

// Measurer returns the rendered width in pixels of text laid out with style.
type Measurer interface {
	Measure(text string, style Style) float64
}

// Config bounds the padding interpolation.
type Config struct {
	MinFontSize float64
	MaxFontSize float64
	MinPadding  float64
	MaxPadding  float64
}

// DefaultConfig matches a 14-16px root font with 4-6px padding.
func DefaultConfig() Config {
	return Config{MinFontSize: 14, MaxFontSize: 16, MinPadding: 4, MaxPadding: 6}
}

// Padding interpolates between the padding bounds by where rootFontSize sits between
// the font bounds. An unparsable or zero size gives the maximum padding.
func (c Config) Padding(rootFontSize string) int {
	size, ok := parseLeadingInt(rootFontSize)
	if !ok || size == 0 {
		return int(c.MaxPadding)
	}
	ratio := (float64(size) - c.MinFontSize) / (c.MaxFontSize - c.MinFontSize)
	return int(math.Floor(ratio*(c.MaxPadding-c.MinPadding) + c.MinPadding))
}

// Sizer adjusts inputs. The mirror is created on first use.
type Sizer struct {
	cfg      Config
	measurer Measurer

	mu     sync.Mutex
	mirror *Mirror
}

// New returns a Sizer; a nil measurer falls back to RuneWidthMeasurer.
func New(cfg Config, measurer Measurer) *Sizer {
	if measurer == nil {
		measurer = RuneWidthMeasurer{}
	}
	return &Sizer{cfg: cfg, measurer: measurer}
}

// Mirror returns the measuring element, creating it when absent.
func (s *Sizer) Mirror() *Mirror {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureMirror()
}

func (s *Sizer) ensureMirror() *Mirror {
	if s.mirror == nil {
		s.mirror = &Mirror{ID: "textInputDummy", Style: Style{}}
	}
	return s.mirror
}

// Adjust updates the input width and underline for its current value.
func (s *Sizer) Adjust(in *Input, rootFontSize string) {
	if in.Value == "" {
		in.Underline = false
		in.Width = "100%"
		return
	}

	in.Underline = true

	s.mu.Lock()
	mirror := s.ensureMirror()
	for _, prop := range MirroredProperties {
		mirror.Style[prop] = in.Style[prop]
	}
	mirror.Text = in.Value
	measured := math.Ceil(s.measurer.Measure(mirror.Text, mirror.Style))
	s.mu.Unlock()

	padding := s.cfg.Padding(rootFontSize)
	in.Width = strconv.Itoa(int(measured)+padding) + "px"
}

// RuneWidthMeasurer approximates glyph advance from terminal cell widths: a narrow cell is
// about 0.55em wide, bold text runs slightly wider.
type RuneWidthMeasurer struct{}

const (
	defaultFontSize = 16.0
	cellEm          = 0.55
	boldFactor      = 1.06
)

func (RuneWidthMeasurer) Measure(text string, style Style) float64 {
	fontSize := defaultFontSize
	if v, ok := parsePixels(style["font-size"]); ok && v > 0 {
		fontSize = v
	}

	text = applyTransform(text, style["text-transform"])
	cells := float64(runewidth.StringWidth(text))
	width := cells * cellEm * fontSize

	if isBold(style["font-weight"]) {
		width *= boldFactor
	}
	if spacing, ok := parsePixels(style["letter-spacing"]); ok {
		width += spacing * float64(len([]rune(text)))
	}
	return width
}

func applyTransform(text, transform string) string {
	switch strings.TrimSpace(transform) {
	case "uppercase":
		return strings.ToUpper(text)
	case "lowercase":
		return strings.ToLower(text)
	case "capitalize":
		words := strings.Fields(text)
		for i, w := range words {
			r := []rune(w)
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
			words[i] = string(r)
		}
		return strings.Join(words, " ")
	default:
		return text
	}
}

func isBold(weight string) bool {
	weight = strings.TrimSpace(weight)
	if weight == "bold" || weight == "bolder" {
		return true
	}
	n, err := strconv.Atoi(weight)
	return err == nil && n >= 600
}

// parsePixels reads values like "16px" or "0.5px"; "normal" and empty are not numbers.
func parsePixels(v string) (float64, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseLeadingInt reads the integer prefix of v the way CSS pixel strings are usually read:
// "16px" is 16, "15.7px" is 15.
func parseLeadingInt(v string) (int, bool) {
	v = strings.TrimSpace(v)
	end := 0
	for end < len(v) && (v[end] == '-' && end == 0 || v[end] >= '0' && v[end] <= '9') {
		end++
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
