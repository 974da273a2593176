package printer

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// ESC/POS control bytes.
const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

// Align is a text alignment.
type Align byte

const (
	AlignLeft   Align = 0
	AlignCenter Align = 1
	AlignRight  Align = 2
)

// Paper widths in characters.
const (
	Width58mm = 32
	Width80mm = 48
)

// Document accumulates an ESC/POS byte stream. Widths are counted in runes so
// accented names line up.
type Document struct {
	buf   bytes.Buffer
	width int
}

// NewDocument starts a document for a printer that fits width characters per line.
func NewDocument(width int) *Document {
	if width <= 0 {
		width = Width58mm
	}
	d := &Document{width: width}
	d.buf.Write([]byte{esc, '@'})
	return d
}

func (d *Document) Align(a Align) *Document {
	d.buf.Write([]byte{esc, 'a', byte(a)})
	return d
}

func (d *Document) Bold(on bool) *Document {
	var b byte
	if on {
		b = 1
	}
	d.buf.Write([]byte{esc, 'E', b})
	return d
}

// DoubleSize toggles double width and height.
func (d *Document) DoubleSize(on bool) *Document {
	var b byte
	if on {
		b = 0x11
	}
	d.buf.Write([]byte{gs, '!', b})
	return d
}

// Line writes s, cut to the paper width, and a line feed.
func (d *Document) Line(s string) *Document {
	d.buf.WriteString(truncate(s, d.width))
	d.buf.WriteByte(lf)
	return d
}

// Rule draws a full-width line of c.
func (d *Document) Rule(c rune) *Document {
	return d.Line(strings.Repeat(string(c), d.width))
}

// Columns writes left and right on one line, right flush with the margin. A
// left part that does not fit is shortened.
func (d *Document) Columns(left, right string) *Document {
	room := d.width - utf8.RuneCountInString(right) - 1
	if room < 1 {
		return d.Line(left).Line(right)
	}
	left = truncate(left, room)
	pad := d.width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	return d.Line(left + strings.Repeat(" ", pad) + right)
}

func (d *Document) Feed(n int) *Document {
	for i := 0; i < n; i++ {
		d.buf.WriteByte(lf)
	}
	return d
}

// Cut feeds past the tear bar and performs a partial cut.
func (d *Document) Cut() *Document {
	d.Feed(3)
	d.buf.Write([]byte{gs, 'V', 0x01})
	return d
}

func (d *Document) Bytes() []byte {
	return d.buf.Bytes()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
