package captions

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"os"
	"strings"

	"trendwave-pipeline/config"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Caption layout, in pixels on the reference 1080x1920 canvas
const (
	wrapMargin      = 250 // line width budget is W - wrapMargin
	boxInset        = 80  // box spans x = boxInset .. W - boxInset
	boxOffsetY      = 150 // box top sits this far below the vertical center
	boxPadding      = 80  // extra box height on top of the lines
	linePadTop      = 40  // first line starts this far below the box top
	lineAdvance     = 110 // every line advances by this much, the first one included
	subscribeOffset = 250 // subscribe baseline sits this far above the bottom edge

	mainStroke = 3
	subStroke  = 2
)

var (
	boxColor      = color.NRGBA{0, 0, 0, 180}
	mainFill      = color.NRGBA{255, 255, 255, 255}
	subscribeFill = color.NRGBA{255, 255, 255, 200}
	strokeColor   = color.NRGBA{0, 0, 0, 255}
	opaqueBlack   = image.NewUniform(color.Black)
)

// Compositor burns the caption box and subscribe prompt into video frames
type Compositor struct {
	width, height int
	main, sub     font.Face
	subscribe     string
	fallback      bool
}

// New loads the configured fonts. Any load failure switches both roles to
// the built-in face; it never returns an error.
func New(cfg *config.Config) *Compositor {
	c := &Compositor{
		width:     cfg.Video.Width,
		height:    cfg.Video.Height,
		subscribe: cfg.Captions.SubscribeText,
	}
	mainFace, err1 := loadFace(cfg.Captions.MainFont, cfg.Captions.MainFontSize)
	subFace, err2 := loadFace(cfg.Captions.SubFont, cfg.Captions.SubFontSize)
	if err1 != nil || err2 != nil {
		log.Printf("[captions] Font load failed (%v / %v) — using built-in default font", err1, err2)
		c.main, c.sub, c.fallback = basicfont.Face7x13, basicfont.Face7x13, true
		return c
	}
	c.main, c.sub = mainFace, subFace
	return c
}

func newWithFaces(width, height int, main, sub font.Face, subscribe string) *Compositor {
	return &Compositor{width: width, height: height, main: main, sub: sub, subscribe: subscribe}
}

func loadFace(path string, size int) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72, // size is in pixels
		Hinting: font.HintingFull,
	})
}

// UsingFallback reports whether the built-in font replaced the configured ones
func (c *Compositor) UsingFallback() bool { return c.fallback }

// Size is the frame size the compositor lays out for
func (c *Compositor) Size() (int, int) { return c.width, c.height }

// Layout is the caption geometry for one piece of text
type Layout struct {
	Lines     []string
	Box       image.Rectangle
	LineTops  []int
	Subscribe bool
}

// Wrap greedily fills lines while the joined line measures under W-250 at the
// main font. A word that alone exceeds the budget gets a line to itself.
func (c *Compositor) Wrap(text string) []string {
	budget := fixed.I(c.width - wrapMargin)
	var lines []string
	cur := ""
	for _, w := range strings.Fields(text) {
		if cur == "" {
			cur = w
			continue
		}
		next := cur + " " + w
		if font.MeasureString(c.main, next) < budget {
			cur = next
			continue
		}
		lines = append(lines, cur)
		cur = w
	}
	return append(lines, cur)
}

// LineWidth is the rendered width of s at the main font
func (c *Compositor) LineWidth(s string) int {
	return font.MeasureString(c.main, s).Ceil()
}

// Layout computes box and line positions for text
func (c *Compositor) Layout(text string, isFinal bool) Layout {
	lines := c.Wrap(text)
	top := c.height/2 + boxOffsetY
	h := len(lines)*lineAdvance + boxPadding
	l := Layout{
		Lines:     lines,
		Box:       image.Rect(boxInset, top, c.width-boxInset, top+h),
		LineTops:  make([]int, len(lines)),
		Subscribe: !isFinal,
	}
	y := top + linePadTop
	for i := range lines {
		l.LineTops[i] = y
		y += lineAdvance
	}
	return l
}

// Overlay is a transparent layer carrying one caption. Dirty bounds the
// pixels that were drawn.
type Overlay struct {
	Image *image.RGBA
	Dirty image.Rectangle
}

// Overlay draws the caption for text onto a transparent frame-sized layer
func (c *Compositor) Overlay(text string, isFinal bool) *Overlay {
	l := c.Layout(text, isFinal)
	img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	o := &Overlay{Image: img}

	if l.Subscribe && c.subscribe != "" {
		o.mark(c.drawText(img, c.sub, c.subscribe, c.width/2, c.height-subscribeOffset, false, subscribeFill, subStroke))
	}

	// the box replaces whatever is beneath it on the layer
	box := l.Box.Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(boxColor), image.Point{}, draw.Src)
	o.mark(box)

	for i, line := range l.Lines {
		o.mark(c.drawText(img, c.main, line, c.width/2, l.LineTops[i], true, mainFill, mainStroke))
	}
	o.Dirty = o.Dirty.Intersect(img.Bounds())
	return o
}

func (o *Overlay) mark(r image.Rectangle) {
	o.Dirty = o.Dirty.Union(r)
}

// drawText centers s horizontally on cx. y is the top of the ascender when
// top is set, otherwise the baseline. It returns the area touched.
func (c *Compositor) drawText(dst *image.RGBA, face font.Face, s string, cx, y int, top bool, fill color.Color, stroke int) image.Rectangle {
	if s == "" {
		return image.Rectangle{}
	}
	adv := font.MeasureString(face, s)
	baseline := fixed.I(y)
	if top {
		baseline += face.Metrics().Ascent
	}
	origin := fixed.Point26_6{X: fixed.I(cx) - adv/2, Y: baseline}

	d := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(strokeColor)}
	for dy := -stroke; dy <= stroke; dy++ {
		for dx := -stroke; dx <= stroke; dx++ {
			if dx*dx+dy*dy > stroke*stroke || (dx == 0 && dy == 0) {
				continue
			}
			d.Dot = origin.Add(fixed.P(dx, dy))
			d.DrawString(s)
		}
	}
	d.Src = image.NewUniform(fill)
	d.Dot = origin
	d.DrawString(s)

	b, _ := font.BoundString(face, s)
	return image.Rect(
		(origin.X+b.Min.X).Floor()-stroke, (origin.Y+b.Min.Y).Floor()-stroke,
		(origin.X+b.Max.X).Ceil()+stroke, (origin.Y+b.Max.Y).Ceil()+stroke,
	)
}

// Flatten composites overlay over frame into dst, leaving dst fully opaque.
// dst must be frame-sized; it may be reused across frames.
func Flatten(dst *image.RGBA, frame image.Image, o *Overlay) {
	b := dst.Bounds()
	draw.Draw(dst, b, opaqueBlack, image.Point{}, draw.Src)
	draw.Draw(dst, b, frame, frame.Bounds().Min, draw.Over)
	Burn(dst, o)
}

// Burn composites overlay in place onto an already opaque frame
func Burn(frame *image.RGBA, o *Overlay) {
	if o == nil || o.Dirty.Empty() {
		return
	}
	draw.Draw(frame, o.Dirty, o.Image, o.Dirty.Min, draw.Over)
}

// Render returns frame with the caption for text burned in
func (c *Compositor) Render(frame image.Image, text string, isFinal bool) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	Flatten(dst, frame, c.Overlay(text, isFinal))
	return dst
}
