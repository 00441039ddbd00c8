package assets

import (
	"path"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/fzipp/bmfont"
)

type Glyph struct {
	X, Y, Width, Height int
	XOffset, YOffset    int
	XAdvance            int
	Page                int
}

type kerningPair struct{ first, second rune }

// Font is a bitmap font whose pages are textures under the asset root.
type Font struct {
	Face       string
	Size       int
	LineHeight int
	Base       int
	AtlasW     int
	AtlasH     int
	// Pages are root-relative page image names, indexed by page ID.
	Pages   []string
	glyphs  map[rune]Glyph
	kerning map[kerningPair]int
}

// GlyphQuad is one glyph placed in pixels, with its atlas rectangle in
// normalized texture coordinates.
type GlyphQuad struct {
	Page       int
	X, Y, W, H float32
	U0, V0     float32
	U1, V1     float32
}

// LoadFont reads an AngelCode bitmap font descriptor. name is relative to
// the asset root; page images resolve next to it.
func (am *AssetManager) LoadFont(name string) (*Font, error) {
	p, err := am.Resolve(name)
	if err != nil {
		return nil, err
	}
	bf, err := bmfont.Load(p)
	if err != nil {
		return nil, errors.Wrapf(err, "loading font %s", p)
	}
	d := bf.Descriptor
	f := &Font{
		Face:       d.Info.Face,
		Size:       int(d.Info.Size),
		LineHeight: int(d.Common.LineHeight),
		Base:       int(d.Common.Base),
		AtlasW:     int(d.Common.ScaleW),
		AtlasH:     int(d.Common.ScaleH),
		glyphs:     make(map[rune]Glyph, len(d.Chars)),
		kerning:    make(map[kerningPair]int, len(d.Kerning)),
	}
	if f.AtlasW <= 0 || f.AtlasH <= 0 {
		return nil, errors.Newf("font %s has an empty atlas", p)
	}

	dir := path.Dir(slashPath(name))
	type page struct {
		id   int
		file string
	}
	var pages []page
	for _, pg := range d.Pages {
		pages = append(pages, page{id: int(pg.ID), file: pg.File})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].id < pages[j].id })
	for _, pg := range pages {
		for len(f.Pages) <= pg.id {
			f.Pages = append(f.Pages, "")
		}
		f.Pages[pg.id] = path.Join(dir, pg.file)
	}

	for _, c := range d.Chars {
		f.glyphs[rune(c.ID)] = Glyph{
			X: int(c.X), Y: int(c.Y),
			Width: int(c.Width), Height: int(c.Height),
			XOffset: int(c.XOffset), YOffset: int(c.YOffset),
			XAdvance: int(c.XAdvance),
			Page:     int(c.Page),
		}
	}
	for pair, k := range d.Kerning {
		f.kerning[kerningPair{rune(pair.First), rune(pair.Second)}] = int(k.Amount)
	}
	return f, nil
}

// Glyph returns the glyph for r, falling back to '?'.
func (f *Font) Glyph(r rune) (Glyph, bool) {
	if g, ok := f.glyphs[r]; ok {
		return g, true
	}
	g, ok := f.glyphs['?']
	return g, ok
}

// Layout places text with its top-left corner at (x, y), breaking lines on
// '\n'. Glyphs missing from the font are skipped.
func (f *Font) Layout(text string, x, y float32) []GlyphQuad {
	quads := make([]GlyphQuad, 0, len(text))
	penX, penY := x, y
	prev := rune(-1)
	for _, r := range text {
		if r == '\n' {
			penX = x
			penY += float32(f.LineHeight)
			prev = -1
			continue
		}
		g, ok := f.Glyph(r)
		if !ok {
			prev = -1
			continue
		}
		if prev >= 0 {
			penX += float32(f.kerning[kerningPair{prev, r}])
		}
		if g.Width > 0 && g.Height > 0 {
			quads = append(quads, GlyphQuad{
				Page: g.Page,
				X:    penX + float32(g.XOffset),
				Y:    penY + float32(g.YOffset),
				W:    float32(g.Width),
				H:    float32(g.Height),
				U0:   float32(g.X) / float32(f.AtlasW),
				V0:   float32(g.Y) / float32(f.AtlasH),
				U1:   float32(g.X+g.Width) / float32(f.AtlasW),
				V1:   float32(g.Y+g.Height) / float32(f.AtlasH),
			})
		}
		penX += float32(g.XAdvance)
		prev = r
	}
	return quads
}

// NewFont builds a font from already decoded metrics.
func NewFont(lineHeight, atlasW, atlasH int, pages []string, glyphs map[rune]Glyph) *Font {
	return &Font{
		LineHeight: lineHeight,
		AtlasW:     atlasW,
		AtlasH:     atlasH,
		Pages:      pages,
		glyphs:     glyphs,
		kerning:    make(map[kerningPair]int),
	}
}

func (f *Font) SetKerning(first, second rune, amount int) {
	f.kerning[kerningPair{first, second}] = amount
}
