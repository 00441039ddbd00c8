package assets

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testFont() *Font {
	return &Font{
		Face:       "mono",
		LineHeight: 10,
		Base:       8,
		AtlasW:     64,
		AtlasH:     32,
		Pages:      []string{"fonts/mono_0.png"},
		glyphs: map[rune]Glyph{
			'A': {X: 0, Y: 0, Width: 8, Height: 8, XAdvance: 9},
			'V': {X: 8, Y: 0, Width: 8, Height: 8, YOffset: 1, XAdvance: 9},
			'?': {X: 16, Y: 16, Width: 4, Height: 8, XAdvance: 5},
			' ': {XAdvance: 4},
		},
		kerning: map[kerningPair]int{{'A', 'V'}: -2},
	}
}

func TestFontLayout(t *testing.T) {
	got := testFont().Layout("AV A\nx", 10, 20)
	want := []GlyphQuad{
		{X: 10, Y: 20, W: 8, H: 8, U0: 0, V0: 0, U1: 0.125, V1: 0.25},
		// kerned by -2
		{X: 17, Y: 21, W: 8, H: 8, U0: 0.125, V0: 0, U1: 0.25, V1: 0.25},
		// after the space
		{X: 30, Y: 20, W: 8, H: 8, U0: 0, V0: 0, U1: 0.125, V1: 0.25},
		// unknown rune falls back to '?' on the next line
		{X: 10, Y: 30, W: 4, H: 8, U0: 0.25, V0: 0.5, U1: 0.3125, V1: 0.75},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
}

func TestFontGlyphWithoutFallback(t *testing.T) {
	f := testFont()
	delete(f.glyphs, '?')
	if _, ok := f.Glyph('x'); ok {
		t.Error("missing glyph reported present")
	}
	if quads := f.Layout("xA", 0, 0); len(quads) != 1 || quads[0].X != 0 {
		t.Errorf("quads = %+v", quads)
	}
}
