package assets

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxImageDimension bounds both sides of a decoded image.
const MaxImageDimension = 16384

var ErrInvalidImage = errors.New("invalid image")

// DecodeImage decodes any registered image format into tightly packed,
// non-premultiplied RGBA8 rows.
func DecodeImage(r io.ReadSeeker) (width, height uint32, rgba []byte, err error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, nil, errors.Mark(errors.Wrap(err, "reading image header"), ErrInvalidImage)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension {
		return 0, 0, nil, errors.Mark(errors.Newf("%s image of %dx%d is outside 1..%d", format, cfg.Width, cfg.Height, MaxImageDimension), ErrInvalidImage)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, 0, nil, err
	}
	src, _, err := image.Decode(r)
	if err != nil {
		return 0, 0, nil, errors.Mark(errors.Wrapf(err, "decoding %s image", format), ErrInvalidImage)
	}
	img := toNRGBA(src)
	b := img.Bounds()
	return uint32(b.Dx()), uint32(b.Dy()), img.Pix, nil
}

// toNRGBA returns src as an NRGBA image with origin (0, 0) and no row
// padding, converting only when needed.
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// DecodeImageFile decodes the image at path.
func DecodeImageFile(path string) (uint32, uint32, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, err
	}
	defer f.Close()
	w, h, rgba, err := DecodeImage(f)
	if err != nil {
		return 0, 0, nil, errors.Wrapf(err, "decoding %s", path)
	}
	return w, h, rgba, nil
}

// DecodeTexture resolves name against the asset root and decodes it. It is
// safe for concurrent use.
func (am *AssetManager) DecodeTexture(name string) (uint32, uint32, []byte, error) {
	path, err := am.Resolve(name)
	if err != nil {
		return 0, 0, nil, err
	}
	return DecodeImageFile(path)
}
