package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/example/foodscan/internal/domain"
)

const (
	jpegQuality = 85

	// MaxPixels bounds the decoded size of an image that is rendered.
	MaxPixels = 40_000_000
)

// ErrTooLarge is returned by Render when the image declares more than MaxPixels.
var ErrTooLarge = errors.New("image dimensions exceed preview limit")

// Renderer derives a display preview from the raw bytes of a selected file.
type Renderer struct {
	MaxWidth int
}

// NewRenderer returns a renderer that scales previews down to maxWidth pixels.
func NewRenderer(maxWidth int) *Renderer {
	return &Renderer{MaxWidth: maxWidth}
}

// Render decodes data and returns a JPEG no wider than MaxWidth. Images that
// are already small enough are re-encoded without scaling. The header is
// checked first so oversized images are rejected before decoding.
func (r *Renderer) Render(fileName string, data []byte) (domain.Preview, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.Preview{}, fmt.Errorf("decode image header: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return domain.Preview{}, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrTooLarge)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.Preview{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := fit(bounds.Dx(), bounds.Dy(), r.MaxWidth)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}

	out := &bytes.Buffer{}
	if err := jpeg.Encode(out, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return domain.Preview{}, fmt.Errorf("encode %s preview: %w", format, err)
	}

	return domain.Preview{
		FileName:    fileName,
		ContentType: "image/jpeg",
		Width:       width,
		Height:      height,
		Data:        out.Bytes(),
	}, nil
}

// Passthrough wraps undecodable input so the user still sees what was
// selected; the browser may know the format even when we do not.
func Passthrough(fileName string, data []byte) domain.Preview {
	return domain.Preview{
		FileName:    fileName,
		ContentType: http.DetectContentType(data),
		Data:        data,
	}
}

func fit(width, height, maxWidth int) (int, int) {
	if maxWidth <= 0 || width <= maxWidth {
		return width, height
	}
	scaled := height * maxWidth / width
	if scaled < 1 {
		scaled = 1
	}
	return maxWidth, scaled
}
