// Package render draws polygonal geometries into small WebP previews.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"

	"github.com/woozymasta/geoprops/internal/config"
	"github.com/woozymasta/geoprops/internal/geo"

	"github.com/chai2010/webp"
	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// supersample is the raster scale before the final downscale.
const supersample = 2

// Renderer draws geometries in the transformer's target CRS.
// It is safe for concurrent use.
type Renderer struct {
	transformer *geo.Transformer
	fill        color.NRGBA
	background  color.NRGBA
	size        int
	padding     int
	quality     float32
	lossless    bool
}

// New builds a renderer from preview settings.
func New(cfg config.Preview, t *geo.Transformer) (*Renderer, error) {
	fill, err := config.ParseColor(cfg.Fill)
	if err != nil {
		return nil, err
	}
	bg, err := config.ParseColor(cfg.Background)
	if err != nil {
		return nil, err
	}
	if cfg.Size < 2*cfg.Padding+1 {
		return nil, errors.Newf("preview size %d too small for padding %d", cfg.Size, cfg.Padding)
	}

	return &Renderer{
		transformer: t,
		fill:        fill,
		background:  bg,
		size:        cfg.Size,
		padding:     cfg.Padding,
		quality:     cfg.Quality,
		lossless:    cfg.Lossless,
	}, nil
}

// Render projects g and rasterizes it, fitted into the preview square.
func (r *Renderer) Render(g orb.Geometry) (image.Image, error) {
	var polygons []orb.Polygon
	switch g := r.transformer.Reproject(g).(type) {
	case orb.Polygon:
		polygons = []orb.Polygon{g}
	case orb.MultiPolygon:
		polygons = g
	default:
		return nil, errors.AssertionFailedf("unhandled geometry type %T", g)
	}

	bound := orb.MultiPolygon(polygons).Bound()
	width, height := bound.Right()-bound.Left(), bound.Top()-bound.Bottom()
	if width <= 0 && height <= 0 {
		return nil, errors.New("geometry has no extent")
	}

	big := r.size * supersample
	inner := float64(big - 2*r.padding*supersample)
	scale := inner / math.Max(width, height)

	// center the shorter side
	offX := float64(r.padding*supersample) + (inner-width*scale)/2
	offY := float64(r.padding*supersample) + (inner-height*scale)/2

	toPixel := func(p orb.Point) (float32, float32) {
		x := offX + (p[0]-bound.Left())*scale
		y := offY + (bound.Top()-p[1])*scale
		return float32(x), float32(y)
	}

	raster := vector.NewRasterizer(big, big)
	for _, poly := range polygons {
		for i, ring := range poly {
			drawRing(raster, orient(ring, i == 0), toPixel)
		}
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, big, big))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)
	raster.Draw(canvas, canvas.Bounds(), image.NewUniform(r.fill), image.Point{})

	out := image.NewNRGBA(image.Rect(0, 0, r.size, r.size))
	xdraw.CatmullRom.Scale(out, out.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)

	return out, nil
}

// Encode writes img as WebP with the configured quality.
func (r *Renderer) Encode(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, &webp.Options{Lossless: r.lossless, Quality: r.quality})
}

// Size returns the preview edge length in pixels.
func (r *Renderer) Size() int {
	return r.size
}

func drawRing(z *vector.Rasterizer, ring orb.Ring, toPixel func(orb.Point) (float32, float32)) {
	if len(ring) == 0 {
		return
	}
	z.MoveTo(toPixel(ring[0]))
	for _, p := range ring[1:] {
		z.LineTo(toPixel(p))
	}
	z.ClosePath()
}

// orient returns the ring wound so that shells and holes accumulate with opposite signs.
// Screen space flips y, so map-CCW shells become screen-CW.
func orient(ring orb.Ring, shell bool) orb.Ring {
	want := orb.CW
	if shell {
		want = orb.CCW
	}
	if ring.Orientation() == want {
		return ring
	}

	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}
