package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strconv"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"streamystats/internal/watchtime"
)

const (
	// minTickGap is the minimum horizontal space between two x-axis labels
	minTickGap   = 32
	gridLines    = 4
	legendSwatch = 8

	marginLeft   = 44
	marginRight  = 16
	marginTop    = 40
	marginBottom = 24
)

var (
	backgroundColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	gridColor       = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
	textColor       = color.RGBA{R: 0x6b, G: 0x72, B: 0x80, A: 0xff}
	titleColor      = color.RGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}
)

var face = basicfont.Face7x13

// Render draws points as a grouped bar chart, one bar per series per day, and
// writes it to w as PNG. Values are minutes as produced by the watchtime package.
func Render(w io.Writer, points []watchtime.Point, cfg Config) error {
	img, err := Draw(points, cfg)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	return nil
}

// Draw renders the chart into an in-memory image.
func Draw(points []watchtime.Point, cfg Config) (*image.RGBA, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	colors := make([]color.RGBA, len(cfg.Series))
	for i, s := range cfg.Series {
		colors[i], _ = ParseHexColor(s.Color)
	}

	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	fill(img, img.Bounds(), backgroundColor)

	plot := image.Rect(marginLeft, marginTop, cfg.Width-marginRight, cfg.Height-marginBottom)

	drawHeader(img, cfg, colors)

	top := axisMax(points, cfg.Keys())
	for i := 0; i <= gridLines; i++ {
		y := plot.Max.Y - i*plot.Dy()/gridLines
		fill(img, image.Rect(plot.Min.X, y, plot.Max.X, y+1), gridColor)
		label := strconv.FormatInt(top*int64(i)/gridLines, 10)
		drawText(img, plot.Min.X-6-textWidth(label), y+4, label, textColor)
	}

	if len(points) == 0 {
		return img, nil
	}

	slot := float64(plot.Dx()) / float64(len(points))
	groupWidth := slot * 0.8
	barWidth := int(groupWidth / float64(len(cfg.Series)))
	if barWidth < 1 {
		barWidth = 1
	}

	lastLabelEnd := -minTickGap
	for i, p := range points {
		x0 := plot.Min.X + int(float64(i)*slot+(slot-groupWidth)/2)

		for j, s := range cfg.Series {
			v := p.Minutes[s.Key]
			if v <= 0 {
				continue
			}
			h := int(float64(v) / float64(top) * float64(plot.Dy()))
			if h < 1 {
				h = 1
			}
			bx := x0 + j*barWidth
			fill(img, image.Rect(bx, plot.Max.Y-h, bx+barWidth, plot.Max.Y), colors[j])
		}

		label := tickLabel(p.Date)
		center := plot.Min.X + int(float64(i)*slot+slot/2)
		lx := center - textWidth(label)/2
		if lx-lastLabelEnd >= minTickGap && lx+textWidth(label) <= cfg.Width {
			drawText(img, lx, plot.Max.Y+16, label, textColor)
			lastLabelEnd = lx + textWidth(label)
		}
	}

	return img, nil
}

// drawHeader writes the title on the left and the series legend on the right.
func drawHeader(img *image.RGBA, cfg Config, colors []color.RGBA) {
	if cfg.Title != "" {
		drawText(img, marginLeft, 18, cfg.Title, titleColor)
	}

	x := cfg.Width - marginRight
	for i := len(cfg.Series) - 1; i >= 0; i-- {
		label := cfg.Series[i].Label
		if label == "" {
			label = cfg.Series[i].Key
		}
		x -= textWidth(label)
		drawText(img, x, 18, label, textColor)
		x -= legendSwatch + 6
		fill(img, image.Rect(x, 9, x+legendSwatch, 9+legendSwatch), colors[i])
		x -= 12
	}
}

// axisMax returns a rounded y-axis maximum that is at least the largest value
// and divides evenly into gridLines steps.
func axisMax(points []watchtime.Point, keys []string) int64 {
	var peak int64
	for _, p := range points {
		for _, k := range keys {
			if v := p.Minutes[k]; v > peak {
				peak = v
			}
		}
	}
	if peak <= 0 {
		return gridLines
	}

	raw := float64(peak) / gridLines
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	step := mag
	for _, m := range []float64{1, 2, 5, 10} {
		if m*mag >= raw {
			step = m * mag
			break
		}
	}
	s := int64(math.Ceil(step))
	if s < 1 {
		s = 1
	}
	for s*gridLines < peak {
		s++
	}
	return s * gridLines
}

func tickLabel(date string) string {
	t, err := time.Parse(watchtime.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2")
}

func fill(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func drawText(img draw.Image, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}
