package invoice

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"tkpay/internal/cache"
	"tkpay/internal/core"
)

// Scale is the device pixel ratio receipts are rasterized at.
const Scale = 2

// Layout in unscaled pixels.
const (
	pageWidth  = 360
	margin     = 20
	lineHeight = 24
	fontSize   = 13
	titleSize  = 17
	ruleHeight = 1
)

var (
	paper = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	ink   = color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}
	muted = color.RGBA{R: 0x6b, G: 0x72, B: 0x80, A: 0xff}
	rule  = color.RGBA{R: 0xd1, G: 0xd5, B: 0xdb, A: 0xff}
	due   = color.RGBA{R: 0xb9, G: 0x1c, B: 0x1c, A: 0xff}
	joma  = color.RGBA{R: 0x04, G: 0x78, B: 0x57, A: 0xff}
)

type faceSet struct {
	regular font.Face
	bold    font.Face
	title   font.Face
}

var (
	facesOnce sync.Once
	faces     *faceSet
	facesErr  error
)

// loadFaces parses the Go fonts once per process.
func loadFaces() (*faceSet, error) {
	facesOnce.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			facesErr = fmt.Errorf("parse regular font: %w", err)
			return
		}
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			facesErr = fmt.Errorf("parse bold font: %w", err)
			return
		}
		set := &faceSet{}
		if set.regular, err = newFace(regular, fontSize); err != nil {
			facesErr = err
			return
		}
		if set.bold, err = newFace(bold, fontSize); err != nil {
			facesErr = err
			return
		}
		if set.title, err = newFace(bold, titleSize); err != nil {
			facesErr = err
			return
		}
		faces = set
	})
	return faces, facesErr
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size * Scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

type rowKind int

const (
	rowText rowKind = iota
	rowTitle
	rowHeader
	rowStrong
	rowRule
)

type row struct {
	kind  rowKind
	label string
	value string
	color color.Color
}

// rows lays out the receipt top to bottom.
func rows(inv Invoice) []row {
	out := []row{
		{kind: rowTitle, label: inv.Name, value: inv.IssuedAt.Format("02 Jan 2006")},
		{kind: rowRule},
		{kind: rowHeader, label: "No.", value: "Amount"},
	}
	for _, l := range inv.Lines {
		out = append(out, row{kind: rowText, label: strconv.Itoa(l.Serial), value: core.FormatFixed(l.Amount)})
	}
	out = append(out, row{kind: rowRule})

	if !inv.Detailed {
		return append(out, row{kind: rowStrong, label: "Total:", value: inv.SimpleTotal(), color: ink})
	}

	out = append(out,
		row{kind: rowText, label: "Rate:", value: core.FormatFixed(inv.Rate)},
		row{kind: rowText, label: "Total TK:", value: core.FormatFixed(inv.TotalTK)},
		row{kind: rowText, label: "Subtotal SAR:", value: core.FormatFixed(inv.Subtotal)},
	)
	if s, ok := inv.OldBalanceText(); ok {
		out = append(out, row{kind: rowText, label: "Old Balance:", value: s})
	}
	if s, ok := inv.JomaText(); ok {
		out = append(out, row{kind: rowText, label: "Joma:", value: s})
	}
	total := row{kind: rowStrong, label: inv.DueLabel(), value: inv.DueAmount(), color: due}
	if inv.Credit() {
		total.color = joma
	}
	return append(out, row{kind: rowRule}, total)
}

// Render rasterizes inv as a PNG into w.
func Render(w io.Writer, inv Invoice) error {
	fs, err := loadFaces()
	if err != nil {
		return err
	}

	layout := rows(inv)
	height := 2 * margin
	for _, r := range layout {
		if r.kind == rowRule {
			height += lineHeight / 2
		} else {
			height += lineHeight
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, pageWidth*Scale, height*Scale))
	draw.Draw(img, img.Bounds(), image.NewUniform(paper), image.Point{}, draw.Src)

	left := margin * Scale
	right := (pageWidth - margin) * Scale
	y := margin * Scale
	for _, r := range layout {
		if r.kind == rowRule {
			mid := y + lineHeight*Scale/4
			draw.Draw(img, image.Rect(left, mid, right, mid+ruleHeight*Scale), image.NewUniform(rule), image.Point{}, draw.Src)
			y += lineHeight * Scale / 2
			continue
		}

		face, labelColor, valueColor := fs.regular, color.Color(ink), color.Color(ink)
		switch r.kind {
		case rowTitle:
			face, valueColor = fs.title, muted
		case rowHeader:
			face, labelColor, valueColor = fs.bold, muted, muted
		case rowStrong:
			face, valueColor = fs.bold, r.color
		}

		baseline := y + (lineHeight*Scale+face.Metrics().Ascent.Ceil()-face.Metrics().Descent.Ceil())/2
		drawText(img, face, labelColor, left, baseline, r.label)
		valueFace := face
		if r.kind == rowTitle {
			valueFace = fs.regular
		}
		width := font.MeasureString(valueFace, r.value).Ceil()
		drawText(img, valueFace, valueColor, right-width, baseline, r.value)
		y += lineHeight * Scale
	}

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func drawText(dst draw.Image, face font.Face, c color.Color, x, y int, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// Icon renders the square application icon of the given pixel size.
func Icon(w io.Writer, size int) error {
	if size < 16 {
		return fmt.Errorf("icon size %d too small", size)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return fmt.Errorf("parse bold font: %w", err)
	}
	face, err := opentype.NewFace(bold, &opentype.FaceOptions{
		Size:    float64(size) * 0.4,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(ink), image.Point{}, draw.Src)

	label := core.CurrencyLabel
	width := font.MeasureString(face, label).Ceil()
	m := face.Metrics()
	baseline := (size + m.Ascent.Ceil() - m.Descent.Ceil()) / 2
	drawText(img, face, paper, (size-width)/2, baseline, label)

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Renderer memoizes rendered receipts by fingerprint.
type Renderer struct {
	images cache.Cache[[]byte]
}

func NewRenderer(c cache.Cache[[]byte]) *Renderer {
	return &Renderer{images: c}
}

// PNG returns the encoded receipt, rendering it on a cache miss.
func (r *Renderer) PNG(inv Invoice) ([]byte, error) {
	key := inv.Fingerprint()
	if r.images != nil {
		if data, ok := r.images.Get(key); ok {
			return data, nil
		}
	}

	var buf bytes.Buffer
	if err := Render(&buf, inv); err != nil {
		return nil, err
	}
	data := buf.Bytes()
	if r.images != nil {
		r.images.Set(key, data)
	}
	return data, nil
}
