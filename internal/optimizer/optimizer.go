// Package optimizer shrinks or re-encodes images in place before upload.
package optimizer

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// EditorQuality is the JPEG quality used when an image is saved after a
// resize. The configured quality only applies to the re-encode branch.
const EditorQuality = 82

type Action string

const (
	ActionNone        Action = "none"
	ActionResized     Action = "resized"
	ActionRequantized Action = "requantized"
)

// Result describes what Optimize did to a file.
type Result struct {
	Format  string
	Action  Action
	Width   int
	Height  int
	Quality int // JPEG quality used for the save, 0 for lossless formats
}

// Optimize applies the resize XOR requantize policy to the image at path:
// wider than maxWidth is scaled to exactly maxWidth, otherwise it is
// re-encoded at quality. Files that are not recognised images are left
// alone and reported with ActionNone and a nil error. Failures to edit a
// recognised image wrap domain.ErrOptimization and leave the file intact.
func Optimize(path string, quality, maxWidth int) (Result, error) {
	cfg, format, err := probe(path)
	if err != nil {
		return Result{Action: ActionNone}, nil
	}
	res := Result{Format: format, Action: ActionNone, Width: cfg.Width, Height: cfg.Height}
	if format == "gif" {
		return optimizeGIF(path, res, maxWidth)
	}

	img, err := decode(path)
	if err != nil {
		return res, fmt.Errorf("%w: decode %s: %v", domain.ErrOptimization, path, err)
	}

	if maxWidth > 0 && cfg.Width > maxWidth {
		img = resize(img, maxWidth)
		res.Action = ActionResized
		res.Quality = EditorQuality
	} else {
		res.Action = ActionRequantized
		res.Quality = quality
	}
	if format != "jpeg" {
		res.Quality = 0
	}

	if err := save(path, encoder(format, img, res.Quality)); err != nil {
		return Result{Format: format, Action: ActionNone, Width: cfg.Width, Height: cfg.Height},
			fmt.Errorf("%w: save %s: %v", domain.ErrOptimization, path, err)
	}
	b := img.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()
	return res, nil
}

func probe(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()
	return image.DecodeConfig(bufio.NewReader(f))
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(bufio.NewReader(f))
	return img, err
}

// resize scales img to width, keeping the aspect ratio.
func resize(img image.Image, width int) image.Image {
	b := img.Bounds()
	height := int(float64(b.Dy())*float64(width)/float64(b.Dx()) + 0.5)
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

var errUnsupportedEncoder = errors.New("no encoder for format")

func encoder(format string, img image.Image, quality int) func(io.Writer) error {
	return func(w io.Writer) error {
		switch format {
		case "jpeg":
			return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
		case "png":
			return (&png.Encoder{CompressionLevel: png.DefaultCompression}).Encode(w, img)
		default:
			return fmt.Errorf("%w %q", errUnsupportedEncoder, format)
		}
	}
}

// optimizeGIF keeps every frame of a GIF. Within the width bound the
// frames are written back unchanged; wider GIFs have each frame scaled.
func optimizeGIF(path string, res Result, maxWidth int) (Result, error) {
	unchanged := res
	f, err := os.Open(path)
	if err != nil {
		return unchanged, fmt.Errorf("%w: decode %s: %v", domain.ErrOptimization, path, err)
	}
	g, err := gif.DecodeAll(bufio.NewReader(f))
	f.Close()
	if err != nil {
		return unchanged, fmt.Errorf("%w: decode %s: %v", domain.ErrOptimization, path, err)
	}

	res.Action = ActionRequantized
	if maxWidth > 0 && g.Config.Width > maxWidth {
		resizeGIF(g, maxWidth)
		res.Action = ActionResized
	}

	if err := save(path, func(w io.Writer) error { return gif.EncodeAll(w, g) }); err != nil {
		return unchanged, fmt.Errorf("%w: save %s: %v", domain.ErrOptimization, path, err)
	}
	res.Width, res.Height = g.Config.Width, g.Config.Height
	return res, nil
}

// resizeGIF scales the logical screen and every frame, keeping frame
// offsets and palettes.
func resizeGIF(g *gif.GIF, width int) {
	scale := float64(width) / float64(g.Config.Width)
	at := func(v int) int { return int(float64(v)*scale + 0.5) }

	for i, frame := range g.Image {
		b := frame.Bounds()
		r := image.Rect(at(b.Min.X), at(b.Min.Y), at(b.Max.X), at(b.Max.Y))
		if r.Dx() < 1 {
			r.Max.X = r.Min.X + 1
		}
		if r.Dy() < 1 {
			r.Max.Y = r.Min.Y + 1
		}
		dst := image.NewPaletted(r, frame.Palette)
		draw.NearestNeighbor.Scale(dst, r, frame, b, draw.Src, nil)
		g.Image[i] = dst
	}
	g.Config.Width = width
	g.Config.Height = at(g.Config.Height)
	if g.Config.Height < 1 {
		g.Config.Height = 1
	}
}

// save writes the encoded image next to path and renames it over the
// original so a failed encode never truncates the file being uploaded.
func save(path string, encode func(io.Writer) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".optimize-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	err = encode(w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
