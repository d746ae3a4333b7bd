package optimizer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patterned(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 13), uint8((x ^ y) * 3), 255})
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, patterned(w, h), &jpeg.Options{Quality: 95}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

func dimensions(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestOptimize_resizesWideImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.jpg")
	writeJPEG(t, path, 800, 400)

	decoded, err := decode(path)
	require.NoError(t, err)

	res, err := Optimize(path, 40, 400)
	require.NoError(t, err)

	assert.Equal(t, ActionResized, res.Action)
	assert.Equal(t, EditorQuality, res.Quality)
	w, h := dimensions(t, path)
	assert.Equal(t, 400, w)
	assert.Equal(t, 200, h)

	// the bytes on disk are the resize saved at the editor quality, not
	// at the configured one
	scaled := resize(decoded, 400)
	var atEditor, atConfigured bytes.Buffer
	require.NoError(t, jpeg.Encode(&atEditor, scaled, &jpeg.Options{Quality: EditorQuality}))
	require.NoError(t, jpeg.Encode(&atConfigured, scaled, &jpeg.Options{Quality: 40}))
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, atEditor.Bytes(), onDisk)
	assert.NotEqual(t, atConfigured.Bytes(), onDisk)
}

func TestOptimize_requantizesImageWithinBound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.jpg")
	before := writeJPEG(t, path, 300, 200)

	res, err := Optimize(path, 40, 400)
	require.NoError(t, err)

	assert.Equal(t, ActionRequantized, res.Action)
	assert.Equal(t, 40, res.Quality)
	w, h := dimensions(t, path)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, before, after, "file should have been re-encoded")
}

func TestOptimize_pngKeepsLosslessEncoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icon.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, patterned(50, 50)))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	res, err := Optimize(path, 40, 400)
	require.NoError(t, err)
	assert.Equal(t, "png", res.Format)
	assert.Equal(t, ActionRequantized, res.Action)
	assert.Equal(t, 0, res.Quality)
}

func TestOptimize_nonImageIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 not an image"), 0o644))

	res, err := Optimize(path, 85, 400)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 not an image", string(data))
}

func TestOptimize_undecodableImageLeavesFileIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	data := writeJPEG(t, path, 400, 400)
	truncated := data[:len(data)/2]
	require.NoError(t, os.WriteFile(path, truncated, 0o644))

	res, err := Optimize(path, 85, 200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOptimization))
	assert.Equal(t, ActionNone, res.Action)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, truncated, after)
}

func writeAnimatedGIF(t *testing.T, path string, w, h, frames int) {
	t.Helper()
	anim := &gif.GIF{}
	for i := 0; i < frames; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), palette.Plan9)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				frame.SetColorIndex(x, y, uint8((x+y+i*40)%256))
			}
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, anim))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func decodeGIF(t *testing.T, path string) *gif.GIF {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	return g
}

func TestOptimize_animatedGIFKeepsFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spinner.gif")
	writeAnimatedGIF(t, path, 20, 20, 3)

	res, err := Optimize(path, 85, 400)
	require.NoError(t, err)
	assert.Equal(t, ActionRequantized, res.Action)
	assert.Equal(t, 0, res.Quality)

	g := decodeGIF(t, path)
	assert.Len(t, g.Image, 3)
	assert.Equal(t, []int{10, 10, 10}, g.Delay)
	assert.Equal(t, 20, g.Config.Width)
}

func TestOptimize_wideAnimatedGIFResizesEveryFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banner.gif")
	writeAnimatedGIF(t, path, 800, 200, 4)

	res, err := Optimize(path, 85, 400)
	require.NoError(t, err)
	assert.Equal(t, ActionResized, res.Action)
	assert.Equal(t, 400, res.Width)
	assert.Equal(t, 100, res.Height)

	g := decodeGIF(t, path)
	require.Len(t, g.Image, 4)
	assert.Equal(t, 400, g.Config.Width)
	assert.Equal(t, 100, g.Config.Height)
	for _, frame := range g.Image {
		assert.Equal(t, 400, frame.Bounds().Dx())
		assert.Equal(t, 100, frame.Bounds().Dy())
	}
}
