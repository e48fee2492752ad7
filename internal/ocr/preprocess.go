// Package ocr turns screenshots of messages into text.
package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"sort"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupportedImage is returned for uploads that are not a decodable image
	ErrUnsupportedImage = errors.New("unsupported image")

	// ErrNoText is returned when recognition finds no text
	ErrNoText = errors.New("no text found in image")
)

// Upscale factor applied before binarization
const scaleFactor = 2

// DetectImage sniffs the upload's magic bytes and returns its MIME type
func DetectImage(data []byte) (string, error) {
	if !filetype.IsImage(data) {
		return "", ErrUnsupportedImage
	}
	kind, err := filetype.Match(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return kind.MIME.Value, nil
}

// Preprocess prepares an image for recognition: grayscale, 2x bicubic upscale,
// Otsu binarization and a 3x3 median filter. The result is PNG encoded.
func Preprocess(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}

	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)

	scaled := image.NewGray(image.Rect(0, 0, b.Dx()*scaleFactor, b.Dy()*scaleFactor))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), gray, gray.Bounds(), draw.Src, nil)

	binarize(scaled, otsuThreshold(scaled))
	out := medianFilter3(scaled)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// otsuThreshold picks the gray level maximizing between-class variance
func otsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	for _, p := range img.Pix {
		hist[p]++
	}

	total := len(img.Pix)
	sum := 0.0
	for i, n := range hist {
		sum += float64(i * n)
	}

	var (
		sumB, maxVar float64
		weightB      int
		threshold    uint8
	)
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}

		sumB += float64(t * hist[t])
		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)

		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > maxVar {
			maxVar = between
			threshold = uint8(t)
		}
	}
	return threshold
}

// binarize maps pixels above threshold to white and the rest to black, in place
func binarize(img *image.Gray, threshold uint8) {
	for i, p := range img.Pix {
		if p > threshold {
			img.Pix[i] = 255
		} else {
			img.Pix[i] = 0
		}
	}
}

// medianFilter3 applies a 3x3 median filter with edge replication
func medianFilter3(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	window := make([]uint8, 0, 9)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					px := clamp(x+dx, b.Min.X, b.Max.X-1)
					py := clamp(y+dy, b.Min.Y, b.Max.Y-1)
					window = append(window, img.GrayAt(px, py).Y)
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			out.SetGray(x, y, color.Gray{Y: window[4]})
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
