// Package imaging decodes candidate image files for QR detection.
// Importing it registers decoders for every supported format, so
// image.Decode handles jpg/jpeg, png, gif, bmp, tiff/tif, and webp.
package imaging

import (
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// imageExtensions is the fixed set of extensions treated as candidate images.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".gif":  true,
	".webp": true,
}

// IsImagePath reports whether path carries a recognized image extension.
// The check is case-insensitive.
func IsImagePath(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// DecodeFile opens and fully decodes the image at path. The returned string
// is the registered format name ("jpeg", "png", ...).
func DecodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the scanned tree
	if err != nil {
		return nil, "", fmt.Errorf("opening image: %w", err)
	}
	defer f.Close() //nolint:errcheck

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}
	return img, format, nil
}

// sniffHeadSize is how many leading bytes the content sniffer reads.
// mimetype needs at most 3072 bytes to classify the formats we care about.
const sniffHeadSize = 3072

// SniffImage reads the head of the file at path and reports whether the
// content is some image type, regardless of extension.
func SniffImage(path string) (bool, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the scanned tree
	if err != nil {
		return false, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	head := make([]byte, sniffHeadSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, fmt.Errorf("reading header: %w", err)
	}

	m := mimetype.Detect(head[:n])
	return strings.HasPrefix(m.String(), "image/"), nil
}

// Downscale scales img to fit within maxDim x maxDim while preserving the
// aspect ratio. Images already within bounds are returned unchanged.
func Downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	newW, newH := fitDimensions(origW, origH, maxDim, maxDim)
	if newW == origW && newH == origH {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// fitDimensions calculates the scaled dimensions that fit within maxW x maxH
// while preserving the aspect ratio. If the image already fits, returns original dimensions.
func fitDimensions(origW, origH, maxW, maxH int) (int, int) {
	if origW <= maxW && origH <= maxH {
		return origW, origH
	}

	ratioW := float64(maxW) / float64(origW)
	ratioH := float64(maxH) / float64(origH)
	ratio := ratioW
	if ratioH < ratioW {
		ratio = ratioH
	}

	newW := int(math.Round(float64(origW) * ratio))
	newH := int(math.Round(float64(origH) * ratio))

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	return newW, newH
}
