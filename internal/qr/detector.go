// Package qr wraps the gozxing barcode library behind a small detector
// that reports whether an image file contains a QR code and what it says.
package qr

import (
	"fmt"
	"log/slog"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/sydlexius/qrsift/internal/imaging"
)

// maxDetectDim bounds the pixel dimensions fed to the decoder. Larger images
// are downscaled first so detection memory stays bounded.
const maxDetectDim = 4096

// Detector runs QR detection against image files.
type Detector struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
	logger *slog.Logger
}

// NewDetector creates a Detector.
func NewDetector(logger *slog.Logger) *Detector {
	return &Detector{
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
		logger: logger.With("component", "qr-detector"),
	}
}

// Detect reports whether the image file at path contains a readable QR
// code, returning its decoded text when it does. A file that cannot be
// opened or decoded as an image returns an error; an image with no
// readable QR code returns ("", false, nil).
func (d *Detector) Detect(path string) (string, bool, error) {
	img, format, err := imaging.DecodeFile(path)
	if err != nil {
		return "", false, err
	}

	img = imaging.Downscale(img, maxDetectDim)

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false, fmt.Errorf("preparing bitmap: %w", err)
	}

	result, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		// Reader errors mean no decodable QR in the frame, not a bad file.
		d.logger.Debug("no qr code found", "path", path, "format", format)
		return "", false, nil
	}

	text := result.GetText()
	d.logger.Debug("qr code decoded",
		"path", path,
		"format", format,
		"length", len(text),
	)
	return text, true, nil
}
