// Command genqr generates sample images for trying out qrsift: a few
// PNGs carrying QR codes plus one plain image that should stay put.
// Run from the repository root: go run ./tools/genqr -out /tmp/qrtest
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	qrcode "github.com/skip2/go-qrcode"
)

func main() {
	outDir := flag.String("out", "qr-samples", "output directory")
	text := flag.String("text", "", "encode this text into a single qr.png instead of the sample set")
	size := flag.Int("size", 512, "image size in pixels")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create dir: %v\n", err)
		os.Exit(1)
	}

	if *text != "" {
		p := filepath.Join(*outDir, "qr.png")
		if err := qrcode.WriteFile(*text, qrcode.Medium, *size, p); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", p, err)
			os.Exit(1)
		}
		fmt.Printf("generated %s\n", p)
		return
	}

	samples := []struct {
		name    string
		content string
	}{
		{"qr-url.png", "https://example.com/warranty/123456"},
		{"qr-wifi.png", "WIFI:T:WPA;S:Workshop;P:correct-horse;;"},
		{"qr-serial.png", "SN-2024-000451"},
	}
	for _, s := range samples {
		p := filepath.Join(*outDir, s.name)
		if err := qrcode.WriteFile(s.content, qrcode.Medium, *size, p); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", p, err)
			os.Exit(1)
		}
		fmt.Printf("generated %s\n", p)
	}

	plain := filepath.Join(*outDir, "plain.png")
	if err := writePlain(plain, *size); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", plain, err)
		os.Exit(1)
	}
	fmt.Printf("generated %s\n", plain)
}

// writePlain renders a gradient with no code in it, for exercising the
// NO QR path.
func writePlain(path string, size int) error {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(40 + (x*180)/size),
				G: uint8(80 + (y*120)/size),
				B: 160,
				A: 255,
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
