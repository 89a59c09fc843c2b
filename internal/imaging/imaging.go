// Package imaging decodes data URL images and resizes them for contract documents.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"

	// Register decoders used by customer uploads.
	_ "image/gif"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxCustomerWidth bounds customer-supplied images.
	MaxCustomerWidth = 1024
	// CustomerJPEGQuality is the re-encode quality of customer images.
	CustomerJPEGQuality = 60
)

var ErrNotDataURL = errors.New("not an embedded image data url")

// DataURL is a decoded data:image/...;base64 payload.
type DataURL struct {
	MediaType string
	Data      []byte
}

// String encodes the payload back to a data URL.
func (d *DataURL) String() string {
	return "data:" + d.MediaType + ";base64," + base64.StdEncoding.EncodeToString(d.Data)
}

// LooksLikeDataURL is the cheap prefix test used while rendering.
func LooksLikeDataURL(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:image/")
}

// ParseDataURL decodes a base64 image data URL.
func ParseDataURL(s string) (*DataURL, error) {
	s = strings.TrimSpace(s)
	if !LooksLikeDataURL(s) {
		return nil, ErrNotDataURL
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload", ErrNotDataURL)
	}
	mediaType, enc, _ := strings.Cut(header, ";")
	if enc != "base64" {
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrNotDataURL, enc)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotDataURL, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrNotDataURL)
	}
	return &DataURL{MediaType: mediaType, Data: data}, nil
}

// Decode parses a data URL into an image.
func Decode(s string) (image.Image, error) {
	d, err := ParseDataURL(s)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(d.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.MediaType, err)
	}
	return img, nil
}

// ScaleToWidth resizes img to width preserving aspect ratio.
func ScaleToWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() == 0 || b.Dx() == width {
		return img
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// SignaturePNG decodes a signature data URL, scales it to width and encodes PNG,
// keeping transparency so the overlay does not hide page content.
func SignaturePNG(dataURL string, width int) ([]byte, error) {
	img, err := Decode(dataURL)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, ScaleToWidth(img, width)); err != nil {
		return nil, fmt.Errorf("encode signature: %w", err)
	}
	return buf.Bytes(), nil
}

// CompressDataURL shrinks a customer image to MaxCustomerWidth and re-encodes
// it as JPEG. Images narrower than the limit are not enlarged.
func CompressDataURL(dataURL string) (string, error) {
	img, err := Decode(dataURL)
	if err != nil {
		return "", err
	}
	if img.Bounds().Dx() > MaxCustomerWidth {
		img = ScaleToWidth(img, MaxCustomerWidth)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: CustomerJPEGQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return (&DataURL{MediaType: "image/jpeg", Data: buf.Bytes()}).String(), nil
}

// flatten composites onto white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	xdraw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, b, img, b.Min, xdraw.Over)
	return dst
}
