// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package upload

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
)

// Transform is the fixed output shape of every uploaded image. Callers never
// vary it per request.
type Transform struct {
	// Folder is the object name prefix.
	Folder string

	Width  int
	Height int

	// Crop is always "fill": scale to cover, then cut to the exact size.
	Crop string

	// Gravity "auto" keeps the center of the image.
	Gravity string

	// Quality "auto" encodes JPEG at AutoJPEGQuality.
	Quality string

	// Format "auto" keeps PNG for images with transparency and uses JPEG otherwise.
	Format string
}

// AutoJPEGQuality is the JPEG quality used when Quality is "auto".
const AutoJPEGQuality = 82

// MaxSourcePixels bounds the decoded size of an upload. A small compressed
// payload can declare dimensions whose pixel buffer would exhaust memory.
const MaxSourcePixels = 40_000_000

// DefaultTransform returns the square fill-crop used for marker thumbnails.
func DefaultTransform(folder string, size int) Transform {
	return Transform{
		Folder:  folder,
		Width:   size,
		Height:  size,
		Crop:    "fill",
		Gravity: "auto",
		Quality: "auto",
		Format:  "auto",
	}
}

// rendered is a transformed image ready for the object store.
type rendered struct {
	data        []byte
	contentType string
	ext         string
}

// sniff returns the detected content type of data. Only JPEG and PNG payloads
// are accepted regardless of what the client declared.
func sniff(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/jpeg"):
		return "image/jpeg", nil
	case mt.Is("image/png"):
		return "image/png", nil
	default:
		return "", fmt.Errorf("payload is %s, not a JPEG or PNG image", mt.String())
	}
}

// fillCrop scales src to cover w x h and cuts the centered w x h region.
func fillCrop(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()

	// Largest region of the source with the target aspect ratio.
	cw, ch := sw, sw*h/w
	if ch > sh {
		cw, ch = sh*w/h, sh
	}
	x0 := b.Min.X + (sw-cw)/2
	y0 := b.Min.Y + (sh-ch)/2
	region := image.Rect(x0, y0, x0+cw, y0+ch)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, region, draw.Src, nil)
	return dst
}

func hasTransparency(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

// render decodes data, applies t and encodes the result.
func render(data []byte, t Transform) (*rendered, error) {
	detected, err := sniff(data)
	if err != nil {
		return nil, &Failure{Stage: StageDecode, Err: err}
	}

	decodeConfig, decode := jpeg.DecodeConfig, jpeg.Decode
	if detected == "image/png" {
		decodeConfig, decode = png.DecodeConfig, png.Decode
	}

	cfg, err := decodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &Failure{Stage: StageDecode, Err: fmt.Errorf("decode %s header: %w", detected, err)}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, &Failure{Stage: StageDecode, Err: fmt.Errorf("image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, MaxSourcePixels)}
	}

	src, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, &Failure{Stage: StageDecode, Err: fmt.Errorf("decode %s: %w", detected, err)}
	}
	if b := src.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, &Failure{Stage: StageDecode, Err: fmt.Errorf("image has no pixels")}
	}

	out := fillCrop(src, t.Width, t.Height)

	var buf bytes.Buffer
	if t.Format == "png" || (t.Format == "auto" && detected == "image/png" && hasTransparency(src)) {
		if err := png.Encode(&buf, out); err != nil {
			return nil, &Failure{Stage: StageTransform, Err: fmt.Errorf("encode png: %w", err)}
		}
		return &rendered{data: buf.Bytes(), contentType: "image/png", ext: ".png"}, nil
	}

	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: AutoJPEGQuality}); err != nil {
		return nil, &Failure{Stage: StageTransform, Err: fmt.Errorf("encode jpeg: %w", err)}
	}
	return &rendered{data: buf.Bytes(), contentType: "image/jpeg", ext: ".jpg"}, nil
}
