package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder
	"image/png"
	"strings"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	_ "golang.org/x/image/webp" // WebP decoder
)

const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEWebP = "image/webp"
)

var ErrInvalidDataURI = errors.New("invalid data URI")

// ParseDataURI - split a base64 data URI into its media type and payload
func ParseDataURI(uri string) (string, []byte, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return "", nil, ErrInvalidDataURI
	}

	meta := strings.TrimPrefix(header, "data:")
	mimeType, params, _ := strings.Cut(meta, ";")
	if mimeType == "" || params != "base64" {
		return "", nil, fmt.Errorf("%w: expected a base64 media type header", ErrInvalidDataURI)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mimeType, data, nil
}

// DecodeImage - decode PNG, JPEG or WebP bytes
func DecodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// DecodeDimensions - pixel size and format without decoding the whole image
func DecodeDimensions(data []byte) (int, int, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// EncodePNG - lossless PNG encoding
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeLosslessWebP - lossless WebP encoding
func EncodeLosslessWebP(img image.Image) ([]byte, error) {
	options, err := encoder.NewLosslessEncoderOptions(encoder.PresetDefault, 6)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}
	return buf.Bytes(), nil
}

// MIMETypeForFormat - image.Decode format name to media type
func MIMETypeForFormat(format string) string {
	switch format {
	case "png":
		return MIMEPNG
	case "jpeg":
		return MIMEJPEG
	case "webp":
		return MIMEWebP
	}
	return ""
}

// ExtensionForMIME - file extension (without dot) for a supported media type
func ExtensionForMIME(mimeType string) string {
	switch mimeType {
	case MIMEJPEG:
		return "jpg"
	case MIMEWebP:
		return "webp"
	}
	return "png"
}

// IsSupportedMIME - uploads accepted by the try-on page
func IsSupportedMIME(mimeType string) bool {
	switch mimeType {
	case MIMEPNG, MIMEJPEG, MIMEWebP:
		return true
	}
	return false
}
