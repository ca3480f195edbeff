package crop

import (
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"fitting-room-server/modules/common/utils"
)

const maxMemory = 8 << 20

var (
	ErrInvalidUpload    = errors.New("invalid upload")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrImageTooLarge    = errors.New("image dimensions exceed the pixel limit")
)

var validate = validator.New()

// Params - crop fields sent next to an uploaded file. Width and Height of zero
// with HasRegion false mean "use the initial crop".
type Params struct {
	Aspect        string  `validate:"omitempty,oneof=1:1 4:3 16:9 free unconstrained"`
	Unit          string  `validate:"omitempty,oneof=% px"`
	X             float64 `validate:"gte=0"`
	Y             float64 `validate:"gte=0"`
	Width         float64 `validate:"gte=0"`
	Height        float64 `validate:"gte=0"`
	DisplayWidth  float64 `validate:"gte=0"`
	DisplayHeight float64 `validate:"gte=0"`
	PixelRatio    float64 `validate:"gte=0,lte=8"`
	HasRegion     bool    `validate:"-"`
}

// InitialRequest - body of /api/crop/initial
type InitialRequest struct {
	DisplayWidth  float64 `json:"displayWidth" validate:"gt=0"`
	DisplayHeight float64 `json:"displayHeight" validate:"gt=0"`
	Aspect        string  `json:"aspect" validate:"omitempty,oneof=1:1 4:3 16:9 free unconstrained"`
}

// ParamsFromForm - read crop fields; absent numbers are zero
func ParamsFromForm(values url.Values) (*Params, error) {
	p := &Params{
		Aspect: values.Get("aspect"),
		Unit:   values.Get("unit"),
	}

	fields := []struct {
		name string
		dst  *float64
	}{
		{"x", &p.X},
		{"y", &p.Y},
		{"width", &p.Width},
		{"height", &p.Height},
		{"displayWidth", &p.DisplayWidth},
		{"displayHeight", &p.DisplayHeight},
		{"pixelRatio", &p.PixelRatio},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(values.Get(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not a number", ErrInvalidUpload, f.name)
		}
		*f.dst = v
	}
	p.HasRegion = values.Has("width") || values.Has("height")

	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	return p, nil
}

// Display - declared display size, or native size when not sent
func (p *Params) Display(native image.Rectangle) Size {
	if p.DisplayWidth > 0 && p.DisplayHeight > 0 {
		return Size{Width: p.DisplayWidth, Height: p.DisplayHeight}
	}
	return Size{Width: float64(native.Dx()), Height: float64(native.Dy())}
}

// Region - the committed region, or the initial crop when none was sent
func (p *Params) Region(display Size) (Region, error) {
	if !p.HasRegion {
		aspect, err := ParseAspect(p.Aspect)
		if err != nil {
			return Region{}, err
		}
		return InitialCrop(display, aspect)
	}

	unit := UnitPixel
	if p.Unit == string(UnitPercent) {
		unit = UnitPercent
	}
	return Region{Unit: unit, X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}, nil
}

// Upload - a decoded image file with its crop fields
type Upload struct {
	Name     string
	MIMEType string
	Data     []byte
	Image    image.Image
	Params   *Params
}

// Limits - upload size caps; the pixel cap is checked from the header before decoding
type Limits struct {
	MaxBytes  int64
	MaxPixels int64
}

// ParseUpload - multipart "file" plus crop fields, within limits
func ParseUpload(w http.ResponseWriter, r *http.Request, limits Limits) (*Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxBytes)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: file is required", ErrInvalidUpload)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	width, height, format, err := utils.DecodeDimensions(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}
	mimeType := utils.MIMETypeForFormat(format)
	if !utils.IsSupportedMIME(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, format)
	}
	if limits.MaxPixels > 0 && int64(width)*int64(height) > limits.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, width, height)
	}

	img, _, err := utils.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}

	params, err := ParamsFromForm(r.MultipartForm.Value)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(header.Filename)
	if name == "." || name == "/" || name == "" {
		name = "upload." + utils.ExtensionForMIME(mimeType)
	}

	return &Upload{Name: name, MIMEType: mimeType, Data: data, Image: img, Params: params}, nil
}

// Apply - render the upload's committed (or initial) region
func (u *Upload) Apply(format Format) (*Encoded, error) {
	display := u.Params.Display(u.Image.Bounds())
	region, err := u.Params.Region(display)
	if err != nil {
		return nil, err
	}
	return Render(u.Image, display, region, u.Params.PixelRatio, format)
}
