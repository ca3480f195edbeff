package crop

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type cropResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    struct {
		Aspect  Aspect `json:"aspect"`
		Region  Region `json:"region"`
		Natural Size   `json:"natural"`
	} `json:"data"`
}

func newCropRouter() *mux.Router {
	r := mux.NewRouter()
	NewHandler(Limits{MaxBytes: 1 << 20, MaxPixels: 1_000_000}, zap.NewNop()).RegisterRoutes(r)
	return r
}

func serve(t *testing.T, r *mux.Router, req *http.Request) (*httptest.ResponseRecorder, cropResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var body cropResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestInitialCropEndpoint(t *testing.T) {
	r := newCropRouter()

	req := httptest.NewRequest("POST", "/api/crop/initial", strings.NewReader(`{"displayWidth":400,"displayHeight":300,"aspect":"1:1"}`))
	rec, body := serve(t, r, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, AspectSquare, body.Data.Aspect)
	assert.Equal(t, UnitPercent, body.Data.Region.Unit)
	assert.InDelta(t, 90, body.Data.Region.Height, 1e-9)
	assert.InDelta(t, 67.5, body.Data.Region.Width, 1e-9)

	req = httptest.NewRequest("POST", "/api/crop/initial", strings.NewReader(`{"displayWidth":0,"displayHeight":300}`))
	rec, body = serve(t, r, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", body.Code)

	req = httptest.NewRequest("POST", "/api/crop/initial", strings.NewReader(`{"displayWidth":10,"displayHeight":10,"aspect":"3:2"}`))
	rec, _ = serve(t, r, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestEndpoint(t *testing.T) {
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, gradient(120, 80)))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = fw.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("aspect", "1:1"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/crop/suggest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, body := serve(t, newCropRouter(), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Size{Width: 120, Height: 80}, body.Data.Natural)
	px := body.Data.Region.ToPixels(body.Data.Natural)
	assert.InDelta(t, 1.0, px.Width/px.Height, 0.1)
}

func TestSuggestRejectsNonImage(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/crop/suggest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, body := serve(t, newCropRouter(), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_media", body.Code)
}

// pngHeader - a PNG signature and IHDR chunk declaring w x h, with no pixel data
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	chunk = append(chunk, 8, 6, 0, 0, 0)

	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestSuggestRejectsImageOverPixelLimit(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "huge.png")
	require.NoError(t, err)
	_, err = fw.Write(pngHeader(50000, 50000))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/crop/suggest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, body := serve(t, newCropRouter(), req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "image_too_large", body.Code)
}

func TestUploadErrorResponse(t *testing.T) {
	status, code, msg := UploadErrorResponse(ErrEmptyCrop)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "empty_crop", code)
	assert.Equal(t, "Please select a crop area before continuing.", msg)

	status, _, _ = UploadErrorResponse(&http.MaxBytesError{Limit: 10})
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)

	status, code, _ = UploadErrorResponse(ErrOutOfBounds)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_crop", code)

	status, code, _ = UploadErrorResponse(fmt.Errorf("%w: 80000x80000", ErrCropTooLarge))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "crop_too_large", code)
}
