package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/pdf2png/internal/canvas"
	"github.com/ivlev/pdf2png/internal/engine"
	"github.com/ivlev/pdf2png/internal/objecturl"
	"github.com/ivlev/pdf2png/internal/pdflib"
	"github.com/ivlev/pdf2png/internal/pdflib/pdflibtest"
)

func newTestServer(t *testing.T, maxUpload int64) (*Server, *objecturl.Store) {
	t.Helper()
	lib := pdflibtest.NewLibrary(100, 50)
	loader := pdflib.NewLoader(func(context.Context) (pdflib.Library, error) { return lib, nil })
	store := objecturl.NewStore(0)
	conv := engine.New(loader, canvas.Native(store))
	return New(Options{
		Converter:      conv,
		Store:          store,
		Loader:         loader,
		Backend:        "fake",
		MaxUploadBytes: maxUpload,
		Version:        "test",
	}), store
}

func uploadRequest(t *testing.T, target, field, name string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestConvertJSONThenPreview(t *testing.T) {
	s, store := newTestServer(t, 0)

	rec := serve(s, uploadRequest(t, "/convert", FormField, "report.PDF", pdflibtest.MinimalPDF(100, 50)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp convertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "report.png", resp.Name)
	assert.Equal(t, 200, resp.Width)
	assert.Equal(t, 100, resp.Height)
	assert.Equal(t, 2.0, resp.Scale)
	assert.Equal(t, 1, store.Len())

	rec = serve(s, httptest.NewRequest(http.MethodGet, resp.PreviewURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, canvas.MIMEPNG, rec.Header().Get("Content-Type"))
	cfg, err := png.DecodeConfig(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)

	rec = serve(s, httptest.NewRequest(http.MethodDelete, resp.PreviewURL, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, resp.PreviewURL, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConvertPNG(t *testing.T) {
	s, store := newTestServer(t, 0)

	rec := serve(s, uploadRequest(t, "/convert?format=png", FormField, "a.pdf", pdflibtest.MinimalPDF(100, 50)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, canvas.MIMEPNG, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="a.png"`)
	_, err := png.DecodeConfig(rec.Body)
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestConvertFailures(t *testing.T) {
	s, _ := newTestServer(t, 0)

	rec := serve(s, uploadRequest(t, "/convert", FormField, "broken.pdf", []byte("not a pdf")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "DocumentParseFailure", resp["kind"])
	assert.Contains(t, resp["message"], "DocumentParseFailure: ")

	rec = serve(s, uploadRequest(t, "/convert", "file", "a.pdf", pdflibtest.MinimalPDF(10, 10)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertTooLarge(t *testing.T) {
	s, _ := newTestServer(t, 16)

	rec := serve(s, uploadRequest(t, "/convert", FormField, "a.pdf", pdflibtest.MinimalPDF(100, 50)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, 0)

	var resp healthResponse
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "unloaded", resp.Library)
	assert.Equal(t, "test", resp.Version)

	serve(s, uploadRequest(t, "/convert", FormField, "a.pdf", pdflibtest.MinimalPDF(100, 50)))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "loaded", resp.Library)
	assert.Equal(t, 1, resp.Previews)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(engine.EnvironmentUnsupported))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(engine.LibraryLoadFailure))
	assert.Equal(t, http.StatusInternalServerError, statusFor(engine.RenderFailure))
	assert.Equal(t, http.StatusInternalServerError, statusFor(engine.SerializationFailure))
}
