package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	replyerrors "github.com/customeros/replydesk/errors"
	"github.com/customeros/replydesk/services/storage"
	"github.com/customeros/replydesk/services/threadcache"
)

type memoryStorage struct {
	files        map[string][]byte
	contentTypes map[string]string
	listErr      error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memoryStorage) ListFiles(context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memoryStorage) ReadFile(_ context.Context, name string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, replyerrors.ErrAttachmentNotFound
	}
	return data, nil
}

func (m *memoryStorage) Upload(_ context.Context, name string, data []byte, contentType string) error {
	m.files[name] = data
	m.contentTypes[name] = contentType
	return nil
}

func (m *memoryStorage) Delete(_ context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	delete(m.files, name)
	return nil
}

type staticStatus threadcache.Status

func (s staticStatus) Status() threadcache.Status { return threadcache.Status(s) }

func newRouter(store *memoryStorage) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", HealthCheck)
	r.GET("/status", Status(staticStatus{RefreshCount: 2, Unreplied: 3, LastRefreshAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}))
	r.GET("/v1/attachments", ListAttachments(store))
	r.POST("/v1/attachments", UploadAttachment(store))
	r.DELETE("/v1/attachments/:name", DeleteAttachment(store))
	return r
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestHealthAndStatus(t *testing.T) {
	r := newRouter(newMemoryStorage())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"refreshCount":2`)
	assert.Contains(t, w.Body.String(), `"unreplied":3`)
	assert.Contains(t, w.Body.String(), `"refreshing":false`)
}

func TestUploadAttachment_DetectsContentType(t *testing.T) {
	store := newMemoryStorage()
	pdf := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")
	body, contentType := multipartBody(t, "guide.pdf", "", pdf)
	req := httptest.NewRequest(http.MethodPost, "/v1/attachments", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	newRouter(store).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"filename":"guide.pdf"}`, w.Body.String())
	assert.Equal(t, pdf, store.files["guide.pdf"])
	assert.Equal(t, "application/pdf", store.contentTypes["guide.pdf"])
}

func TestUploadAttachment_KeepsDeclaredContentType(t *testing.T) {
	store := newMemoryStorage()
	body, contentType := multipartBody(t, "notes.txt", "text/plain; charset=utf-8", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/v1/attachments", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	newRouter(store).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", store.contentTypes["notes.txt"])
}

func TestUploadAttachment_RejectsHiddenNames(t *testing.T) {
	store := newMemoryStorage()
	body, contentType := multipartBody(t, ".env", "", []byte("SECRET=1"))
	req := httptest.NewRequest(http.MethodPost, "/v1/attachments", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	newRouter(store).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.files)
}

func TestUploadAttachment_MissingFile(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/attachments", nil)

	newRouter(newMemoryStorage()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndDeleteAttachments(t *testing.T) {
	store := newMemoryStorage()
	store.files["b.pdf"] = []byte("b")
	store.files["a.docx"] = []byte("a")
	r := newRouter(store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/attachments", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"files":["a.docx","b.pdf"]}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/attachments/b.pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, store.files, "b.pdf")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/attachments/.hidden", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAttachments_StorageFailure(t *testing.T) {
	store := newMemoryStorage()
	store.listErr = errors.New("access denied")
	w := httptest.NewRecorder()

	newRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/attachments", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "access denied")
}
