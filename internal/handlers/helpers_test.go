package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/auth"
	"github.com/pliu/roomlet/internal/files"
	"github.com/pliu/roomlet/internal/middleware"
	"github.com/pliu/roomlet/internal/rentals"
	"github.com/pliu/roomlet/internal/store/sqlstore"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	files   *files.DiskStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()

	store, err := sqlstore.New("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	disk, err := files.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	issuer := auth.NewIssuer(store, store, auth.SessionConfig{Secret: []byte("test-secret")}, logger)
	guard := auth.NewGuard(issuer)
	rooms := rentals.NewService(store, disk, guard, rentals.Options{PublicPath: "/images", MaxImageBytes: 1024}, logger)

	return &testAPI{
		t: t,
		handler: NewRouter(Deps{
			Credentials:    auth.NewCredentials(store, logger),
			Sessions:       issuer,
			Guard:          guard,
			Rooms:          rooms,
			Logger:         logger,
			UploadDir:      disk.Dir(),
			PublicPath:     "/images",
			MaxUploadBytes: 1024,
			AllowedOrigins: []string{"http://localhost:5173"},
		}),
		files: disk,
	}
}

func (a *testAPI) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set(middleware.TokenHeader, token)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(a.t, err)
		r = bytes.NewBuffer(data)
	}
	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, token)
}

func (a *testAPI) upload(path, token, filename string, content []byte) *httptest.ResponseRecorder {
	a.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(a.t, err)
	_, err = part.Write(content)
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.send(req, token)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (a *testAPI) register(email, name, password string) TokenResponse {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/auth/register", "", RegisterRequest{Email: email, Name: name, Password: password})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[TokenResponse](a.t, rr)
}
