package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/molpadia/molpaupload/internal/infrastructure/persistence"
	"github.com/molpadia/molpaupload/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	dir string
}

func newTestServer(t *testing.T, idle time.Duration) *testServer {
	dir := t.TempDir()
	tr := upload.NewTracker()
	coordinator := upload.NewCoordinator(dir, tr, upload.NewPipeline(tr, upload.FileOpener{}, 64<<10))
	r := mux.NewRouter()
	SetupRoutes(r, coordinator, persistence.NewMemoryUploadRepository(), Options{IdleTimeout: idle})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{srv, dir}
}

func (s *testServer) status(t *testing.T, id string) (int64, string) {
	req, err := http.NewRequest("GET", s.URL+"/status", nil)
	require.NoError(t, err)
	req.Header.Set(HeaderFileId, id)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	n, err := strconv.ParseInt(string(b), 10, 64)
	require.NoError(t, err)
	return n, resp.Header.Get(HeaderUploadStatus)
}

func (s *testServer) send(t *testing.T, id string, start int64, body []byte, final bool) *http.Response {
	req, err := http.NewRequest("POST", s.URL+"/upload", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(HeaderFileId, id)
	req.Header.Set(HeaderStartByte, strconv.FormatInt(start, 10))
	req.Header.Set(HeaderFileType, "application/octet-stream")
	if final {
		req.Header.Set(HeaderUploadFinal, "true")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// Send the headers of a chunk declaring declared bytes, deliver only body and
// then either hang up or keep the connection silent.
func (s *testServer) sendPartial(t *testing.T, id string, start int64, declared int, body []byte, hangUp bool) net.Conn {
	conn, err := net.Dial("tcp", s.Listener.Addr().String())
	require.NoError(t, err)
	fmt.Fprintf(conn, "POST /upload HTTP/1.1\r\nHost: %s\r\nContent-Length: %d\r\n", s.Listener.Addr(), declared)
	fmt.Fprintf(conn, "%s: %s\r\n%s: %d\r\n\r\n", HeaderFileId, id, HeaderStartByte, start)
	_, err = conn.Write(body)
	require.NoError(t, err)
	if hangUp {
		require.NoError(t, conn.Close())
	} else {
		t.Cleanup(func() { conn.Close() })
	}
	return conn
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(1)).Read(b)
	return b
}

func TestServerHappyPath(t *testing.T) {
	s := newTestServer(t, 0)
	data := randomBytes(10_000_000)
	id := "video.mp4-10000000-1700000000000"

	resp := s.send(t, id, 0, data[:4_000_000], false)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	n, _ := s.status(t, id)
	assert.Equal(t, int64(4_000_000), n)

	resp = s.send(t, id, 4_000_000, data[4_000_000:7_000_000], false)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = s.send(t, id, 7_000_000, data[7_000_000:], true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, int64(10_000_000), out.Size)

	path, err := upload.SinkPath(s.dir, id, "application/octet-stream")
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))

	n, status := s.status(t, id)
	assert.Equal(t, int64(0), n, "a completed upload leaves no session")
	assert.Equal(t, "idle", status)
}

func TestServerInterruptedAndResync(t *testing.T) {
	s := newTestServer(t, 0)
	data := randomBytes(10_000_000)
	id := "interrupted"

	s.sendPartial(t, id, 0, 4_000_000, data[:3_999_000], true)
	require.Eventually(t, func() bool {
		n, status := s.status(t, id)
		return n == 3_999_000 && status == "interrupted"
	}, 10*time.Second, 10*time.Millisecond)

	resp := s.send(t, id, 4_000_000, data[4_000_000:], true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "3999000", resp.Header.Get(HeaderUploadOffset))

	resp = s.send(t, id, 3_999_000, data[3_999_000:], true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// The sink keeps the untyped name the first chunk chose.
	got, err := os.ReadFile(filepath.Join(s.dir, id))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

func TestServerIdleTimeout(t *testing.T) {
	s := newTestServer(t, 200*time.Millisecond)
	data := randomBytes(100_000)

	conn := s.sendPartial(t, "silent", 0, len(data), data[:70_000], false)
	require.Eventually(t, func() bool {
		n, status := s.status(t, "silent")
		return n == 70_000 && status == "interrupted"
	}, 10*time.Second, 10*time.Millisecond)

	// The server gives up on the connection without a response.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	b, _ := io.ReadAll(conn)
	assert.Empty(t, b)

	resp := s.send(t, "silent", 70_000, data[70_000:], true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerConcurrentSameIdentifier(t *testing.T) {
	s := newTestServer(t, 5*time.Second)
	data := randomBytes(1000)

	// The first request stays in flight while its body is incomplete.
	s.sendPartial(t, "shared", 0, len(data), data[:10], false)
	require.Eventually(t, func() bool {
		_, status := s.status(t, "shared")
		return status == "in_progress"
	}, 10*time.Second, 10*time.Millisecond)

	resp := s.send(t, "shared", 0, data, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var ae AppError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ae))
	assert.Equal(t, CodeUploadInProgress, ae.Code)
}

func TestServerListAndCancel(t *testing.T) {
	s := newTestServer(t, 0)
	resp := s.send(t, "a", 0, randomBytes(100), false)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err := http.Get(s.URL + "/uploads")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list SessionsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, int64(100), list.Sessions[0].Committed)

	req, err := http.NewRequest("DELETE", s.URL+"/uploads/a", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	n, _ := s.status(t, "a")
	assert.Equal(t, int64(0), n)
}
