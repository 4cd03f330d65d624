package datasets

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestDownloadVerifiesDigest(t *testing.T) {
	payload := []byte("dataset contents")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(srv.Client())
	dest, err := f.Download(context.Background(), srv.URL+"/data.bin", digestOf(payload), dir)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownloadSkipsWhenCached(t *testing.T) {
	payload := []byte("cached contents")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(srv.Client())
	url := srv.URL + "/data.bin"
	digest := digestOf(payload)

	_, err := f.Download(context.Background(), url, digest, dir)
	require.NoError(t, err)
	_, err = f.Download(context.Background(), url, digest, dir)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownloadReplacesStaleFile(t *testing.T) {
	payload := []byte("fresh contents")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	stale := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(stale, []byte("truncated"), 0o644))

	f := NewFetcher(srv.Client())
	dest, err := f.Download(context.Background(), srv.URL+"/data.bin", digestOf(payload), dir)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownloadRejectsBadDigest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("whatever the server says"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	_, err := f.Download(context.Background(), srv.URL+"/data.bin",
		digestOf([]byte("expected something else")), t.TempDir())
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestDownloadAndExtractTarGz(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	content := []byte("label,path\n0,img0.jpg\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "ds/index.csv", Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg,
	}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	archive := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(srv.Client())
	_, err = f.DownloadAndExtract(context.Background(), srv.URL+"/ds.tar.gz", digestOf(archive), dir)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "ds", "index.csv"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSafeJoinRejectsEscape(t *testing.T) {
	_, err := safeJoin("/tmp/dest", "../outside")
	assert.Error(t, err)
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	names := c.Names()
	assert.Contains(t, names, "imagenette2")

	e, ok := c.Get("imagenette2")
	require.True(t, ok)
	assert.NotEmpty(t, e.URL)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
datasets:
  - name: toy
    url: https://example.com/toy.zip
    sha256: abc123
`), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	e, ok := c.Get("toy")
	require.True(t, ok)
	assert.Equal(t, "abc123", e.SHA256)
}

func TestLoadCatalogRejectsDuplicates(t *testing.T) {
	_, err := parseCatalog([]byte(`
datasets:
  - name: dup
    url: https://example.com/a.zip
  - name: dup
    url: https://example.com/b.zip
`))
	assert.Error(t, err)
}
