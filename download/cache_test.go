package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-medal")

// imageServer serves pngBytes for any path except /missing.png (404) and
// /empty.png (200 with no body). It counts requests.
func imageServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/missing.png":
			http.NotFound(w, r)
		case "/empty.png":
			w.WriteHeader(http.StatusOK)
		default:
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngBytes)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestResolveCachesInMemoryAndOnDisk(t *testing.T) {
	srv, hits := imageServer(t)
	dir := filepath.Join(t.TempDir(), ".medal_cache")
	u := srv.URL + "/medals/Killtacular.png"

	c := NewImageCache(CacheOptions{Dir: dir})
	for i := 0; i < 3; i++ {
		b, err := c.Resolve(context.Background(), u)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if !bytes.Equal(b, pngBytes) {
			t.Fatalf("resolve %d: unexpected bytes %q", i, b)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("hits = %d, want 1", got)
	}

	onDisk, err := os.ReadFile(filepath.Join(dir, "Killtacular.png"))
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	if !bytes.Equal(onDisk, pngBytes) {
		t.Fatalf("cache file content = %q", onDisk)
	}

	// A new cache over the same directory models a second process run.
	c2 := NewImageCache(CacheOptions{Dir: dir})
	if _, err := c2.Resolve(context.Background(), u); err != nil {
		t.Fatalf("second run resolve: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("second run hit network: hits = %d, want 1", got)
	}
}

func TestResolveConcurrentSingleFetch(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write(pngBytes)
	}))
	defer srv.Close()

	c := NewImageCache(CacheOptions{Dir: t.TempDir()})
	u := srv.URL + "/Perfection.png"

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Resolve(context.Background(), u)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("resolver %d: %v", i, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("hits = %d, want 1", got)
	}
}

func TestResolveCanceledCallerDoesNotFailOthers(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(200 * time.Millisecond)
		w.Write(pngBytes)
	}))
	defer srv.Close()

	c := NewImageCache(CacheOptions{Dir: t.TempDir()})
	u := srv.URL + "/Extermination.png"

	ctxA, cancelA := context.WithCancel(context.Background())
	var errA error
	doneA := make(chan struct{})
	go func() {
		defer close(doneA)
		_, errA = c.Resolve(ctxA, u)
	}()

	// Give caller A time to start the shared download.
	time.Sleep(20 * time.Millisecond)

	var bB []byte
	var errB error
	doneB := make(chan struct{})
	go func() {
		defer close(doneB)
		bB, errB = c.Resolve(context.Background(), u)
	}()

	time.Sleep(30 * time.Millisecond)
	cancelA()

	select {
	case <-doneA:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("canceled caller did not return promptly")
	}
	if !errors.Is(errA, ErrDownloadFailed) {
		t.Fatalf("caller A: err = %v, want ErrDownloadFailed", errA)
	}

	<-doneB
	if errB != nil {
		t.Fatalf("caller B: %v", errB)
	}
	if !bytes.Equal(bB, pngBytes) {
		t.Fatalf("caller B: unexpected bytes %q", bB)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("hits = %d, want 1", got)
	}
}

func TestResolveDownloadFailure(t *testing.T) {
	srv, hits := imageServer(t)
	dir := t.TempDir()
	c := NewImageCache(CacheOptions{Dir: dir})

	for _, name := range []string{"missing.png", "empty.png"} {
		b, err := c.Resolve(context.Background(), srv.URL+"/"+name)
		if !errors.Is(err, ErrDownloadFailed) {
			t.Fatalf("%s: err = %v, want ErrDownloadFailed", name, err)
		}
		if b != nil {
			t.Fatalf("%s: expected no bytes", name)
		}
		if _, err := os.Stat(filepath.Join(dir, name)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s: cache file should not exist: %v", name, err)
		}
	}

	// Failures are not memoized.
	c.Resolve(context.Background(), srv.URL+"/missing.png")
	if got := hits.Load(); got != 3 {
		t.Fatalf("hits = %d, want 3", got)
	}
}

func TestResolveTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewImageCache(CacheOptions{Dir: t.TempDir(), Timeout: 50 * time.Millisecond})
	_, err := c.Resolve(context.Background(), srv.URL+"/slow.png")
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("err = %v, want ErrDownloadFailed", err)
	}
}

func TestResolveReplacesEmptyCacheFile(t *testing.T) {
	srv, hits := imageServer(t)
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "Ninja.png")
	if err := os.WriteFile(cachePath, nil, 0644); err != nil {
		t.Fatal(err)
	}

	c := NewImageCache(CacheOptions{Dir: dir})
	b, err := c.Resolve(context.Background(), srv.URL+"/Ninja.png")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !bytes.Equal(b, pngBytes) {
		t.Fatalf("unexpected bytes %q", b)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("hits = %d, want 1", got)
	}
	onDisk, _ := os.ReadFile(cachePath)
	if !bytes.Equal(onDisk, pngBytes) {
		t.Fatalf("cache file not repaired: %q", onDisk)
	}
}

func TestResolveReplacesDirectoryAtCacheKey(t *testing.T) {
	srv, hits := imageServer(t)
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "Overkill.png")
	if err := os.Mkdir(cachePath, 0755); err != nil {
		t.Fatal(err)
	}

	c := NewImageCache(CacheOptions{Dir: dir})
	b, err := c.Resolve(context.Background(), srv.URL+"/Overkill.png")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !bytes.Equal(b, pngBytes) {
		t.Fatalf("unexpected bytes %q", b)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("hits = %d, want 1", got)
	}
	onDisk, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	if !bytes.Equal(onDisk, pngBytes) {
		t.Fatalf("cache file content = %q", onDisk)
	}
}

func TestReadCacheFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := readCacheFile(dir); err == nil {
		t.Fatal("expected error for directory cache entry")
	}
}

func TestResolveInvalidURL(t *testing.T) {
	c := NewImageCache(CacheOptions{Dir: t.TempDir()})
	for _, u := range []string{"http://example.com", "http://example.com/", "://bad"} {
		if _, err := c.Resolve(context.Background(), u); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("%q: err = %v, want ErrInvalidURL", u, err)
		}
	}
}

func TestURLToFilename(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://assets.halo.example/medals/large/Killtacular.png", "Killtacular.png"},
		{"https://assets.halo.example/medals/Double%20Kill.png?v=2#x", "Double Kill.png"},
		{"https://assets.halo.example/a/b/Overkill.jpeg/", "Overkill.jpeg"},
	}
	for _, tt := range tests {
		got, err := URLToFilename(tt.url)
		if err != nil {
			t.Errorf("%s: %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.url, got, tt.want)
		}
	}
}
