package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/ccollins476ad/halomedals/fileutil"
	"github.com/flytam/filenamify"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheDir = ".medal_cache"
	DefaultTimeout  = 30 * time.Second
)

var (
	ErrInvalidURL     = errors.New("invalid image url")
	ErrDownloadFailed = errors.New("download failed")
)

type CacheOptions struct {
	Dir     string        // Durable cache directory. Defaults to DefaultCacheDir.
	Client  *http.Client  // Client for image downloads. Defaults to a new client.
	Timeout time.Duration // Bound on a single download. Defaults to DefaultTimeout.
}

// ImageCache resolves medal image urls to image bytes. Resolved images are
// kept in a durable on-disk directory shared across runs and processes, and
// memoized in memory for the lifetime of the ImageCache. An ImageCache is
// safe for concurrent use.
type ImageCache struct {
	dir     string        // constant
	timeout time.Duration // constant

	hc *http.Client

	group singleflight.Group // Collapses concurrent resolutions of one url.

	memMtx sync.Mutex        // Protects the "mem" field.
	mem    map[string][]byte // Resolved images keyed by url.
}

func NewImageCache(opts CacheOptions) *ImageCache {
	if opts.Dir == "" {
		opts.Dir = DefaultCacheDir
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &ImageCache{
		dir:     opts.Dir,
		timeout: opts.Timeout,
		hc:      opts.Client,
		mem:     map[string][]byte{},
	}
}

// Resolve returns the image bytes for the given url. It consults, in order,
// the in-memory memo, the durable cache directory, and finally the network.
// Downloaded images are written to the durable cache before being returned.
//
// Concurrent callers for one url share a single resolution. That resolution
// is not tied to any one caller's context: a caller whose ctx is done stops
// waiting and gets an error, while the others still receive the image.
//
// A failed download is logged and reported as an error wrapping
// ErrDownloadFailed; it is not memoized, so a later call tries again.
func (c *ImageCache) Resolve(ctx context.Context, u string) ([]byte, error) {
	if b, ok := c.lookup(u); ok {
		return b, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(u, func() (any, error) {
		// Another caller may have finished between lookup and DoChan.
		if b, ok := c.lookup(u); ok {
			return b, nil
		}

		b, err := c.resolve(shared, u)
		if err != nil {
			return nil, err
		}

		c.store(u, b)
		return b, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: url=%s: %v", ErrDownloadFailed, u, ctx.Err())

	case res := <-ch:
		if res.Shared {
			log.Debugf("shared image resolution: url=%s", u)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// CachePath returns the durable cache path that would hold the image at the
// given url.
func (c *ImageCache) CachePath(u string) (string, error) {
	key, err := URLToFilename(u)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.dir, key), nil
}

// resolve reads the image from the durable cache, downloading and caching it
// on a miss.
func (c *ImageCache) resolve(ctx context.Context, u string) ([]byte, error) {
	cachePath, err := c.CachePath(u)
	if err != nil {
		return nil, err
	}

	b, err := readCacheFile(cachePath)
	if err == nil {
		log.Debugf("image cache hit: url=%s path=%s", u, cachePath)
		return b, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		// Corrupt entry. Replace it with a fresh download.
		log.WithError(err).Warnf("discarding unusable cache entry: path=%s", cachePath)
		if fileutil.IsDir(cachePath) {
			// Only an empty directory is removed; anything else makes the
			// publish below fail.
			os.Remove(cachePath)
		}
	}

	b, err = c.fetch(ctx, u)
	if err != nil {
		log.WithError(err).Warnf("failed to get medal image: url=%s", u)
		return nil, fmt.Errorf("%w: url=%s: %v", ErrDownloadFailed, u, err)
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	if err := fileutil.WriteAtomic(cachePath, b); err != nil {
		return nil, err
	}
	log.Debugf("cached image: url=%s path=%s bytes=%d", u, cachePath, len(b))

	return b, nil
}

func (c *ImageCache) fetch(ctx context.Context, u string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, err := Get(ctx, c.hc, u, nil)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	return b, nil
}

func (c *ImageCache) lookup(u string) ([]byte, bool) {
	c.memMtx.Lock()
	defer c.memMtx.Unlock()

	b, ok := c.mem[u]
	return b, ok
}

func (c *ImageCache) store(u string, b []byte) {
	c.memMtx.Lock()
	defer c.memMtx.Unlock()

	c.mem[u] = b
}

// readCacheFile reads a durable cache entry. An empty entry or a directory is
// reported as an error: this program never publishes either, so it indicates
// corruption.
func readCacheFile(path string) ([]byte, error) {
	if fileutil.IsDir(path) {
		return nil, fmt.Errorf("cache entry is a directory: path=%s", path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty cache file: path=%s", path)
	}
	return b, nil
}

// URLToFilename returns the durable cache filename for the given image url:
// the final segment of the url path, made safe for use as a filename. The
// query string and fragment do not contribute.
func URLToFilename(u string) (string, error) {
	base, err := urlBase(u)
	if err != nil {
		return "", err
	}
	name, err := filenamify.Filenamify(base, filenamify.Options{})
	if err != nil {
		return "", fmt.Errorf("%w: url=%s: %v", ErrInvalidURL, u, err)
	}
	return name, nil
}

func urlBase(u string) (string, error) {
	pu, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if pu.Path == "" || pu.Path == "/" {
		return "", fmt.Errorf("%w: url has no path: url=%s", ErrInvalidURL, u)
	}

	base := path.Base(pu.Path)
	if base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("%w: url has no final path segment: url=%s", ErrInvalidURL, u)
	}
	return base, nil
}
