package download

import (
	"context"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// StatusError is returned when a server answers with a status outside the
// 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error status: url=%s status=%s", e.URL, e.Status)
}

// IsSuccess reports whether code is in the http success class.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}

// Send performs an http request with the given method, url, header, and body
// using the supplied client. It returns the response body on a 2xx status and
// a *StatusError otherwise. The caller must close the returned body.
func Send(ctx context.Context, hc *http.Client, method string, u string, header http.Header, body io.Reader) (io.ReadCloser, error) {
	log.Debugf("%s: %s", method, u)

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rsp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if !IsSuccess(rsp.StatusCode) {
		rsp.Body.Close()
		return nil, &StatusError{
			URL:        u,
			StatusCode: rsp.StatusCode,
			Status:     rsp.Status,
		}
	}

	return rsp.Body, nil
}

// GetBody performs an http GET with url=u using the supplied client and
// header.
func GetBody(ctx context.Context, hc *http.Client, u string, header http.Header) (io.ReadCloser, error) {
	return Send(ctx, hc, http.MethodGet, u, header, nil)
}

// Get calls GetBody(), then reads the full response and returns the result.
// The caller bounds the call with ctx.
func Get(ctx context.Context, hc *http.Client, u string, header http.Header) ([]byte, error) {
	body, err := GetBody(ctx, hc, u, header)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return io.ReadAll(NewContextReader(ctx, body))
}
