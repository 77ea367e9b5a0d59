// Package stats retrieves a player's multiplayer service record from the Halo
// Infinite stats API and extracts the medals earned.
package stats

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ccollins476ad/halomedals/download"
	"github.com/ccollins476ad/halomedals/medal"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL   = "https://halo.api.stdlib.com/infinite@0.3.7"
	DefaultMatchType = "pvp"
	DefaultTimeout   = 30 * time.Second
)

var (
	ErrNotFound     = errors.New("player not found")
	ErrMissingToken = errors.New("missing stats api token")
)

// Fetcher retrieves the medals a player has earned. Implementations return an
// error wrapping ErrNotFound if the player is unknown and one wrapping
// ErrUnexpectedShape if the upstream data cannot be interpreted.
type Fetcher interface {
	FetchMedals(ctx context.Context, playerID string) ([]medal.Descriptor, error)
}

type Options struct {
	BaseURL   string        // API root, without trailing slash.
	Token     string        // Bearer token. Required.
	MatchType string        // Service record filter, e.g. "pvp".
	Timeout   time.Duration // Bound on a single stats request.

	// InsecureSkipVerify disables TLS certificate verification for requests
	// made by this client only.
	InsecureSkipVerify bool
}

// Client fetches multiplayer service records over http. It implements the
// Fetcher interface.
type Client struct {
	baseURL   string
	token     string
	matchType string
	timeout   time.Duration

	hc *http.Client
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, ErrMissingToken
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MatchType == "" {
		opts.MatchType = DefaultMatchType
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	hc := &http.Client{}
	if opts.InsecureSkipVerify {
		log.Warnf("tls verification disabled for stats api: base_url=%s", opts.BaseURL)
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		hc.Transport = tr
	}

	return &Client{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		token:     opts.Token,
		matchType: opts.MatchType,
		timeout:   opts.Timeout,
		hc:        hc,
	}, nil
}

type serviceRecordRequest struct {
	Gamertag string `json:"gamertag"`
	Filter   string `json:"filter"`
}

// FetchMedals retrieves the player's multiplayer service record and returns
// the medals it lists, in upstream order.
func (c *Client) FetchMedals(ctx context.Context, playerID string) ([]medal.Descriptor, error) {
	rec, err := c.serviceRecord(ctx, playerID)
	if err != nil {
		return nil, err
	}

	ds, err := rec.Medals()
	if err != nil {
		return nil, fmt.Errorf("failed to extract medals: player=%s: %w", playerID, err)
	}
	return ds, nil
}

func (c *Client) serviceRecord(ctx context.Context, playerID string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody, err := json.Marshal(serviceRecordRequest{
		Gamertag: playerID,
		Filter:   "matchmade:" + c.matchType,
	})
	if err != nil {
		return nil, err
	}

	header := http.Header{
		"Authorization": []string{"Bearer " + c.token},
		"Content-Type":  []string{"application/json"},
	}

	u := c.baseURL + "/stats/service-record/multiplayer/"
	body, err := download.Send(ctx, c.hc, http.MethodPost, u, header, bytes.NewReader(reqBody))
	if err != nil {
		var se *download.StatusError
		if errors.As(err, &se) && isNotFoundStatus(se.StatusCode) {
			return nil, fmt.Errorf("%w: player=%s status=%s", ErrNotFound, playerID, se.Status)
		}
		return nil, err
	}
	defer body.Close()

	return ReadRecord(download.NewContextReader(ctx, body))
}

// isNotFoundStatus reports whether the stats api uses the given status to
// reject an unknown gamertag.
func isNotFoundStatus(code int) bool {
	switch code {
	case http.StatusNotFound, http.StatusBadRequest, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}
