package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ccollins476ad/halomedals/medal"
	log "github.com/sirupsen/logrus"
	"mvdan.cc/xurls/v2"
)

// ErrUnexpectedShape indicates that a stats response decoded as JSON but does
// not have the structure this package expects.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// errMalformedImageURL affects a single medal, not the whole record.
var errMalformedImageURL = fmt.Errorf("%w: malformed image url", ErrUnexpectedShape)

var urlRegexp = xurls.Strict()

// medalsPath is the location of the medal breakdown within a service record.
var medalsPath = []string{"data", "core", "breakdowns", "medals"}

// Record is a decoded JSON object from the stats API.
type Record map[string]any

// ReadRecord decodes a stats API response body.
func ReadRecord(r io.Reader) (Record, error) {
	rec := Record{}
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return rec, nil
}

// GetString retrieves the record's string value with the given key. It returns
// an error if the key is missing or holds something other than a string.
func (rec Record) GetString(key string) (string, error) {
	x, ok := rec[key]
	if !ok {
		return "", fmt.Errorf("%w: missing key=%s", ErrUnexpectedShape, key)
	}
	s, ok := x.(string)
	if !ok {
		return "", fmt.Errorf("%w: wrong type for key=%s: have=%T want=string", ErrUnexpectedShape, key, x)
	}
	return s, nil
}

// GetInt retrieves the record's value with the given key as an integer. JSON
// numbers decode as float64; a value with a fractional part is rejected.
func (rec Record) GetInt(key string) (int64, error) {
	x, ok := rec[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing key=%s", ErrUnexpectedShape, key)
	}
	f, ok := x.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: wrong type for key=%s: have=%T want=number", ErrUnexpectedShape, key, x)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: non-integer value for key=%s: %v", ErrUnexpectedShape, key, f)
	}
	return int64(f), nil
}

// GetRecord retrieves the record's nested object with the given key.
func (rec Record) GetRecord(key string) (Record, error) {
	x, ok := rec[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing key=%s", ErrUnexpectedShape, key)
	}
	m, ok := x.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: wrong type for key=%s: have=%T want=object", ErrUnexpectedShape, key, x)
	}
	return Record(m), nil
}

// GetSliceOfRecords retrieves the record's value with the given key and
// returns it as a slice of records. It returns an error if the value is not a
// list of objects.
func (rec Record) GetSliceOfRecords(key string) ([]Record, error) {
	x, ok := rec[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing key=%s", ErrUnexpectedShape, key)
	}

	slice, ok := x.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: wrong type for key=%s: have=%T want=[]any", ErrUnexpectedShape, key, x)
	}

	rs := make([]Record, 0, len(slice))
	for i, a := range slice {
		m, ok := a.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: wrong type for key=%s,idx=%d: have=%T want=object", ErrUnexpectedShape, key, i, a)
		}
		rs = append(rs, Record(m))
	}

	return rs, nil
}

// Lookup follows a path of nested object keys and returns the record at its
// end.
func (rec Record) Lookup(keys ...string) (Record, error) {
	cur := rec
	for _, k := range keys {
		next, err := cur.GetRecord(k)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Medals extracts the medal breakdown from a multiplayer service record. Each
// medal must carry a name, a non-negative count, and a large image url. A
// medal whose image url is malformed is logged and skipped.
func (rec Record) Medals() ([]medal.Descriptor, error) {
	parent, err := rec.Lookup(medalsPath[:len(medalsPath)-1]...)
	if err != nil {
		return nil, err
	}
	entries, err := parent.GetSliceOfRecords(medalsPath[len(medalsPath)-1])
	if err != nil {
		return nil, err
	}

	ds := make([]medal.Descriptor, 0, len(entries))
	for i, e := range entries {
		d, err := descriptorFromRecord(e)
		if errors.Is(err, errMalformedImageURL) {
			log.WithError(err).Warnf("skipping medal: idx=%d", i)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("medal idx=%d: %w", i, err)
		}
		ds = append(ds, d)
	}
	return ds, nil
}

func descriptorFromRecord(e Record) (medal.Descriptor, error) {
	name, err := e.GetString("name")
	if err != nil {
		return medal.Descriptor{}, err
	}
	count, err := e.GetInt("count")
	if err != nil {
		return medal.Descriptor{}, err
	}
	if count < 0 {
		return medal.Descriptor{}, fmt.Errorf("%w: negative count for medal=%s", ErrUnexpectedShape, name)
	}
	urls, err := e.GetRecord("image_urls")
	if err != nil {
		return medal.Descriptor{}, err
	}
	imageURL, err := urls.GetString("large")
	if err != nil {
		return medal.Descriptor{}, err
	}
	if !isURL(imageURL) {
		return medal.Descriptor{}, fmt.Errorf("%w: medal=%s url=%q", errMalformedImageURL, name, imageURL)
	}

	// The id is informational only.
	id, _ := e.GetInt("id")

	return medal.Descriptor{
		ID:       id,
		Name:     name,
		Count:    int(count),
		ImageURL: imageURL,
	}, nil
}

// isURL reports whether s consists of exactly one url with a scheme.
func isURL(s string) bool {
	return s != "" && urlRegexp.FindString(s) == s
}
