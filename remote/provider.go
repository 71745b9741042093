// Package remote provides a provider that looks tournaments up on a listing server.
package remote

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"path"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chrisvdg/tourneyfilter/cache"
	"github.com/chrisvdg/tourneyfilter/criteria"
)

// ListPath is the listing server route serving result sets
const ListPath = "/tournaments"

// maxErrorBody bounds how much of a failed response is kept in the error
const maxErrorBody = 1024

// New returns a provider querying the listing server at baseURL.
// A nil client uses http.DefaultClient.
func New(baseURL string, client *http.Client) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("no listing server URL provided")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse listing server URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported listing server scheme %q", u.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Provider{
		base: u,
		http: client,
	}, nil
}

// Provider represents a listing server client
type Provider struct {
	base *url.URL
	http *http.Client
}

// Lookup requests the result set for c. The canonical key is sent as the
// query string.
func (p *Provider) Lookup(ctx context.Context, c criteria.Criteria) (*cache.ResultSet, error) {
	u := *p.base
	u.Path = path.Join(u.Path, ListPath)
	u.RawQuery = c.Key()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create listing request")
	}
	req.Header.Set("Accept", "application/json")
	log.Debugf("Requesting %s", u.String())

	res, err := p.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "listing request failed")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := ioutil.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, errors.Errorf("listing server responded %d: %s", res.StatusCode, string(body))
	}

	rs := &cache.ResultSet{}
	err = json.NewDecoder(res.Body).Decode(rs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode listing response")
	}
	return rs, nil
}
