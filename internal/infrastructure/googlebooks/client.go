// Package googlebooks looks up volume metadata by ISBN through the Google
// Books API.
package googlebooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"golang.org/x/time/rate"
	books "google.golang.org/api/books/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Volume is the subset of volume metadata used to create catalog entries.
type Volume struct {
	Title      string
	Authors    []string
	Categories []string
}

// Client calls the volumes endpoint, throttled to a fixed request rate so a
// burst of imports cannot exhaust the shared API quota.
type Client struct {
	svc     *books.Service
	limiter *rate.Limiter
}

// NewClient builds a client. An empty apiKey uses anonymous access. Extra
// options are appended last, which lets tests point the client at a local
// server.
func NewClient(ctx context.Context, apiKey string, rps float64, opts ...option.ClientOption) (*Client, error) {
	var all []option.ClientOption
	if apiKey != "" {
		all = append(all, option.WithAPIKey(apiKey))
	} else {
		all = append(all, option.WithoutAuthentication())
	}
	all = append(all, opts...)
	svc, err := books.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("google books client: %w", err)
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{svc: svc, limiter: rate.NewLimiter(rate.Limit(rps), 1)}, nil
}

// LookupISBN returns the first volume matching isbn. No match yields
// domain.ErrNotFound; transport or API failures yield domain.ErrUpstream.
func (c *Client) LookupISBN(ctx context.Context, isbn string) (*Volume, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.svc.Volumes.List("isbn:" + strings.TrimSpace(isbn)).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("isbn %s: %w", isbn, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("google books: %v: %w", err, domain.ErrUpstream)
	}
	if len(res.Items) == 0 || res.Items[0].VolumeInfo == nil {
		return nil, fmt.Errorf("no volume for isbn %s: %w", isbn, domain.ErrNotFound)
	}
	info := res.Items[0].VolumeInfo
	return &Volume{
		Title:      info.Title,
		Authors:    info.Authors,
		Categories: info.Categories,
	}, nil
}
