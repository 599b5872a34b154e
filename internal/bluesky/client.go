// Package bluesky reads recent posts over the AT Protocol XRPC API.
package bluesky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"
	. "github.com/roelfdiedericks/skydigest/internal/logging"
	"github.com/roelfdiedericks/skydigest/internal/types"
)

// DefaultService is the PDS entryway used when none is configured.
const DefaultService = "https://bsky.social"

// MaxFeedLimit is the largest page getAuthorFeed accepts.
const MaxFeedLimit = 100

// Client wraps an indigo XRPC client with the session from Login.
type Client struct {
	now func() time.Time

	mu   sync.Mutex
	xrpc *xrpc.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.xrpc.Client = hc }
}

// WithClock overrides time.Now for lookback filtering.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client for service. Call Login before fetching.
func NewClient(service string, opts ...Option) *Client {
	service = strings.TrimSuffix(strings.TrimSpace(service), "/")
	if service == "" {
		service = DefaultService
	}
	c := &Client{
		now: time.Now,
		xrpc: &xrpc.Client{
			Host:   service,
			Client: &http.Client{Timeout: 30 * time.Second},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// session returns a copy of the XRPC client so a concurrent Login cannot
// swap credentials mid-request.
func (c *Client) session() *xrpc.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *c.xrpc
	return &cp
}

// Login creates a session with an account identifier and app password.
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	out, err := comatproto.ServerCreateSession(ctx, c.session(), &comatproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return fmt.Errorf("bluesky login: %w", err)
	}
	if out.AccessJwt == "" {
		return errors.New("bluesky login: no access token in response")
	}

	c.mu.Lock()
	c.xrpc.Auth = &xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Handle:     out.Handle,
		Did:        out.Did,
	}
	c.mu.Unlock()

	L_info("bluesky: logged in", "handle", out.Handle)
	return nil
}

// AuthorPosts returns the actor's posts created within lookback of now,
// reading a single page of at most limit items.
func (c *Client) AuthorPosts(ctx context.Context, actor string, lookback time.Duration, limit int) ([]types.Post, error) {
	if limit <= 0 || limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	out, err := appbsky.FeedGetAuthorFeed(ctx, c.session(), actor, "", "", false, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("getAuthorFeed %s: %w", actor, err)
	}

	end := c.now().UTC()
	start := end.Add(-lookback)

	posts := make([]types.Post, 0, len(out.Feed))
	for _, item := range out.Feed {
		if item == nil || item.Post == nil || item.Post.Record == nil {
			continue
		}
		view := item.Post
		record, ok := view.Record.Val.(*appbsky.FeedPost)
		if !ok {
			L_debug("bluesky: skipping non-post record", "uri", view.Uri)
			continue
		}

		created, err := time.Parse(time.RFC3339Nano, record.CreatedAt)
		if err != nil {
			L_debug("bluesky: skipping post with bad timestamp", "uri", view.Uri, "createdAt", record.CreatedAt)
			continue
		}
		if created.Before(start) || created.After(end) {
			continue
		}

		posts = append(posts, types.Post{
			Text:      record.Text,
			CreatedAt: created,
			Author:    authorName(view.Author),
			URI:       view.Uri,
		})
	}
	return posts, nil
}

// authorName prefers the display name and falls back to the handle.
func authorName(a *appbsky.ActorDefs_ProfileViewBasic) string {
	if a == nil {
		return ""
	}
	if a.DisplayName != nil && *a.DisplayName != "" {
		return *a.DisplayName
	}
	return a.Handle
}

// FetchAll collects posts for every handle in order. A failing account is
// logged and contributes an empty entry.
func (c *Client) FetchAll(ctx context.Context, handles []string, lookback time.Duration, maxPerUser int) types.PostCollection {
	out := make(types.PostCollection, 0, len(handles))
	for _, handle := range handles {
		L_info("bluesky: fetching posts", "actor", handle)

		posts, err := c.AuthorPosts(ctx, handle, lookback, maxPerUser)
		if err != nil {
			L_error("bluesky: failed to fetch posts", "actor", handle, "error", err)
			posts = []types.Post{}
		} else {
			L_info("bluesky: fetched posts", "actor", handle, "count", len(posts))
		}
		out = append(out, types.AccountPosts{Account: handle, Posts: posts})
	}
	return out
}
