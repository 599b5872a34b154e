// Package types contains shared types used across multiple packages.
// This helps avoid import cycles between packages like bluesky, prompt and summarizer.
package types

import "time"

// Post is a single social-media post. Only Text reaches the prompt.
type Post struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Author    string    `json:"author"` // display name, falls back to handle
	URI       string    `json:"uri"`
}

// AccountPosts holds the posts fetched for one account, in fetch order.
type AccountPosts struct {
	Account string `json:"account"`
	Posts   []Post `json:"posts"`
}

// PostCollection maps accounts to their posts. Slice order is fetch order.
// Treat as immutable once handed to the summarizer.
type PostCollection []AccountPosts

// Total returns the number of posts across all accounts.
func (c PostCollection) Total() int {
	n := 0
	for _, a := range c {
		n += len(a.Posts)
	}
	return n
}

// IsEmpty reports whether no account has any posts.
func (c PostCollection) IsEmpty() bool {
	return c.Total() == 0
}

// Accounts returns the account identifiers in fetch order, including those with no posts.
func (c PostCollection) Accounts() []string {
	out := make([]string, 0, len(c))
	for _, a := range c {
		out = append(out, a.Account)
	}
	return out
}
