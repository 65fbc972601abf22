// Package enrich augments candidate CVs with public data referenced in the
// CV text, currently the candidate's public GitHub projects.
package enrich

import (
	"os"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// Client wraps the GitHub API client with rate limiting support.
type Client struct {
	*github.Client
}

// NewClient creates a new GitHub client with optional authentication and rate
// limiting. If GITHUB_TOKEN is set the client is authenticated, raising the
// rate limit from 60 to 5000 requests per hour. Secondary rate limits are
// handled with automatic retry.
func NewClient() (*Client, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, err
	}

	ghClient := github.NewClient(rateLimiter)

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		ghClient = ghClient.WithAuthToken(token)
	}

	return &Client{Client: ghClient}, nil
}
