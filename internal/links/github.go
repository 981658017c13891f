// Package links enriches issue links with metadata from the systems they
// point at. Only GitHub issues and pull requests are recognised.
package links

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v68/github"
	"github.com/zulandar/tracker/internal/config"
	"golang.org/x/oauth2"
)

// Info is what a resolver learned about a link.
type Info struct {
	Title string
	State string // open, closed or merged
}

// Ref identifies a GitHub issue or pull request.
type Ref struct {
	Owner  string
	Repo   string
	Pull   bool
	Number int
}

// Parse extracts a Ref from an html URL of the form
// https://<host>/{owner}/{repo}/(issues|pull)/{n}. host must match the
// resolver's web host.
func Parse(raw, host string) (Ref, bool) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || !strings.EqualFold(u.Host, host) {
		return Ref{}, false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[0] == "" || parts[1] == "" {
		return Ref{}, false
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil || n <= 0 {
		return Ref{}, false
	}
	ref := Ref{Owner: parts[0], Repo: parts[1], Number: n}
	switch parts[2] {
	case "issues":
	case "pull":
		ref.Pull = true
	default:
		return Ref{}, false
	}
	return ref, true
}

// GitHubResolver looks up issue and pull request titles through the GitHub
// REST API.
type GitHubResolver struct {
	client *github.Client
	host   string
}

// NewGitHubResolver builds a resolver from config. An empty token gives
// unauthenticated access; a BaseURL selects a GitHub Enterprise server.
func NewGitHubResolver(ctx context.Context, cfg config.GitHubConfig) (*GitHubResolver, error) {
	var hc *http.Client
	if cfg.Token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	}
	client := github.NewClient(hc)
	host := "github.com"
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("links: github base url: %w", err)
		}
		host = client.BaseURL.Host
	}
	return &GitHubResolver{client: client, host: host}, nil
}

// Resolve fetches metadata for a GitHub link. ok is false for URLs that are
// not GitHub issues or pull requests on the configured host.
func (r *GitHubResolver) Resolve(ctx context.Context, link string) (Info, bool, error) {
	ref, ok := Parse(link, r.host)
	if !ok {
		return Info{}, false, nil
	}
	if ref.Pull {
		pr, _, err := r.client.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
		if err != nil {
			return Info{}, true, fmt.Errorf("links: get pull %s/%s#%d: %w", ref.Owner, ref.Repo, ref.Number, err)
		}
		state := pr.GetState()
		if pr.GetMerged() {
			state = "merged"
		}
		return Info{Title: pr.GetTitle(), State: state}, true, nil
	}
	is, _, err := r.client.Issues.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return Info{}, true, fmt.Errorf("links: get issue %s/%s#%d: %w", ref.Owner, ref.Repo, ref.Number, err)
	}
	return Info{Title: is.GetTitle(), State: is.GetState()}, true, nil
}
