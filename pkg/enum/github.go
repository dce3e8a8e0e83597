package enum

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubConfig selects GitHub repositories: one repository (Owner and Repo),
// every repository of an organization, or every repository of a user.
type GitHubConfig struct {
	Token   string // optional for public repositories
	BaseURL string // API root for GitHub Enterprise (default api.github.com)

	Owner string
	Repo  string
	Org   string
	User  string

	SkipForks bool
}

// ListGitHubRepos resolves cfg to the repositories it selects.
func ListGitHubRepos(ctx context.Context, cfg GitHubConfig) ([]RepoInfo, error) {
	client, err := newGitHubClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var repos []*github.Repository
	switch {
	case cfg.Repo != "":
		if cfg.Owner == "" {
			return nil, fmt.Errorf("owner required when repo specified")
		}
		repo, _, err := client.Repositories.Get(ctx, cfg.Owner, cfg.Repo)
		if err != nil {
			return nil, fmt.Errorf("getting repository: %w", err)
		}
		repos = []*github.Repository{repo}
	case cfg.Org != "":
		opts := &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: 100}}
		for {
			page, resp, err := client.Repositories.ListByOrg(ctx, cfg.Org, opts)
			if err != nil {
				return nil, fmt.Errorf("listing org repositories: %w", err)
			}
			repos = append(repos, page...)
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	case cfg.User != "":
		opts := &github.RepositoryListOptions{ListOptions: github.ListOptions{PerPage: 100}}
		for {
			page, resp, err := client.Repositories.List(ctx, cfg.User, opts)
			if err != nil {
				return nil, fmt.Errorf("listing user repositories: %w", err)
			}
			repos = append(repos, page...)
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	default:
		return nil, fmt.Errorf("must specify repo (with owner), org, or user")
	}

	infos := make([]RepoInfo, 0, len(repos))
	for _, r := range repos {
		if cfg.SkipForks && r.GetFork() {
			continue
		}
		infos = append(infos, RepoInfo{
			Name:          r.GetFullName(),
			CloneURL:      r.GetCloneURL(),
			DefaultBranch: r.GetDefaultBranch(),
		})
	}
	return infos, nil
}

func newGitHubClient(ctx context.Context, cfg GitHubConfig) (*github.Client, error) {
	var client *github.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		client = github.NewClient(nil)
	}

	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing GitHub API URL: %w", err)
		}
		client.BaseURL = base
	}
	return client, nil
}
