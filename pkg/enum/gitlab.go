package enum

import (
	"context"
	"fmt"

	"gitlab.com/gitlab-org/api/client-go"
)

// GitLabConfig selects GitLab projects: one project by path, every project
// of a group and its subgroups, or every project a user owns.
type GitLabConfig struct {
	Token   string
	BaseURL string // defaults to gitlab.com

	Project string // namespace/project
	Group   string
	User    string

	SkipForks bool
}

// ListGitLabProjects resolves cfg to the projects it selects.
func ListGitLabProjects(ctx context.Context, cfg GitLabConfig) ([]RepoInfo, error) {
	var opts []gitlab.ClientOptionFunc
	if cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.BaseURL))
	}
	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	var projects []*gitlab.Project
	switch {
	case cfg.Project != "":
		p, _, err := client.Projects.GetProject(cfg.Project, nil, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("getting project: %w", err)
		}
		projects = []*gitlab.Project{p}
	case cfg.Group != "":
		opt := &gitlab.ListGroupProjectsOptions{
			ListOptions:      gitlab.ListOptions{PerPage: 100},
			IncludeSubGroups: gitlab.Ptr(true),
		}
		for {
			page, resp, err := client.Groups.ListGroupProjects(cfg.Group, opt, gitlab.WithContext(ctx))
			if err != nil {
				return nil, fmt.Errorf("listing group projects: %w", err)
			}
			projects = append(projects, page...)
			if resp.NextPage == 0 {
				break
			}
			opt.Page = resp.NextPage
		}
	case cfg.User != "":
		opt := &gitlab.ListProjectsOptions{
			ListOptions: gitlab.ListOptions{PerPage: 100},
			Owned:       gitlab.Ptr(true),
		}
		for {
			page, resp, err := client.Projects.ListUserProjects(cfg.User, opt, gitlab.WithContext(ctx))
			if err != nil {
				return nil, fmt.Errorf("listing user projects: %w", err)
			}
			projects = append(projects, page...)
			if resp.NextPage == 0 {
				break
			}
			opt.Page = resp.NextPage
		}
	default:
		return nil, fmt.Errorf("must specify project, group, or user")
	}

	infos := make([]RepoInfo, 0, len(projects))
	for _, p := range projects {
		if cfg.SkipForks && p.ForkedFromProject != nil {
			continue
		}
		infos = append(infos, RepoInfo{
			Name:          p.PathWithNamespace,
			CloneURL:      p.HTTPURLToRepo,
			DefaultBranch: p.DefaultBranch,
		})
	}
	return infos, nil
}
