package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/betwixt/pkg/enum"
)

var (
	remoteToken     string
	remoteURL       string
	remoteUser      string
	remoteSkipForks bool
	remoteDepth     int
	githubOrg       string
	gitlabGroup     string
)

var githubCmd = &cobra.Command{
	Use:   "github [owner/repo]",
	Short: "Scan GitHub repositories",
	Long: `Clone GitHub repositories and scan them: one repository, every
repository of an organization (--org) or of a user (--user).
No token is needed for public repositories; use --token or GITHUB_TOKEN for
private ones and higher rate limits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGitHubScan,
}

var gitlabCmd = &cobra.Command{
	Use:   "gitlab [namespace/project]",
	Short: "Scan GitLab projects",
	Long: `Clone GitLab projects and scan them: one project, every project of a
group and its subgroups (--group) or every project a user owns (--user).
Use --token or GITLAB_TOKEN for private projects.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGitLabScan,
}

func init() {
	for _, cmd := range []*cobra.Command{githubCmd, gitlabCmd} {
		addScanFlags(cmd)
		f := cmd.Flags()
		f.BoolVar(&scanGit, "git", false, "Scan the HEAD commit tree of each clone instead of its working tree")
		f.StringVar(&remoteUser, "user", "", "Scan every repository of this user")
		f.BoolVar(&remoteSkipForks, "skip-forks", false, "Skip forked repositories")
		f.IntVar(&remoteDepth, "depth", 1, "Clone depth (0 = full history)")
	}

	githubCmd.Flags().StringVar(&githubOrg, "org", "", "Scan every repository of this organization")
	githubCmd.Flags().StringVar(&remoteToken, "token", "", "GitHub token (or GITHUB_TOKEN env)")
	githubCmd.Flags().StringVar(&remoteURL, "api-url", "", "GitHub API URL for GitHub Enterprise (default: api.github.com)")

	gitlabCmd.Flags().StringVar(&gitlabGroup, "group", "", "Scan every project of this group")
	gitlabCmd.Flags().StringVar(&remoteToken, "token", "", "GitLab token (or GITLAB_TOKEN env)")
	gitlabCmd.Flags().StringVar(&remoteURL, "url", "", "GitLab base URL (default: gitlab.com)")
}

func runGitHubScan(cmd *cobra.Command, args []string) error {
	cfg := enum.GitHubConfig{
		Token:     tokenOrEnv(remoteToken, "GITHUB_TOKEN"),
		BaseURL:   remoteURL,
		Org:       githubOrg,
		User:      remoteUser,
		SkipForks: remoteSkipForks,
	}
	if len(args) == 1 {
		owner, repo, ok := strings.Cut(args[0], "/")
		if !ok || owner == "" || repo == "" {
			return fmt.Errorf("repository must be owner/repo: %s", args[0])
		}
		cfg.Owner, cfg.Repo = owner, repo
	}

	repos, err := enum.ListGitHubRepos(context.Background(), cfg)
	if err != nil {
		return err
	}
	return scanRepos(cmd, repos, "x-access-token", cfg.Token)
}

func runGitLabScan(cmd *cobra.Command, args []string) error {
	cfg := enum.GitLabConfig{
		Token:     tokenOrEnv(remoteToken, "GITLAB_TOKEN"),
		BaseURL:   remoteURL,
		Group:     gitlabGroup,
		User:      remoteUser,
		SkipForks: remoteSkipForks,
	}
	if len(args) == 1 {
		cfg.Project = args[0]
	}

	repos, err := enum.ListGitLabProjects(context.Background(), cfg)
	if err != nil {
		return err
	}
	return scanRepos(cmd, repos, "oauth2", cfg.Token)
}

// scanRepos clones and scans repos, skipping those that fail to clone.
func scanRepos(cmd *cobra.Command, repos []enum.RepoInfo, tokenUser, token string) error {
	if len(repos) == 0 {
		return fmt.Errorf("no repositories found")
	}
	debugf(cmd, "found %d repositories", len(repos))

	config, err := enumConfig("")
	if err != nil {
		return err
	}
	e := enum.NewCloneEnumerator(repos, config)
	e.Git = scanGit
	e.Depth = remoteDepth
	e.TokenUser = tokenUser
	e.Token = token
	e.OnSkip = func(repo enum.RepoInfo, err error) {
		warnf(cmd, "skipping %s: %v", repo.Name, err)
	}
	return scanWith(cmd, e)
}

func tokenOrEnv(token, env string) string {
	if token != "" {
		return token
	}
	return os.Getenv(env)
}
