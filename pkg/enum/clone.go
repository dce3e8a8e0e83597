package enum

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// RepoInfo names one remote repository to clone and scan.
type RepoInfo struct {
	Name          string // display name, e.g. "acme/site"
	CloneURL      string
	DefaultBranch string
}

// CloneEnumerator clones repositories one at a time, enumerates each
// checkout and removes it again. Blob provenance names the repository, not
// the temporary checkout.
type CloneEnumerator struct {
	repos  []RepoInfo
	config Config

	// Git enumerates the HEAD commit tree instead of the working tree.
	Git bool

	// Depth limits the fetched history (0 = full clone).
	Depth int

	// TokenUser and Token authenticate HTTP clones when Token is set.
	TokenUser string
	Token     string

	// OnSkip receives repositories that could not be cloned. When nil, a
	// failed clone ends enumeration.
	OnSkip func(repo RepoInfo, err error)
}

// NewCloneEnumerator creates a clone enumerator. config.Root is ignored.
func NewCloneEnumerator(repos []RepoInfo, config Config) *CloneEnumerator {
	return &CloneEnumerator{repos: repos, config: config, TokenUser: "oauth2"}
}

// Enumerate clones and enumerates each repository in order.
func (e *CloneEnumerator) Enumerate(ctx context.Context, callback BlobFunc) error {
	for _, repo := range e.repos {
		if err := ctx.Err(); err != nil {
			return err
		}

		tmp, err := os.MkdirTemp("", "betwixt-clone-*")
		if err != nil {
			return fmt.Errorf("creating clone directory: %w", err)
		}
		err = e.cloneAndEnumerate(ctx, repo, filepath.Join(tmp, "repo"), callback)
		os.RemoveAll(tmp)

		var ce *cloneError
		if errors.As(err, &ce) && e.OnSkip != nil {
			e.OnSkip(repo, ce.err)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type cloneError struct {
	repo string
	err  error
}

func (e *cloneError) Error() string { return fmt.Sprintf("cloning %s: %v", e.repo, e.err) }
func (e *cloneError) Unwrap() error { return e.err }

func (e *CloneEnumerator) cloneAndEnumerate(ctx context.Context, repo RepoInfo, dir string, callback BlobFunc) error {
	opts := &git.CloneOptions{
		URL:          repo.CloneURL,
		Depth:        e.Depth,
		SingleBranch: e.Depth > 0,
	}
	if e.Token != "" && isHTTPURL(repo.CloneURL) {
		opts.Auth = &githttp.BasicAuth{Username: e.TokenUser, Password: e.Token}
	}
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return &cloneError{repo: repo.Name, err: err}
	}

	cfg := e.config
	cfg.Root = dir

	var err error
	if e.Git {
		err = NewGitEnumerator(cfg).Enumerate(ctx, func(content []byte, blobID types.BlobID, prov types.Provenance) error {
			if gp, ok := prov.(types.GitProvenance); ok {
				gp.RepoPath = repo.Name
				prov = gp
			}
			return callback(content, blobID, prov)
		})
	} else {
		err = NewFilesystemEnumerator(cfg).Enumerate(ctx, func(content []byte, blobID types.BlobID, prov types.Provenance) error {
			switch p := prov.(type) {
			case types.FileProvenance:
				prov = types.GitProvenance{RepoPath: repo.Name, BlobPath: checkoutPath(dir, p.FilePath)}
			case types.ArchiveProvenance:
				p.ArchivePath = repo.Name + ":" + checkoutPath(dir, p.ArchivePath)
				prov = p
			}
			return callback(content, blobID, prov)
		})
	}
	if err != nil {
		return fmt.Errorf("enumerating %s: %w", repo.Name, err)
	}
	return nil
}

// checkoutPath returns path relative to the checkout root, slash-separated.
func checkoutPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func isHTTPURL(u string) bool {
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
}
