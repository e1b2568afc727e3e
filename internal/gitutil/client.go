// Package gitutil provides a client for inspecting the Git repository a
// batch is about to modify.
package gitutil

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
)

// Client handles interacting with Git repositories.
type Client struct {
	Logger *slog.Logger
}

// NewClient returns a new Client instance.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{Logger: logger}
}

// Open opens a Git repository at a given path.
func (c *Client) Open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return repo, nil
}

// IsRepository reports whether path lies inside a Git repository.
func (c *Client) IsRepository(path string) bool {
	_, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	return !errors.Is(err, git.ErrRepositoryNotExists)
}

// HeadSHA returns the current HEAD commit of the repository at path.
func (c *Client) HeadSHA(path string) (string, error) {
	repo, err := c.Open(path)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// DirtyFiles returns the subset of paths (relative to the given directory)
// that carry uncommitted changes. With no paths given, every modified file
// in the worktree is returned, relative to the worktree root. Untracked
// files do not count as dirty.
func (c *Client) DirtyFiles(path string, paths []string) ([]string, error) {
	repo, err := c.Open(path)
	if err != nil {
		return nil, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree status: %w", err)
	}

	// Status keys are relative to the worktree root; when path sits below
	// it, the requested paths must be rebased before filtering.
	base := ""
	if len(paths) > 0 {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(worktree.Filesystem.Root(), absPath)
		if err != nil {
			return nil, fmt.Errorf("failed to locate %s inside the worktree: %w", path, err)
		}
		if rel != "." {
			base = rel
		}
	}
	wanted := make(map[string]string, len(paths))
	for _, p := range paths {
		wanted[filepath.ToSlash(filepath.Join(base, p))] = p
	}

	var dirty []string
	for file, fileStatus := range status {
		if fileStatus.Worktree == git.Untracked {
			continue
		}
		if fileStatus.Worktree == git.Unmodified && fileStatus.Staging == git.Unmodified {
			continue
		}
		if len(wanted) > 0 {
			requested, ok := wanted[file]
			if !ok {
				continue
			}
			dirty = append(dirty, requested)
			continue
		}
		dirty = append(dirty, file)
	}
	sort.Strings(dirty)
	return dirty, nil
}
