// Package git fetches application sources with the git command line.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"appdeck/internal/domain/repository"
	"appdeck/pkg/log"

	giturls "github.com/whilp/git-urls"
)

type runner func(ctx context.Context, dir string, args ...string) (string, error)

// Fetcher implements repository.SourceFetcher with shallow clones.
type Fetcher struct {
	run runner
}

var _ repository.SourceFetcher = (*Fetcher)(nil)

// NewFetcher creates a Fetcher that runs the git binary on PATH.
func NewFetcher() *Fetcher {
	return &Fetcher{run: runGit}
}

// Fetch clones location into dir, or moves an existing checkout to the
// remote head, discarding local changes.
func (f *Fetcher) Fetch(ctx context.Context, location, dir string) (repository.FetchResult, error) {
	if isCheckout(dir) {
		log.Debug("Updating source checkout", "dir", dir)
		steps := [][]string{
			{"remote", "set-url", "origin", location},
			{"fetch", "--depth", "1", "origin", "HEAD"},
			{"reset", "--hard", "FETCH_HEAD"},
			{"clean", "-fd"},
		}
		for _, args := range steps {
			if _, err := f.run(ctx, dir, args...); err != nil {
				return repository.FetchResult{}, err
			}
		}
	} else {
		log.Debug("Cloning source", "location", SafeURL(location), "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			return repository.FetchResult{}, fmt.Errorf("failed to clear %s: %w", dir, err)
		}
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return repository.FetchResult{}, fmt.Errorf("failed to create %s: %w", filepath.Dir(dir), err)
		}
		if _, err := f.run(ctx, "", "clone", "--depth", "1", location, dir); err != nil {
			return repository.FetchResult{}, err
		}
	}

	rev, err := f.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return repository.FetchResult{}, err
	}
	return repository.FetchResult{Dir: dir, Revision: strings.TrimSpace(rev)}, nil
}

// RemoteRevision returns the commit the remote HEAD points to.
func (f *Fetcher) RemoteRevision(ctx context.Context, location string) (string, error) {
	out, err := f.run(ctx, "", "ls-remote", location, "HEAD")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "HEAD" {
			return fields[0], nil
		}
	}
	return "", fmt.Errorf("remote %s did not report HEAD", SafeURL(location))
}

// SafeURL returns location with any password removed, for logs and errors.
func SafeURL(location string) string {
	u, err := giturls.Parse(location)
	if err != nil {
		return fmt.Sprintf("<unparseable: %s>", location)
	}
	if u.User != nil {
		// Parsed URLs carry an empty user when none was given.
		if name := u.User.Username(); name != "" {
			u.User = url.User(name)
		} else {
			u.User = nil
		}
	}
	return u.String()
}

func isCheckout(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("git %s timed out: %w", args[0], ctx.Err())
		}
		return "", fmt.Errorf("git %s: %w (%s)", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
