// Package git lists release tags of a repository with go-git. Local
// repositories are opened in place; remote URLs are cloned into memory.
// Every tag is resolved to its commit SHA and an RFC3339 release date.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariel-frischer/symlog/internal/discovery"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/memory"
)

// debugLogger is a function that logs debug messages when debug mode is enabled.
// By default, it's a no-op. Set it via SetDebugLogger to enable debug output.
var debugLogger func(format string, args ...any)

// SetDebugLogger configures the debug logger for git operations.
// Pass nil to disable debug logging. The logger function should format
// and output the message (similar to log.Printf signature).
func SetDebugLogger(logger func(format string, args ...any)) {
	debugLogger = logger
}

// logDebug logs a debug message if the debug logger is set.
func logDebug(format string, args ...any) {
	if debugLogger != nil {
		debugLogger(format, args...)
	}
}

// DefaultFetchTimeout bounds tag fetches from remotes of a local repository.
const DefaultFetchTimeout = 60 * time.Second

// TagSource lists the tags of one repository. It implements
// discovery.TagLister. The repository is opened or cloned once and reused.
type TagSource struct {
	location string
	fetch    bool

	mu   sync.Mutex
	repo *git.Repository
}

// Option configures a TagSource.
type Option func(*TagSource)

// WithFetch fetches tags from the configured remotes of a local repository
// before listing.
func WithFetch(fetch bool) Option {
	return func(s *TagSource) { s.fetch = fetch }
}

// NewTagSource creates a tag source for a local path or a remote URL. An
// empty location means the current working directory.
func NewTagSource(location string, opts ...Option) *TagSource {
	s := &TagSource{location: location}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTagSourceFromRepository wraps an already opened repository.
func NewTagSourceFromRepository(repo *git.Repository) *TagSource {
	return &TagSource{repo: repo}
}

// IsRemote reports whether a location must be cloned rather than opened.
func IsRemote(location string) bool {
	return strings.Contains(location, "://") || isSSHURL(location)
}

// Repository opens or clones the repository on first use.
func (s *TagSource) Repository(ctx context.Context) (*git.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo != nil {
		return s.repo, nil
	}

	var (
		repo *git.Repository
		err  error
	)
	if IsRemote(s.location) {
		repo, err = cloneInMemory(ctx, s.location)
	} else {
		repo, err = openRepo(s.location)
		if err == nil && s.fetch {
			fetchCtx, cancel := context.WithTimeout(ctx, DefaultFetchTimeout)
			fetchTags(fetchCtx, repo)
			cancel()
		}
	}
	if err != nil {
		return nil, err
	}

	s.repo = repo
	return repo, nil
}

// ListTags returns every tag resolved to a commit, sorted by tag name.
// Tags that do not point at a commit are skipped.
func (s *TagSource) ListTags(ctx context.Context) ([]discovery.TagRef, error) {
	repo, err := s.Repository(ctx)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	var refs []discovery.TagRef
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tr, ok := resolveTag(repo, ref)
		if ok {
			refs = append(refs, tr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Tag < refs[j].Tag })
	logDebug("[git] ListTags: found %d tags", len(refs))
	return refs, nil
}

// resolveTag resolves a tag reference to its commit. Annotated tags carry
// the tagger date; lightweight tags use the committer date.
func resolveTag(repo *git.Repository, ref *plumbing.Reference) (discovery.TagRef, bool) {
	name := ref.Name().Short()

	if tagObj, err := repo.TagObject(ref.Hash()); err == nil {
		commit, err := tagObj.Commit()
		if err != nil {
			logDebug("[git] skipping tag %s: %v", name, err)
			return discovery.TagRef{}, false
		}
		return discovery.TagRef{Tag: name, SHA: commit.Hash.String(), Date: formatDate(tagObj.Tagger.When)}, true
	} else if !errors.Is(err, plumbing.ErrObjectNotFound) {
		logDebug("[git] reading tag object %s: %v", name, err)
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		logDebug("[git] skipping tag %s: not a commit: %v", name, err)
		return discovery.TagRef{}, false
	}
	return discovery.TagRef{Tag: name, SHA: commit.Hash.String(), Date: commitDate(commit)}, true
}

func commitDate(c *object.Commit) string {
	return formatDate(c.Committer.When)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// openRepo opens a git repository at the specified path or current working directory.
// It uses go-git's PlainOpenWithOptions with DetectDotGit enabled to traverse
// up the directory tree to find the repository root.
func openRepo(path string) (*git.Repository, error) {
	if path == "" {
		var err error
		path, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
	}

	logDebug("[git] opening repository at %s", path)

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}

	logDebug("[git] repository opened successfully")
	return repo, nil
}

// cloneInMemory clones a remote repository with all tags into memory
// storage without a worktree.
func cloneInMemory(ctx context.Context, url string) (*git.Repository, error) {
	logDebug("[git] cloning %s into memory", url)

	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL:  url,
		Auth: getAuthForURL(url),
		Tags: git.AllTags,
	})
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", url, err)
	}
	return repo, nil
}

// GitDir returns the .git directory of the repository containing path,
// used to watch tag refs for changes.
func GitDir(path string) (string, error) {
	repo, err := openRepo(path)
	if err != nil {
		return "", err
	}

	fs, ok := repo.Storer.(*filesystem.Storage)
	if !ok {
		return "", fmt.Errorf("repository at %s is not backed by the filesystem", path)
	}
	root := fs.Filesystem().Root()
	logDebug("[git] GitDir: %s", root)
	return root, nil
}

// TagRefPaths returns the files and directories whose changes signal new tags.
func TagRefPaths(gitDir string) []string {
	return []string{
		filepath.Join(gitDir, "refs", "tags"),
		filepath.Join(gitDir, "packed-refs"),
	}
}

// fetchTags fetches tags from all configured remotes. Failures are logged
// and ignored so that offline runs still see local tags.
func fetchTags(ctx context.Context, repo *git.Repository) {
	remotes, err := repo.Remotes()
	if err != nil || len(remotes) == 0 {
		logDebug("[git] fetchTags: no remotes configured")
		return
	}

	for _, remote := range remotes {
		if ctx.Err() != nil {
			logDebug("[git] fetchTags: context cancelled, stopping fetch")
			return
		}
		if err := fetchRemoteTags(ctx, repo, remote); err != nil {
			logDebug("[git] failed to fetch tags from remote '%s': %v", remote.Config().Name, err)
		}
	}
}

// fetchRemoteTags fetches tags from a single remote with authentication.
// Skips SSH remotes when no SSH agent is available.
func fetchRemoteTags(ctx context.Context, repo *git.Repository, remote *git.Remote) error {
	remoteConfig := remote.Config()
	if len(remoteConfig.URLs) == 0 {
		return nil
	}

	url := remoteConfig.URLs[0]
	if isSSHURL(url) && !isSSHAgentAvailable() {
		logDebug("[git] skipping fetch from remote '%s': SSH URL without SSH agent available", remoteConfig.Name)
		return nil
	}

	logDebug("[git] fetching tags from remote '%s' (%s)", remoteConfig.Name, url)
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteConfig.Name,
		Auth:       getAuthForURL(url),
		Tags:       git.AllTags,
		RefSpecs:   []config.RefSpec{"+refs/tags/*:refs/tags/*"},
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// getAuthForURL returns the appropriate authentication method for a remote URL.
// SSH URLs use SSH agent auth, HTTPS URLs use environment credentials.
func getAuthForURL(url string) transport.AuthMethod {
	if isSSHURL(url) {
		auth, err := ssh.NewSSHAgentAuth("git")
		if err != nil {
			logDebug("[git] SSH agent auth failed: %v", err)
			return nil
		}
		return auth
	}

	username := os.Getenv("GIT_USERNAME")
	password := os.Getenv("GIT_PASSWORD")
	if username == "" {
		username = os.Getenv("GITHUB_TOKEN")
		if username != "" {
			password = "" // GitHub token can be used as username with empty password
		}
	}

	if username != "" {
		return &http.BasicAuth{
			Username: username,
			Password: password,
		}
	}

	return nil
}

// isSSHURL checks if a URL is an SSH URL.
// Detects git@ (SCP-style), ssh://, and git+ssh:// schemes.
func isSSHURL(url string) bool {
	return strings.HasPrefix(url, "git@") ||
		strings.HasPrefix(url, "ssh://") ||
		strings.HasPrefix(url, "git+ssh://")
}

// isSSHAgentAvailable checks if an SSH agent is available.
// Returns true only if SSH_AUTH_SOCK is set and non-empty.
func isSSHAgentAvailable() bool {
	sock := strings.TrimSpace(os.Getenv("SSH_AUTH_SOCK"))
	return sock != ""
}
