package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	commitTime = time.Date(2026, 1, 10, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	tagTime    = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
)

// initRepo creates a repository with two commits, a lightweight tag on the
// first and an annotated tag on the second.
func initRepo(t *testing.T) (dir string, first, second plumbing.Hash) {
	t.Helper()
	dir = t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	commit := func(content string, when time.Time) plumbing.Hash {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "api.txt"), []byte(content), 0o644))
		_, err := wt.Add("api.txt")
		require.NoError(t, err)
		sig := &object.Signature{Name: "Test", Email: "test@example.com", When: when}
		h, err := wt.Commit("release "+content, &git.CommitOptions{Author: sig, Committer: sig})
		require.NoError(t, err)
		return h
	}

	first = commit("v1", commitTime)
	second = commit("v2", commitTime.Add(24*time.Hour))

	_, err = repo.CreateTag("v1.0.0", first, nil)
	require.NoError(t, err)
	_, err = repo.CreateTag("v1.1.0", second, &git.CreateTagOptions{
		Tagger:  &object.Signature{Name: "Rel", Email: "rel@example.com", When: tagTime},
		Message: "release 1.1.0",
	})
	require.NoError(t, err)

	return dir, first, second
}

func TestTagSource_ListTags(t *testing.T) {
	dir, first, second := initRepo(t)

	src := NewTagSource(dir)
	tags, err := src.ListTags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)

	assert.Equal(t, "v1.0.0", tags[0].Tag)
	assert.Equal(t, first.String(), tags[0].SHA)
	assert.Equal(t, "2026-01-10T08:30:00Z", tags[0].Date, "lightweight tags use the committer date in UTC")

	assert.Equal(t, "v1.1.0", tags[1].Tag)
	assert.Equal(t, second.String(), tags[1].SHA, "annotated tags resolve to the tagged commit")
	assert.Equal(t, "2026-02-01T12:00:00Z", tags[1].Date, "annotated tags use the tagger date")
}

func TestTagSource_ReusesRepository(t *testing.T) {
	dir, _, _ := initRepo(t)
	src := NewTagSource(dir, WithFetch(true))

	a, err := src.Repository(context.Background())
	require.NoError(t, err)
	b, err := src.Repository(context.Background())
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestTagSource_FromRepository(t *testing.T) {
	dir, _, _ := initRepo(t)
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)

	tags, err := NewTagSourceFromRepository(repo).ListTags(context.Background())
	require.NoError(t, err)
	assert.Len(t, tags, 2)
}

func TestTagSource_NotARepository(t *testing.T) {
	_, err := NewTagSource(t.TempDir()).ListTags(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening repository")
}

func TestTagSource_CancelledContext(t *testing.T) {
	dir, _, _ := initRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTagSource(dir).ListTags(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGitDir(t *testing.T) {
	dir, _, _ := initRepo(t)
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	got, err := GitDir(sub)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".git"), got)

	paths := TagRefPaths(got)
	assert.Equal(t, []string{filepath.Join(dir, ".git", "refs", "tags"), filepath.Join(dir, ".git", "packed-refs")}, paths)
}

func TestIsRemote(t *testing.T) {
	tests := map[string]struct {
		location string
		want     bool
	}{
		"https":      {location: "https://github.com/acme/sdk.git", want: true},
		"scp style":  {location: "git@github.com:acme/sdk.git", want: true},
		"ssh scheme": {location: "ssh://git@github.com/acme/sdk.git", want: true},
		"file url":   {location: "file:///srv/repos/sdk", want: true},
		"local path": {location: "/home/dev/sdk", want: false},
		"relative":   {location: "../sdk", want: false},
		"empty":      {location: "", want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRemote(tt.location))
		})
	}
}

func TestIsSSHAgentAvailable(t *testing.T) {
	tests := map[string]struct {
		envValue string
		want     bool
	}{
		"set and non-empty": {envValue: "/tmp/ssh-agent.sock", want: true},
		"empty":             {envValue: "", want: false},
		"whitespace only":   {envValue: "   ", want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("SSH_AUTH_SOCK", tt.envValue)
			assert.Equal(t, tt.want, isSSHAgentAvailable())
		})
	}
}

func TestIsSSHURL(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		url  string
		want bool
	}{
		"git@ format":       {url: "git@github.com:user/repo.git", want: true},
		"ssh:// format":     {url: "ssh://git@github.com/user/repo.git", want: true},
		"git+ssh:// format": {url: "git+ssh://git@github.com/user/repo.git", want: true},
		"https":             {url: "https://github.com/user/repo.git", want: false},
		"local path":        {url: "/path/to/repo", want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isSSHURL(tt.url))
		})
	}
}

func TestGetAuthForURL(t *testing.T) {
	t.Setenv("GIT_USERNAME", "")
	t.Setenv("GIT_PASSWORD", "")
	t.Setenv("GITHUB_TOKEN", "")
	assert.Nil(t, getAuthForURL("https://github.com/acme/sdk.git"))

	t.Setenv("GITHUB_TOKEN", "ghp_token")
	auth := getAuthForURL("https://github.com/acme/sdk.git")
	require.NotNil(t, auth)
	assert.Equal(t, "http-basic-auth", auth.Name())
}

func TestSetDebugLogger(t *testing.T) {
	var lines []string
	SetDebugLogger(func(format string, args ...any) {
		lines = append(lines, format)
	})
	t.Cleanup(func() { SetDebugLogger(nil) })

	dir, _, _ := initRepo(t)
	_, err := NewTagSource(dir).ListTags(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, lines)
}
