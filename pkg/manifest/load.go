// pkg/manifest/load.go
package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Getter fetches a small document over the network
type Getter interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// Load reads a dependency document from source. A source that names an
// existing local file is read from disk; "git+<repo>#<ref>:<path>" is read
// from a shallow clone; anything else is fetched with getter.
func Load(ctx context.Context, source string, getter Getter) (*Document, error) {
	if source == "" {
		source = DefaultSource
	}

	data, name, err := read(ctx, source, getter)
	if err != nil {
		return nil, err
	}

	doc, err := Decode(data, FormatFor(name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	doc.Source = source
	return doc, nil
}

func read(ctx context.Context, source string, getter Getter) ([]byte, string, error) {
	if strings.HasPrefix(source, "git+") {
		gs, err := ParseGitSource(source)
		if err != nil {
			return nil, "", err
		}
		data, err := gs.Read(ctx)
		return data, gs.Path, err
	}

	if fi, err := os.Stat(source); err == nil && !fi.IsDir() {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", source, err)
		}
		return data, source, nil
	}

	if getter == nil {
		return nil, "", fmt.Errorf("%s is not a local file and no network client is configured", source)
	}
	data, err := getter.GetBytes(ctx, source)
	if err != nil {
		return nil, "", fmt.Errorf("fetching dependencies: %w", err)
	}
	return data, source, nil
}

// GitSource points at a document inside a git repository
type GitSource struct {
	Repo string
	Ref  string
	Path string
}

// ParseGitSource parses "git+<repo>#<ref>:<path>". The ref may be empty
// ("git+<repo>#:<path>") to use the remote's default branch.
func ParseGitSource(source string) (*GitSource, error) {
	rest, ok := strings.CutPrefix(source, "git+")
	if !ok {
		return nil, fmt.Errorf("%q is not a git source", source)
	}

	i := strings.LastIndex(rest, "#")
	if i < 0 {
		return nil, fmt.Errorf("git source %q: expected <repo>#<ref>:<path>", source)
	}
	repo, spec := rest[:i], rest[i+1:]

	ref, file, ok := strings.Cut(spec, ":")
	if !ok || repo == "" || strings.TrimSpace(file) == "" {
		return nil, fmt.Errorf("git source %q: expected <repo>#<ref>:<path>", source)
	}
	return &GitSource{Repo: repo, Ref: ref, Path: file}, nil
}

// Read shallow-clones the repository into a temporary directory and returns
// the document's contents. The clone is removed afterwards.
func (g *GitSource) Read(ctx context.Context) ([]byte, error) {
	tempDir, err := os.MkdirTemp("", "refdata-clone-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := g.clone(ctx, tempDir); err != nil {
		return nil, err
	}

	target, err := securejoin.SecureJoin(tempDir, g.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", g.Path, err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("reading %s from %s: %w", g.Path, g.Repo, err)
	}
	return data, nil
}

func (g *GitSource) clone(ctx context.Context, dir string) error {
	opts := &git.CloneOptions{
		URL:          g.Repo,
		SingleBranch: true,
		Depth:        1,
	}
	if g.Ref == "" {
		if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
			return fmt.Errorf("git clone %s: %w", g.Repo, err)
		}
		return nil
	}

	// The ref may name a branch or a tag.
	opts.ReferenceName = plumbing.NewBranchReferenceName(g.Ref)
	_, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err == nil {
		return nil
	}
	branchErr := err

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("resetting clone dir: %w", err)
	}
	opts.ReferenceName = plumbing.NewTagReferenceName(g.Ref)
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return fmt.Errorf("git clone %s at %s: %w", g.Repo, g.Ref, errors.Join(branchErr, err))
	}
	return nil
}
