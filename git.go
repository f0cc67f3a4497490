// This file contains code adapted from pulumictl (https://github.com/pulumi/pulumictl)
// which is licensed under the Apache License 2.0. See NOTICE file for full attribution.

package autovers

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

const shortHashLength = 7

var (
	errNoTag         = errors.New("no matching tag found")
	errNoForkPoint   = errors.New("no common ancestor with parent branch")
	errNoFileLog     = errors.New("no commit modified the file")
	errBadTagPattern = errors.New("malformed tag pattern")
)

// GitRepository answers repository queries with go-git.
type GitRepository struct {
	repo *git.Repository
}

// OpenRepository opens a Git repository at the specified path
func OpenRepository(path string) (*GitRepository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotRepository, path, err)
	}
	return NewGitRepository(repo), nil
}

// NewGitRepository wraps an already opened go-git repository.
func NewGitRepository(repo *git.Repository) *GitRepository {
	return &GitRepository{repo: repo}
}

func (g *GitRepository) commit(rev string) (*object.Commit, error) {
	hash, err := g.resolve(rev)
	if err != nil {
		return nil, err
	}

	commit, err := g.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("getting commit object: %w", err)
	}
	return commit, nil
}

func (g *GitRepository) resolve(rev string) (plumbing.Hash, error) {
	if ref, err := g.repo.Tag(rev); err == nil {
		return g.peel(ref)
	}

	hash, err := g.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolving %q: %w", rev, err)
	}
	return *hash, nil
}

// peel returns the commit a tag reference points to, following annotated tags.
func (g *GitRepository) peel(ref *plumbing.Reference) (plumbing.Hash, error) {
	obj, err := g.repo.TagObject(ref.Hash())
	switch err {
	case nil:
		// Annotated tag
		commit, err := obj.Commit()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("peeling tag %s: %w", ref.Name().Short(), err)
		}
		return commit.Hash, nil
	case plumbing.ErrObjectNotFound:
		// Lightweight tag
		return ref.Hash(), nil
	default:
		return plumbing.ZeroHash, err
	}
}

// tagsByCommit maps commits to the names of the tags matching the glob.
func (g *GitRepository) tagsByCommit(match string) (map[plumbing.Hash][]string, error) {
	tags, err := g.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	matches, err := newTagMatcher(match)
	if err != nil {
		return nil, err
	}

	byCommit := make(map[plumbing.Hash][]string)
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}

		name := ref.Name().Short()
		if !matches(name) {
			return nil
		}

		hash, err := g.peel(ref)
		if err != nil {
			return err
		}
		byCommit[hash] = append(byCommit[hash], name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, names := range byCommit {
		sort.Strings(names)
	}
	return byCommit, nil
}

// newTagMatcher compiles a git describe --match glob. As in git, wildcards
// also match "/", so "sdk*" matches "sdk/v1.0.0".
func newTagMatcher(pattern string) (func(string) bool, error) {
	if pattern == "" || pattern == "*" {
		return func(string) bool { return true }, nil
	}

	var expr strings.Builder
	expr.WriteString("^")
	src := []rune(pattern)
	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '*':
			expr.WriteString(".*")
		case '?':
			expr.WriteString(".")
		case '\\':
			if i+1 < len(src) {
				i++
			}
			expr.WriteString(regexp.QuoteMeta(string(src[i])))
		case '[':
			end := i + 1
			if end < len(src) && (src[end] == '!' || src[end] == '^') {
				end++
			}
			if end < len(src) && src[end] == ']' {
				end++
			}
			for end < len(src) && src[end] != ']' {
				end++
			}
			if end >= len(src) {
				return nil, fmt.Errorf("%w: %q", errBadTagPattern, pattern)
			}
			class := string(src[i+1 : end])
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			expr.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i = end
		default:
			expr.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	expr.WriteString("$")

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", errBadTagPattern, pattern, err)
	}
	return re.MatchString, nil
}

// ShortHash returns the abbreviated hash of rev.
func (g *GitRepository) ShortHash(rev string) (string, error) {
	hash, err := g.resolve(rev)
	if err != nil {
		return "", err
	}
	return hash.String()[:shortHashLength], nil
}

// RefName returns the checked out branch, or "HEAD" when detached.
func (g *GitRepository) RefName() (string, error) {
	head, err := g.repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return "HEAD", nil
}

// TagsAt returns the tags pointing at rev.
func (g *GitRepository) TagsAt(rev string) ([]string, error) {
	hash, err := g.resolve(rev)
	if err != nil {
		return nil, err
	}

	byCommit, err := g.tagsByCommit("")
	if err != nil {
		return nil, err
	}
	return byCommit[hash], nil
}

// DescribeTag walks history breadth first from rev and returns the first
// matching tag found.
func (g *GitRepository) DescribeTag(rev, match string) (string, error) {
	commit, err := g.commit(rev)
	if err != nil {
		return "", err
	}

	byCommit, err := g.tagsByCommit(match)
	if err != nil {
		return "", err
	}

	var found string
	walker := object.NewCommitIterBSF(commit, nil, nil)
	err = walker.ForEach(func(c *object.Commit) error {
		if names, ok := byCommit[c.Hash]; ok {
			found = names[0]
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking history: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("%w from %s", errNoTag, rev)
	}
	return found, nil
}

// ResolveCommit returns the full hash of the commit rev points to.
func (g *GitRepository) ResolveCommit(rev string) (string, error) {
	hash, err := g.resolve(rev)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// CountCommits counts commits reachable from to and not from from.
func (g *GitRepository) CountCommits(from, to string, noMerges bool) (int, error) {
	toCommit, err := g.commit(to)
	if err != nil {
		return 0, err
	}

	excluded := make(map[plumbing.Hash]bool)
	if from != "" {
		fromCommit, err := g.commit(from)
		if err != nil {
			return 0, err
		}
		err = object.NewCommitPreorderIter(fromCommit, nil, nil).ForEach(func(c *object.Commit) error {
			excluded[c.Hash] = true
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("walking history: %w", err)
		}
	}

	count := 0
	err = object.NewCommitPreorderIter(toCommit, excluded, nil).ForEach(func(c *object.Commit) error {
		if noMerges && c.NumParents() > 1 {
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking history: %w", err)
	}
	return count, nil
}

// ForkPoint returns the merge base of HEAD with the parent branch, falling
// back to the parent's origin remote tracking branch.
func (g *GitRepository) ForkPoint(parent string) (string, error) {
	head, err := g.commit("HEAD")
	if err != nil {
		return "", err
	}

	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(parent),
		plumbing.NewRemoteReferenceName("origin", parent),
	}
	for _, name := range candidates {
		ref, err := g.repo.Reference(name, true)
		if err != nil {
			continue
		}
		parentCommit, err := g.repo.CommitObject(ref.Hash())
		if err != nil {
			continue
		}
		bases, err := head.MergeBase(parentCommit)
		if err != nil || len(bases) == 0 {
			continue
		}
		return bases[0].Hash.String(), nil
	}

	return "", fmt.Errorf("%w %q", errNoForkPoint, parent)
}

// LastCommitFor returns the last commit reachable from HEAD that modified
// path. Absolute paths are taken relative to the work tree root.
func (g *GitRepository) LastCommitFor(file string) (string, error) {
	head, err := g.resolve("HEAD")
	if err != nil {
		return "", err
	}

	if filepath.IsAbs(file) {
		workTree, err := g.repo.Worktree()
		if err != nil {
			return "", fmt.Errorf("getting worktree: %w", err)
		}
		rel, err := filepath.Rel(workTree.Filesystem.Root(), file)
		if err != nil {
			return "", fmt.Errorf("locating %s in worktree: %w", file, err)
		}
		file = rel
	}
	file = filepath.ToSlash(file)

	iter, err := g.repo.Log(&git.LogOptions{From: head, FileName: &file})
	if err != nil {
		return "", fmt.Errorf("reading log for %s: %w", file, err)
	}
	defer iter.Close()

	commit, err := iter.Next()
	if errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %s", errNoFileLog, file)
	}
	if err != nil {
		return "", fmt.Errorf("reading log for %s: %w", file, err)
	}
	return commit.Hash.String(), nil
}
