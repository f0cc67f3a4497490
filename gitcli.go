package autovers

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/blang/semver"
)

// MinGitVersion is the oldest git release CommandRepository supports.
const MinGitVersion = "2.5.0"

var supportedGit = semver.MustParseRange(">=" + MinGitVersion)

// DefaultCommandTimeout bounds each git invocation.
const DefaultCommandTimeout = 10 * time.Second

// CommandRepository answers repository queries by running the git binary.
type CommandRepository struct {
	dir     string
	timeout time.Duration
}

// NewCommandRepository runs git in dir. A zero timeout uses DefaultCommandTimeout.
func NewCommandRepository(dir string, timeout time.Duration) *CommandRepository {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &CommandRepository{dir: dir, timeout: timeout}
}

func (c *CommandRepository) git(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
		}
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// CheckEnvironment verifies that git is recent enough and that the
// directory is inside a work tree.
func (c *CommandRepository) CheckEnvironment() error {
	out, err := c.git("--version")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedGit, err)
	}

	installed, ok := Parse(out)
	if !ok {
		return fmt.Errorf("%w: cannot read version from %q", ErrUnsupportedGit, out)
	}
	tool, err := semver.Parse(installed.Format(Format{Short: true}))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedGit, err)
	}
	if !supportedGit(tool) {
		return fmt.Errorf("%w: %s, minimal git version: %s", ErrUnsupportedGit, tool, MinGitVersion)
	}

	root, err := c.git("rev-parse", "--show-toplevel")
	if err != nil || root == "" {
		return fmt.Errorf("%w: %s", ErrNotRepository, c.dir)
	}
	return nil
}

// ShortHash returns the abbreviated hash of rev.
func (c *CommandRepository) ShortHash(rev string) (string, error) {
	return c.git("-c", "log.showSignature=false", "log", "--format=format:%h", "-n", "1", rev)
}

// RefName returns the checked out branch, or "HEAD" when detached.
func (c *CommandRepository) RefName() (string, error) {
	return c.git("rev-parse", "--abbrev-ref", "HEAD")
}

// TagsAt returns the tags pointing at rev.
func (c *CommandRepository) TagsAt(rev string) ([]string, error) {
	out, err := c.git("tag", "--points-at", rev)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// DescribeTag returns the nearest tag reachable from rev matching the glob.
func (c *CommandRepository) DescribeTag(rev, match string) (string, error) {
	if match == "" {
		match = DefaultTagMatch
	}
	return c.git("describe", "--tags", "--match="+match, "--abbrev=0", rev)
}

// ResolveCommit returns the full hash of the commit rev points to.
func (c *CommandRepository) ResolveCommit(rev string) (string, error) {
	return c.git("rev-list", "-n", "1", rev)
}

// CountCommits counts commits in from..to, or all commits reachable from
// to when from is empty.
func (c *CommandRepository) CountCommits(from, to string, noMerges bool) (int, error) {
	args := []string{"rev-list", "--count", "--full-history"}
	if noMerges {
		args = append(args, "--no-merges")
	}
	if from == "" {
		args = append(args, to)
	} else {
		args = append(args, from+".."+to)
	}

	out, err := c.git(args...)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parsing commit count %q: %w", out, err)
	}
	return n, nil
}

// ForkPoint uses the parent branch reflog, falling back to the merge base
// with the parent branch and then with origin/<parent>.
func (c *CommandRepository) ForkPoint(parent string) (string, error) {
	out, err := c.git("merge-base", "--fork-point", parent)
	if err == nil && out != "" {
		return out, nil
	}
	out, err = c.git("merge-base", "HEAD", parent)
	if err == nil && out != "" {
		return out, nil
	}
	return c.git("merge-base", "HEAD", "origin/"+parent)
}

// LastCommitFor returns the last commit that modified path.
func (c *CommandRepository) LastCommitFor(path string) (string, error) {
	out, err := c.git("-c", "log.showSignature=false", "log", "-n", "1", "--format=format:%H", "--", path)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("%w: %s", errNoFileLog, path)
	}
	return out, nil
}
