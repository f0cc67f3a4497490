package autovers

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

var testSignature = &object.Signature{
	Name:  "test",
	Email: "test@example.com",
	When:  time.Now(),
}

var testMainBranch = plumbing.NewBranchReferenceName("main")

// testRepoCreate creates a new in-memory git repository on branch main
func testRepoCreate(t *testing.T) *git.Repository {
	t.Helper()
	repo, err := git.InitWithOptions(memory.NewStorage(), memfs.New(), git.InitOptions{
		DefaultBranch: testMainBranch,
	})
	require.NoError(t, err)
	return repo
}

// testRepoFSCreate creates a new filesystem-based git repository on branch main
func testRepoFSCreate(t *testing.T, path string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: testMainBranch},
	})
	require.NoError(t, err)
	return repo
}

// testCommit writes a file named after the commit and commits it
func testCommit(t *testing.T, repo *git.Repository, name string) plumbing.Hash {
	t.Helper()
	workTree, err := repo.Worktree()
	require.NoError(t, err)

	filename := "file_" + strings.ReplaceAll(name, "/", "_") + ".txt"
	require.NoError(t, writeFile(workTree.Filesystem, filename, "Content for "+name))

	_, err = workTree.Add(filename)
	require.NoError(t, err)

	hash, err := workTree.Commit("Commit for "+name, &git.CommitOptions{Author: testSignature})
	require.NoError(t, err)
	return hash
}

// testCommits adds n commits and returns the last hash
func testCommits(t *testing.T, repo *git.Repository, prefix string, n int) plumbing.Hash {
	t.Helper()
	var hash plumbing.Hash
	for i := 0; i < n; i++ {
		hash = testCommit(t, repo, fmt.Sprintf("%s-%d", prefix, i))
	}
	return hash
}

// testTag creates a lightweight tag
func testTag(t *testing.T, repo *git.Repository, name string, hash plumbing.Hash) {
	t.Helper()
	_, err := repo.CreateTag(name, hash, nil)
	require.NoError(t, err)
}

// testAnnotatedTag creates an annotated tag
func testAnnotatedTag(t *testing.T, repo *git.Repository, name string, hash plumbing.Hash) {
	t.Helper()
	_, err := repo.CreateTag(name, hash, &git.CreateTagOptions{
		Tagger:  testSignature,
		Message: "Release " + name,
	})
	require.NoError(t, err)
}

// testCheckoutBranch switches to branch, creating it at HEAD when create is set
func testCheckoutBranch(t *testing.T, repo *git.Repository, branch string, create bool) {
	t.Helper()
	workTree, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, workTree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
	}))
}

// testCheckoutHash detaches HEAD at hash
func testCheckoutHash(t *testing.T, repo *git.Repository, hash plumbing.Hash) {
	t.Helper()
	workTree, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, workTree.Checkout(&git.CheckoutOptions{Hash: hash}))
}

// testShortHead returns the abbreviated HEAD hash
func testShortHead(t *testing.T, repo *git.Repository) string {
	t.Helper()
	head, err := repo.Head()
	require.NoError(t, err)
	return head.Hash().String()[:shortHashLength]
}

// writeFile writes content to a file in the given filesystem
func writeFile(fs billy.Filesystem, filename, content string) error {
	file, err := fs.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.Write([]byte(content))
	return err
}

var errFakeMissing = errors.New("not found")

// fakeRepository answers repository queries from fixed tables. Missing
// entries fail the query.
type fakeRepository struct {
	short    string
	ref      string
	tagsAt   []string
	describe map[string]string
	commits  map[string]string
	counts   map[string]int
	fork     string
	fileLog  map[string]string
}

func (f *fakeRepository) ShortHash(string) (string, error) {
	if f.short == "" {
		return "", errFakeMissing
	}
	return f.short, nil
}

func (f *fakeRepository) RefName() (string, error) {
	if f.ref == "" {
		return "", errFakeMissing
	}
	return f.ref, nil
}

func (f *fakeRepository) TagsAt(string) ([]string, error) {
	return f.tagsAt, nil
}

func (f *fakeRepository) DescribeTag(rev, _ string) (string, error) {
	if tag, ok := f.describe[rev]; ok {
		return tag, nil
	}
	return "", errFakeMissing
}

func (f *fakeRepository) ResolveCommit(rev string) (string, error) {
	if hash, ok := f.commits[rev]; ok {
		return hash, nil
	}
	return "", errFakeMissing
}

func (f *fakeRepository) CountCommits(from, to string, _ bool) (int, error) {
	if n, ok := f.counts[from+".."+to]; ok {
		return n, nil
	}
	return 0, errFakeMissing
}

func (f *fakeRepository) ForkPoint(string) (string, error) {
	if f.fork == "" {
		return "", errFakeMissing
	}
	return f.fork, nil
}

func (f *fakeRepository) LastCommitFor(path string) (string, error) {
	if hash, ok := f.fileLog[path]; ok {
		return hash, nil
	}
	return "", errFakeMissing
}
