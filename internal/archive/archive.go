// Package archive keeps a git history of every published page version.
// Postgres stays authoritative; the archive is a durable audit trail that
// also backs named versions and restore.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const contentFile = "content.json"

// Content is the snapshot committed per published version.
type Content struct {
	Title   string          `json:"title"`
	Version int64           `json:"version"`
	Doc     json.RawMessage `json:"doc"`
}

// CommitInfo describes one archived publish.
type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}

// NamedVersion is a tag a user attached to one archived publish.
type NamedVersion struct {
	Name string
	Hash string
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// RecordVersion commits a published version to the page's repository,
// initializing the repository on first publish.
func (s *Service) RecordVersion(pageID string, content Content, author string) (CommitInfo, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(pageID)
	if err != nil {
		return CommitInfo{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return CommitInfo{}, fmt.Errorf("marshal content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.repoPath(pageID), contentFile), append(payload, '\n'), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write content: %w", err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return CommitInfo{}, fmt.Errorf("git add content: %w", err)
	}

	hash, err := worktree.Commit(fmt.Sprintf("Publish v%d", content.Version), &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.quill.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit content: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History lists archived publishes, newest first.
func (s *Service) History(pageID string, limit int) ([]CommitInfo, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(pageID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var history []CommitInfo
	err = iter.ForEach(func(commitObj *object.Commit) error {
		if limit > 0 && len(history) >= limit {
			return errStopIteration
		}
		history = append(history, toCommitInfo(commitObj))
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	return history, nil
}

var errStopIteration = errors.New("stop iteration")

// ContentByHash loads the archived snapshot at a commit.
func (s *Service) ContentByHash(pageID, hash string) (Content, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(pageID))
	if err != nil {
		return Content{}, fmt.Errorf("open repo: %w", err)
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return Content{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return Content{}, fmt.Errorf("read commit: %w", err)
	}
	return readContentFromCommit(commitObj)
}

// TagVersion names an archived publish.
func (s *Service) TagVersion(pageID, hash, name string) error {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(pageID))
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return err
	}
	if _, err := repo.CreateTag(name, resolved, nil); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// ListNamedVersions lists all named publishes for a page.
func (s *Service) ListNamedVersions(pageID string) ([]NamedVersion, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(pageID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}
	defer iter.Close()

	var versions []NamedVersion
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		versions = append(versions, NamedVersion{
			Name: ref.Name().Short(),
			Hash: ref.Hash().String(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tags: %w", err)
	}
	return versions, nil
}

func (s *Service) openOrInit(pageID string) (*git.Repository, error) {
	path := s.repoPath(pageID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(pageID string) string {
	return filepath.Join(s.baseDir, pageID)
}

func (s *Service) pageLock(pageID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[pageID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[pageID] = lock
	}
	return lock
}

func readContentFromCommit(commitObj *object.Commit) (Content, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return Content{}, fmt.Errorf("read %s: %w", contentFile, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return Content{}, fmt.Errorf("read file contents: %w", err)
	}
	var content Content
	if err := json.Unmarshal([]byte(contents), &content); err != nil {
		return Content{}, fmt.Errorf("decode archived content: %w", err)
	}
	return content, nil
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve revision %s: %w", hash, err)
	}
	return *resolved, nil
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String(),
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(input) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('.')
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
