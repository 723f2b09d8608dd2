// Package app holds the service layer and HTTP surface. The service wires
// the store, the anchor resolver, the archive, search indexing and the event
// hub into the page lifecycle.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"quill/api/internal/anchor"
	"quill/api/internal/archive"
	"quill/api/internal/config"
	"quill/api/internal/doc"
	"quill/api/internal/export"
	"quill/api/internal/notify"
	"quill/api/internal/search"
	"quill/api/internal/store"
	"quill/api/internal/util"
)

// PageContentInput is the editor payload for a page body. Doc is the
// structured document JSON; PlainText is accepted as a convenience and is
// wrapped into paragraphs.
type PageContentInput struct {
	Doc       json.RawMessage `json:"doc,omitempty"`
	PlainText string          `json:"plainText,omitempty"`
}

type CreatePageInput struct {
	WikiID   string           `json:"wikiId"`
	ParentID string           `json:"parentId"`
	Title    string           `json:"title"`
	Content  PageContentInput `json:"content"`
}

type SaveDraftInput struct {
	BaseVersion int64            `json:"baseVersion"`
	Title       string           `json:"title"`
	Content     PageContentInput `json:"content"`
}

type PublishInput struct {
	BaseVersion int64            `json:"baseVersion"`
	Title       string           `json:"title"`
	Content     PageContentInput `json:"content"`
	// Force republishes on top of whatever the current version is instead
	// of failing the compare-and-swap. The user has seen the conflict
	// payload and chosen to override.
	Force bool `json:"force"`
}

type CreateThreadInput struct {
	Body  string     `json:"body"`
	Range *doc.Range `json:"range"`
}

type ThreadReplyInput struct {
	Body string `json:"body"`
}

type Service struct {
	cfg     config.Config
	store   store.Store
	archive *archive.Service
	search  *search.Service
	hub     *notify.Hub
	export  *export.Service
	logger  zerolog.Logger

	now func() time.Time
}

func NewService(cfg config.Config, st store.Store, arc *archive.Service, se *search.Service, hub *notify.Hub, logger zerolog.Logger) *Service {
	s := &Service{
		cfg:     cfg,
		store:   st,
		archive: arc,
		search:  se,
		hub:     hub,
		logger:  logger,
		now:     time.Now,
	}
	s.export = export.NewService(&exportStore{service: s})
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── Pages ──

func (s *Service) CreatePage(ctx context.Context, input CreatePageInput, userID string) (map[string]any, error) {
	title, err := s.validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	document, err := parseContent(input.Content)
	if err != nil {
		return nil, err
	}
	raw, err := document.Marshal()
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	now := s.now()
	page := store.Page{
		ID:             util.NewID("page"),
		WikiID:         input.WikiID,
		ParentID:       input.ParentID,
		Title:          title,
		CurrentVersion: 1,
		CreatedBy:      userID,
		UpdatedBy:      userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	initial := store.PageVersion{
		PageID:      page.ID,
		Version:     1,
		Title:       title,
		Content:     raw,
		SearchText:  document.PlainText(),
		PublishedBy: userID,
		PublishedAt: now,
	}
	if err := s.store.CreatePage(ctx, page, initial); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	s.recordArchive(page.ID, initial, userID)
	s.indexVersion(page, initial)

	return map[string]any{"page": pagePayload(page)}, nil
}

func (s *Service) GetPage(ctx context.Context, pageID string) (map[string]any, error) {
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	version, err := s.store.GetCurrentVersion(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"page":    pagePayload(page),
		"version": versionPayload(version),
	}, nil
}

func (s *Service) ListPages(ctx context.Context, wikiID string) (map[string]any, error) {
	pages, err := s.store.ListPages(ctx, wikiID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		items = append(items, pagePayload(p))
	}
	return map[string]any{"pages": items}, nil
}

func (s *Service) DeletePage(ctx context.Context, pageID string) error {
	if err := s.store.DeletePage(ctx, pageID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.RemovePage(pageID)
	}
	return nil
}

// ── Drafts ──

// EnterEditMode returns the user's existing draft for the page, seeding one
// from the current published version when none exists. Each (page, user) pair
// owns exactly one draft.
func (s *Service) EnterEditMode(ctx context.Context, pageID, userID string) (map[string]any, error) {
	draft, err := s.store.GetDraft(ctx, pageID, userID)
	if err == nil {
		return map[string]any{"draft": draftPayload(draft), "seeded": false}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	current, err := s.store.GetCurrentVersion(ctx, pageID)
	if err != nil {
		return nil, err
	}
	draft = store.Draft{
		PageID:      pageID,
		UserID:      userID,
		BaseVersion: current.Version,
		Title:       current.Title,
		Content:     current.Content,
		LastSavedAt: s.now(),
	}
	if err := s.store.UpsertDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("seed draft: %w", err)
	}
	return map[string]any{"draft": draftPayload(draft), "seeded": true}, nil
}

// SaveDraft persists the user's working copy. Transient store failures are
// retried with backoff so an autosave blip does not lose editor state.
func (s *Service) SaveDraft(ctx context.Context, pageID, userID string, input SaveDraftInput) (map[string]any, error) {
	title, err := s.validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	document, err := parseContent(input.Content)
	if err != nil {
		return nil, err
	}
	raw, err := document.Marshal()
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	if _, err := s.store.GetPage(ctx, pageID); err != nil {
		return nil, err
	}

	draft := store.Draft{
		PageID:      pageID,
		UserID:      userID,
		BaseVersion: input.BaseVersion,
		Title:       title,
		Content:     raw,
		LastSavedAt: s.now(),
	}

	var saveErr error
	for attempt := 0; attempt <= s.cfg.AutosaveRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cfg.AutosaveBackoff * time.Duration(attempt)):
			}
		}
		if saveErr = s.store.UpsertDraft(ctx, draft); saveErr == nil {
			break
		}
		s.logger.Warn().Err(saveErr).Str("page_id", pageID).Int("attempt", attempt+1).Msg("draft save failed")
	}
	if saveErr != nil {
		return nil, fmt.Errorf("save draft: %w", saveErr)
	}
	return map[string]any{"draft": draftPayload(draft)}, nil
}

func (s *Service) GetDraft(ctx context.Context, pageID, userID string) (map[string]any, error) {
	draft, err := s.store.GetDraft(ctx, pageID, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"draft": draftPayload(draft)}, nil
}

func (s *Service) DiscardDraft(ctx context.Context, pageID, userID string) error {
	return s.store.DeleteDraft(ctx, pageID, userID)
}

// RebaseDraft moves a stale draft onto the current published version without
// touching its edited title or content. The caller merges visually; the
// server only moves the base pointer.
func (s *Service) RebaseDraft(ctx context.Context, pageID, userID string) (map[string]any, error) {
	draft, err := s.store.GetDraft(ctx, pageID, userID)
	if err != nil {
		return nil, err
	}
	current, err := s.store.GetCurrentVersion(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if draft.BaseVersion == current.Version {
		return map[string]any{"draft": draftPayload(draft), "rebased": false}, nil
	}
	draft.BaseVersion = current.Version
	draft.LastSavedAt = s.now()
	if err := s.store.UpsertDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("rebase draft: %w", err)
	}
	return map[string]any{"draft": draftPayload(draft), "rebased": true}, nil
}

// ── Publish ──

// Publish commits a new version on top of BaseVersion. The page head is
// advanced by compare-and-swap: if someone else published since the caller's
// base, the call fails with a conflict payload carrying the current version
// so the editor can merge, unless Force is set.
func (s *Service) Publish(ctx context.Context, pageID, userID string, input PublishInput) (map[string]any, error) {
	title, err := s.validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	newDoc, err := parseContent(input.Content)
	if err != nil {
		return nil, err
	}
	raw, err := newDoc.Marshal()
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}

	base := input.BaseVersion
	if input.Force {
		base = page.CurrentVersion
	} else if base != page.CurrentVersion {
		return nil, s.conflictError(ctx, pageID, page)
	}

	oldDoc := s.loadVersionDoc(ctx, pageID, base)
	updates, resolutions, err := s.resolveAnchors(ctx, pageID, oldDoc, newDoc)
	if err != nil {
		return nil, err
	}

	version := store.PageVersion{
		PageID:        pageID,
		Version:       base + 1,
		ParentVersion: base,
		Title:         title,
		Content:       raw,
		SearchText:    newDoc.PlainText(),
		PublishedBy:   userID,
		PublishedAt:   s.now(),
	}

	if err := s.store.PublishVersion(ctx, version, updates, userID); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			fresh, freshErr := s.store.GetPage(ctx, pageID)
			if freshErr != nil {
				return nil, freshErr
			}
			return nil, s.conflictError(ctx, pageID, fresh)
		}
		return nil, fmt.Errorf("publish version: %w", err)
	}

	page.Title = title
	page.CurrentVersion = version.Version
	page.UpdatedBy = userID

	s.recordArchive(pageID, version, userID)
	s.indexVersion(page, version)
	if s.hub != nil {
		s.hub.Publish(notify.Event{
			PageID:  pageID,
			Version: version.Version,
			Title:   title,
			Content: json.RawMessage(raw),
		})
	}

	return map[string]any{
		"version": versionPayload(version),
		"anchors": resolutionPayloads(resolutions),
	}, nil
}

// conflictError builds the 409 payload: the caller's base is stale, so hand
// back everything needed to show a merge view.
func (s *Service) conflictError(ctx context.Context, pageID string, page store.Page) error {
	details := map[string]any{
		"currentVersion": page.CurrentVersion,
		"lastEditedBy":   page.UpdatedBy,
		"lastEditedAt":   page.UpdatedAt,
	}
	if current, err := s.store.GetCurrentVersion(ctx, pageID); err == nil {
		details["currentTitle"] = current.Title
		details["currentContent"] = json.RawMessage(current.Content)
	}
	return domainError(http.StatusConflict, "VERSION_CONFLICT",
		"Page was modified since your base version", details)
}

func (s *Service) loadVersionDoc(ctx context.Context, pageID string, version int64) *doc.Document {
	stored, err := s.store.GetVersion(ctx, pageID, version)
	if err != nil {
		return nil
	}
	parsed, err := doc.Parse(stored.Content)
	if err != nil {
		s.logger.Warn().Err(err).Str("page_id", pageID).Int64("version", version).Msg("stored version content unparseable")
		return nil
	}
	return parsed
}

func (s *Service) resolveAnchors(ctx context.Context, pageID string, oldDoc, newDoc *doc.Document) ([]store.AnchorUpdate, []anchor.Resolution, error) {
	stored, err := s.store.ListAnchors(ctx, pageID)
	if err != nil {
		return nil, nil, fmt.Errorf("list anchors: %w", err)
	}
	if len(stored) == 0 {
		return nil, nil, nil
	}

	anchors := make([]anchor.Anchor, 0, len(stored))
	for _, a := range stored {
		anchors = append(anchors, anchor.Anchor{
			ID:               a.ID,
			PageID:           a.PageID,
			CreatedInVersion: a.CreatedInVersion,
			TextSnapshot:     a.TextSnapshot,
			Range:            a.Range,
		})
	}

	resolutions := anchor.Resolve(oldDoc, newDoc, anchors)
	updates := make([]store.AnchorUpdate, 0, len(resolutions))
	for _, res := range resolutions {
		updates = append(updates, store.AnchorUpdate{
			AnchorID:     res.AnchorID,
			Range:        res.Range,
			OrphanReason: res.Reason,
		})
	}
	return updates, resolutions, nil
}

// ── Versions and history ──

func (s *Service) ListVersions(ctx context.Context, pageID string, limit int) (map[string]any, error) {
	versions, err := s.store.ListVersions(ctx, pageID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		items = append(items, versionMetaPayload(v))
	}
	return map[string]any{"versions": items}, nil
}

func (s *Service) GetVersion(ctx context.Context, pageID string, version int64) (map[string]any, error) {
	v, err := s.store.GetVersion(ctx, pageID, version)
	if err != nil {
		return nil, err
	}
	return map[string]any{"version": versionPayload(v)}, nil
}

// RestoreVersion republishes an old version's content as a new head version.
// It goes through the normal publish path, so anchors re-resolve and viewers
// get the update; history is never rewritten.
func (s *Service) RestoreVersion(ctx context.Context, pageID string, version int64, userID string) (map[string]any, error) {
	old, err := s.store.GetVersion(ctx, pageID, version)
	if err != nil {
		return nil, err
	}
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return s.Publish(ctx, pageID, userID, PublishInput{
		BaseVersion: page.CurrentVersion,
		Title:       old.Title,
		Content:     PageContentInput{Doc: json.RawMessage(old.Content)},
	})
}

func (s *Service) History(ctx context.Context, pageID string, limit int) (map[string]any, error) {
	if s.archive == nil {
		return s.ListVersions(ctx, pageID, limit)
	}
	commits, err := s.archive.History(pageID, limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	items := make([]map[string]any, 0, len(commits))
	for _, c := range commits {
		items = append(items, map[string]any{
			"hash":      c.Hash,
			"message":   c.Message,
			"author":    c.Author,
			"createdAt": c.CreatedAt,
		})
	}
	return map[string]any{"history": items}, nil
}

func (s *Service) TagVersion(ctx context.Context, pageID, hash, name string) error {
	if s.archive == nil {
		return domainError(http.StatusNotImplemented, "ARCHIVE_DISABLED", "Version archive is not configured", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if err := s.archive.TagVersion(pageID, hash, name); err != nil {
		return fmt.Errorf("tag version: %w", err)
	}
	return nil
}

func (s *Service) ListNamedVersions(ctx context.Context, pageID string) (map[string]any, error) {
	if s.archive == nil {
		return map[string]any{"namedVersions": []map[string]any{}}, nil
	}
	versions, err := s.archive.ListNamedVersions(pageID)
	if err != nil {
		return nil, fmt.Errorf("list named versions: %w", err)
	}
	items := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		items = append(items, map[string]any{"name": v.Name, "hash": v.Hash})
	}
	return map[string]any{"namedVersions": items}, nil
}

// ── Anchors and threads ──

// CreateThread anchors a comment thread to a text range in the current
// published version. The covered substring is snapshotted at creation and
// becomes the anchor's ground truth for all future re-resolution.
func (s *Service) CreateThread(ctx context.Context, pageID, userID string, input CreateThreadInput) (map[string]any, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	if input.Range == nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "range is required", nil)
	}

	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	current, err := s.store.GetCurrentVersion(ctx, pageID)
	if err != nil {
		return nil, err
	}
	document, err := doc.Parse(current.Content)
	if err != nil {
		return nil, fmt.Errorf("parse current version: %w", err)
	}

	snapshot, ok := doc.NewIndex(document).Slice(input.Range)
	if !ok || snapshot == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "INVALID_RANGE",
			"Range does not address text in the current version", nil)
	}

	now := s.now()
	a := store.Anchor{
		ID:               util.NewAnchorID(),
		PageID:           pageID,
		CreatedInVersion: current.Version,
		TextSnapshot:     snapshot,
		Range:            input.Range,
		CreatedBy:        userID,
		CreatedAt:        now,
	}
	if err := s.store.InsertAnchor(ctx, a); err != nil {
		return nil, fmt.Errorf("insert anchor: %w", err)
	}

	thread := store.Thread{
		ID:        util.NewID("thread"),
		PageID:    pageID,
		AnchorID:  a.ID,
		CreatedBy: userID,
		CreatedAt: now,
	}
	root := store.Message{
		ID:        util.NewID("msg"),
		ThreadID:  thread.ID,
		Author:    userID,
		Body:      body,
		CreatedAt: now,
	}
	if err := s.store.InsertThread(ctx, thread, root); err != nil {
		return nil, fmt.Errorf("insert thread: %w", err)
	}

	if s.search != nil {
		s.search.IndexThread(search.ThreadRecord{
			ID:       thread.ID,
			PageID:   pageID,
			WikiID:   page.WikiID,
			Body:     body,
			Snapshot: snapshot,
		})
	}

	return map[string]any{
		"thread": threadPayload(thread, &a, []store.Message{root}),
	}, nil
}

func (s *Service) ListThreads(ctx context.Context, pageID string) (map[string]any, error) {
	threads, err := s.store.ListThreads(ctx, pageID)
	if err != nil {
		return nil, err
	}
	anchors, err := s.store.ListAnchors(ctx, pageID)
	if err != nil {
		return nil, err
	}
	anchorsByID := make(map[string]store.Anchor, len(anchors))
	for _, a := range anchors {
		anchorsByID[a.ID] = a
	}

	items := make([]map[string]any, 0, len(threads))
	for _, t := range threads {
		messages, err := s.store.ListMessages(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		var a *store.Anchor
		if found, ok := anchorsByID[t.AnchorID]; ok {
			a = &found
		}
		items = append(items, threadPayload(t, a, messages))
	}
	return map[string]any{"threads": items}, nil
}

func (s *Service) ReplyToThread(ctx context.Context, threadID, userID string, input ThreadReplyInput) (map[string]any, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	if _, err := s.store.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	m := store.Message{
		ID:        util.NewID("msg"),
		ThreadID:  threadID,
		Author:    userID,
		Body:      body,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return map[string]any{"message": messagePayload(m)}, nil
}

func (s *Service) SetThreadResolved(ctx context.Context, threadID string, resolved bool) error {
	if _, err := s.store.GetThread(ctx, threadID); err != nil {
		return err
	}
	return s.store.SetThreadResolved(ctx, threadID, resolved)
}

// DeleteThread removes the thread with its messages and anchor. Deleting the
// thread is the only way an anchor id ever disappears; orphaned anchors are
// otherwise kept so their threads stay reachable.
func (s *Service) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := s.store.GetThread(ctx, threadID); err != nil {
		return err
	}
	if err := s.store.DeleteThread(ctx, threadID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.RemoveThread(threadID)
	}
	return nil
}

func (s *Service) ListAnchors(ctx context.Context, pageID string) (map[string]any, error) {
	anchors, err := s.store.ListAnchors(ctx, pageID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(anchors))
	for _, a := range anchors {
		items = append(items, anchorPayload(a))
	}
	return map[string]any{"anchors": items}, nil
}

// ── Search and export ──

func (s *Service) Search(ctx context.Context, q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{Query: q.Text, Results: []search.Result{}}, nil
	}
	return s.search.Search(q)
}

func (s *Service) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	return s.export.Export(req)
}

// ── Background hooks ──

// recordArchive commits the published version to the git archive. Archive
// failures never fail a publish; Postgres already holds the truth.
func (s *Service) recordArchive(pageID string, v store.PageVersion, userID string) {
	if s.archive == nil {
		return
	}
	go func() {
		_, err := s.archive.RecordVersion(pageID, archive.Content{
			Title:   v.Title,
			Version: v.Version,
			Doc:     json.RawMessage(v.Content),
		}, userID)
		if err != nil {
			s.logger.Warn().Err(err).Str("page_id", pageID).Int64("version", v.Version).Msg("archive record failed")
		}
	}()
}

func (s *Service) indexVersion(page store.Page, v store.PageVersion) {
	if s.search == nil {
		return
	}
	s.search.IndexPage(search.PageRecord{
		ID:      page.ID,
		WikiID:  page.WikiID,
		Title:   v.Title,
		Text:    v.SearchText,
		Version: v.Version,
	})
}

// ── Validation ──

func (s *Service) validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if utf8.RuneCountInString(title) > s.cfg.MaxTitleLength {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("title exceeds %d characters", s.cfg.MaxTitleLength), nil)
	}
	return title, nil
}

func parseContent(input PageContentInput) (*doc.Document, error) {
	if len(input.Doc) > 0 {
		parsed, err := doc.Parse(input.Doc)
		if err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		}
		return parsed, nil
	}
	return doc.FromPlainText(input.PlainText), nil
}

// ── Payloads ──

func pagePayload(p store.Page) map[string]any {
	return map[string]any{
		"id":             p.ID,
		"wikiId":         p.WikiID,
		"parentId":       p.ParentID,
		"title":          p.Title,
		"currentVersion": p.CurrentVersion,
		"createdBy":      p.CreatedBy,
		"updatedBy":      p.UpdatedBy,
		"createdAt":      p.CreatedAt,
		"updatedAt":      p.UpdatedAt,
	}
}

func versionPayload(v store.PageVersion) map[string]any {
	payload := versionMetaPayload(v)
	payload["content"] = json.RawMessage(v.Content)
	return payload
}

func versionMetaPayload(v store.PageVersion) map[string]any {
	return map[string]any{
		"pageId":        v.PageID,
		"version":       v.Version,
		"parentVersion": v.ParentVersion,
		"title":         v.Title,
		"publishedBy":   v.PublishedBy,
		"publishedAt":   v.PublishedAt,
	}
}

func draftPayload(d store.Draft) map[string]any {
	return map[string]any{
		"pageId":      d.PageID,
		"userId":      d.UserID,
		"baseVersion": d.BaseVersion,
		"title":       d.Title,
		"content":     json.RawMessage(d.Content),
		"lastSavedAt": d.LastSavedAt,
	}
}

func anchorPayload(a store.Anchor) map[string]any {
	payload := map[string]any{
		"id":               a.ID,
		"pageId":           a.PageID,
		"createdInVersion": a.CreatedInVersion,
		"textSnapshot":     a.TextSnapshot,
		"orphaned":         a.Range == nil,
		"createdBy":        a.CreatedBy,
		"createdAt":        a.CreatedAt,
	}
	if a.Range != nil {
		payload["range"] = a.Range
	}
	if a.OrphanReason != "" {
		payload["orphanReason"] = a.OrphanReason
	}
	return payload
}

func resolutionPayloads(resolutions []anchor.Resolution) []map[string]any {
	items := make([]map[string]any, 0, len(resolutions))
	for _, res := range resolutions {
		item := map[string]any{
			"anchorId": res.AnchorID,
			"orphaned": res.Orphaned,
		}
		if res.Range != nil {
			item["range"] = res.Range
		}
		if res.Reason != "" {
			item["reason"] = res.Reason
		}
		items = append(items, item)
	}
	return items
}

func threadPayload(t store.Thread, a *store.Anchor, messages []store.Message) map[string]any {
	msgs := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, messagePayload(m))
	}
	payload := map[string]any{
		"id":        t.ID,
		"pageId":    t.PageID,
		"anchorId":  t.AnchorID,
		"resolved":  t.Resolved,
		"createdBy": t.CreatedBy,
		"createdAt": t.CreatedAt,
		"messages":  msgs,
	}
	if a != nil {
		payload["anchor"] = anchorPayload(*a)
	}
	return payload
}

func messagePayload(m store.Message) map[string]any {
	return map[string]any{
		"id":        m.ID,
		"threadId":  m.ThreadID,
		"author":    m.Author,
		"body":      m.Body,
		"createdAt": m.CreatedAt,
	}
}

// exportStore adapts the service to the export package's data needs.
type exportStore struct {
	service *Service
}

func (e *exportStore) GetPageInfo(id string) (export.PageInfo, error) {
	page, err := e.service.store.GetPage(context.Background(), id)
	if err != nil {
		return export.PageInfo{}, err
	}
	return export.PageInfo{
		ID:        page.ID,
		WikiID:    page.WikiID,
		Title:     page.Title,
		UpdatedBy: page.UpdatedBy,
		UpdatedAt: page.UpdatedAt,
	}, nil
}

func (e *exportStore) GetPageContent(id string, version int64) (*doc.Document, error) {
	ctx := context.Background()
	var stored store.PageVersion
	var err error
	if version == 0 {
		stored, err = e.service.store.GetCurrentVersion(ctx, id)
	} else {
		stored, err = e.service.store.GetVersion(ctx, id, version)
	}
	if err != nil {
		return nil, err
	}
	return doc.Parse(stored.Content)
}

func (e *exportStore) ListThreads(pageID string) ([]export.ThreadInfo, error) {
	ctx := context.Background()
	threads, err := e.service.store.ListThreads(ctx, pageID)
	if err != nil {
		return nil, err
	}
	anchors, err := e.service.store.ListAnchors(ctx, pageID)
	if err != nil {
		return nil, err
	}
	snapshots := make(map[string]string, len(anchors))
	for _, a := range anchors {
		snapshots[a.ID] = a.TextSnapshot
	}
	infos := make([]export.ThreadInfo, 0, len(threads))
	for _, t := range threads {
		infos = append(infos, export.ThreadInfo{
			ID:       t.ID,
			Snapshot: snapshots[t.AnchorID],
			Resolved: t.Resolved,
		})
	}
	return infos, nil
}

func (e *exportStore) ListThreadMessages(threadID string) ([]export.MessageInfo, error) {
	messages, err := e.service.store.ListMessages(context.Background(), threadID)
	if err != nil {
		return nil, err
	}
	infos := make([]export.MessageInfo, 0, len(messages))
	for _, m := range messages {
		infos = append(infos, export.MessageInfo{
			Author:    m.Author,
			Body:      m.Body,
			CreatedAt: m.CreatedAt,
		})
	}
	return infos, nil
}
