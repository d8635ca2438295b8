package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"talentpipe-engine/internal/cache"
	"talentpipe-engine/internal/domain"
	"talentpipe-engine/internal/events"
	"talentpipe-engine/internal/remote"
	"talentpipe-engine/internal/store"
)

const (
	projectsCollection  = "pipeline_projects"
	companiesCollection = "companies"

	// cache keys carry the viewer scope so one viewer's board is
	// never served to another
	cacheKeyPrefix = "pipeline:projects"

	// read fallback when the primary query trips a row-policy error
	listFallbackFn = "list-pipeline-projects"
)

// Scope restricts which projects a viewer sees. Admins see everything;
// everyone else is pinned to their company.
type Scope struct {
	UserID    string
	CompanyID string
	Admin     bool
}

func cacheKeyFor(scope Scope) string {
	if scope.Admin {
		return cacheKeyPrefix + ":admin"
	}
	return cacheKeyPrefix + ":company:" + scope.CompanyID
}

// Board owns the in-memory project list for the current viewer and is
// the only code that mutates it. Stage changes are optimistic: the
// board updates locally first, persists, and restores the full
// pre-change snapshot if the persist fails.
type Board struct {
	remote  remote.Backend
	cache   *cache.Store
	hub     *events.Hub
	journal *sql.DB // optional diagnostics, may be nil

	mu    sync.Mutex
	items []domain.Project
	key   string // cache key of the scope the items were loaded for

	now func() time.Time
}

func NewBoard(backend remote.Backend, c *cache.Store, hub *events.Hub, journal *sql.DB) *Board {
	return &Board{
		remote:  backend,
		cache:   c,
		hub:     hub,
		journal: journal,
		now:     time.Now,
	}
}

// Load fetches every project visible in scope, attaches company names,
// derives stage/progress and fills the cache. A cached list is reused
// as-is; a remote failure leaves the current in-memory list untouched.
func (b *Board) Load(ctx context.Context, scope Scope) ([]domain.Project, error) {
	key := cacheKeyFor(scope)
	if cached, ok := b.cache.Get(key); ok {
		if list, ok := cached.([]domain.Project); ok {
			b.mu.Lock()
			b.items = cloneProjects(list)
			b.key = key
			b.mu.Unlock()
			return cloneProjects(list), nil
		}
	}

	q := remote.Query{
		Filter:     map[string]string{},
		Order:      "updated_at.desc",
		FallbackFn: listFallbackFn,
	}
	if !scope.Admin {
		q.Filter["company_id"] = scope.CompanyID
	}

	var (
		rows      []projectRow
		companies []domain.Company
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.remote.Select(gctx, projectsCollection, q, &rows)
	})
	g.Go(func() error {
		return b.remote.Select(gctx, companiesCollection, remote.Query{}, &companies)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}

	names := make(map[string]string, len(companies))
	for _, c := range companies {
		names[c.ID] = c.Name
	}

	now := b.now()
	list := make([]domain.Project, 0, len(rows))
	for _, r := range rows {
		stage, visible := domain.StageForStatus(r.Status)
		if !visible {
			continue // canceled projects have no board column
		}
		list = append(list, domain.Project{
			ID:          r.ID,
			CompanyID:   r.CompanyID,
			CompanyName: names[r.CompanyID],
			Name:        r.Name,
			Description: r.Description,
			Status:      r.Status,
			Stage:       stage,
			Progress:    domain.ProgressForStatus(r.Status),
			Recent:      domain.RecentlyUpdated(r.UpdatedAt, now),
			UpdatedAt:   r.UpdatedAt,
		})
	}

	b.mu.Lock()
	b.items = list
	b.key = key
	b.mu.Unlock()

	b.cache.Set(key, cloneProjects(list))
	return cloneProjects(list), nil
}

// ChangeStage moves a project to target: local state first, then the
// persisted status. Moves between stages that collapse to the same
// status update the displayed column without a remote write. On persist
// failure the whole pre-change list is restored and the cache entry is
// invalidated so the next Load goes remote.
func (b *Board) ChangeStage(ctx context.Context, projectID string, target domain.Stage) error {
	newStatus, ok := domain.StatusForStage(target)
	if !ok {
		return fmt.Errorf("change stage: unknown stage %q", target)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := -1
	for i := range b.items {
		if b.items[i].ID == projectID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("change stage: project %q not on board", projectID)
	}

	prevStatus := b.items[idx].Status
	snapshot := cloneProjects(b.items)

	// optimistic, pre-network
	now := b.now()
	b.items[idx].Stage = target
	b.items[idx].Status = newStatus
	b.items[idx].Progress = domain.ProgressForStatus(newStatus)

	if newStatus == prevStatus {
		// same-status move (the in_progress fan-out): column changes,
		// nothing to persist
		b.cache.Set(b.key, cloneProjects(b.items))
		return nil
	}

	patch := map[string]any{
		"status":     string(newStatus),
		"updated_at": now.UTC().Format(time.RFC3339Nano),
	}
	if err := b.remote.Update(ctx, projectsCollection, projectID, patch); err != nil {
		b.items = snapshot
		b.cache.Invalidate(b.key)
		return fmt.Errorf("change stage: persist: %w", err)
	}

	b.items[idx].UpdatedAt = now
	b.items[idx].Recent = true
	b.cache.Set(b.key, cloneProjects(b.items))

	b.recordTransition(ctx, projectID, prevStatus, newStatus)
	if b.hub != nil {
		b.hub.Emit(events.TypeStageChanged, map[string]any{
			"project_id": projectID,
			"stage":      target,
			"status":     newStatus,
		})
	}
	return nil
}

// Filter is a pure, client-side view over the current list: term
// matches name or company name case-insensitively, companyID is an
// exact match. No network I/O.
func (b *Board) Filter(term, companyID string) []domain.Project {
	b.mu.Lock()
	defer b.mu.Unlock()

	term = strings.ToLower(strings.TrimSpace(term))
	var out []domain.Project
	for _, p := range b.items {
		if companyID != "" && p.CompanyID != companyID {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.CompanyName), term) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Items returns a copy of the current list.
func (b *Board) Items() []domain.Project {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneProjects(b.items)
}

func (b *Board) recordTransition(ctx context.Context, id string, from, to domain.Status) {
	if b.journal == nil {
		return
	}
	err := store.RecordTransition(ctx, b.journal, store.Transition{
		Entity:   "project",
		EntityID: id,
		From:     string(from),
		To:       string(to),
	})
	if err != nil {
		log.Printf("[board] journal: %v", err)
	}
}

// projectRow is the persisted shape; stage and progress are never read
// from the service, always recomputed.
type projectRow struct {
	ID          string        `json:"id"`
	CompanyID   string        `json:"company_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      domain.Status `json:"status"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// cloneProjects is a value snapshot: Project holds no reference types,
// so copying the slice copies everything the rollback needs.
func cloneProjects(in []domain.Project) []domain.Project {
	out := make([]domain.Project, len(in))
	copy(out, in)
	return out
}
