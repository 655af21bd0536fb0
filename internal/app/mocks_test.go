package app

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openctemio/toolstudio/pkg/domain/catalog"
	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tag"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/domain/toolversion"
	"github.com/openctemio/toolstudio/pkg/pagination"
)

// store is an in-memory registry shared by the mock repositories so that
// joins (tool tags, catalog entries) behave like the database.
type store struct {
	mu         sync.Mutex
	nextID     int64
	tools      map[shared.ID]*tool.Tool
	versions   map[shared.ID]*toolversion.Version
	tags       map[shared.ID]*tag.Tag
	links      map[shared.ID]map[shared.ID]bool
	executions map[shared.ID]*execution.Execution
}

func newStore() *store {
	return &store{
		tools:      make(map[shared.ID]*tool.Tool),
		versions:   make(map[shared.ID]*toolversion.Version),
		tags:       make(map[shared.ID]*tag.Tag),
		links:      make(map[shared.ID]map[shared.ID]bool),
		executions: make(map[shared.ID]*execution.Execution),
	}
}

func (s *store) id() shared.ID {
	s.nextID++
	return shared.ID(s.nextID)
}

// ----------------------------------------------------------------------------
// tool.Repository
// ----------------------------------------------------------------------------

type mockToolRepo struct{ s *store }

func (m *mockToolRepo) Create(_ context.Context, t *tool.Tool) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.tools {
		if existing.Slug == t.Slug && existing.DeletedAt == nil {
			return shared.ErrAlreadyExists
		}
	}
	t.ID = m.s.id()
	cp := *t
	m.s.tools[t.ID] = &cp
	return nil
}

func (m *mockToolRepo) live(id shared.ID) (*tool.Tool, bool) {
	t, ok := m.s.tools[id]
	if !ok || t.DeletedAt != nil {
		return nil, false
	}
	return t, true
}

func (m *mockToolRepo) withTags(t *tool.Tool) *tool.Tool {
	cp := *t
	cp.Tags = []tool.TagRef{}
	for tagID := range m.s.links[t.ID] {
		if tg, ok := m.s.tags[tagID]; ok && tg.IsActive {
			cp.Tags = append(cp.Tags, tool.TagRef{ID: tg.ID, Name: tg.Name, Slug: tg.Slug, Color: tg.Color})
		}
	}
	sort.Slice(cp.Tags, func(i, j int) bool { return cp.Tags[i].Name < cp.Tags[j].Name })
	return &cp
}

func (m *mockToolRepo) GetByID(_ context.Context, id shared.ID) (*tool.Tool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.live(id)
	if !ok {
		return nil, shared.NewNotFoundError("tool")
	}
	return m.withTags(t), nil
}

func (m *mockToolRepo) GetBySlug(_ context.Context, slug string) (*tool.Tool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, t := range m.s.tools {
		if t.Slug == slug && t.DeletedAt == nil {
			return m.withTags(t), nil
		}
	}
	return nil, shared.NewNotFoundError("tool")
}

func (m *mockToolRepo) List(_ context.Context, f tool.Filter, page pagination.Pagination, _ pagination.Sort) (pagination.Result[*tool.Tool], error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []*tool.Tool
	for _, t := range m.s.tools {
		if t.DeletedAt != nil {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.IsActive != nil && t.IsActive != *f.IsActive {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(f.Search)) {
			continue
		}
		all = append(all, m.withTags(t))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	start := min(page.Offset(), len(all))
	end := min(start+page.Limit(), len(all))
	return pagination.NewResult(all[start:end], total, page), nil
}

func (m *mockToolRepo) ExistsBySlug(_ context.Context, slug string, excludeID shared.ID) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, t := range m.s.tools {
		if t.Slug == slug && t.ID != excludeID && t.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockToolRepo) Update(_ context.Context, t *tool.Tool) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.live(t.ID); !ok {
		return shared.NewNotFoundError("tool")
	}
	cp := *t
	m.s.tools[t.ID] = &cp
	return nil
}

func (m *mockToolRepo) SoftDelete(_ context.Context, id shared.ID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.live(id)
	if !ok {
		return shared.NewNotFoundError("tool")
	}
	now := time.Now()
	t.DeletedAt = &now
	return nil
}

func (m *mockToolRepo) ReplaceTags(_ context.Context, id shared.ID, tagIDs []shared.ID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.live(id); !ok {
		return shared.NewNotFoundError("tool")
	}
	set := make(map[shared.ID]bool, len(tagIDs))
	for _, tid := range tagIDs {
		set[tid] = true
	}
	m.s.links[id] = set
	return nil
}

func (m *mockToolRepo) TagsFor(_ context.Context, ids []shared.ID) (map[shared.ID][]tool.TagRef, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make(map[shared.ID][]tool.TagRef)
	for _, id := range ids {
		if t, ok := m.s.tools[id]; ok {
			out[id] = m.withTags(t).Tags
		}
	}
	return out, nil
}

func (m *mockToolRepo) ListByTag(_ context.Context, tagID shared.ID) ([]*tool.Tool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []*tool.Tool{}
	for id, set := range m.s.links {
		if t, ok := m.live(id); ok && set[tagID] {
			out = append(out, m.withTags(t))
		}
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// toolversion.Repository
// ----------------------------------------------------------------------------

type mockVersionRepo struct {
	s         *store
	updateErr error
}

func (m *mockVersionRepo) Create(_ context.Context, v *toolversion.Version) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.tools[v.ToolID]; !ok {
		return shared.NewNotFoundError("tool")
	}
	for _, other := range m.s.versions {
		if other.ToolID == v.ToolID && other.VersionNumber == v.VersionNumber {
			return shared.ErrAlreadyExists
		}
	}
	if v.IsActive {
		m.deactivateAll(v.ToolID)
	}
	v.ID = m.s.id()
	cp := *v
	m.s.versions[v.ID] = &cp
	return nil
}

func (m *mockVersionRepo) deactivateAll(toolID shared.ID) {
	for _, other := range m.s.versions {
		if other.ToolID == toolID {
			other.IsActive = false
		}
	}
}

func (m *mockVersionRepo) GetByID(_ context.Context, id shared.ID) (*toolversion.Version, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	v, ok := m.s.versions[id]
	if !ok {
		return nil, shared.NewNotFoundError("version")
	}
	cp := *v
	return &cp, nil
}

func (m *mockVersionRepo) GetActive(_ context.Context, toolID shared.ID) (*toolversion.Version, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, v := range m.s.versions {
		if v.ToolID == toolID && v.IsActive {
			cp := *v
			return &cp, nil
		}
	}
	return nil, shared.NewNotFoundError("version")
}

func (m *mockVersionRepo) ListByTool(_ context.Context, toolID shared.ID) ([]*toolversion.Version, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []*toolversion.Version{}
	for _, v := range m.s.versions {
		if v.ToolID == toolID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockVersionRepo) Update(_ context.Context, v *toolversion.Version) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.s.versions[v.ID]; !ok {
		return shared.NewNotFoundError("version")
	}
	if v.IsActive {
		m.deactivateAll(v.ToolID)
	}
	cp := *v
	m.s.versions[v.ID] = &cp
	return nil
}

func (m *mockVersionRepo) Activate(_ context.Context, id shared.ID) (*toolversion.Version, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	v, ok := m.s.versions[id]
	if !ok {
		return nil, shared.NewNotFoundError("version")
	}
	m.deactivateAll(v.ToolID)
	v.IsActive = true
	cp := *v
	return &cp, nil
}

func (m *mockVersionRepo) Delete(_ context.Context, id shared.ID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.versions[id]; !ok {
		return shared.NewNotFoundError("version")
	}
	for _, e := range m.s.executions {
		if e.VersionID == id {
			return shared.ErrInUse
		}
	}
	delete(m.s.versions, id)
	return nil
}

// ----------------------------------------------------------------------------
// tag.Repository
// ----------------------------------------------------------------------------

type mockTagRepo struct{ s *store }

func (m *mockTagRepo) Create(_ context.Context, t *tag.Tag) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, other := range m.s.tags {
		if other.Slug == t.Slug {
			return shared.ErrAlreadyExists
		}
	}
	t.ID = m.s.id()
	cp := *t
	m.s.tags[t.ID] = &cp
	return nil
}

func (m *mockTagRepo) GetByID(_ context.Context, id shared.ID) (*tag.Tag, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.tags[id]
	if !ok {
		return nil, shared.NewNotFoundError("tag")
	}
	cp := *t
	return &cp, nil
}

func (m *mockTagRepo) GetBySlug(_ context.Context, slug string) (*tag.Tag, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, t := range m.s.tags {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, shared.NewNotFoundError("tag")
}

func (m *mockTagRepo) List(_ context.Context, isActive *bool) ([]*tag.Tag, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []*tag.Tag{}
	for _, t := range m.s.tags {
		if isActive != nil && t.IsActive != *isActive {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockTagRepo) ExistsBySlug(_ context.Context, slug string, excludeID shared.ID) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, t := range m.s.tags {
		if t.Slug == slug && t.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTagRepo) CountExisting(_ context.Context, ids []shared.ID) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := m.s.tags[id]; ok {
			n++
		}
	}
	return n, nil
}

func (m *mockTagRepo) Update(_ context.Context, t *tag.Tag) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.tags[t.ID]; !ok {
		return shared.NewNotFoundError("tag")
	}
	cp := *t
	m.s.tags[t.ID] = &cp
	return nil
}

func (m *mockTagRepo) Delete(_ context.Context, id shared.ID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.tags[id]; !ok {
		return shared.NewNotFoundError("tag")
	}
	for toolID, set := range m.s.links {
		if t, ok := m.s.tools[toolID]; ok && t.DeletedAt == nil && set[id] {
			return shared.NewDomainError("TAG_IN_USE", "tag is assigned", shared.ErrInUse)
		}
	}
	for _, set := range m.s.links {
		delete(set, id)
	}
	delete(m.s.tags, id)
	return nil
}

// ----------------------------------------------------------------------------
// execution.Repository
// ----------------------------------------------------------------------------

type mockExecutionRepo struct {
	s *store
	// onUpdate runs before an update is applied; tests use it to simulate a racing writer.
	onUpdate func(e *execution.Execution)
}

func (m *mockExecutionRepo) Create(_ context.Context, e *execution.Execution) (*execution.Execution, bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.executions {
		if existing.RequestID == e.RequestID {
			cp := *existing
			return &cp, false, nil
		}
	}
	e.ID = m.s.id()
	cp := *e
	m.s.executions[e.ID] = &cp
	out := cp
	return &out, true, nil
}

func (m *mockExecutionRepo) GetByID(_ context.Context, id shared.ID) (*execution.Execution, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.executions[id]
	if !ok {
		return nil, shared.NewNotFoundError("execution")
	}
	cp := *e
	return &cp, nil
}

func (m *mockExecutionRepo) GetByRequestID(_ context.Context, requestID string) (*execution.Execution, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.executions {
		if e.RequestID == requestID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, shared.NewNotFoundError("execution")
}

func (m *mockExecutionRepo) List(_ context.Context, f execution.Filter, page pagination.Pagination) (pagination.Result[*execution.Execution], error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []*execution.Execution
	for _, e := range m.s.executions {
		if f.ToolID != nil && e.ToolID != *f.ToolID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		cp := *e
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	start := min(page.Offset(), len(all))
	end := min(start+page.Limit(), len(all))
	return pagination.NewResult(all[start:end], total, page), nil
}

func (m *mockExecutionRepo) Update(_ context.Context, e *execution.Execution, from execution.Status) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.executions[e.ID]
	if !ok {
		return shared.NewNotFoundError("execution")
	}
	if m.onUpdate != nil {
		m.onUpdate(stored)
	}
	if stored.Status != from {
		return execution.NewTransitionError(stored.Status, e.Status)
	}
	cp := *e
	m.s.executions[e.ID] = &cp
	return nil
}

func (m *mockExecutionRepo) Stats(_ context.Context, toolID *shared.ID) (*execution.Stats, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var st execution.Stats
	for _, e := range m.s.executions {
		if toolID != nil && e.ToolID != *toolID {
			continue
		}
		st.Total++
		switch e.Status {
		case execution.StatusSucceeded:
			st.Succeeded++
		case execution.StatusFailed:
			st.Failed++
		case execution.StatusPending:
			st.Pending++
		case execution.StatusRunning:
			st.Running++
		}
	}
	return &st, nil
}

func (m *mockExecutionRepo) ListStale(_ context.Context, status execution.Status, cutoff time.Time, limit int) ([]*execution.Execution, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []*execution.Execution{}
	for _, e := range m.s.executions {
		if e.Status == status && e.StartedAt.Before(cutoff) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// catalog.Reader
// ----------------------------------------------------------------------------

type mockCatalogReader struct{ s *store }

func (m *mockCatalogReader) ListEntries(_ context.Context) ([]catalog.Entry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []catalog.Entry{}
	for _, t := range m.s.tools {
		if t.DeletedAt != nil || !t.IsActive {
			continue
		}
		for _, v := range m.s.versions {
			if v.ToolID == t.ID && v.IsActive {
				out = append(out, catalog.Entry{
					ToolID: t.ID, Name: t.Name, Slug: t.Slug, Description: t.Description, Category: t.Category,
					VersionID: v.ID, VersionNumber: v.VersionNumber,
					InputSchema: v.InputSchema, OutputSchema: v.OutputSchema,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCatalogReader) GetEntry(ctx context.Context, slug string) (*catalog.Entry, error) {
	entries, _ := m.ListEntries(ctx)
	for i := range entries {
		if entries[i].Slug == slug {
			return &entries[i], nil
		}
	}
	return nil, shared.NewNotFoundError("tool")
}

// ----------------------------------------------------------------------------
// Cache
// ----------------------------------------------------------------------------

type memCache[T any] struct {
	mu      sync.Mutex
	items   map[string][]byte
	hits    int
	deletes []string
}

func newMemCache[T any]() *memCache[T] {
	return &memCache[T]{items: make(map[string][]byte)}
}

func (c *memCache[T]) GetOrSetFallback(ctx context.Context, key string, loader func(ctx context.Context) (*T, error)) (*T, error) {
	c.mu.Lock()
	raw, ok := c.items[key]
	c.mu.Unlock()
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.mu.Lock()
			c.hits++
			c.mu.Unlock()
			return &v, nil
		}
	}
	v, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, _ = json.Marshal(v)
	c.mu.Lock()
	c.items[key] = raw
	c.mu.Unlock()
	return v, nil
}

func (c *memCache[T]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	c.deletes = append(c.deletes, key)
	return nil
}

func (c *memCache[T]) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	c.deletes = append(c.deletes, pattern)
	return nil
}

func (c *memCache[T]) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}
