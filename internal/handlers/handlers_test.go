package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tasktrac/apiserver/config"
	"github.com/tasktrac/apiserver/internal/services"
	"github.com/tasktrac/apiserver/internal/store"
	"github.com/tasktrac/apiserver/types"
)

const testSecret = "test-secret"

// memTaskStore is an in-memory TaskStore honoring the same contract as
// the real adapters: owner scoping, sentinel errors, clamped pagination.
type memTaskStore struct {
	mu    sync.Mutex
	seq   int
	tasks map[string]types.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[string]types.Task)}
}

func (s *memTaskStore) Create(_ context.Context, task types.Task) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	task.ID = fmt.Sprintf("task-%d", s.seq)
	task.CreatedAt = time.Now().Add(time.Duration(s.seq) * time.Millisecond)
	task.UpdatedAt = task.CreatedAt
	s.tasks[task.ID] = task
	return task, nil
}

func (s *memTaskStore) GetOne(_ context.Context, filter store.TaskFilter) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if matchTask(task, filter) {
			return task, nil
		}
	}
	return types.Task{}, store.ErrNotFound
}

func (s *memTaskStore) GetMany(_ context.Context, filter store.TaskFilter) ([]types.Task, error) {
	matched := s.matches(filter)
	if len(matched) == 0 {
		return nil, store.ErrNotFound
	}
	return matched, nil
}

func (s *memTaskStore) UpdateOne(_ context.Context, filter store.TaskFilter, patch types.TaskPatch) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, task := range s.tasks {
		if !matchTask(task, filter) {
			continue
		}
		if patch.Title != nil {
			task.Title = *patch.Title
		}
		if patch.Description != nil {
			task.Description = *patch.Description
		}
		if patch.Completed != nil {
			task.Completed = *patch.Completed
		}
		if patch.EndDate != nil {
			task.EndDate = *patch.EndDate
		}
		task.UpdatedAt = time.Now()
		s.tasks[id] = task
		return task, nil
	}
	return types.Task{}, store.ErrNotUpdated
}

func (s *memTaskStore) DeleteOne(_ context.Context, filter store.TaskFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, task := range s.tasks {
		if matchTask(task, filter) {
			delete(s.tasks, id)
			return nil
		}
	}
	return store.ErrNotDeleted
}

func (s *memTaskStore) GetManyPaginated(_ context.Context, filter store.TaskFilter, page store.Page) ([]types.Task, store.Pagination, error) {
	page = page.Normalize()
	matched := s.matches(filter)

	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch page.SortBy {
		case "startDate":
			less = matched[i].StartDate.Before(matched[j].StartDate)
		case "endDate":
			less = matched[i].EndDate.Before(matched[j].EndDate)
		case "title":
			less = matched[i].Title < matched[j].Title
		default:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if page.Order == store.SortDesc {
			return !less
		}
		return less
	})

	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], store.NewPagination(page, total), nil
}

func (s *memTaskStore) matches(filter store.TaskFilter) []types.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]types.Task, 0)
	for _, task := range s.tasks {
		if matchTask(task, filter) {
			matched = append(matched, task)
		}
	}
	return matched
}

func matchTask(task types.Task, filter store.TaskFilter) bool {
	if task.UserID != filter.OwnerID {
		return false
	}
	if filter.ID != "" && task.ID != filter.ID {
		return false
	}
	if filter.Completed != nil && task.Completed != *filter.Completed {
		return false
	}
	if filter.StartFrom != nil && task.StartDate.Before(*filter.StartFrom) {
		return false
	}
	if filter.EndTo != nil && task.EndDate.After(*filter.EndTo) {
		return false
	}
	return true
}

// memUserStore is an in-memory UserStore with unique email/mobile.
type memUserStore struct {
	mu    sync.Mutex
	seq   int
	users map[string]types.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]types.User)}
}

func (s *memUserStore) Create(_ context.Context, user types.User) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email || existing.Mobile == user.Mobile {
			return types.User{}, store.ErrNotCreated
		}
	}
	s.seq++
	user.ID = fmt.Sprintf("user-%d", s.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = user
	return user, nil
}

func (s *memUserStore) GetOne(_ context.Context, filter store.UserFilter) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filter.IsZero() {
		return types.User{}, store.ErrNotFound
	}
	for _, user := range s.users {
		if filter.ID != "" && user.ID != filter.ID {
			continue
		}
		if filter.Mobile != "" && user.Mobile != filter.Mobile {
			continue
		}
		if filter.Email != "" && user.Email != filter.Email {
			continue
		}
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{JWTSecret: testSecret, TokenTTLMinutes: 60}
}

// newTestRouter wires the handlers over in-memory stores the same way
// the server does.
func newTestRouter() *chi.Mux {
	taskService := services.NewTaskService(newMemTaskStore(), nil)
	userService := services.NewUserService(newMemUserStore())
	cfg := testAuthConfig()

	router := chi.NewRouter()
	router.Route("/api/taskTrac", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			AuthRouter(r, userService, cfg)
		})
		r.Route("/task", func(r chi.Router) {
			TaskRouter(r, taskService, RequireAuth(cfg))
		})
	})
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func registerAndLogin(t *testing.T, router http.Handler, mobile, email string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/taskTrac/auth/register", "", map[string]string{
		"name":     "Test User",
		"email":    email,
		"mobile":   mobile,
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	token, ok := env.Data.(string)
	if !ok || token == "" {
		t.Fatalf("register returned no token: %s", rec.Body.String())
	}
	return token
}
