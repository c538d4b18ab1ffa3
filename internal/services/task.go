package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/tasktrac/apiserver/internal/events"
	"github.com/tasktrac/apiserver/internal/store"
	"github.com/tasktrac/apiserver/types"
)

// Completion filter values accepted by List.
const (
	FilterCompleted = "completed"
	FilterPending   = "pending"
)

// DateModeAll disables the default "start date is today or later"
// restriction on listings.
const DateModeAll = "all"

// dateLayouts are the accepted request date formats, most specific first.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	Create(ctx context.Context, task types.Task) (types.Task, error)
	GetOne(ctx context.Context, filter store.TaskFilter) (types.Task, error)
	GetMany(ctx context.Context, filter store.TaskFilter) ([]types.Task, error)
	UpdateOne(ctx context.Context, filter store.TaskFilter, patch types.TaskPatch) (types.Task, error)
	DeleteOne(ctx context.Context, filter store.TaskFilter) error
	GetManyPaginated(ctx context.Context, filter store.TaskFilter, page store.Page) ([]types.Task, store.Pagination, error)
}

// TaskService encapsulates task use-cases. Every operation takes the
// authenticated owner id and scopes the underlying query by it.
type TaskService struct {
	repo      TaskRepository
	publisher *events.Publisher
}

// NewTaskService constructs a TaskService. The publisher may be nil;
// lifecycle events are then skipped.
func NewTaskService(repo TaskRepository, publisher *events.Publisher) *TaskService {
	return &TaskService{repo: repo, publisher: publisher}
}

// CreateTaskInput is the payload for a new task. Dates arrive as
// strings ("2006-01-02" or RFC 3339).
type CreateTaskInput struct {
	Title       string
	Description string
	StartDate   string
	EndDate     string
}

// Create validates the input and stores a task owned by ownerID.
func (s *TaskService) Create(ctx context.Context, ownerID string, input CreateTaskInput) (types.Task, error) {
	if input.Title == "" || input.StartDate == "" || input.EndDate == "" {
		return types.Task{}, validationErr("Title, start date and end date are required")
	}
	startDate, err := parseDate(input.StartDate)
	if err != nil {
		return types.Task{}, validationErr("Invalid start date")
	}
	endDate, err := parseDate(input.EndDate)
	if err != nil {
		return types.Task{}, validationErr("Invalid end date")
	}
	if startDate.After(endDate) {
		return types.Task{}, validationErr("Start date must be less than or equal to end date")
	}

	task, err := s.repo.Create(ctx, types.Task{
		Title:       input.Title,
		Description: input.Description,
		StartDate:   startDate,
		EndDate:     endDate,
		Completed:   false,
		UserID:      ownerID,
	})
	if err != nil {
		return types.Task{}, err
	}
	s.publish(ctx, events.TaskCreated, task.ID, ownerID, &task)
	return task, nil
}

// ListTasksInput carries the listing query parameters as received.
type ListTasksInput struct {
	Filter    string
	StartDate string
	EndDate   string
	DateMode  string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// List returns a page of the owner's tasks. Completion filter:
// "completed", "pending", or unset for all. Date filter: explicit
// start/end bounds normalized to day boundaries, either bound alone, or
// dateMode=all for no restriction; with nothing given it defaults to
// tasks starting today or later.
func (s *TaskService) List(ctx context.Context, ownerID string, input ListTasksInput) ([]types.Task, store.Pagination, error) {
	filter := store.TaskFilter{OwnerID: ownerID}

	switch input.Filter {
	case "":
	case FilterCompleted:
		completed := true
		filter.Completed = &completed
	case FilterPending:
		completed := false
		filter.Completed = &completed
	default:
		return nil, store.Pagination{}, validationErr("Filter must be completed or pending")
	}

	if input.DateMode != DateModeAll {
		var startDate, endDate time.Time
		var err error
		if input.StartDate != "" {
			if startDate, err = parseDate(input.StartDate); err != nil {
				return nil, store.Pagination{}, validationErr("Invalid start date")
			}
		}
		if input.EndDate != "" {
			if endDate, err = parseDate(input.EndDate); err != nil {
				return nil, store.Pagination{}, validationErr("Invalid end date")
			}
		}
		switch {
		case input.StartDate != "" && input.EndDate != "":
			if startDate.After(endDate) {
				return nil, store.Pagination{}, validationErr("Start date must be less than or equal to end date")
			}
			from, to := startOfDay(startDate), endOfDay(endDate)
			filter.StartFrom = &from
			filter.EndTo = &to
		case input.StartDate != "":
			from := startOfDay(startDate)
			filter.StartFrom = &from
		case input.EndDate != "":
			to := endOfDay(endDate)
			filter.EndTo = &to
		default:
			from := startOfDay(time.Now())
			filter.StartFrom = &from
		}
	}

	page := store.Page{
		Page:     input.Page,
		PageSize: input.PageSize,
		SortBy:   input.SortBy,
		Order:    parseSortOrder(input.SortOrder),
	}
	if page.SortBy == "" {
		page.SortBy = "startDate"
	}

	return s.repo.GetManyPaginated(ctx, filter, page)
}

// Get fetches one task owned by ownerID.
func (s *TaskService) Get(ctx context.Context, ownerID, taskID string) (types.Task, error) {
	if taskID == "" {
		return types.Task{}, validationErr("Task ID is required")
	}
	return s.repo.GetOne(ctx, store.TaskFilter{OwnerID: ownerID, ID: taskID})
}

// UpdateTaskInput carries a partial task update. Nil fields are left
// untouched.
type UpdateTaskInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	EndDate     *string `json:"endDate"`
}

// Update applies the explicitly supplied fields to the owner's task and
// returns the updated record.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID string, input UpdateTaskInput) (types.Task, error) {
	if taskID == "" {
		return types.Task{}, validationErr("Task ID is required")
	}

	patch := types.TaskPatch{
		Title:       input.Title,
		Description: input.Description,
		Completed:   input.Completed,
	}
	if input.EndDate != nil {
		endDate, err := parseDate(*input.EndDate)
		if err != nil {
			return types.Task{}, validationErr("Invalid end date")
		}
		patch.EndDate = &endDate
	}
	if patch.IsZero() {
		return types.Task{}, validationErr("No fields to update")
	}

	task, err := s.repo.UpdateOne(ctx, store.TaskFilter{OwnerID: ownerID, ID: taskID}, patch)
	if err != nil {
		return types.Task{}, err
	}
	s.publish(ctx, events.TaskUpdated, task.ID, ownerID, &task)
	return task, nil
}

// Delete removes the owner's task.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID string) error {
	if taskID == "" {
		return validationErr("Task ID is required")
	}
	if err := s.repo.DeleteOne(ctx, store.TaskFilter{OwnerID: ownerID, ID: taskID}); err != nil {
		return err
	}
	s.publish(ctx, events.TaskDeleted, taskID, ownerID, nil)
	return nil
}

// Summary tallies the owner's tasks by completion state. An owner with
// no tasks gets a zero summary, not an error.
func (s *TaskService) Summary(ctx context.Context, ownerID string) (types.TaskSummary, error) {
	tasks, err := s.repo.GetMany(ctx, store.TaskFilter{OwnerID: ownerID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TaskSummary{}, nil
		}
		return types.TaskSummary{}, err
	}

	summary := types.TaskSummary{Total: len(tasks)}
	for _, task := range tasks {
		if task.Completed {
			summary.Completed++
		} else {
			summary.Pending++
		}
	}
	return summary, nil
}

func (s *TaskService) publish(ctx context.Context, kind, taskID, ownerID string, task *types.Task) {
	if s.publisher == nil {
		return
	}
	event := events.TaskEvent{Kind: kind, TaskID: taskID, UserID: ownerID, Task: task}
	if err := s.publisher.PublishTaskEvent(ctx, event); err != nil {
		log.Printf("publish %s event for task %s: %v", kind, taskID, err)
	}
}

func parseDate(value string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func parseSortOrder(value string) store.SortOrder {
	if strings.EqualFold(value, "asc") {
		return store.SortAsc
	}
	return store.SortDesc
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Nanosecond)
}
