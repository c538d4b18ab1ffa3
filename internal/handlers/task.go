package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tasktrac/apiserver/internal/services"
	"github.com/tasktrac/apiserver/internal/store"
	"github.com/tasktrac/apiserver/types"
)

// TaskHandler provides HTTP handlers for task CRUD.
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler constructs a handler with the provided service.
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// TaskRouter registers task routes on the given router. All routes
// require authentication.
func TaskRouter(r chi.Router, taskService *services.TaskService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewTaskHandler(taskService)

	r.Use(authMiddleware)
	r.Post("/add", handler.CreateTask)
	r.Get("/list", handler.ListTasks)
	r.Get("/summary", handler.TaskSummary)
	r.Get("/list/{taskID}", handler.GetTask)
	r.Put("/update/{taskID}", handler.UpdateTask)
	r.Delete("/delete/{taskID}", handler.DeleteTask)
}

type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

// TaskListResponse is the paginated list response payload.
type TaskListResponse struct {
	Tasks      []types.Task     `json:"tasks"`
	Pagination store.Pagination `json:"pagination"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		validationError(w, "Invalid request")
		return
	}

	task, err := h.taskService.Create(r.Context(), ownerID, services.CreateTaskInput{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			validationError(w, ve.Message)
			return
		}
		errorResponse(w, "Failed to create task")
		return
	}
	successResponseWithData(w, "Task created successfully", task)
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return
	}

	query := r.URL.Query()
	tasks, pagination, err := h.taskService.List(r.Context(), ownerID, services.ListTasksInput{
		Filter:    query.Get("filter"),
		StartDate: query.Get("startDate"),
		EndDate:   query.Get("endDate"),
		DateMode:  query.Get("dateMode"),
		SortBy:    query.Get("sortBy"),
		SortOrder: query.Get("sortOrder"),
		Page:      intParam(query.Get("page")),
		PageSize:  intParam(query.Get("pageSize")),
	})
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			validationError(w, ve.Message)
			return
		}
		errorResponse(w, "Failed to fetch tasks")
		return
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks, Pagination: pagination})
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return
	}

	task, err := h.taskService.Get(r.Context(), ownerID, chi.URLParam(r, "taskID"))
	if err != nil {
		writeTaskError(w, err, "Failed to fetch task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return
	}

	var input services.UpdateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		validationError(w, "Invalid request")
		return
	}

	task, err := h.taskService.Update(r.Context(), ownerID, chi.URLParam(r, "taskID"), input)
	if err != nil {
		writeTaskError(w, err, "Failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return
	}

	if err := h.taskService.Delete(r.Context(), ownerID, chi.URLParam(r, "taskID")); err != nil {
		writeTaskError(w, err, "Failed to delete task")
		return
	}
	successResponse(w, "Task deleted")
}

func (h *TaskHandler) TaskSummary(w http.ResponseWriter, r *http.Request) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return
	}

	summary, err := h.taskService.Summary(r.Context(), ownerID)
	if err != nil {
		errorResponse(w, "Failed to fetch summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// writeTaskError maps service and store errors to responses. Absent
// records and records owned by someone else both surface as a 404.
func writeTaskError(w http.ResponseWriter, err error, fallback string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		validationError(w, ve.Message)
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrNotUpdated),
		errors.Is(err, store.ErrNotDeleted):
		notFoundResponse(w, "Task not found")
	default:
		errorResponse(w, fallback)
	}
}

// intParam parses a numeric query parameter leniently: absent or
// malformed values become zero and pick up the store defaults.
func intParam(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}
