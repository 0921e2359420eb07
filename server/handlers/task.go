package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/chepyr/go-task-sync/shared"
	"github.com/chepyr/go-task-sync/shared/models"
	"github.com/google/uuid"
)

/*
handles routes:
- GET /tasks - list the caller's tasks, newest first
- POST /tasks - create a new task
*/
func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTasks(w, r)

	case http.MethodPost:
		h.createTask(w, r)

	default:
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	tasks, err := h.TaskRepo.ListByOwner(ctx, userID)
	if err != nil {
		shared.SendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	sendTasksJSON(w, tasks)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !isJSONContentType(r) {
		shared.SendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		// user_id in the payload is advisory metadata only; ownership
		// always comes from the verified token
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	title, description, ok := validateTaskFields(w, input.Title, input.Description)
	if !ok {
		return
	}

	ownerID, err := uuid.Parse(userID)
	if err != nil {
		shared.SendError(w, "Invalid user id in token", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	task := &models.Task{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.TaskRepo.Create(ctx, task); err != nil {
		shared.SendError(w, "Failed to create task", http.StatusInternalServerError)
		return
	}
	h.WSHub.BroadcastTaskChange("insert", task)
	w.Header().Set("Location", "/tasks/"+task.ID.String())
	sendTasksJSON(w, []*models.Task{task})
}

/*
routes:
- GET /tasks/{id},
- PUT/PATCH /tasks/{id},
- DELETE /tasks/{id}
*/
func (h *Handler) HandleTaskByID(w http.ResponseWriter, r *http.Request) {
	taskIDstr := r.URL.Path[len("/tasks/"):]
	if taskIDstr == "" {
		shared.SendError(w, "task_id is required", http.StatusBadRequest)
		return
	}
	taskID, err := uuid.Parse(taskIDstr)
	if err != nil {
		shared.SendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTaskByID(w, r, taskID)
	case http.MethodPut, http.MethodPatch:
		h.updateTaskByID(w, r, taskID)
	case http.MethodDelete:
		h.deleteTaskByID(w, r, taskID)
	default:
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.TaskRepo.GetByID(ctx, taskID.String())
	if err != nil || task == nil {
		shared.SendError(w, "Task not found", http.StatusNotFound)
		return
	}
	if task.OwnerID.String() != userID {
		shared.SendError(w, "Forbidden", http.StatusForbidden)
		return
	}

	sendTasksJSON(w, []*models.Task{task})
}

func (h *Handler) updateTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !isJSONContentType(r) {
		shared.SendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	existingTask, err := h.TaskRepo.GetByID(ctx, taskID.String())
	if err != nil || existingTask == nil {
		shared.SendError(w, "Task not found", http.StatusNotFound)
		return
	}
	if existingTask.OwnerID.String() != userID {
		shared.SendError(w, "Forbidden", http.StatusForbidden)
		return
	}

	var input struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			shared.SendError(w, "title cannot be empty", http.StatusBadRequest)
			return
		}
		if len(title) > 200 {
			shared.SendError(w, "title too long (max 200 chars)", http.StatusBadRequest)
			return
		}
		existingTask.Title = title
	}
	if input.Description != nil {
		desc := strings.TrimSpace(*input.Description)
		if len(desc) > 1000 {
			shared.SendError(w, "description too long (max 1000 chars)", http.StatusBadRequest)
			return
		}
		existingTask.Description = desc
	}
	existingTask.UpdatedAt = time.Now().UTC()

	if err := h.TaskRepo.Update(ctx, existingTask); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			shared.SendError(w, "Task not found", http.StatusNotFound)
			return
		}
		shared.SendError(w, "Failed to update task", http.StatusInternalServerError)
		return
	}
	h.WSHub.BroadcastTaskChange("update", existingTask)
	sendTasksJSON(w, []*models.Task{existingTask})
}

func (h *Handler) deleteTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	existingTask, err := h.TaskRepo.GetByID(ctx, taskID.String())
	if err != nil || existingTask == nil {
		shared.SendError(w, "Task not found", http.StatusNotFound)
		return
	}
	if existingTask.OwnerID.String() != userID {
		shared.SendError(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := h.TaskRepo.Delete(ctx, taskID.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			shared.SendError(w, "Task not found", http.StatusNotFound)
			return
		}
		shared.SendError(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}
	h.WSHub.BroadcastTaskChange("delete", existingTask)
	w.WriteHeader(http.StatusNoContent)
}

func sendTasksJSON(w http.ResponseWriter, tasks []*models.Task) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tasks)
}

func validateTaskFields(w http.ResponseWriter, title, description string) (string, string, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		shared.SendError(w, "title is required", http.StatusBadRequest)
		return "", "", false
	}
	if len(title) > 200 {
		shared.SendError(w, "title too long (max 200 chars)", http.StatusBadRequest)
		return "", "", false
	}
	description = strings.TrimSpace(description)
	if len(description) > 1000 {
		shared.SendError(w, "description too long (max 1000 chars)", http.StatusBadRequest)
		return "", "", false
	}
	return title, description, true
}

func isJSONContentType(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	return strings.HasPrefix(contentType, "application/json")
}
