package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/validation"
)

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := decodeJSON(r, validation.SchemaProject, &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	project, err := s.staffing.CreateProject(r.Context(), &req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	projects, err := s.staffing.ListProjects(r.Context(), models.ProjectFilters{
		Status: models.ProjectStatus(q.Get("status")),
		Member: q.Get("memberId"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
		"total":    len(projects),
	})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.staffing.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

func (s *Server) handleProjectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.staffing.ProjectStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.staffing.ListTeamMembers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"members": members,
		"total":   len(members),
	})
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req models.AddTeamMemberRequest
	if err := decodeJSON(r, "", &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	member, err := s.staffing.AddTeamMember(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, member)
}

func (s *Server) handleListProjectTasks(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := s.staffing.GetProject(r.Context(), projectID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	limit, offset, err := pagination(r)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	tasks, err := s.staffing.ListTasks(r.Context(), models.TaskFilters{
		ProjectID:      projectID,
		AssignedUserID: q.Get("assignedUserId"),
		Status:         models.TaskStatus(q.Get("status")),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"total": len(tasks),
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTaskRequest
	if err := decodeJSON(r, "", &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	task, err := s.staffing.CreateTask(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, task)
}

func (s *Server) handleAutoAssign(w http.ResponseWriter, r *http.Request) {
	result, err := s.staffing.AutoAssign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleTaskMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.staffing.TaskMatches(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "taskId"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
	})
}

func (s *Server) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	var req models.AssignTaskRequest
	if err := decodeJSON(r, "", &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	task, err := s.staffing.AssignTask(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "taskId"), req.UserID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleUnassignTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.staffing.UnassignTask(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "taskId"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleConductInterview(w http.ResponseWriter, r *http.Request) {
	var req models.InterviewRequest
	if err := decodeJSON(r, "", &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	outcome, err := s.staffing.ConductInterview(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, outcome)
}
