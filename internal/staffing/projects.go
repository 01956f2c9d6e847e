package staffing

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/validation"
)

// CreateProject creates a project with its project agent. Required skills
// left empty are inferred from the requirements document and description.
func (s *Service) CreateProject(ctx context.Context, req *models.CreateProjectRequest) (*models.Project, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validation.ValidateDocument(validation.SchemaCapabilities, req.Capabilities); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if req.OwnerID != "" {
		owner, err := s.repo.GetUser(ctx, req.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to get owner: %w", err)
		}
		if owner == nil {
			return nil, notFound("user", req.OwnerID)
		}
	}

	status := req.Status
	if status == "" {
		status = models.ProjectPlanning
	}

	caps := req.Capabilities
	if len(caps.RequiredSkills) == 0 {
		caps.RequiredSkills = s.matcher.Skills().Infer(req.RequirementsDoc + " " + req.Description)
	}

	now := s.now()
	project := &models.Project{
		ID:              uuid.New().String(),
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		RequirementsDoc: req.RequirementsDoc,
		Status:          status,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	agentName := strings.TrimSpace(req.AgentName)
	if agentName == "" {
		agentName = project.Name + "のプロジェクトエージェント"
	}
	project.Agent = &models.Agent{
		ID:           uuid.New().String(),
		Name:         agentName,
		Type:         models.AgentTypeProject,
		Personality:  fmt.Sprintf("プロジェクト「%s」の成功に向けてチーム編成と進行を支援するAIエージェントです。", project.Name),
		Capabilities: caps,
		ProjectID:    project.ID,
		CreatedAt:    now,
	}

	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, translate(err)
	}

	if req.OwnerID != "" {
		err := s.repo.AddTeamMember(ctx, &models.TeamMember{
			ProjectID: project.ID,
			UserID:    req.OwnerID,
			Role:      managerRole,
			JoinedAt:  now,
		})
		if err != nil {
			return nil, translate(err)
		}
	}

	s.logger.Info("project created",
		zap.String("project_id", project.ID),
		zap.Strings("required_skills", caps.RequiredSkills),
	)
	return project, nil
}

// GetProject returns a project by id
func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, notFound("project", id)
	}
	return project, nil
}

// ListProjects returns projects matching the filters
func (s *Service) ListProjects(ctx context.Context, filters models.ProjectFilters) ([]*models.Project, error) {
	projects, err := s.repo.ListProjects(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// AddTeamMember adds a user to a project team
func (s *Service) AddTeamMember(ctx context.Context, projectID string, req *models.AddTeamMemberRequest) (*models.TeamMember, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	user, err := s.repo.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", req.UserID)
	}

	role := req.Role
	if role == "" {
		role = memberRole
	}
	member := &models.TeamMember{
		ProjectID: projectID,
		UserID:    req.UserID,
		Role:      role,
		JoinedAt:  s.now(),
	}
	if err := s.repo.AddTeamMember(ctx, member); err != nil {
		return nil, translate(err)
	}
	member.User = user
	return member, nil
}

// ListTeamMembers returns the members of a project
func (s *Service) ListTeamMembers(ctx context.Context, projectID string) ([]*models.TeamMember, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	members, err := s.repo.ListTeamMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	return members, nil
}

// ProjectStats summarizes task progress of a project
func (s *Service) ProjectStats(ctx context.Context, projectID string) (*models.ProjectStats, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListTasks(ctx, models.TaskFilters{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	members, err := s.repo.ListTeamMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}

	now := s.now()
	stats := &models.ProjectStats{
		ProjectID:      project.ID,
		ProjectName:    project.Name,
		TotalTasks:     len(tasks),
		DelayedTasks:   []models.DelayedTask{},
		MemberProgress: []models.MemberProgress{},
		LastUpdated:    now,
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		if m.User != nil {
			names[m.UserID] = m.User.Name
		}
	}

	progressSum := 0
	for _, t := range tasks {
		progressSum += t.Progress
		switch t.Status {
		case models.TaskCompleted:
			stats.CompletedTasks++
		case models.TaskInProgress:
			stats.InProgressTasks++
		case models.TaskTodo:
			stats.TodoTasks++
		}

		if t.EndDate != nil && t.EndDate.Before(now) && t.Status != models.TaskCompleted {
			assignee := "未割り当て"
			if t.IsAssigned() {
				if name, ok := names[*t.AssignedUserID]; ok {
					assignee = name
				} else if u, err := s.repo.GetUser(ctx, *t.AssignedUserID); err == nil && u != nil {
					assignee = u.Name
				}
			}
			stats.DelayedTasks = append(stats.DelayedTasks, models.DelayedTask{
				ID:           t.ID,
				Name:         t.Name,
				EndDate:      t.EndDate,
				Progress:     t.Progress,
				AssignedUser: assignee,
			})
		}
	}
	stats.DelayedTasksCount = len(stats.DelayedTasks)

	if len(tasks) > 0 {
		stats.OverallProgress = roundInt(float64(progressSum) / float64(len(tasks)))
		stats.CompletionRate = roundInt(float64(stats.CompletedTasks) / float64(len(tasks)) * 100)
	}

	for _, m := range members {
		mp := models.MemberProgress{
			UserID:   m.UserID,
			UserName: names[m.UserID],
			Role:     m.Role,
		}
		sum := 0
		for _, t := range tasks {
			if t.AssignedUserID == nil || *t.AssignedUserID != m.UserID {
				continue
			}
			mp.TotalTasks++
			sum += t.Progress
			if t.Status == models.TaskCompleted {
				mp.CompletedTasks++
			}
		}
		if mp.TotalTasks > 0 {
			mp.AverageProgress = roundInt(float64(sum) / float64(mp.TotalTasks))
		}
		stats.MemberProgress = append(stats.MemberProgress, mp)
	}

	return stats, nil
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
