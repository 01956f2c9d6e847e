package staffing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/metrics"
	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/performance"
	"github.com/terra-clan/staffing-engine/internal/storage"
)

// CreateNotification stores a notification for a user
func (s *Service) CreateNotification(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.repo.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", req.UserID)
	}

	n := &models.Notification{
		ID:        uuid.New().String(),
		ProjectID: req.ProjectID,
		UserID:    req.UserID,
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		CreatedAt: s.now(),
	}
	if n.Type == "" {
		n.Type = defaultNoticeType
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, translate(err)
	}
	return n, nil
}

// notify creates a notification as a side effect; errors are only logged
func (s *Service) notify(ctx context.Context, n *models.Notification) {
	n.ID = uuid.New().String()
	n.CreatedAt = s.now()
	if n.Type == "" {
		n.Type = defaultNoticeType
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.logger.Warn("failed to create notification",
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
	}
}

// ListNotifications returns a user's most recent notifications
func (s *Service) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	if userID == "" {
		return nil, invalid("userId is required")
	}
	list, err := s.repo.ListNotifications(ctx, storage.NotificationFilters{
		UserID:     userID,
		UnreadOnly: unreadOnly,
		Limit:      notificationLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// MarkNotificationRead marks a notification as read
func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	if err := s.repo.MarkNotificationRead(ctx, id); err != nil {
		return translate(err)
	}
	return nil
}

// DeleteNotification removes a notification
func (s *Service) DeleteNotification(ctx context.Context, id string) error {
	if err := s.repo.DeleteNotification(ctx, id); err != nil {
		return translate(err)
	}
	return nil
}

// RegisterPerformance adds a record to a user agent's track record without
// completing a task. Project and task are optional but must exist when given,
// and a task can hold only one record.
func (s *Service) RegisterPerformance(ctx context.Context, req *models.RegisterPerformanceRequest) (*models.PerformanceRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.repo.GetUserByAgentID(ctx, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent owner: %w", err)
	}
	if user == nil {
		return nil, notFound("agent", req.AgentID)
	}

	projectID := req.ProjectID
	if projectID != "" {
		if _, err := s.GetProject(ctx, projectID); err != nil {
			return nil, err
		}
	}

	taskType, _ := req.LearningData["taskType"].(string)
	if req.TaskID != "" {
		task, err := s.GetTask(ctx, req.TaskID)
		if err != nil {
			return nil, err
		}
		if projectID != "" && task.ProjectID != projectID {
			return nil, invalid("task %s does not belong to project %s", task.ID, projectID)
		}
		projectID = task.ProjectID
		if taskType == "" {
			taskType = string(matching.InferTaskType(task.Name))
		}
	}

	record := &models.PerformanceRecord{
		ID:           uuid.New().String(),
		AgentID:      req.AgentID,
		UserID:       user.ID,
		ProjectID:    projectID,
		TaskID:       req.TaskID,
		OverallScore: *req.Performance.OverallScore,
		Categories:   req.Performance.Categories,
		TaskType:     taskType,
		LearningData: req.LearningData,
		RegisteredAt: s.now(),
	}
	if record.Categories == nil {
		record.Categories = map[string]int{}
	}

	inserted, err := s.repo.InsertPerformanceRecord(ctx, record)
	if err != nil {
		return nil, translate(err)
	}
	if !inserted {
		return nil, fmt.Errorf("%w: task %s already has a performance record", ErrDuplicate, req.TaskID)
	}

	metrics.PerformanceRecords.Inc()
	s.logger.Info("performance record registered",
		zap.String("agent_id", record.AgentID),
		zap.String("user_id", record.UserID),
		zap.Int("score", record.OverallScore),
	)
	return record, nil
}

// ListPerformance returns performance records, newest first
func (s *Service) ListPerformance(ctx context.Context, filters models.PerformanceFilters) ([]models.PerformanceRecord, error) {
	records, err := s.repo.ListPerformanceRecords(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list performance records: %w", err)
	}
	return records, nil
}

// AnalyzePerformance summarizes the track record of a user's agent
func (s *Service) AnalyzePerformance(ctx context.Context, userID string) (*models.PerformanceAnalysis, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}

	records, err := s.repo.ListPerformanceRecords(ctx, models.PerformanceFilters{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list performance records: %w", err)
	}

	agentID := ""
	if user.Agent != nil {
		agentID = user.Agent.ID
	}
	return performance.Analyze(agentID, records), nil
}
