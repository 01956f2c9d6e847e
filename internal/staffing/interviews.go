package staffing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/interview"
	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/metrics"
	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/storage"
)

// InterviewOutcome is the result of one interview
type InterviewOutcome struct {
	Interview *models.Interview      `json:"interview"`
	Offer     *models.Offer          `json:"offer,omitempty"`
	Result    models.InterviewResult `json:"result"`
	Score     int                    `json:"score"`
}

// ConductInterview runs the agent interview for a user and a project. A
// PASSED interview creates exactly one pending offer in the same write.
func (s *Service) ConductInterview(ctx context.Context, projectID, userID string) (*InterviewOutcome, error) {
	if projectID == "" || userID == "" {
		return nil, invalid("projectId and userId are required")
	}

	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.interview(ctx, project, user)
}

func (s *Service) interview(ctx context.Context, project *models.Project, user *models.User) (*InterviewOutcome, error) {
	existing, err := s.repo.GetInterviewByPair(ctx, project.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check interviews: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("interview for project %s and user %s: %w", project.ID, user.ID, ErrDuplicate)
	}

	now := s.now()
	candidate := matching.CandidateFromUser(user, s.historyLimit)
	result := interview.Conduct(candidate, project, now)

	iv := &models.Interview{
		ID:              uuid.New().String(),
		ProjectID:       project.ID,
		UserID:          user.ID,
		Status:          models.InterviewCompleted,
		Result:          result.Result,
		Score:           result.Score,
		ConversationLog: result.Transcript,
		CreatedAt:       now,
	}

	var offer *models.Offer
	if result.Passed() {
		offer = &models.Offer{
			ID:          uuid.New().String(),
			InterviewID: iv.ID,
			UserID:      user.ID,
			ProjectID:   project.ID,
			Status:      models.OfferPending,
			CreatedAt:   now,
		}
	}

	if err := s.repo.CreateInterview(ctx, iv, offer); err != nil {
		return nil, translate(err)
	}
	metrics.Interviews.WithLabelValues(string(result.Result)).Inc()

	s.logger.Info("interview completed",
		zap.String("project_id", project.ID),
		zap.String("user_id", user.ID),
		zap.Int("score", result.Score),
		zap.String("result", string(result.Result)),
	)

	if offer != nil {
		s.notify(ctx, &models.Notification{
			ProjectID: project.ID,
			UserID:    user.ID,
			Title:     "オファーが届きました",
			Message:   fmt.Sprintf("「%s」プロジェクトの面接に合格しました（スコア: %d）。オファーを確認してください。", project.Name, result.Score),
			Type:      "offer",
		})
	}

	return &InterviewOutcome{
		Interview: iv,
		Offer:     offer,
		Result:    result.Result,
		Score:     result.Score,
	}, nil
}

// AutoInterview has the user's agent interview every project the user is
// neither a member of nor has interviewed for yet
func (s *Service) AutoInterview(ctx context.Context, userID string) ([]*InterviewOutcome, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	projects, err := s.repo.ListProjects(ctx, models.ProjectFilters{ExcludeMember: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	outcomes := []*InterviewOutcome{}
	for _, p := range projects {
		outcome, err := s.interview(ctx, p, user)
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// ListInterviews returns interviews, newest first
func (s *Service) ListInterviews(ctx context.Context, filters storage.InterviewFilters) ([]*models.Interview, error) {
	interviews, err := s.repo.ListInterviews(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}
	return interviews, nil
}

// ListOffers returns the offers of a user, newest first
func (s *Service) ListOffers(ctx context.Context, filters storage.OfferFilters) ([]*models.Offer, error) {
	offers, err := s.repo.ListOffers(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	return offers, nil
}

// RespondOffer accepts or rejects a pending offer. Accepting adds the user
// to the project team in the same write.
func (s *Service) RespondOffer(ctx context.Context, offerID string, req *models.RespondOfferRequest) (*models.Offer, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	offer, err := s.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	if offer == nil {
		return nil, notFound("offer", offerID)
	}
	if !offer.IsPending() {
		return nil, fmt.Errorf("offer %s is %s: %w", offerID, offer.Status, ErrConflict)
	}

	now := s.now()
	status := models.OfferRejected
	var member *models.TeamMember
	if req.Action == models.OfferActionAccept {
		status = models.OfferAccepted
		member = &models.TeamMember{
			ProjectID: offer.ProjectID,
			UserID:    offer.UserID,
			Role:      memberRole,
			JoinedAt:  now,
		}
	}

	if err := s.repo.RespondOffer(ctx, offerID, status, now, member); err != nil {
		return nil, translate(err)
	}
	metrics.OfferResponses.WithLabelValues(string(status)).Inc()

	s.logger.Info("offer answered",
		zap.String("offer_id", offerID),
		zap.String("status", string(status)),
	)

	updated, err := s.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	if updated == nil {
		return nil, notFound("offer", offerID)
	}
	return updated, nil
}
