package staffing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/validation"
)

// RegisterUser creates a user together with their personal agent
func (s *Service) RegisterUser(ctx context.Context, req *models.RegisterUserRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validation.ValidateDocument(validation.SchemaPreferences, req.Preferences); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	role := req.Role
	if role == "" {
		role = models.RoleMember
	}

	now := s.now()
	user := &models.User{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.TrimSpace(req.Email),
		Role:        role,
		Skills:      nonNil(req.Skills),
		Industries:  nonNil(req.Industries),
		Preferences: req.Preferences,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	user.Agent = personalAgent(user)

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, translate(err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("agent_id", user.Agent.ID),
	)
	return user, nil
}

// personalAgent builds the agent that represents a user in matching and interviews
func personalAgent(u *models.User) *models.Agent {
	skillText := "幅広いスキル"
	if len(u.Skills) > 0 {
		n := min(3, len(u.Skills))
		skillText = strings.Join(u.Skills[:n], "、") + "などのスキル"
	}
	industryText := "様々な分野"
	if len(u.Industries) > 0 {
		industryText = u.Industries[0] + "分野"
	}

	return &models.Agent{
		ID:   uuid.New().String(),
		Name: u.Name + "のエージェント",
		Type: models.AgentTypeUser,
		Personality: fmt.Sprintf("%sさんをサポートする専属AIエージェントです。%sを活かして%sでのキャリア成長をサポートします。",
			u.Name, skillText, industryText),
		Capabilities: models.Capabilities{
			Skills:     u.Skills,
			Industries: u.Industries,
			Focus:      matching.InferFocusAreas(u.Skills),
		},
		UserID:    u.ID,
		CreatedAt: u.CreatedAt,
	}
}

// GetUser returns a user with their most recent performance history
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", id)
	}
	if err := s.attachHistory(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser changes profile fields. The personal agent capabilities follow
// the new skills and industries.
func (s *Service) UpdateUser(ctx context.Context, id string, req *models.UpdateUserRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", id)
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Skills != nil {
		user.Skills = req.Skills
	}
	if req.Industries != nil {
		user.Industries = req.Industries
	}
	if req.Preferences != nil {
		if err := validation.ValidateDocument(validation.SchemaPreferences, req.Preferences); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		user.Preferences = *req.Preferences
	}
	if user.Agent != nil {
		user.Agent.Capabilities.Skills = user.Skills
		user.Agent.Capabilities.Industries = user.Industries
		user.Agent.Capabilities.Focus = matching.InferFocusAreas(user.Skills)
	}
	user.UpdatedAt = s.now()

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, translate(err)
	}
	return user, nil
}

// ListUsers returns users matching the filters
func (s *Service) ListUsers(ctx context.Context, filters models.UserFilters) ([]*models.User, error) {
	users, err := s.repo.ListUsers(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// attachHistory loads the user's recent performance records onto their agent
func (s *Service) attachHistory(ctx context.Context, u *models.User) error {
	if u.Agent == nil {
		return nil
	}
	records, err := s.repo.ListPerformanceRecords(ctx, models.PerformanceFilters{
		UserID: u.ID,
		Limit:  s.historyLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to load performance history: %w", err)
	}
	u.Agent.PerformanceHistory = records
	return nil
}

// candidates turns users into matching candidates with their history loaded
func (s *Service) candidates(ctx context.Context, users []*models.User) ([]matching.Candidate, error) {
	out := make([]matching.Candidate, 0, len(users))
	for _, u := range users {
		if err := s.attachHistory(ctx, u); err != nil {
			return nil, err
		}
		out = append(out, matching.CandidateFromUser(u, s.historyLimit))
	}
	return out, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
