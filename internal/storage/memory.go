package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/terra-clan/staffing-engine/internal/models"
)

// MemoryRepository implements Repository in process memory.
// Values are copied on the way in and out so callers never share state
// with the store.
type MemoryRepository struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	projects      map[string]*models.Project
	members       map[string][]*models.TeamMember
	tasks         map[string]*models.Task
	interviews    map[string]*models.Interview
	offers        map[string]*models.Offer
	notifications map[string]*models.Notification
	records       []models.PerformanceRecord
	clients       map[string]*models.ApiClient
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:         make(map[string]*models.User),
		projects:      make(map[string]*models.Project),
		members:       make(map[string][]*models.TeamMember),
		tasks:         make(map[string]*models.Task),
		interviews:    make(map[string]*models.Interview),
		offers:        make(map[string]*models.Offer),
		notifications: make(map[string]*models.Notification),
		clients:       make(map[string]*models.ApiClient),
	}
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}

// --- Users ---

func (r *MemoryRepository) CreateUser(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, ErrDuplicate)
	}
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("email %s: %w", u.Email, ErrDuplicate)
		}
	}

	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *MemoryRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (r *MemoryRepository) GetUserByAgentID(ctx context.Context, agentID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Agent != nil && u.Agent.ID == agentID {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateUser(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; !ok {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *MemoryRepository) ListUsers(ctx context.Context, filters models.UserFilters) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []*models.User
	for _, u := range r.users {
		if filters.Role != "" && u.Role != filters.Role {
			continue
		}
		users = append(users, cloneUser(u))
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return paginate(users, filters.Limit, filters.Offset), nil
}

// --- Projects ---

func (r *MemoryRepository) CreateProject(ctx context.Context, p *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[p.ID]; ok {
		return fmt.Errorf("project %s: %w", p.ID, ErrDuplicate)
	}
	r.projects[p.ID] = cloneProject(p)
	return nil
}

func (r *MemoryRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, nil
	}
	return cloneProject(p), nil
}

func (r *MemoryRepository) ListProjects(ctx context.Context, filters models.ProjectFilters) ([]*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var projects []*models.Project
	for _, p := range r.projects {
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		if filters.Member != "" && !r.isMember(p.ID, filters.Member) {
			continue
		}
		if filters.ExcludeMember != "" && r.isMember(p.ID, filters.ExcludeMember) {
			continue
		}
		projects = append(projects, cloneProject(p))
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return paginate(projects, filters.Limit, filters.Offset), nil
}

// --- Team members ---

func (r *MemoryRepository) AddTeamMember(ctx context.Context, m *models.TeamMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addMember(m)
}

func (r *MemoryRepository) addMember(m *models.TeamMember) error {
	if _, ok := r.projects[m.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", m.ProjectID, ErrNotFound)
	}
	if _, ok := r.users[m.UserID]; !ok {
		return fmt.Errorf("user %s: %w", m.UserID, ErrNotFound)
	}
	if r.isMember(m.ProjectID, m.UserID) {
		return fmt.Errorf("member %s/%s: %w", m.ProjectID, m.UserID, ErrDuplicate)
	}
	cp := *m
	cp.User = nil
	r.members[m.ProjectID] = append(r.members[m.ProjectID], &cp)
	return nil
}

func (r *MemoryRepository) isMember(projectID, userID string) bool {
	for _, m := range r.members[projectID] {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) ListTeamMembers(ctx context.Context, projectID string) ([]*models.TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*models.TeamMember, 0, len(r.members[projectID]))
	for _, m := range r.members[projectID] {
		cp := *m
		if u, ok := r.users[m.UserID]; ok {
			cp.User = cloneUser(u)
		}
		members = append(members, &cp)
	}
	return members, nil
}

// --- Tasks ---

func (r *MemoryRepository) CreateTask(ctx context.Context, t *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[t.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", t.ProjectID, ErrNotFound)
	}
	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("task %s: %w", t.ID, ErrDuplicate)
	}
	r.tasks[t.ID] = cloneTask(t)
	return nil
}

func (r *MemoryRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	return cloneTask(t), nil
}

func (r *MemoryRepository) UpdateTask(ctx context.Context, t *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; !ok {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	r.tasks[t.ID] = cloneTask(t)
	return nil
}

func (r *MemoryRepository) ListTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tasks []*models.Task
	for _, t := range r.tasks {
		if filters.ProjectID != "" && t.ProjectID != filters.ProjectID {
			continue
		}
		if filters.AssignedUserID != "" && (t.AssignedUserID == nil || *t.AssignedUserID != filters.AssignedUserID) {
			continue
		}
		if filters.Status != "" && t.Status != filters.Status {
			continue
		}
		if filters.ExecutionStatus != "" && (t.ExecutionLog == nil || t.ExecutionLog.Status != filters.ExecutionStatus) {
			continue
		}
		if filters.UpdatedBefore != nil && !t.UpdatedAt.Before(*filters.UpdatedBefore) {
			continue
		}
		tasks = append(tasks, cloneTask(t))
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return paginate(tasks, filters.Limit, filters.Offset), nil
}

func (r *MemoryRepository) AssignTaskIfUnassigned(ctx context.Context, taskID, userID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return false, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if t.IsAssigned() {
		return false, nil
	}
	uid := userID
	t.AssignedUserID = &uid
	t.UpdatedAt = at
	return true, nil
}

// --- Interviews & offers ---

func (r *MemoryRepository) CreateInterview(ctx context.Context, iv *models.Interview, offer *models.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.interviews {
		if existing.ProjectID == iv.ProjectID && existing.UserID == iv.UserID {
			return fmt.Errorf("interview %s/%s: %w", iv.ProjectID, iv.UserID, ErrDuplicate)
		}
	}
	if offer != nil {
		for _, existing := range r.offers {
			if existing.InterviewID == offer.InterviewID {
				return fmt.Errorf("offer for interview %s: %w", offer.InterviewID, ErrDuplicate)
			}
		}
	}

	cp := *iv
	cp.ConversationLog = append([]models.ConversationTurn(nil), iv.ConversationLog...)
	r.interviews[iv.ID] = &cp

	if offer != nil {
		oc := *offer
		oc.Project = nil
		r.offers[offer.ID] = &oc
	}
	return nil
}

func (r *MemoryRepository) GetInterviewByPair(ctx context.Context, projectID, userID string) (*models.Interview, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, iv := range r.interviews {
		if iv.ProjectID == projectID && iv.UserID == userID {
			cp := *iv
			cp.ConversationLog = append([]models.ConversationTurn(nil), iv.ConversationLog...)
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListInterviews(ctx context.Context, filters InterviewFilters) ([]*models.Interview, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var interviews []*models.Interview
	for _, iv := range r.interviews {
		if filters.ProjectID != "" && iv.ProjectID != filters.ProjectID {
			continue
		}
		if filters.UserID != "" && iv.UserID != filters.UserID {
			continue
		}
		cp := *iv
		cp.ConversationLog = append([]models.ConversationTurn(nil), iv.ConversationLog...)
		interviews = append(interviews, &cp)
	}
	sort.SliceStable(interviews, func(i, j int) bool {
		return interviews[i].CreatedAt.After(interviews[j].CreatedAt)
	})
	return paginate(interviews, filters.Limit, 0), nil
}

func (r *MemoryRepository) GetOffer(ctx context.Context, id string) (*models.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.offers[id]
	if !ok {
		return nil, nil
	}
	return r.offerWithProject(o), nil
}

func (r *MemoryRepository) offerWithProject(o *models.Offer) *models.Offer {
	cp := *o
	if p, ok := r.projects[o.ProjectID]; ok {
		cp.Project = cloneProject(p)
	}
	return &cp
}

func (r *MemoryRepository) ListOffers(ctx context.Context, filters OfferFilters) ([]*models.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var offers []*models.Offer
	for _, o := range r.offers {
		if filters.UserID != "" && o.UserID != filters.UserID {
			continue
		}
		if filters.Status != "" && o.Status != filters.Status {
			continue
		}
		offers = append(offers, r.offerWithProject(o))
	}
	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].CreatedAt.After(offers[j].CreatedAt)
	})
	return offers, nil
}

func (r *MemoryRepository) RespondOffer(ctx context.Context, offerID string, status models.OfferStatus, at time.Time, member *models.TeamMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.offers[offerID]
	if !ok {
		return fmt.Errorf("offer %s: %w", offerID, ErrNotFound)
	}
	if o.Status != models.OfferPending {
		return fmt.Errorf("offer %s is %s: %w", offerID, o.Status, ErrConflict)
	}

	if member != nil && !r.isMember(member.ProjectID, member.UserID) {
		if err := r.addMember(member); err != nil {
			return err
		}
	}

	o.Status = status
	responded := at
	o.RespondedAt = &responded
	return nil
}

// --- Notifications ---

func (r *MemoryRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *n
	r.notifications[n.ID] = &cp
	return nil
}

func (r *MemoryRepository) ListNotifications(ctx context.Context, filters NotificationFilters) ([]*models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var notifications []*models.Notification
	for _, n := range r.notifications {
		if filters.UserID != "" && n.UserID != filters.UserID {
			continue
		}
		if filters.UnreadOnly && n.Read {
			continue
		}
		cp := *n
		notifications = append(notifications, &cp)
	}
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return paginate(notifications, filters.Limit, 0), nil
}

func (r *MemoryRepository) MarkNotificationRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	n.Read = true
	return nil
}

func (r *MemoryRepository) DeleteNotification(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notifications[id]; !ok {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	delete(r.notifications, id)
	return nil
}

// --- Performance ---

func (r *MemoryRepository) InsertPerformanceRecord(ctx context.Context, rec *models.PerformanceRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.TaskID != "" {
		for _, existing := range r.records {
			if existing.TaskID == rec.TaskID {
				return false, nil
			}
		}
	}
	cp := *rec
	cp.Categories = cloneCategories(rec.Categories)
	cp.LearningData = cloneLearningData(rec.LearningData)
	r.records = append(r.records, cp)
	return true, nil
}

func (r *MemoryRepository) ListPerformanceRecords(ctx context.Context, filters models.PerformanceFilters) ([]models.PerformanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []models.PerformanceRecord
	for _, rec := range r.records {
		if filters.AgentID != "" && rec.AgentID != filters.AgentID {
			continue
		}
		if filters.UserID != "" && rec.UserID != filters.UserID {
			continue
		}
		if filters.ProjectID != "" && rec.ProjectID != filters.ProjectID {
			continue
		}
		cp := rec
		cp.Categories = cloneCategories(rec.Categories)
		cp.LearningData = cloneLearningData(rec.LearningData)
		records = append(records, cp)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RegisteredAt.After(records[j].RegisteredAt)
	})
	if filters.Limit > 0 && len(records) > filters.Limit {
		records = records[:filters.Limit]
	}
	return records, nil
}

// --- API Clients ---

func (r *MemoryRepository) CreateClient(ctx context.Context, c *models.ApiClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.ApiKey]; ok {
		return fmt.Errorf("api client %s: %w", c.Name, ErrDuplicate)
	}
	cp := *c
	cp.Permissions = append([]string(nil), c.Permissions...)
	r.clients[c.ApiKey] = &cp
	return nil
}

func (r *MemoryRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[apiKey]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Permissions = append([]string(nil), c.Permissions...)
	return &cp, nil
}

func (r *MemoryRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[apiKey]; ok {
		now := time.Now()
		c.LastUsedAt = &now
	}
	return nil
}

// --- copies ---

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneCategories(c map[string]int) map[string]int {
	if c == nil {
		return nil
	}
	out := make(map[string]int, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// cloneLearningData copies the top level only; nested values are shared
func cloneLearningData(d map[string]interface{}) map[string]interface{} {
	if d == nil {
		return nil
	}
	out := make(map[string]interface{}, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func cloneCapabilities(c models.Capabilities) models.Capabilities {
	c.Skills = cloneStrings(c.Skills)
	c.Industries = cloneStrings(c.Industries)
	c.RequiredSkills = cloneStrings(c.RequiredSkills)
	c.Focus = cloneStrings(c.Focus)
	return c
}

func cloneAgent(a *models.Agent) *models.Agent {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Capabilities = cloneCapabilities(a.Capabilities)
	cp.PerformanceHistory = nil
	return &cp
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.Skills = cloneStrings(u.Skills)
	cp.Industries = cloneStrings(u.Industries)
	cp.Agent = cloneAgent(u.Agent)
	return &cp
}

func cloneProject(p *models.Project) *models.Project {
	cp := *p
	cp.Agent = cloneAgent(p.Agent)
	return &cp
}

func cloneTask(t *models.Task) *models.Task {
	cp := *t
	cp.RequiredSkills = cloneStrings(t.RequiredSkills)
	if t.AssignedUserID != nil {
		uid := *t.AssignedUserID
		cp.AssignedUserID = &uid
	}
	if t.ExecutionLog != nil {
		log := *t.ExecutionLog
		log.Steps = append([]models.ExecutionStep(nil), t.ExecutionLog.Steps...)
		cp.ExecutionLog = &log
	}
	return &cp
}
