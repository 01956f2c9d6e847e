package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/staffing"
)

// Client is a Go SDK for the staffing-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout. Execution streams are not bound by it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new staffing-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is returned when the server answers with success=false
type APIError struct {
	StatusCode int
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Details    []string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ListOptions contains paging options for list calls
type ListOptions struct {
	Limit  int
	Offset int
}

func (o ListOptions) apply(q url.Values) {
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
}

// Users

// RegisterUser creates a user and their personal agent
func (c *Client) RegisterUser(ctx context.Context, req models.RegisterUserRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/api/v1/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser retrieves a user by ID
func (c *Client) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser changes profile fields of a user
func (c *Client) UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPut, "/api/v1/users/"+url.PathEscape(id), req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers retrieves users, optionally filtered by role
func (c *Client) ListUsers(ctx context.Context, role models.UserRole, opts ListOptions) ([]*models.User, error) {
	q := url.Values{}
	if role != "" {
		q.Set("role", string(role))
	}
	opts.apply(q)

	var result struct {
		Users []*models.User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, withQuery("/api/v1/users", q), nil, &result); err != nil {
		return nil, err
	}
	return result.Users, nil
}

// AutoInterview interviews the user for every project they are not part of
func (c *Client) AutoInterview(ctx context.Context, userID string) ([]*staffing.InterviewOutcome, error) {
	var result struct {
		Interviews []*staffing.InterviewOutcome `json:"interviews"`
	}
	path := "/api/v1/users/" + url.PathEscape(userID) + "/auto-interview"
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Interviews, nil
}

// AnalyzePerformance returns the performance analysis of a user's agent
func (c *Client) AnalyzePerformance(ctx context.Context, userID string) (*models.PerformanceAnalysis, error) {
	var analysis models.PerformanceAnalysis
	path := "/api/v1/users/" + url.PathEscape(userID) + "/performance/analysis"
	if err := c.do(ctx, http.MethodGet, path, nil, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// RegisterPerformance adds a performance record to an agent's track record
func (c *Client) RegisterPerformance(ctx context.Context, req models.RegisterPerformanceRequest) (*models.PerformanceRecord, error) {
	var record models.PerformanceRecord
	if err := c.do(ctx, http.MethodPost, "/api/v1/performance", req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Projects

// CreateProject creates a project and its project agent
func (c *Client) CreateProject(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error) {
	var project models.Project
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects", req, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProject retrieves a project by ID
func (c *Client) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := c.do(ctx, http.MethodGet, projectPath(id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects retrieves projects, optionally those a user is a member of
func (c *Client) ListProjects(ctx context.Context, memberID string, opts ListOptions) ([]*models.Project, error) {
	q := url.Values{}
	if memberID != "" {
		q.Set("memberId", memberID)
	}
	opts.apply(q)

	var result struct {
		Projects []*models.Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, withQuery("/api/v1/projects", q), nil, &result); err != nil {
		return nil, err
	}
	return result.Projects, nil
}

// ProjectStats returns progress statistics for a project
func (c *Client) ProjectStats(ctx context.Context, id string) (*models.ProjectStats, error) {
	var stats models.ProjectStats
	if err := c.do(ctx, http.MethodGet, projectPath(id)+"/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// AddTeamMember adds a user to a project team
func (c *Client) AddTeamMember(ctx context.Context, projectID string, req models.AddTeamMemberRequest) (*models.TeamMember, error) {
	var member models.TeamMember
	if err := c.do(ctx, http.MethodPost, projectPath(projectID)+"/members", req, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// ConductInterview interviews a user for a project
func (c *Client) ConductInterview(ctx context.Context, projectID, userID string) (*staffing.InterviewOutcome, error) {
	var outcome staffing.InterviewOutcome
	req := models.InterviewRequest{UserID: userID}
	if err := c.do(ctx, http.MethodPost, projectPath(projectID)+"/interview", req, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// AutoAssign assigns the best available member to each unassigned task
func (c *Client) AutoAssign(ctx context.Context, projectID string) (*staffing.AutoAssignResult, error) {
	var result staffing.AutoAssignResult
	if err := c.do(ctx, http.MethodPost, projectPath(projectID)+"/auto-assign", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Tasks

// CreateTask creates a task inside a project
func (c *Client) CreateTask(ctx context.Context, projectID string, req models.CreateTaskRequest) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPost, projectPath(projectID)+"/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask retrieves a task by ID
func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateProgress updates task progress and/or status
func (c *Client) UpdateProgress(ctx context.Context, id string, req models.UpdateProgressRequest) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPut, "/api/v1/tasks/"+url.PathEscape(id)+"/progress", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// TaskMatches ranks users for a task
func (c *Client) TaskMatches(ctx context.Context, projectID, taskID string) ([]matching.MatchResult, error) {
	var result struct {
		Matches []matching.MatchResult `json:"matches"`
	}
	path := projectPath(projectID) + "/tasks/" + url.PathEscape(taskID) + "/matches"
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Matches, nil
}

// AssignTask assigns a task to a user
func (c *Client) AssignTask(ctx context.Context, projectID, taskID, userID string) (*models.Task, error) {
	var task models.Task
	path := projectPath(projectID) + "/tasks/" + url.PathEscape(taskID) + "/assign"
	if err := c.do(ctx, http.MethodPost, path, models.AssignTaskRequest{UserID: userID}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ExecuteTask runs the task's mock playbook and calls fn for every progress
// event until the run ends. A run that ends with an error event returns it
// as an error.
func (c *Client) ExecuteTask(ctx context.Context, id string, fn func(models.ExecutionEvent) error) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/tasks/"+url.PathEscape(id)+"/execute", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	// the stream outlives the regular request timeout
	stream := &http.Client{Transport: c.httpClient.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev models.ExecutionEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if fn != nil {
			if err := fn(ev); err != nil {
				return err
			}
		}
		if ev.Type == models.EventError {
			return fmt.Errorf("execution failed: %s", ev.Message)
		}
		if ev.Terminal() {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return errors.New("execution stream ended before completion")
}

// Offers and notifications

// ListOffers retrieves a user's offers, optionally filtered by status
func (c *Client) ListOffers(ctx context.Context, userID string, status models.OfferStatus) ([]*models.Offer, error) {
	q := url.Values{}
	q.Set("userId", userID)
	if status != "" {
		q.Set("status", string(status))
	}

	var result struct {
		Offers []*models.Offer `json:"offers"`
	}
	if err := c.do(ctx, http.MethodGet, withQuery("/api/v1/offers", q), nil, &result); err != nil {
		return nil, err
	}
	return result.Offers, nil
}

// RespondOffer accepts or rejects an offer
func (c *Client) RespondOffer(ctx context.Context, offerID string, accept bool) (*models.Offer, error) {
	action := models.OfferActionReject
	if accept {
		action = models.OfferActionAccept
	}

	var offer models.Offer
	path := "/api/v1/offers/" + url.PathEscape(offerID) + "/respond"
	if err := c.do(ctx, http.MethodPost, path, models.RespondOfferRequest{Action: action}, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// ListNotifications retrieves a user's notifications
func (c *Client) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	q := url.Values{}
	q.Set("userId", userID)
	if unreadOnly {
		q.Set("unread", "true")
	}

	var result struct {
		Notifications []*models.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, withQuery("/api/v1/notifications", q), nil, &result); err != nil {
		return nil, err
	}
	return result.Notifications, nil
}

// MarkNotificationRead marks a notification as read
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// DeleteNotification removes a notification
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/notifications/"+url.PathEscape(id), nil, nil)
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func projectPath(id string) string {
	return "/api/v1/projects/" + url.PathEscape(id)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// do performs a request and decodes the data of the response envelope into out
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, respBody)
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var result struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.Error == nil {
		return &APIError{StatusCode: status, Code: "http_error", Message: string(bytes.TrimSpace(body))}
	}
	result.Error.StatusCode = status
	return result.Error
}
