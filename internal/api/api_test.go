package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/terra-clan/staffing-engine/internal/config"
	"github.com/terra-clan/staffing-engine/internal/execution"
	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/services"
	"github.com/terra-clan/staffing-engine/internal/staffing"
	"github.com/terra-clan/staffing-engine/internal/storage"
)

const adminKey = "sk_test_admin_key"

type testEnv struct {
	server *Server
	repo   *storage.MemoryRepository
	svc    *staffing.Service
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func newTestEnv(t *testing.T, bus services.ProgressBus, svcOpts ...staffing.Option) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	repo := storage.NewMemoryRepository()
	svc := staffing.New(repo, logger, append([]staffing.Option{staffing.WithLocker(services.NewLocalLocker())}, svcOpts...)...)

	require.NoError(t, repo.CreateClient(context.Background(), &models.ApiClient{
		ID:          "admin",
		Name:        "admin",
		ApiKey:      adminKey,
		IsActive:    true,
		Permissions: []string{"*"},
	}))

	var opts []ServerOption
	if bus != nil {
		opts = append(opts, WithProgressBus(bus))
	}
	cfg := config.ServerConfig{RequestTimeout: 5 * time.Second}
	return &testEnv{
		server: NewServer(cfg, svc, repo, nil, logger, opts...),
		repo:   repo,
		svc:    svc,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return e.doWithKey(t, method, path, body, adminKey)
}

func (e *testEnv) doWithKey(t *testing.T, method, path string, body interface{}, key string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (e *testEnv) registerUser(t *testing.T, name, email string, skills, industries []string) *models.User {
	t.Helper()
	body := map[string]interface{}{"name": name, "email": email}
	if skills != nil {
		body["skills"] = skills
	}
	if industries != nil {
		body["industries"] = industries
	}
	rec, env := e.do(t, http.MethodPost, "/api/v1/users", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[*models.User](t, env)
}

func (e *testEnv) createProject(t *testing.T, body map[string]interface{}) *models.Project {
	t.Helper()
	rec, env := e.do(t, http.MethodPost, "/api/v1/projects", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[*models.Project](t, env)
}

func (e *testEnv) createTask(t *testing.T, projectID string, body map[string]interface{}) *models.Task {
	t.Helper()
	rec, env := e.do(t, http.MethodPost, "/api/v1/projects/"+projectID+"/tasks", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[*models.Task](t, env)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := env.doWithKey(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, _ = env.doWithKey(t, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	require.NoError(t, env.repo.CreateClient(ctx, &models.ApiClient{
		ID: "reader", Name: "reader", ApiKey: "sk_test_reader", IsActive: true,
		Permissions: []string{models.PermUsersRead},
	}))
	require.NoError(t, env.repo.CreateClient(ctx, &models.ApiClient{
		ID: "old", Name: "old", ApiKey: "sk_test_inactive", IsActive: false,
		Permissions: []string{"*"},
	}))

	tests := []struct {
		name   string
		method string
		key    string
		status int
		code   string
	}{
		{"missing key", http.MethodGet, "", http.StatusUnauthorized, "missing_api_key"},
		{"unknown key", http.MethodGet, "sk_test_unknown", http.StatusUnauthorized, "invalid_api_key"},
		{"inactive client", http.MethodGet, "sk_test_inactive", http.StatusUnauthorized, "client_inactive"},
		{"missing permission", http.MethodPost, "sk_test_reader", http.StatusForbidden, "permission_denied"},
		{"allowed", http.MethodGet, "sk_test_reader", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body interface{}
			if tt.method == http.MethodPost {
				body = map[string]string{"name": "x", "email": "x@example.com"}
			}
			rec, resp := env.doWithKey(t, tt.method, "/api/v1/users", body, tt.key)
			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.code, resp.Error.Code)
			}
		})
	}

	t.Run("query parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users?api_key=sk_test_reader", nil)
		rec := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestUserEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	user := env.registerUser(t, "山田太郎", "yamada@example.com", []string{"Go", "React"}, []string{"金融"})
	assert.Equal(t, models.RoleMember, user.Role)
	require.NotNil(t, user.Agent)
	assert.Equal(t, "山田太郎のエージェント", user.Agent.Name)

	t.Run("schema violation", func(t *testing.T) {
		rec, resp := env.do(t, http.MethodPost, "/api/v1/users", map[string]interface{}{
			"name":   "名無し",
			"skills": "Go",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "validation_error", resp.Error.Code)
		assert.NotEmpty(t, resp.Error.Details)
	})

	t.Run("empty body", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/users", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec, resp := env.do(t, http.MethodPost, "/api/v1/users", map[string]interface{}{
			"name":  "別人",
			"email": "yamada@example.com",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "duplicate", resp.Error.Code)
	})

	t.Run("get and update", func(t *testing.T) {
		rec, resp := env.do(t, http.MethodGet, "/api/v1/users/"+user.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, user.Email, decodeData[*models.User](t, resp).Email)

		rec, resp = env.do(t, http.MethodPut, "/api/v1/users/"+user.ID, map[string]interface{}{
			"skills": []string{"Go", "Kubernetes"},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		updated := decodeData[*models.User](t, resp)
		assert.Equal(t, []string{"Go", "Kubernetes"}, updated.Agent.Capabilities.Skills)
	})

	t.Run("not found", func(t *testing.T) {
		rec, resp := env.do(t, http.MethodGet, "/api/v1/users/missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", resp.Error.Code)
	})

	t.Run("bad pagination", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/users?limit=-1", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec, resp := env.do(t, http.MethodGet, "/api/v1/users", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decodeData[struct {
			Users []*models.User `json:"users"`
			Total int            `json:"total"`
		}](t, resp)
		assert.Equal(t, 1, list.Total)
	})
}

func TestProjectTaskFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	owner := env.registerUser(t, "佐藤", "sato@example.com", []string{"マネジメント"}, nil)
	dev := env.registerUser(t, "鈴木", "suzuki@example.com", []string{"Go", "PostgreSQL"}, []string{"金融"})
	designer := env.registerUser(t, "高橋", "takahashi@example.com", []string{"Figma"}, nil)

	project := env.createProject(t, map[string]interface{}{
		"name":    "決済基盤",
		"status":  "ACTIVE",
		"ownerId": owner.ID,
		"capabilities": map[string]interface{}{
			"requiredSkills": []string{"Go", "PostgreSQL"},
			"domain":         "金融",
		},
	})
	require.NotNil(t, project.Agent)
	assert.Equal(t, "決済基盤のプロジェクトエージェント", project.Agent.Name)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/projects/"+project.ID+"/members", map[string]string{"userId": designer.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/projects/"+project.ID+"/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decodeData[struct {
		Total int `json:"total"`
	}](t, resp)
	assert.Equal(t, 2, members.Total)

	task := env.createTask(t, project.ID, map[string]interface{}{
		"name":           "API実装",
		"requiredSkills": []string{"Go"},
	})
	assert.Equal(t, models.TaskTodo, task.Status)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/projects/"+project.ID+"/tasks/"+task.ID+"/matches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decodeData[struct {
		Matches []struct {
			UserID string `json:"userId"`
			Score  int    `json:"score"`
		} `json:"matches"`
	}](t, resp)
	require.NotEmpty(t, matches.Matches)
	assert.Equal(t, dev.ID, matches.Matches[0].UserID)

	rec, resp = env.do(t, http.MethodPost, "/api/v1/projects/"+project.ID+"/tasks/"+task.ID+"/assign", map[string]string{"userId": dev.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assigned := decodeData[*models.Task](t, resp)
	require.NotNil(t, assigned.AssignedUserID)
	assert.Equal(t, dev.ID, *assigned.AssignedUserID)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID+"/progress", map[string]interface{}{"progress": 150})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = env.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID+"/progress", map[string]interface{}{"progress": 100})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decodeData[*models.Task](t, resp)
	assert.Equal(t, models.TaskCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/projects/"+project.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeData[*models.ProjectStats](t, resp)
	assert.Equal(t, 1, stats.TotalTasks)
	assert.Equal(t, 1, stats.CompletedTasks)
	assert.Equal(t, 100, stats.CompletionRate)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/users/"+dev.ID+"/performance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	perf := decodeData[struct {
		Total int `json:"total"`
	}](t, resp)
	assert.Equal(t, 1, perf.Total)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/users/"+dev.ID+"/performance/analysis", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("auto assign", func(t *testing.T) {
		env.createTask(t, project.ID, map[string]interface{}{"name": "画面デザイン", "requiredSkills": []string{"Figma"}})

		rec, resp := env.do(t, http.MethodPost, "/api/v1/projects/"+project.ID+"/auto-assign", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		result := decodeData[*staffing.AutoAssignResult](t, resp)
		assert.Equal(t, 1, result.Assigned)
	})

	t.Run("unknown project", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/projects/missing/tasks", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestInterviewOfferFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	candidate := env.registerUser(t, "伊藤", "ito@example.com", []string{"Go", "PostgreSQL"}, []string{"金融"})
	project := env.createProject(t, map[string]interface{}{
		"name": "決済",
		"capabilities": map[string]interface{}{
			"requiredSkills": []string{"Go", "PostgreSQL"},
			"domain":         "金融",
		},
	})

	rec, resp := env.do(t, http.MethodPost, "/api/v1/projects/"+project.ID+"/interview", map[string]string{"userId": candidate.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	outcome := decodeData[*staffing.InterviewOutcome](t, resp)
	assert.Equal(t, models.InterviewPassed, outcome.Result)
	require.NotNil(t, outcome.Offer)

	rec, resp = env.do(t, http.MethodPost, "/api/v1/projects/"+project.ID+"/interview", map[string]string{"userId": candidate.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate", resp.Error.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/offers?userId="+candidate.ID+"&status=PENDING", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	offers := decodeData[struct {
		Total int `json:"total"`
	}](t, resp)
	assert.Equal(t, 1, offers.Total)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/offers", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/offers/"+outcome.Offer.ID+"/respond", map[string]string{"action": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = env.do(t, http.MethodPost, "/api/v1/offers/"+outcome.Offer.ID+"/respond", map[string]string{"action": "accept"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.OfferAccepted, decodeData[*models.Offer](t, resp).Status)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/offers/"+outcome.Offer.ID+"/respond", map[string]string{"action": "reject"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/notifications?userId="+candidate.ID+"&unread=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decodeData[struct {
		Notifications []*models.Notification `json:"notifications"`
	}](t, resp)
	require.Len(t, notes.Notifications, 1)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/notifications/"+notes.Notifications[0].ID+"/read", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/notifications?userId="+candidate.ID+"&unread=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeData[struct {
		Total int `json:"total"`
	}](t, resp).Total)
}

func TestNotificationDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.registerUser(t, "森", "mori@example.com", nil, nil)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/notifications", map[string]string{
		"userId": user.ID, "title": "お知らせ", "message": "本文",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	n := decodeData[*models.Notification](t, resp)

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/notifications/"+n.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodDelete, "/api/v1/notifications/"+n.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp.Error.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/notifications?userId="+user.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeData[struct {
		Total int `json:"total"`
	}](t, resp).Total)
}

func TestPerformanceRegistration(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.registerUser(t, "小林", "kobayashi@example.com", []string{"Go"}, nil)
	require.NotNil(t, user.Agent)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/performance", map[string]interface{}{
		"agentId":      user.Agent.ID,
		"performance":  map[string]interface{}{"overallScore": 88, "categories": map[string]int{"quality": 90}},
		"learningData": map[string]interface{}{"taskType": "testing"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	record := decodeData[*models.PerformanceRecord](t, resp)
	assert.Equal(t, user.ID, record.UserID)
	assert.Equal(t, "testing", record.TaskType)

	rec, resp = env.do(t, http.MethodPost, "/api/v1/performance", map[string]interface{}{
		"performance": map[string]interface{}{"overallScore": 88},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", resp.Error.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/performance", map[string]interface{}{
		"agentId":     "ghost",
		"performance": map[string]interface{}{"overallScore": 88},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/performance?userId="+user.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeData[struct {
		Total int `json:"total"`
	}](t, resp).Total)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/users/"+user.ID+"/performance/analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	analysis := decodeData[*models.PerformanceAnalysis](t, resp)
	assert.Equal(t, 1, analysis.TotalProjects)
	assert.Equal(t, float64(88), analysis.AverageScore)

	t.Run("requires write permission", func(t *testing.T) {
		require.NoError(t, env.repo.CreateClient(context.Background(), &models.ApiClient{
			ID: "perf-reader", Name: "perf-reader", ApiKey: "sk_test_perf_reader", IsActive: true,
			Permissions: []string{models.PermPerformanceRead},
		}))
		rec, _ := env.doWithKey(t, http.MethodPost, "/api/v1/performance", map[string]interface{}{
			"agentId":     user.Agent.ID,
			"performance": map[string]interface{}{"overallScore": 50},
		}, "sk_test_perf_reader")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := &Server{logger: zap.New(core)}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	ctx := context.WithValue(r.Context(), middleware.RequestIDKey, "req-1")

	s.requestLogger(r.WithContext(ctx)).Info("anonymous")
	s.requestLogger(r.WithContext(ContextWithClient(ctx, &models.ApiClient{ID: "c1", Name: "ci"}))).Info("authenticated")

	entries := logs.All()
	require.Len(t, entries, 2)

	anonymous := entries[0].ContextMap()
	assert.Equal(t, "req-1", anonymous["request_id"])
	assert.Equal(t, "/api/v1/users", anonymous["path"])
	assert.NotContains(t, anonymous, "client_id")

	authenticated := entries[1].ContextMap()
	assert.Equal(t, "c1", authenticated["client_id"])
	assert.Equal(t, "ci", authenticated["client"])
}

func readSSE(t *testing.T, body string) []models.ExecutionEvent {
	t.Helper()
	var events []models.ExecutionEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev models.ExecutionEvent
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		events = append(events, ev)
	}
	return events
}

func TestExecuteTask(t *testing.T) {
	env := newTestEnv(t, nil, staffing.WithExecution(execution.Config{SpeedFactor: 0}))

	project := env.createProject(t, map[string]interface{}{"name": "自動化"})
	task := env.createTask(t, project.ID, map[string]interface{}{"name": "テスト実行", "autoExecutable": true})
	manual := env.createTask(t, project.ID, map[string]interface{}{"name": "手作業"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/"+task.ID+"/execute", nil)
	req.Header.Set("X-API-Key", adminKey)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := readSSE(t, rec.Body.String())
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, models.EventStepStart, events[0].Type)
	last := events[len(events)-1]
	assert.Equal(t, models.EventDone, last.Type)
	assert.Equal(t, 100, last.Progress)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Progress, events[i-1].Progress)
	}

	_, resp := env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, nil)
	stored := decodeData[*models.Task](t, resp)
	assert.Equal(t, models.TaskCompleted, stored.Status)
	require.NotNil(t, stored.ExecutionLog)
	assert.Equal(t, models.ExecutionCompleted, stored.ExecutionLog.Status)

	t.Run("already completed", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/execute", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not executable", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/tasks/"+manual.ID+"/execute", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/tasks/missing/execute", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("ndjson", func(t *testing.T) {
		other := env.createTask(t, project.ID, map[string]interface{}{"name": "ビルド", "autoExecutable": true})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/"+other.ID+"/execute", nil)
		req.Header.Set("X-API-Key", adminKey)
		req.Header.Set("Accept", "application/x-ndjson")
		rec := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		var ev models.ExecutionEvent
		require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &ev))
		assert.Equal(t, models.EventDone, ev.Type)
	})
}

func TestExecuteTask_Disabled(t *testing.T) {
	env := newTestEnv(t, nil)

	project := env.createProject(t, map[string]interface{}{"name": "手動"})
	task := env.createTask(t, project.ID, map[string]interface{}{"name": "テスト", "autoExecutable": true})

	rec, resp := env.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/execute", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "execution_disabled", resp.Error.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID+"/execution/ws", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExecutionObserver(t *testing.T) {
	bus := services.NewLocalBus()
	env := newTestEnv(t, bus, staffing.WithExecution(execution.Config{SpeedFactor: 0, Publisher: bus}))

	project := env.createProject(t, map[string]interface{}{"name": "監視"})
	task := env.createTask(t, project.ID, map[string]interface{}{"name": "デプロイ", "autoExecutable": true})

	srv := httptest.NewServer(env.server.Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/tasks/" + task.ID + "/execution/ws?api_key=" + adminKey
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var snapshot ObserverMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "snapshot", snapshot.Type)
	require.NotNil(t, snapshot.Task)
	assert.Equal(t, task.ID, snapshot.Task.ID)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/tasks/"+task.ID+"/execute", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", adminKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var observed []models.ExecutionEvent
	for {
		var msg ObserverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		require.Equal(t, "event", msg.Type)
		observed = append(observed, *msg.Event)
		if msg.Event.Terminal() {
			break
		}
	}

	require.NotEmpty(t, observed)
	assert.Equal(t, models.EventDone, observed[len(observed)-1].Type)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/tasks/missing/execution/ws", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
