package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/staffing-engine/internal/models"
)

// PostgreSQL error codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	MinConns    int32
	MaxLifetime time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	poolConfig.MaxConns = 25
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = 5
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the connection pool for migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// --- Users ---

const userColumns = `
	u.id, u.name, u.email, u.role, u.skills, u.industries, u.preferences, u.created_at, u.updated_at,
	a.id, a.name, a.personality, a.capabilities, a.created_at`

// CreateUser inserts the user and their personal agent in one transaction
func (r *PostgresRepository) CreateUser(ctx context.Context, u *models.User) error {
	skillsJSON, industriesJSON, err := marshalPair(u.Skills, u.Industries)
	if err != nil {
		return err
	}
	prefsJSON, err := json.Marshal(u.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, role, skills, industries, preferences, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, u.ID, u.Name, u.Email, string(u.Role), skillsJSON, industriesJSON, prefsJSON, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return classify(fmt.Errorf("failed to create user: %w", err))
		}

		if u.Agent != nil {
			if err := insertAgent(ctx, tx, u.Agent); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetUser retrieves a user with their agent
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT` + userColumns + `
		FROM users u
		LEFT JOIN agents a ON a.user_id = u.id
		WHERE u.id = $1
	`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByAgentID retrieves the user owning a personal agent
func (r *PostgresRepository) GetUserByAgentID(ctx context.Context, agentID string) (*models.User, error) {
	query := `SELECT` + userColumns + `
		FROM users u
		JOIN agents a ON a.user_id = u.id
		WHERE a.id = $1
	`

	u, err := scanUser(r.pool.QueryRow(ctx, query, agentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by agent: %w", err)
	}
	return u, nil
}

// UpdateUser updates profile fields and the agent capabilities
func (r *PostgresRepository) UpdateUser(ctx context.Context, u *models.User) error {
	skillsJSON, industriesJSON, err := marshalPair(u.Skills, u.Industries)
	if err != nil {
		return err
	}
	prefsJSON, err := json.Marshal(u.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE users
			SET name = $2, skills = $3, industries = $4, preferences = $5, updated_at = $6
			WHERE id = $1
		`, u.ID, u.Name, skillsJSON, industriesJSON, prefsJSON, u.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
		}

		if u.Agent != nil {
			capsJSON, err := json.Marshal(u.Agent.Capabilities)
			if err != nil {
				return fmt.Errorf("failed to marshal capabilities: %w", err)
			}
			if _, err := tx.Exec(ctx, `UPDATE agents SET capabilities = $2 WHERE user_id = $1`, u.ID, capsJSON); err != nil {
				return fmt.Errorf("failed to update agent: %w", err)
			}
		}
		return nil
	})
}

// ListUsers returns users matching filters, newest first
func (r *PostgresRepository) ListUsers(ctx context.Context, filters models.UserFilters) ([]*models.User, error) {
	query := `SELECT` + userColumns + `
		FROM users u
		LEFT JOIN agents a ON a.user_id = u.id
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.Role != "" {
		query += fmt.Sprintf(" AND u.role = $%d", argNum)
		args = append(args, string(filters.Role))
		argNum++
	}

	query += " ORDER BY u.created_at DESC"
	query, args = appendPage(query, args, argNum, filters.Limit, filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var role string
	var skillsJSON, industriesJSON, prefsJSON []byte
	var agent agentColumns

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&role,
		&skillsJSON,
		&industriesJSON,
		&prefsJSON,
		&u.CreatedAt,
		&u.UpdatedAt,
		&agent.id,
		&agent.name,
		&agent.personality,
		&agent.capabilities,
		&agent.createdAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = models.UserRole(role)
	if err := unmarshalIfPresent(skillsJSON, &u.Skills); err != nil {
		return nil, fmt.Errorf("failed to unmarshal skills: %w", err)
	}
	if err := unmarshalIfPresent(industriesJSON, &u.Industries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal industries: %w", err)
	}
	if err := unmarshalIfPresent(prefsJSON, &u.Preferences); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}

	u.Agent, err = agent.toAgent(models.AgentTypeUser)
	if err != nil {
		return nil, err
	}
	if u.Agent != nil {
		u.Agent.UserID = u.ID
	}
	return &u, nil
}

// --- Agents ---

type agentColumns struct {
	id, name, personality sql.NullString
	capabilities          []byte
	createdAt             sql.NullTime
}

func (c agentColumns) toAgent(typ models.AgentType) (*models.Agent, error) {
	if !c.id.Valid {
		return nil, nil
	}
	a := &models.Agent{
		ID:          c.id.String,
		Name:        c.name.String,
		Type:        typ,
		Personality: c.personality.String,
		CreatedAt:   c.createdAt.Time,
	}
	if err := unmarshalIfPresent(c.capabilities, &a.Capabilities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal capabilities: %w", err)
	}
	return a, nil
}

func insertAgent(ctx context.Context, tx pgx.Tx, a *models.Agent) error {
	capsJSON, err := json.Marshal(a.Capabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal capabilities: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO agents (id, name, type, personality, capabilities, user_id, project_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.Name, string(a.Type), nullString(a.Personality), capsJSON, nullString(a.UserID), nullString(a.ProjectID), a.CreatedAt)
	if err != nil {
		return classify(fmt.Errorf("failed to create agent: %w", err))
	}
	return nil
}

// --- Projects ---

const projectColumns = `
	p.id, p.name, p.description, p.requirements_doc, p.status, p.start_date, p.end_date, p.created_at, p.updated_at,
	a.id, a.name, a.personality, a.capabilities, a.created_at`

// CreateProject inserts the project and its project agent in one transaction
func (r *PostgresRepository) CreateProject(ctx context.Context, p *models.Project) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO projects (id, name, description, requirements_doc, status, start_date, end_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			p.ID,
			p.Name,
			nullString(p.Description),
			nullString(p.RequirementsDoc),
			string(p.Status),
			nullTime(p.StartDate),
			nullTime(p.EndDate),
			p.CreatedAt,
			p.UpdatedAt,
		)
		if err != nil {
			return classify(fmt.Errorf("failed to create project: %w", err))
		}

		if p.Agent != nil {
			if err := insertAgent(ctx, tx, p.Agent); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetProject retrieves a project with its agent
func (r *PostgresRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT` + projectColumns + `
		FROM projects p
		LEFT JOIN agents a ON a.project_id = p.id
		WHERE p.id = $1
	`

	p, err := scanProject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects returns projects matching filters, newest first
func (r *PostgresRepository) ListProjects(ctx context.Context, filters models.ProjectFilters) ([]*models.Project, error) {
	query := `SELECT` + projectColumns + `
		FROM projects p
		LEFT JOIN agents a ON a.project_id = p.id
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" AND p.status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	if filters.Member != "" {
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM team_members tm WHERE tm.project_id = p.id AND tm.user_id = $%d)", argNum)
		args = append(args, filters.Member)
		argNum++
	}

	if filters.ExcludeMember != "" {
		query += fmt.Sprintf(" AND NOT EXISTS (SELECT 1 FROM team_members tm WHERE tm.project_id = p.id AND tm.user_id = $%d)", argNum)
		args = append(args, filters.ExcludeMember)
		argNum++
	}

	query += " ORDER BY p.created_at DESC"
	query, args = appendPage(query, args, argNum, filters.Limit, filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var status string
	var description, requirementsDoc sql.NullString
	var startDate, endDate sql.NullTime
	var agent agentColumns

	err := row.Scan(
		&p.ID,
		&p.Name,
		&description,
		&requirementsDoc,
		&status,
		&startDate,
		&endDate,
		&p.CreatedAt,
		&p.UpdatedAt,
		&agent.id,
		&agent.name,
		&agent.personality,
		&agent.capabilities,
		&agent.createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = models.ProjectStatus(status)
	p.Description = description.String
	p.RequirementsDoc = requirementsDoc.String
	p.StartDate = timePtr(startDate)
	p.EndDate = timePtr(endDate)

	p.Agent, err = agent.toAgent(models.AgentTypeProject)
	if err != nil {
		return nil, err
	}
	if p.Agent != nil {
		p.Agent.ProjectID = p.ID
	}
	return &p, nil
}

// --- Team members ---

// AddTeamMember adds a user to a project team
func (r *PostgresRepository) AddTeamMember(ctx context.Context, m *models.TeamMember) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO team_members (project_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, m.ProjectID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		return classify(fmt.Errorf("failed to add team member: %w", err))
	}
	return nil
}

// ListTeamMembers returns a project's members with their user and agent, in join order
func (r *PostgresRepository) ListTeamMembers(ctx context.Context, projectID string) ([]*models.TeamMember, error) {
	query := `SELECT tm.project_id, tm.user_id, tm.role, tm.joined_at,` + userColumns + `
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		LEFT JOIN agents a ON a.user_id = u.id
		WHERE tm.project_id = $1
		ORDER BY tm.joined_at ASC
	`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	var members []*models.TeamMember
	for rows.Next() {
		var m models.TeamMember
		u, err := scanUser(memberRow{rows: rows, member: &m})
		if err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		m.User = u
		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team members: %w", err)
	}
	return members, nil
}

// memberRow prepends the team member columns to a user scan
type memberRow struct {
	rows   pgx.Rows
	member *models.TeamMember
}

func (m memberRow) Scan(dest ...any) error {
	head := []any{&m.member.ProjectID, &m.member.UserID, &m.member.Role, &m.member.JoinedAt}
	return m.rows.Scan(append(head, dest...)...)
}

// --- Tasks ---

const taskColumns = `
	id, project_id, name, description, status, progress, assigned_user_id, required_skills,
	start_date, end_date, completed_at, auto_executable, execution_log, created_at, updated_at`

// CreateTask creates a new task record
func (r *PostgresRepository) CreateTask(ctx context.Context, t *models.Task) error {
	skillsJSON, logJSON, err := marshalTaskJSON(t)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		t.ID,
		t.ProjectID,
		t.Name,
		nullString(t.Description),
		string(t.Status),
		t.Progress,
		nullStringPtr(t.AssignedUserID),
		skillsJSON,
		nullTime(t.StartDate),
		nullTime(t.EndDate),
		nullTime(t.CompletedAt),
		t.AutoExecutable,
		logJSON,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to create task: %w", err))
	}
	return nil
}

// GetTask retrieves a task by ID
func (r *PostgresRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// UpdateTask updates an existing task
func (r *PostgresRepository) UpdateTask(ctx context.Context, t *models.Task) error {
	skillsJSON, logJSON, err := marshalTaskJSON(t)
	if err != nil {
		return err
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET name = $2, description = $3, status = $4, progress = $5, assigned_user_id = $6, required_skills = $7,
		    start_date = $8, end_date = $9, completed_at = $10, auto_executable = $11, execution_log = $12, updated_at = $13
		WHERE id = $1
	`,
		t.ID,
		t.Name,
		nullString(t.Description),
		string(t.Status),
		t.Progress,
		nullStringPtr(t.AssignedUserID),
		skillsJSON,
		nullTime(t.StartDate),
		nullTime(t.EndDate),
		nullTime(t.CompletedAt),
		t.AutoExecutable,
		logJSON,
		t.UpdatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to update task: %w", err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// ListTasks returns tasks matching filters in creation order
func (r *PostgresRepository) ListTasks(ctx context.Context, filters models.TaskFilters) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.ProjectID != "" {
		query += fmt.Sprintf(" AND project_id = $%d", argNum)
		args = append(args, filters.ProjectID)
		argNum++
	}

	if filters.AssignedUserID != "" {
		query += fmt.Sprintf(" AND assigned_user_id = $%d", argNum)
		args = append(args, filters.AssignedUserID)
		argNum++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	if filters.ExecutionStatus != "" {
		query += fmt.Sprintf(" AND execution_log->>'status' = $%d", argNum)
		args = append(args, string(filters.ExecutionStatus))
		argNum++
	}

	if filters.UpdatedBefore != nil {
		query += fmt.Sprintf(" AND updated_at < $%d", argNum)
		args = append(args, *filters.UpdatedBefore)
		argNum++
	}

	query += " ORDER BY created_at ASC, id ASC"
	query, args = appendPage(query, args, argNum, filters.Limit, filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// AssignTaskIfUnassigned sets the assignee only while assigned_user_id is NULL
func (r *PostgresRepository) AssignTaskIfUnassigned(ctx context.Context, taskID, userID string, at time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE tasks SET assigned_user_id = $2, updated_at = $3
		WHERE id = $1 AND assigned_user_id IS NULL
	`, taskID, userID, at)
	if err != nil {
		return false, classify(fmt.Errorf("failed to assign task: %w", err))
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, taskID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check task: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return false, nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var status string
	var description, assignee sql.NullString
	var startDate, endDate, completedAt sql.NullTime
	var skillsJSON, logJSON []byte

	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Name,
		&description,
		&status,
		&t.Progress,
		&assignee,
		&skillsJSON,
		&startDate,
		&endDate,
		&completedAt,
		&t.AutoExecutable,
		&logJSON,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = models.TaskStatus(status)
	t.Description = description.String
	if assignee.Valid {
		t.AssignedUserID = &assignee.String
	}
	t.StartDate = timePtr(startDate)
	t.EndDate = timePtr(endDate)
	t.CompletedAt = timePtr(completedAt)

	if err := unmarshalIfPresent(skillsJSON, &t.RequiredSkills); err != nil {
		return nil, fmt.Errorf("failed to unmarshal required skills: %w", err)
	}
	if logJSON != nil {
		t.ExecutionLog = &models.ExecutionLog{}
		if err := json.Unmarshal(logJSON, t.ExecutionLog); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution log: %w", err)
		}
	}
	return &t, nil
}

func marshalTaskJSON(t *models.Task) ([]byte, []byte, error) {
	skills := t.RequiredSkills
	if skills == nil {
		skills = []string{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal required skills: %w", err)
	}

	var logJSON []byte
	if t.ExecutionLog != nil {
		logJSON, err = json.Marshal(t.ExecutionLog)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal execution log: %w", err)
		}
	}
	return skillsJSON, logJSON, nil
}

// --- Interviews & offers ---

const interviewColumns = `id, project_id, user_id, status, result, score, conversation_log, created_at`

// CreateInterview stores the interview and, when given, its offer atomically
func (r *PostgresRepository) CreateInterview(ctx context.Context, iv *models.Interview, offer *models.Offer) error {
	logJSON, err := json.Marshal(iv.ConversationLog)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation log: %w", err)
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO interviews (`+interviewColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, iv.ID, iv.ProjectID, iv.UserID, string(iv.Status), string(iv.Result), iv.Score, logJSON, iv.CreatedAt)
		if err != nil {
			return classify(fmt.Errorf("failed to create interview: %w", err))
		}

		if offer == nil {
			return nil
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO offers (id, interview_id, user_id, project_id, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, offer.ID, offer.InterviewID, offer.UserID, offer.ProjectID, string(offer.Status), offer.CreatedAt)
		if err != nil {
			return classify(fmt.Errorf("failed to create offer: %w", err))
		}
		return nil
	})
}

// GetInterviewByPair retrieves the interview of a user for a project
func (r *PostgresRepository) GetInterviewByPair(ctx context.Context, projectID, userID string) (*models.Interview, error) {
	iv, err := scanInterview(r.pool.QueryRow(ctx,
		`SELECT `+interviewColumns+` FROM interviews WHERE project_id = $1 AND user_id = $2`, projectID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}
	return iv, nil
}

// ListInterviews returns interviews matching filters, newest first
func (r *PostgresRepository) ListInterviews(ctx context.Context, filters InterviewFilters) ([]*models.Interview, error) {
	query := `SELECT ` + interviewColumns + ` FROM interviews WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.ProjectID != "" {
		query += fmt.Sprintf(" AND project_id = $%d", argNum)
		args = append(args, filters.ProjectID)
		argNum++
	}

	if filters.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filters.UserID)
		argNum++
	}

	query += " ORDER BY created_at DESC"
	query, args = appendPage(query, args, argNum, filters.Limit, 0)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}
	defer rows.Close()

	var interviews []*models.Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interview: %w", err)
		}
		interviews = append(interviews, iv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interviews: %w", err)
	}
	return interviews, nil
}

func scanInterview(row rowScanner) (*models.Interview, error) {
	var iv models.Interview
	var status, result string
	var logJSON []byte

	if err := row.Scan(&iv.ID, &iv.ProjectID, &iv.UserID, &status, &result, &iv.Score, &logJSON, &iv.CreatedAt); err != nil {
		return nil, err
	}

	iv.Status = models.InterviewStatus(status)
	iv.Result = models.InterviewResult(result)
	if err := unmarshalIfPresent(logJSON, &iv.ConversationLog); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation log: %w", err)
	}
	return &iv, nil
}

const offerColumns = `id, interview_id, user_id, project_id, status, created_at, responded_at`

// GetOffer retrieves an offer with its project
func (r *PostgresRepository) GetOffer(ctx context.Context, id string) (*models.Offer, error) {
	o, err := scanOffer(r.pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}

	if o.Project, err = r.GetProject(ctx, o.ProjectID); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOffers returns offers matching filters with their projects, newest first
func (r *PostgresRepository) ListOffers(ctx context.Context, filters OfferFilters) ([]*models.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filters.UserID)
		argNum++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}

	var offers []*models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offers: %w", err)
	}

	// Load projects once the rows are released
	for _, o := range offers {
		if o.Project, err = r.GetProject(ctx, o.ProjectID); err != nil {
			return nil, fmt.Errorf("failed to get project for offer %s: %w", o.ID, err)
		}
	}
	return offers, nil
}

// RespondOffer answers a pending offer and optionally adds the team member
func (r *PostgresRepository) RespondOffer(ctx context.Context, offerID string, status models.OfferStatus, at time.Time, member *models.TeamMember) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE offers SET status = $2, responded_at = $3
			WHERE id = $1 AND status = $4
		`, offerID, string(status), at, string(models.OfferPending))
		if err != nil {
			return fmt.Errorf("failed to update offer: %w", err)
		}

		if result.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM offers WHERE id = $1)`, offerID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check offer: %w", err)
			}
			if !exists {
				return fmt.Errorf("offer %s: %w", offerID, ErrNotFound)
			}
			return fmt.Errorf("offer %s is not pending: %w", offerID, ErrConflict)
		}

		if member == nil {
			return nil
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO team_members (project_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (project_id, user_id) DO NOTHING
		`, member.ProjectID, member.UserID, member.Role, member.JoinedAt)
		if err != nil {
			return classify(fmt.Errorf("failed to add team member: %w", err))
		}
		return nil
	})
}

func scanOffer(row rowScanner) (*models.Offer, error) {
	var o models.Offer
	var status string
	var respondedAt sql.NullTime

	if err := row.Scan(&o.ID, &o.InterviewID, &o.UserID, &o.ProjectID, &status, &o.CreatedAt, &respondedAt); err != nil {
		return nil, err
	}

	o.Status = models.OfferStatus(status)
	o.RespondedAt = timePtr(respondedAt)
	return &o, nil
}

// --- Notifications ---

// CreateNotification stores a notification
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, project_id, user_id, title, message, type, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, nullString(n.ProjectID), n.UserID, n.Title, n.Message, n.Type, n.Read, n.CreatedAt)
	if err != nil {
		return classify(fmt.Errorf("failed to create notification: %w", err))
	}
	return nil
}

// ListNotifications returns notifications matching filters, newest first
func (r *PostgresRepository) ListNotifications(ctx context.Context, filters NotificationFilters) ([]*models.Notification, error) {
	query := `SELECT id, project_id, user_id, title, message, type, read, created_at FROM notifications WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filters.UserID)
		argNum++
	}

	if filters.UnreadOnly {
		query += " AND read = FALSE"
	}

	query += " ORDER BY created_at DESC"
	query, args = appendPage(query, args, argNum, filters.Limit, 0)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		var projectID sql.NullString
		if err := rows.Scan(&n.ID, &projectID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.ProjectID = projectID.String
		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flags a notification as read
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteNotification removes a notification
func (r *PostgresRepository) DeleteNotification(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Performance ---

// InsertPerformanceRecord stores a record unless the task already has one
func (r *PostgresRepository) InsertPerformanceRecord(ctx context.Context, rec *models.PerformanceRecord) (bool, error) {
	categoriesJSON, err := json.Marshal(rec.Categories)
	if err != nil {
		return false, fmt.Errorf("failed to marshal categories: %w", err)
	}
	learningJSON, err := json.Marshal(rec.LearningData)
	if err != nil {
		return false, fmt.Errorf("failed to marshal learning data: %w", err)
	}
	if rec.LearningData == nil {
		learningJSON = []byte("{}")
	}

	// NULL task ids never conflict
	result, err := r.pool.Exec(ctx, `
		INSERT INTO performance_records (id, agent_id, user_id, project_id, task_id, overall_score, categories, task_type, learning_data, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (task_id) DO NOTHING
	`,
		rec.ID,
		rec.AgentID,
		rec.UserID,
		nullString(rec.ProjectID),
		nullString(rec.TaskID),
		rec.OverallScore,
		categoriesJSON,
		rec.TaskType,
		learningJSON,
		rec.RegisteredAt,
	)
	if err != nil {
		return false, classify(fmt.Errorf("failed to insert performance record: %w", err))
	}
	return result.RowsAffected() == 1, nil
}

// ListPerformanceRecords returns records matching filters, newest first
func (r *PostgresRepository) ListPerformanceRecords(ctx context.Context, filters models.PerformanceFilters) ([]models.PerformanceRecord, error) {
	query := `
		SELECT id, agent_id, user_id, project_id, task_id, overall_score, categories, task_type, learning_data, registered_at
		FROM performance_records
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.AgentID != "" {
		query += fmt.Sprintf(" AND agent_id = $%d", argNum)
		args = append(args, filters.AgentID)
		argNum++
	}

	if filters.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filters.UserID)
		argNum++
	}

	if filters.ProjectID != "" {
		query += fmt.Sprintf(" AND project_id = $%d", argNum)
		args = append(args, filters.ProjectID)
		argNum++
	}

	query += " ORDER BY registered_at DESC"
	query, args = appendPage(query, args, argNum, filters.Limit, 0)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list performance records: %w", err)
	}
	defer rows.Close()

	var records []models.PerformanceRecord
	for rows.Next() {
		var rec models.PerformanceRecord
		var projectID, taskID sql.NullString
		var categoriesJSON, learningJSON []byte
		err := rows.Scan(
			&rec.ID,
			&rec.AgentID,
			&rec.UserID,
			&projectID,
			&taskID,
			&rec.OverallScore,
			&categoriesJSON,
			&rec.TaskType,
			&learningJSON,
			&rec.RegisteredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan performance record: %w", err)
		}
		rec.ProjectID = projectID.String
		rec.TaskID = taskID.String
		if err := unmarshalIfPresent(categoriesJSON, &rec.Categories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
		}
		if err := unmarshalIfPresent(learningJSON, &rec.LearningData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal learning data: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating performance records: %w", err)
	}
	return records, nil
}

// --- API Clients ---

// CreateClient registers an API client
func (r *PostgresRepository) CreateClient(ctx context.Context, c *models.ApiClient) error {
	permissionsJSON, err := json.Marshal(c.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}
	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO api_clients (id, name, api_key, is_active, created_at, permissions, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.Name, c.ApiKey, c.IsActive, c.CreatedAt, permissionsJSON, metadataJSON)
	if err != nil {
		return classify(fmt.Errorf("failed to create api client: %w", err))
	}
	return nil
}

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	client.LastUsedAt = timePtr(lastUsedAt)
	if err := unmarshalIfPresent(permissionsJSON, &client.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	if err := unmarshalIfPresent(metadataJSON, &client.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}
	return nil
}

// --- helpers ---

func (r *PostgresRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// classify maps constraint violations to repository errors
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
	}
	return err
}

func appendPage(query string, args []interface{}, argNum, limit, offset int) (string, []interface{}) {
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, limit)
		argNum++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, offset)
	}
	return query, args
}

func marshalPair(a, b []string) ([]byte, []byte, error) {
	if a == nil {
		a = []string{}
	}
	if b == nil {
		b = []string{}
	}
	aJSON, err := json.Marshal(a)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal skills: %w", err)
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal industries: %w", err)
	}
	return aJSON, bJSON, nil
}

func unmarshalIfPresent(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
