package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApiClient_HasPermission(t *testing.T) {
	client := &ApiClient{IsActive: true, Permissions: []string{"projects:*", PermUsersRead}}

	assert.True(t, client.HasPermission(PermProjectsRead))
	assert.True(t, client.HasPermission(PermProjectsWrite))
	assert.True(t, client.HasPermission(PermUsersRead))
	assert.False(t, client.HasPermission(PermUsersWrite))
	assert.False(t, client.HasPermission("projectsx:read"))

	admin := &ApiClient{IsActive: true, Permissions: []string{"*"}}
	assert.True(t, admin.HasPermission(PermTasksExecute))

	admin.IsActive = false
	assert.False(t, admin.HasPermission(PermTasksExecute))

	var none *ApiClient
	assert.False(t, none.HasPermission(PermTasksRead))
}

func TestApiClient_MaskedApiKey(t *testing.T) {
	assert.Equal(t, "***", (&ApiClient{ApiKey: "short"}).MaskedApiKey())
	assert.Equal(t, "stf_abcd...", (&ApiClient{ApiKey: "stf_abcdefgh"}).MaskedApiKey())
}

func TestCapabilities_RoundTrip(t *testing.T) {
	doc := `{"domain":"EC","requiredSkills":["Go"],"budget":{"amount":100},"tags":["x"]}`

	var caps Capabilities
	require.NoError(t, json.Unmarshal([]byte(doc), &caps))
	assert.Equal(t, "EC", caps.Domain)
	assert.Equal(t, []string{"Go"}, caps.RequiredSkills)
	require.Contains(t, caps.Extra, "budget")

	out, err := json.Marshal(caps)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(out))
}

func TestPreferences_RoundTrip(t *testing.T) {
	doc := `{"teamSize":"小規模","workStyle":"リモート","timezone":"JST"}`

	var prefs Preferences
	require.NoError(t, json.Unmarshal([]byte(doc), &prefs))
	assert.Equal(t, "小規模", prefs.TeamSize)

	out, err := json.Marshal(prefs)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(out))

	empty, err := json.Marshal(Preferences{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(empty))
}

func TestRequests_Validate(t *testing.T) {
	assert.NoError(t, (&RegisterUserRequest{Name: "Aiko", Email: "aiko@example.com", Skills: []string{"Go"}}).Validate())
	assert.Error(t, (&RegisterUserRequest{Name: "Aiko", Email: "not-an-email"}).Validate())
	assert.Error(t, (&RegisterUserRequest{Email: "aiko@example.com"}).Validate())
	assert.Error(t, (&RegisterUserRequest{Name: "Aiko", Email: "aiko@example.com", Role: "CEO"}).Validate())

	progress := func(p int) *int { return &p }
	assert.NoError(t, (&UpdateProgressRequest{Progress: progress(0)}).Validate())
	assert.NoError(t, (&UpdateProgressRequest{Progress: progress(100)}).Validate())
	assert.Error(t, (&UpdateProgressRequest{Progress: progress(101)}).Validate())
	assert.Error(t, (&UpdateProgressRequest{Progress: progress(-1)}).Validate())
	bad := TaskStatus("DONE")
	assert.Error(t, (&UpdateProgressRequest{Status: &bad}).Validate())

	assert.NoError(t, (&RespondOfferRequest{Action: OfferActionAccept}).Validate())
	assert.Error(t, (&RespondOfferRequest{Action: "maybe"}).Validate())
	assert.Error(t, (&InterviewRequest{}).Validate())

	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	assert.Error(t, (&CreateProjectRequest{Name: "EC", StartDate: &start, EndDate: &end}).Validate())
	assert.NoError(t, (&CreateProjectRequest{Name: "EC", StartDate: &start}).Validate())
}

func TestPlaybook_CloneSteps(t *testing.T) {
	p := &Playbook{Steps: []ExecutionStep{{Description: "a", Completed: true}}}
	steps := p.CloneSteps()
	assert.False(t, steps[0].Completed)
	assert.True(t, p.Steps[0].Completed)
}
