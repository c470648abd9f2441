package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/fleetdesk/dispatch/internal/audit"
	"github.com/fleetdesk/dispatch/internal/auth"
	"github.com/fleetdesk/dispatch/internal/clock"
	"github.com/fleetdesk/dispatch/internal/fetch"
	"github.com/fleetdesk/dispatch/internal/models"
	"github.com/fleetdesk/dispatch/internal/projects"
	"github.com/fleetdesk/dispatch/internal/repository"
)

const testSecret = "test-secret"

func strPtr(s string) *string { return &s }

type APISuite struct {
	suite.Suite
	store  *repository.MemoryRepo
	server *httptest.Server
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.store = repository.NewMemory()
	clk := clock.New()

	app := Config{
		Repo:          s.store,
		Auth:          auth.New(s.store, auth.DefaultConfig()),
		Projects:      projects.New(s.store, clk),
		Fetch:         fetch.New(s.store, s.store, clk, fetch.DefaultConfig()),
		Audit:         audit.New(nil),
		JWTSecret:     testSecret,
		JWTExpiry:     time.Hour,
		RefreshExpiry: 24 * time.Hour,
	}
	s.server = httptest.NewServer(app.routes())

	storedToken := "8b6fd01a-2a6f-4af9-9c3a-0d5e2f7b9c11"
	s.store.PutDriver(models.Driver{
		ID:          "d-1",
		Name:        "Marko",
		LoginID:     "drv001",
		PIN:         "1234",
		Status:      models.DriverAvailable,
		AccessToken: &storedToken,
	})
	s.store.PutProject(models.Project{
		ID:         "p-1",
		DriverID:   strPtr("d-1"),
		Date:       "2026-03-05",
		Time:       "10:00",
		Status:     models.ProjectActive,
		Acceptance: models.AcceptancePending,
	})
	s.store.PutProject(models.Project{
		ID:         "p-2",
		DriverID:   strPtr("d-2"),
		Date:       "2026-03-05",
		Time:       "12:00",
		Status:     models.ProjectActive,
		Acceptance: models.AcceptancePending,
	})
	s.store.SetReferences(
		[]models.Company{{ID: "c-1", Name: "Split Transfers"}},
		[]models.CarType{{ID: "ct-1", Name: "Sedan"}},
	)
}

func (s *APISuite) TearDownTest() {
	s.server.Close()
}

func (s *APISuite) request(method, path, bearer string, body any) (*http.Response, map[string]any) {
	var reqBody bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&reqBody).Encode(body))
	}

	req, err := http.NewRequest(method, s.server.URL+path, &reqBody)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// login authenticates the seeded driver and returns an access token.
func (s *APISuite) login() string {
	resp, body := s.request(http.MethodPost, "/authenticate", "", map[string]string{
		"login_id": "drv001",
		"pin":      "1234",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	tokens := data["tokens"].(map[string]any)
	return tokens["access_token"].(string)
}

func (s *APISuite) TestAuthenticateIssuesSession() {
	resp, body := s.request(http.MethodPost, "/authenticate", "", map[string]string{
		"login_id": " DRV001 ",
		"pin":      "1234",
	})

	s.Equal(http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	driver := data["driver"].(map[string]any)
	s.Equal("d-1", driver["id"])
	s.Equal("Marko", driver["name"])
	s.NotEmpty(data["tokens"].(map[string]any)["access_token"])
	s.NotEmpty(data["tokens"].(map[string]any)["refresh_token"])
}

func (s *APISuite) TestAuthenticateRejectsBadCredentials() {
	for _, payload := range []map[string]string{
		{"login_id": "drv001", "pin": "9999"},
		{"login_id": "drv999", "pin": "1234"},
	} {
		resp, body := s.request(http.MethodPost, "/authenticate", "", payload)
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
		s.Equal("Invalid credentials", body["message"])
	}
}

func (s *APISuite) TestAuthenticateRejectsMissingFields() {
	resp, _ := s.request(http.MethodPost, "/authenticate", "", map[string]string{"login_id": "drv001"})
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}

func (s *APISuite) TestTokenLogin() {
	resp, body := s.request(http.MethodPost, "/token", "", map[string]string{
		"access_token": "8b6fd01a-2a6f-4af9-9c3a-0d5e2f7b9c11",
	})

	s.Equal(http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	s.Equal("d-1", data["driver"].(map[string]any)["id"])
}

func (s *APISuite) TestTokenLoginRejectsUnknownToken() {
	resp, _ := s.request(http.MethodPost, "/token", "", map[string]string{
		"access_token": "not-a-stored-token",
	})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestRefreshSessionIssuesUsablePair() {
	resp, body := s.request(http.MethodPost, "/authenticate", "", map[string]string{
		"login_id": "drv001",
		"pin":      "1234",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	refreshToken := body["data"].(map[string]any)["tokens"].(map[string]any)["refresh_token"].(string)

	resp, body = s.request(http.MethodPost, "/refresh", "", map[string]string{
		"refresh_token": refreshToken,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	tokens := body["data"].(map[string]any)
	s.NotEmpty(tokens["refresh_token"])

	// the refreshed access token carries a live session
	resp, _ = s.request(http.MethodGet, "/projects", tokens["access_token"].(string), nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *APISuite) TestRefreshSessionRejectsGarbageToken() {
	resp, _ := s.request(http.MethodPost, "/refresh", "", map[string]string{
		"refresh_token": "not.a.jwt",
	})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestRefreshSessionRequiresToken() {
	resp, _ := s.request(http.MethodPost, "/refresh", "", map[string]string{})
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}

func (s *APISuite) TestProjectsRequireSession() {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/projects", nil)
	s.Require().NoError(err)
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestProjectsRejectGarbageBearer() {
	resp, _ := s.request(http.MethodGet, "/projects", "not.a.jwt", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestListProjectsReturnsOnlyOwnProjects() {
	token := s.login()

	resp, body := s.request(http.MethodGet, "/projects", token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	projectList := data["projects"].([]any)
	s.Require().Len(projectList, 1)
	s.Equal("p-1", projectList[0].(map[string]any)["id"])
	s.Len(data["companies"].([]any), 1)
	s.Len(data["car_types"].([]any), 1)
}

func (s *APISuite) TestTransitionStatusHappyPath() {
	token := s.login()

	resp, _ := s.request(http.MethodPost, "/projects/p-1/status", token, map[string]string{"target": "accepted"})
	s.Equal(http.StatusOK, resp.StatusCode)

	project, ok := s.store.GetProject("p-1")
	s.Require().True(ok)
	s.Equal(models.AcceptanceAccepted, project.Acceptance)
}

func (s *APISuite) TestTransitionStatusConflictOnRepeat() {
	token := s.login()

	resp, _ := s.request(http.MethodPost, "/projects/p-1/status", token, map[string]string{"target": "accepted"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.request(http.MethodPost, "/projects/p-1/status", token, map[string]string{"target": "accepted"})
	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *APISuite) TestTransitionStatusHidesForeignProjects() {
	token := s.login()

	resp, _ := s.request(http.MethodPost, "/projects/p-2/status", token, map[string]string{"target": "accepted"})
	s.Equal(http.StatusNotFound, resp.StatusCode)

	project, ok := s.store.GetProject("p-2")
	s.Require().True(ok)
	s.Equal(models.AcceptancePending, project.Acceptance)
}

func (s *APISuite) TestTransitionStatusRejectsUnknownTarget() {
	token := s.login()

	resp, _ := s.request(http.MethodPost, "/projects/p-1/status", token, map[string]string{"target": "archived"})
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}

func (s *APISuite) TestListReferences() {
	token := s.login()

	resp, body := s.request(http.MethodGet, "/references", token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	s.Len(data["companies"].([]any), 1)
	s.Len(data["car_types"].([]any), 1)
}

func (s *APISuite) TestHealthEndpoints() {
	resp, err := s.server.Client().Get(s.server.URL + "/health/live")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, err = s.server.Client().Get(s.server.URL + "/health/ready")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}
