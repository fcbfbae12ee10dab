package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"ethesis-api/config"
	"ethesis-api/controllers"
	"ethesis-api/models"
	"ethesis-api/routes"
	"ethesis-api/services"
	"ethesis-api/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type testAPI struct {
	db     *gorm.DB
	router *gin.Engine
}

func newTestAPI(t *testing.T, directoryURL string) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "controller-test-secret")

	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	previous := config.DB
	config.DB = db
	t.Cleanup(func() {
		config.DB = previous
		sqlDB.Close()
	})

	storage := services.NewLocalStorage(config.StorageConfig{Root: t.TempDir(), PublicURL: "http://localhost/storage"})
	directory := services.NewDirectoryClient(config.DirectoryConfig{BaseURL: directoryURL, Timeout: 5 * time.Second}, nil)
	controllers.Configure(controllers.Dependencies{
		Auth:       services.NewAuthService(db, directory),
		Guard:      services.NewAuthorizationService(db),
		Dashboard:  services.NewDashboardService(db),
		Titles:     services.NewThesisTitleService(db, storage),
		Theses:     services.NewThesisService(db, storage, nil),
		Plagiarism: services.NewPlagiarismService(db, config.PlagiarismConfig{}, storage, nil),
		Sync:       services.NewDirectorySyncService(db, directory),
		SyncRuns:   services.NewDirectorySyncRunService(db),
		Storage:    storage,
	})
	t.Cleanup(func() { controllers.Configure(controllers.Dependencies{}) })

	router := gin.New()
	routes.SetupRoutes(router)
	return &testAPI{db: db, router: router}
}

func (a *testAPI) user(t *testing.T, email string, roles ...string) (*models.User, string) {
	t.Helper()
	user := &models.User{Name: email, Email: email, Password: "x"}
	if err := a.db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	for _, name := range roles {
		role := models.Role{Name: name}
		if err := a.db.Where(models.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
			t.Fatalf("create role: %v", err)
		}
		if err := a.db.Model(user).Association("Roles").Append(&role); err != nil {
			t.Fatalf("attach role: %v", err)
		}
	}
	token, err := utils.GenerateToken(user.ID, user.Email, roles)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return user, token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestLoginThroughDirectory(t *testing.T) {
	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message": "These credentials do not match our records."}`))
			return
		}
		w.Write([]byte(`{"token": "sso", "user": {"email": "` + creds["email"] + `", "name": "Ada", "roles": [{"name": "Student"}], "college_name": "Science"}}`))
	}))
	defer directory.Close()
	api := newTestAPI(t, directory.URL)

	w := api.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{"email": "ada@example.edu", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	if msg := decode(t, w)["error"]; msg != "These credentials do not match our records." {
		t.Fatalf("expected directory message, got %v", msg)
	}

	w = api.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{"email": "ada@example.edu", "password": "correct"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	token, _ := decode(t, w)["token"].(string)
	if token == "" {
		t.Fatalf("expected a token")
	}

	w = api.do(t, http.MethodGet, "/api/v1/profile", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected profile 200, got %d: %s", w.Code, w.Body.String())
	}
	profile := decode(t, w)
	roles, _ := profile["roles"].([]any)
	if len(roles) != 1 || roles[0] != models.RoleStudent {
		t.Fatalf("unexpected roles %v", profile["roles"])
	}
}

func TestLoginDirectoryUnavailable(t *testing.T) {
	api := newTestAPI(t, "")
	w := api.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{"email": "ada@example.edu", "password": "pw"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}

	w = api.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{"email": "nope"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad input, got %d", w.Code)
	}
	fields, _ := decode(t, w)["errors"].(map[string]any)
	if _, ok := fields["email"]; !ok {
		t.Fatalf("expected email field error")
	}
}

func TestTitleAccessControl(t *testing.T) {
	api := newTestAPI(t, "")
	owner, ownerToken := api.user(t, "owner@example.edu", models.RoleStudent)
	adviser, adviserToken := api.user(t, "adviser@example.edu", models.RoleTeacher)
	_, strangerToken := api.user(t, "stranger@example.edu", models.RoleStudent)
	_, deanToken := api.user(t, "dean@example.edu", models.RoleDean)

	title := &models.ThesisTitle{UserID: owner.ID, AdviserID: adviser.ID, Title: "Guarded"}
	api.db.Create(title)
	chapter := &models.Thesis{ThesisTitleID: title.ID, Chapter: "Chapter 1", DocumentPath: "x.pdf", Status: models.ThesisStatusPending}
	api.db.Create(chapter)

	titlePath := "/api/v1/thesis-titles/" + strconv.Itoa(int(title.ID))
	chapterPath := titlePath + "/theses/" + strconv.Itoa(int(chapter.ID))

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"no token", http.MethodGet, titlePath, "", nil, http.StatusUnauthorized},
		{"stranger view", http.MethodGet, titlePath, strangerToken, nil, http.StatusForbidden},
		{"owner view", http.MethodGet, titlePath, ownerToken, nil, http.StatusOK},
		{"dean view", http.MethodGet, titlePath, deanToken, nil, http.StatusOK},
		{"stranger chapter", http.MethodGet, chapterPath, strangerToken, nil, http.StatusForbidden},
		{"adviser delete", http.MethodDelete, titlePath, adviserToken, nil, http.StatusForbidden},
		{"owner review", http.MethodPatch, chapterPath + "/review", ownerToken, map[string]string{"status": "approved"}, http.StatusForbidden},
		{"adviser bad review", http.MethodPatch, chapterPath + "/review", adviserToken, map[string]string{"status": "done"}, http.StatusUnprocessableEntity},
		{"adviser review", http.MethodPatch, chapterPath + "/review", adviserToken, map[string]string{"status": "approved"}, http.StatusOK},
		{"stranger panel", http.MethodPut, titlePath + "/panel", strangerToken, map[string]any{}, http.StatusForbidden},
		{"missing title", http.MethodGet, "/api/v1/thesis-titles/9999", ownerToken, nil, http.StatusNotFound},
		{"teacher sync", http.MethodPost, "/api/v1/directory-sync", adviserToken, nil, http.StatusForbidden},
		{"dean runs", http.MethodGet, "/api/v1/directory-sync/runs", deanToken, nil, http.StatusOK},
		{"student monitor", http.MethodGet, "/api/v1/monitor/status", ownerToken, nil, http.StatusForbidden},
		{"dean monitor", http.MethodGet, "/api/v1/monitor/status", deanToken, nil, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(t, tc.method, tc.path, tc.token, tc.body)
			if w.Code != tc.want {
				t.Fatalf("%s %s: got %d, want %d: %s", tc.method, tc.path, w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestCreateTitleValidation(t *testing.T) {
	api := newTestAPI(t, "")
	_, ownerToken := api.user(t, "owner@example.edu", models.RoleStudent)
	peer, _ := api.user(t, "peer@example.edu", models.RoleStudent)

	w := api.do(t, http.MethodPost, "/api/v1/thesis-titles", ownerToken, map[string]any{
		"title":      "Not advised",
		"adviser_id": peer.ID,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	fields, _ := decode(t, w)["errors"].(map[string]any)
	if fields["adviser_id"] != "The selected adviser must be a teacher." {
		t.Fatalf("unexpected errors %v", fields)
	}
}

func TestDashboardByRole(t *testing.T) {
	api := newTestAPI(t, "")
	_, studentToken := api.user(t, "student@example.edu", models.RoleStudent)
	_, teacherToken := api.user(t, "teacher@example.edu", models.RoleTeacher)

	w := api.do(t, http.MethodGet, "/api/v1/dashboard", studentToken, nil)
	data, _ := decode(t, w)["data"].(map[string]any)
	if _, ok := data["student"]; !ok || data["teacher"] != nil {
		t.Fatalf("expected only the student summary, got %v", data)
	}

	w = api.do(t, http.MethodGet, "/api/v1/dashboard", teacherToken, nil)
	data, _ = decode(t, w)["data"].(map[string]any)
	if _, ok := data["teacher"]; !ok || data["student"] != nil {
		t.Fatalf("expected only the teacher summary, got %v", data)
	}
}
