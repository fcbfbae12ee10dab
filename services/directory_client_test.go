package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ethesis-api/config"
)

func newDirectoryTestClient(t *testing.T, handler http.HandlerFunc) *DirectoryClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewDirectoryClient(config.DirectoryConfig{BaseURL: server.URL + "/api", Token: "secret"}, server.Client())
}

func TestDirectoryListUsersReadsMetaPagination(t *testing.T) {
	client := newDirectoryTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("per_page"); got != "50" {
			t.Errorf("per_page = %q", got)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("page = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"email": "a@example.edu", "name": " Alice ", "roles": ["Student", {"name": "Teacher"}, {"title": "Dean"}, {"id": 4}],
				 "profile": {"college_name": "Science"}},
				{"email": "b@example.edu", "name": "Bob", "roles": [], "post_grad": 1}
			],
			"meta": {"current_page": "2", "last_page": 3, "total": 6}
		}`))
	})

	page, err := client.ListUsers(context.Background(), 50, 2)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if page.CurrentPage == nil || *page.CurrentPage != 2 {
		t.Fatalf("expected current page 2 from meta, got %v", page.CurrentPage)
	}
	if page.LastPage == nil || *page.LastPage != 3 || page.Total == nil || *page.Total != 6 {
		t.Fatalf("unexpected pagination hints: last=%v total=%v", page.LastPage, page.Total)
	}
	if len(page.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(page.Users))
	}

	alice := page.Users[0]
	if alice.Name != "Alice" || len(alice.Roles) != 3 {
		t.Fatalf("unexpected first user: %+v", alice)
	}
	if alice.Roles[0].Name != "Student" || alice.Roles[1].Name != "Teacher" || alice.Roles[2].Name != "Dean" {
		t.Fatalf("unexpected roles: %+v", alice.Roles)
	}
	if string(alice.Profile) != `{"college_name": "Science"}` {
		t.Fatalf("expected nested profile, got %s", alice.Profile)
	}
	if string(page.Users[1].Profile) != `{"post_grad":1}` {
		t.Fatalf("expected extra keys as profile, got %s", page.Users[1].Profile)
	}
}

func TestDirectoryListUsersPrefersTopLevelPagination(t *testing.T) {
	client := newDirectoryTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [], "current_page": 1, "last_page": 1, "meta": {"current_page": 9, "last_page": 9}}`))
	})

	page, err := client.ListUsers(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if *page.CurrentPage != 1 || *page.LastPage != 1 {
		t.Fatalf("expected top-level hints, got current=%d last=%d", *page.CurrentPage, *page.LastPage)
	}
	if page.Total != nil {
		t.Fatalf("expected missing total to stay nil")
	}
}

func TestDirectoryListUsersMalformedBody(t *testing.T) {
	for name, body := range map[string]string{
		"array":        `[{"email": "a@example.edu"}]`,
		"missing data": `{"users": []}`,
		"data object":  `{"data": {"email": "a@example.edu"}}`,
		"not json":     `<html>`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newDirectoryTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := client.ListUsers(context.Background(), 100, 1)
			if !errors.Is(err, ErrDirectoryMalformedResponse) {
				t.Fatalf("expected malformed response error, got %v", err)
			}
		})
	}
}

func TestDirectoryRejectedMessages(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"message field", `{"message": "Token expired"}`, "Token expired"},
		{"raw body", `gateway timeout`, "gateway timeout"},
		{"empty body", ``, "Unknown error."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newDirectoryTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(tc.body))
			})
			_, err := client.ListUsers(context.Background(), 100, 1)
			var rejected *UpstreamRejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("expected UpstreamRejectedError, got %v", err)
			}
			if rejected.StatusCode != http.StatusBadGateway || rejected.Message != tc.want {
				t.Fatalf("unexpected rejection: %+v", rejected)
			}
		})
	}
}

func TestDirectoryUnavailable(t *testing.T) {
	client := NewDirectoryClient(config.DirectoryConfig{}, nil)
	_, err := client.ListUsers(context.Background(), 100, 1)
	var unavailable *UpstreamUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UpstreamUnavailableError without base url, got %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	client = NewDirectoryClient(config.DirectoryConfig{BaseURL: server.URL}, nil)
	if _, err := client.ListUsers(context.Background(), 100, 1); !errors.As(err, &unavailable) {
		t.Fatalf("expected UpstreamUnavailableError for closed server, got %v", err)
	}
}

func TestDirectoryLogin(t *testing.T) {
	client := newDirectoryTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"token": "sso-token", "user": {"email": "a@example.edu", "name": "Alice", "roles": ["Teacher"]}}`))
	})

	login, err := client.Login(context.Background(), "a@example.edu", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.Token != "sso-token" || login.User.Email != "a@example.edu" || len(login.User.Roles) != 1 {
		t.Fatalf("unexpected login result: %+v", login)
	}
}
