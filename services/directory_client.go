package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ethesis-api/config"
	"ethesis-api/models"
)

const directoryService = "directory"

var ErrDirectoryMalformedResponse = errors.New("directory returned a malformed response")

// DirectoryUser is one user record reported by the directory.
type DirectoryUser struct {
	Email   string
	Name    string
	Roles   []models.RoleRef
	Profile json.RawMessage
}

// DirectoryPage is one page of the directory's user listing.
// Pagination hints are nil when the directory did not report them.
type DirectoryPage struct {
	Users       []DirectoryUser
	CurrentPage *int
	LastPage    *int
	Total       *int
}

type DirectoryLogin struct {
	User  DirectoryUser
	Token string
}

// DirectoryClient talks to the SSO directory over HTTP.
type DirectoryClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewDirectoryClient(cfg config.DirectoryConfig, client *http.Client) *DirectoryClient {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &DirectoryClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  client,
	}
}

// ListUsers fetches one page of users.
func (c *DirectoryClient) ListUsers(ctx context.Context, perPage, page int) (*DirectoryPage, error) {
	reqURL, err := c.endpoint("users")
	if err != nil {
		return nil, err
	}
	query := reqURL.Query()
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", strconv.Itoa(page))
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return nil, ErrDirectoryMalformedResponse
	}

	var records []json.RawMessage
	rawData, ok := envelope["data"]
	if !ok || json.Unmarshal(rawData, &records) != nil || records == nil {
		return nil, fmt.Errorf("%w: missing data list", ErrDirectoryMalformedResponse)
	}

	var meta map[string]json.RawMessage
	if rawMeta, ok := envelope["meta"]; ok {
		_ = json.Unmarshal(rawMeta, &meta)
	}

	result := &DirectoryPage{
		Users:       make([]DirectoryUser, 0, len(records)),
		CurrentPage: paginationHint("current_page", envelope, meta),
		LastPage:    paginationHint("last_page", envelope, meta),
		Total:       paginationHint("total", envelope, meta),
	}
	for _, record := range records {
		result.Users = append(result.Users, decodeDirectoryUser(record))
	}
	return result, nil
}

// Login verifies credentials against the directory.
func (c *DirectoryClient) Login(ctx context.Context, email, password string) (*DirectoryLogin, error) {
	reqURL, err := c.endpoint("auth/login")
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		User  json.RawMessage `json:"user"`
		Token string          `json:"token"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil || len(decoded.User) == 0 {
		return nil, ErrDirectoryMalformedResponse
	}
	return &DirectoryLogin{User: decodeDirectoryUser(decoded.User), Token: decoded.Token}, nil
}

func (c *DirectoryClient) endpoint(p string) (*url.URL, error) {
	if c.baseURL == "" {
		return nil, &UpstreamUnavailableError{Service: directoryService, Err: errors.New("DIRECTORY_BASE_URL is not configured")}
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &UpstreamUnavailableError{Service: directoryService, Err: err}
	}
	return base.JoinPath(p), nil
}

// do sends req and returns the body of a 2xx response.
func (c *DirectoryClient) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamUnavailableError{Service: directoryService, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &UpstreamUnavailableError{Service: directoryService, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamRejectedError{Service: directoryService, StatusCode: resp.StatusCode, Message: extractMessage(body)}
	}
	return body, nil
}

// extractMessage prefers the body's "message", then the raw body.
func extractMessage(body []byte) string {
	var decoded struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if msg, ok := decoded.Message.(string); ok && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}
	if raw := strings.TrimSpace(string(body)); raw != "" {
		if len(raw) > 2000 {
			raw = raw[:1997] + "..."
		}
		return raw
	}
	return "Unknown error."
}

// paginationHint reads key from the top level first, then from meta.
func paginationHint(key string, sources ...map[string]json.RawMessage) *int {
	for _, source := range sources {
		raw, ok := source[key]
		if !ok {
			continue
		}
		if value, ok := decodeLooseInt(raw); ok {
			return &value
		}
	}
	return nil
}

func decodeLooseInt(raw json.RawMessage) (int, bool) {
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		if i, err := number.Int64(); err == nil {
			return int(i), true
		}
		if f, err := number.Float64(); err == nil {
			return int(f), true
		}
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
			return i, true
		}
	}
	return 0, false
}

var directoryIdentityKeys = map[string]struct{}{
	"id": {}, "email": {}, "name": {}, "roles": {}, "password": {}, "token": {},
}

func decodeDirectoryUser(raw json.RawMessage) DirectoryUser {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil {
		return DirectoryUser{}
	}

	var user DirectoryUser
	_ = json.Unmarshal(record["email"], &user.Email)
	_ = json.Unmarshal(record["name"], &user.Name)
	user.Name = strings.TrimSpace(user.Name)

	var roles []json.RawMessage
	if err := json.Unmarshal(record["roles"], &roles); err == nil {
		for _, rawRole := range roles {
			var ref models.RoleRef
			if err := json.Unmarshal(rawRole, &ref); err == nil && ref.Name != "" {
				user.Roles = append(user.Roles, ref)
			}
		}
	}

	if profile, ok := record["profile"]; ok && isJSONObject(profile) {
		user.Profile = profile
		return user
	}
	extra := make(map[string]json.RawMessage)
	for key, value := range record {
		if _, identity := directoryIdentityKeys[key]; !identity {
			extra[key] = value
		}
	}
	if len(extra) > 0 {
		if encoded, err := json.Marshal(extra); err == nil {
			user.Profile = encoded
		}
	}
	return user
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
