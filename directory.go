package enroll

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// DirectoryClient talks to a Kanidm-style identity directory over HTTP with
// a service-account bearer token. It implements the Directory interface the
// rest of the gateway consumes.
type DirectoryClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     Logger
}

var _ Directory = (*DirectoryClient)(nil)

// DirectoryClientConfig holds the client options.
type DirectoryClientConfig struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     Logger
}

// NewDirectoryClient creates a directory client.
func NewDirectoryClient(cfg DirectoryClientConfig) *DirectoryClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	return &DirectoryClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: client,
		logger:     logger,
	}
}

// directoryEntry is the directory's generic record shape: every attribute
// is a list of strings.
type directoryEntry struct {
	Attrs map[string][]string `json:"attrs"`
}

func (e directoryEntry) first(attr string) string {
	if values := e.Attrs[attr]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func (e directoryEntry) person() Person {
	return Person{
		ID:          e.first("uuid"),
		Username:    e.first("name"),
		DisplayName: e.first("displayname"),
		Email:       e.first("mail"),
		Groups:      e.Attrs["memberof"],
	}
}

// ListPersons returns every directory account.
func (c *DirectoryClient) ListPersons(ctx context.Context) ([]Person, error) {
	var entries []directoryEntry
	if err := c.do(ctx, http.MethodGet, "/v1/person", nil, &entries); err != nil {
		return nil, err
	}

	persons := make([]Person, 0, len(entries))
	for _, entry := range entries {
		persons = append(persons, entry.person())
	}

	return persons, nil
}

// GetPerson fetches one account by id or username.
func (c *DirectoryClient) GetPerson(ctx context.Context, id string) (*Person, error) {
	var entry directoryEntry
	if err := c.do(ctx, http.MethodGet, "/v1/person/"+id, nil, &entry); err != nil {
		return nil, err
	}

	person := entry.person()
	return &person, nil
}

// CreatePerson creates a directory account.
func (c *DirectoryClient) CreatePerson(ctx context.Context, person NewPerson) error {
	attrs := map[string][]string{
		"name":        {person.Username},
		"displayname": {person.DisplayName},
	}
	if person.Email != "" {
		attrs["mail"] = []string{person.Email}
	}

	body := map[string]any{"attrs": attrs}
	return c.do(ctx, http.MethodPost, "/v1/person", body, nil)
}

// DeletePerson removes a directory account.
func (c *DirectoryClient) DeletePerson(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/person/"+id, nil, nil)
}

// AddGroupMember adds a user to a group.
func (c *DirectoryClient) AddGroupMember(ctx context.Context, group, userID string) error {
	return c.do(ctx, http.MethodPost, "/v1/group/"+group+"/_attr/member", []string{userID}, nil)
}

// RemoveGroupMember removes a user from a group.
func (c *DirectoryClient) RemoveGroupMember(ctx context.Context, group, userID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/group/"+group+"/_attr/member", []string{userID}, nil)
}

// IsMember reports whether the user currently belongs to the group. The
// directory lists memberships as spn values ("group@domain"), so both the
// exact value and the bare name match.
func (c *DirectoryClient) IsMember(ctx context.Context, userID, group string) (bool, error) {
	person, err := c.GetPerson(ctx, userID)
	if err != nil {
		return false, err
	}

	for _, member := range person.Groups {
		if member == group {
			return true, nil
		}
		if name, _, found := strings.Cut(member, "@"); found && name == group {
			return true, nil
		}
	}

	return false, nil
}

// CredentialResetLink asks the directory for a credential bootstrap URL for
// the freshly enrolled account.
func (c *DirectoryClient) CredentialResetLink(ctx context.Context, userID string) (*ResetLink, error) {
	var payload struct {
		Token      string `json:"token"`
		ExpiryTime int64  `json:"expiry_time"`
	}

	path := "/v1/person/" + userID + "/_credential/_update_intent"
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}

	return &ResetLink{
		URL:       fmt.Sprintf("%s/ui/reset?token=%s", c.baseURL, payload.Token),
		ExpiresAt: time.Unix(payload.ExpiryTime, 0),
	}, nil
}

func (c *DirectoryClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to encode directory request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build directory request")
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return WrapStorage(err, "directory request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to parse directory response")
	}

	return nil
}

func (c *DirectoryClient) statusError(resp *http.Response) error {
	// The response body may describe internal directory state; log it for
	// the operator but keep it out of the returned error.
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	c.logger.Error("directory API error: status=%d body=%s", resp.StatusCode, string(detail))

	meta := map[string]any{"status": resp.StatusCode}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.New("directory record not found", errors.CategoryNotFound).
			WithMetadata(meta)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.New("directory rejected service credentials", errors.CategoryAuth).
			WithMetadata(meta)
	case resp.StatusCode >= 500:
		return errors.New("directory unavailable", errors.CategoryInternal).
			WithTextCode(TextCodeStorage).
			WithMetadata(meta)
	default:
		return errors.New("directory request rejected", errors.CategoryBadInput).
			WithMetadata(meta)
	}
}
