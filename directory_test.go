package enroll_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enroll "github.com/goliatone/go-enroll"
)

func newDirectoryServer(t *testing.T, handler http.HandlerFunc) (*enroll.DirectoryClient, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := enroll.NewDirectoryClient(enroll.DirectoryClientConfig{
		BaseURL: server.URL,
		Token:   "service-token",
	})

	return client, server
}

func TestDirectoryClient_GetPerson(t *testing.T) {
	client, _ := newDirectoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/person/alice", r.URL.Path)
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"attrs": map[string][]string{
				"uuid":        {"e2b7c0de-0000-4000-8000-000000000001"},
				"name":        {"alice"},
				"displayname": {"Alice Example"},
				"mail":        {"alice@example.com"},
				"memberof":    {"enroll_admin@idm.example.com", "users@idm.example.com"},
			},
		})
	})

	person, err := client.GetPerson(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "e2b7c0de-0000-4000-8000-000000000001", person.ID)
	assert.Equal(t, "alice", person.Username)
	assert.Equal(t, "Alice Example", person.DisplayName)
	assert.Equal(t, "alice@example.com", person.Email)
	assert.Len(t, person.Groups, 2)
}

func TestDirectoryClient_ListPersons(t *testing.T) {
	client, _ := newDirectoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/person", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"attrs": map[string][]string{"name": {"alice"}}},
			{"attrs": map[string][]string{"name": {"bob"}}},
		})
	})

	persons, err := client.ListPersons(context.Background())
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, "alice", persons[0].Username)
	assert.Equal(t, "bob", persons[1].Username)
}

func TestDirectoryClient_CreatePerson(t *testing.T) {
	var got map[string]map[string][]string

	client, _ := newDirectoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/person", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := client.CreatePerson(context.Background(), enroll.NewPerson{
		Username:    "alice",
		DisplayName: "Alice Example",
		Email:       "alice@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"alice"}, got["attrs"]["name"])
	assert.Equal(t, []string{"Alice Example"}, got["attrs"]["displayname"])
	assert.Equal(t, []string{"alice@example.com"}, got["attrs"]["mail"])
}

func TestDirectoryClient_GroupMembership(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []string

	client, _ := newDirectoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()

	t.Run("add member", func(t *testing.T) {
		require.NoError(t, client.AddGroupMember(ctx, "portal_users", "alice"))
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "/v1/group/portal_users/_attr/member", gotPath)
		assert.Equal(t, []string{"alice"}, gotBody)
	})

	t.Run("remove member", func(t *testing.T) {
		require.NoError(t, client.RemoveGroupMember(ctx, "portal_users", "alice"))
		assert.Equal(t, http.MethodDelete, gotMethod)
		assert.Equal(t, "/v1/group/portal_users/_attr/member", gotPath)
	})

	t.Run("delete person", func(t *testing.T) {
		require.NoError(t, client.DeletePerson(ctx, "alice"))
		assert.Equal(t, http.MethodDelete, gotMethod)
		assert.Equal(t, "/v1/person/alice", gotPath)
	})
}

func TestDirectoryClient_IsMember(t *testing.T) {
	client, _ := newDirectoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"attrs": map[string][]string{
				"name":     {"alice"},
				"memberof": {"enroll_admin@idm.example.com", "users"},
			},
		})
	})

	ctx := context.Background()

	t.Run("matches the spn name part", func(t *testing.T) {
		ok, err := client.IsMember(ctx, "alice", "enroll_admin")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("matches exact values", func(t *testing.T) {
		ok, err := client.IsMember(ctx, "alice", "users")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("non member", func(t *testing.T) {
		ok, err := client.IsMember(ctx, "alice", "operators")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestDirectoryClient_CredentialResetLink(t *testing.T) {
	client, server := newDirectoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/person/alice/_credential/_update_intent", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":       "reset-token-abc",
			"expiry_time": 1767225600,
		})
	})

	link, err := client.CredentialResetLink(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/ui/reset?token=reset-token-abc", link.URL)
	assert.Equal(t, int64(1767225600), link.ExpiresAt.Unix())
}

func TestDirectoryClient_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		category goerrors.Category
	}{
		{"not found", http.StatusNotFound, goerrors.CategoryNotFound},
		{"unauthorized", http.StatusUnauthorized, goerrors.CategoryAuth},
		{"forbidden", http.StatusForbidden, goerrors.CategoryAuth},
		{"bad request", http.StatusBadRequest, goerrors.CategoryBadInput},
		{"server error", http.StatusInternalServerError, goerrors.CategoryInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newDirectoryServer(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			})

			_, err := client.GetPerson(context.Background(), "alice")
			require.Error(t, err)

			var richErr *goerrors.Error
			require.ErrorAs(t, err, &richErr)
			assert.Equal(t, tc.category, richErr.Category)
		})
	}

	t.Run("5xx is retriable storage trouble", func(t *testing.T) {
		client, _ := newDirectoryServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		})

		_, err := client.GetPerson(context.Background(), "alice")
		assert.True(t, enroll.IsStorageError(err))
	})

	t.Run("connection failures are storage trouble", func(t *testing.T) {
		client, server := newDirectoryServer(t, func(w http.ResponseWriter, r *http.Request) {})
		server.Close()

		_, err := client.GetPerson(context.Background(), "alice")
		assert.True(t, enroll.IsStorageError(err))
	})
}
