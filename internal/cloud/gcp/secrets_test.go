package gcp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gax "github.com/googleapis/gax-go/v2"
)

// mockSecretFetcher implements SecretFetcher for testing
type mockSecretFetcher struct {
	fetchFunc func(ctx context.Context, secretPath string) (string, error)
}

func (m *mockSecretFetcher) FetchSecret(ctx context.Context, secretPath string) (string, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, secretPath)
	}
	return "", errors.New("mock fetch not implemented")
}

func (m *mockSecretFetcher) Close() error { return nil }

// mockAccessor records requests made through SecretManagerClient.
type mockAccessor struct {
	names   []string
	payload string
	err     error
	closed  bool
}

func (m *mockAccessor) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	m.names = append(m.names, req.GetName())
	if m.err != nil {
		return nil, m.err
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(m.payload)},
	}, nil
}

func (m *mockAccessor) Close() error {
	m.closed = true
	return nil
}

func TestNormalizeSecretPath(t *testing.T) {
	tests := []struct {
		name       string
		secretPath string
		want       string
	}{
		{
			name:       "full path with version",
			secretPath: "projects/my-project/secrets/my-secret/versions/1",
			want:       "projects/my-project/secrets/my-secret/versions/1",
		},
		{
			name:       "full path without version",
			secretPath: "projects/my-project/secrets/my-secret",
			want:       "projects/my-project/secrets/my-secret/versions/latest",
		},
		{
			name:       "secret name only",
			secretPath: "gemini-key",
			want:       "projects/lab/secrets/gemini-key/versions/latest",
		},
		{
			name:       "scheme with name",
			secretPath: "gcp-secret://gemini-key",
			want:       "projects/lab/secrets/gemini-key/versions/latest",
		},
		{
			name:       "scheme with full path",
			secretPath: "gcp-secret://projects/other/secrets/k/versions/3",
			want:       "projects/other/secrets/k/versions/3",
		},
	}

	c := &SecretManagerClient{projectID: "lab"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.normalizeSecretPath(tt.secretPath); got != tt.want {
				t.Errorf("normalizeSecretPath(%q) = %q, want %q", tt.secretPath, got, tt.want)
			}
		})
	}
}

func TestSecretManagerClient_FetchSecret(t *testing.T) {
	acc := &mockAccessor{payload: "sk-test\n"}
	c := &SecretManagerClient{client: acc, projectID: "lab", timeout: time.Second}

	got, err := c.FetchSecret(context.Background(), "gcp-secret://gemini-key")
	if err != nil {
		t.Fatalf("FetchSecret() error = %v", err)
	}
	if got != "sk-test" {
		t.Errorf("FetchSecret() = %q, want trimmed payload", got)
	}
	if len(acc.names) != 1 || acc.names[0] != "projects/lab/secrets/gemini-key/versions/latest" {
		t.Errorf("unexpected request names %v", acc.names)
	}

	acc.err = errors.New("permission denied")
	if _, err := c.FetchSecret(context.Background(), "gemini-key"); err == nil {
		t.Error("expected error from accessor")
	}

	if err := c.Close(); err != nil || !acc.closed {
		t.Errorf("Close() err=%v closed=%v", err, acc.closed)
	}
}

func TestResolveSecret(t *testing.T) {
	fetcher := &mockSecretFetcher{fetchFunc: func(_ context.Context, p string) (string, error) {
		switch p {
		case "gcp-secret://good":
			return "resolved", nil
		case "gcp-secret://empty":
			return "", nil
		}
		return "", errors.New("not found")
	}}

	tests := []struct {
		name    string
		fetcher SecretFetcher
		value   string
		want    string
		wantErr bool
	}{
		{name: "plain value passes through", fetcher: fetcher, value: "sk-plain", want: "sk-plain"},
		{name: "plain value without fetcher", fetcher: nil, value: "sk-plain", want: "sk-plain"},
		{name: "empty value", fetcher: nil, value: "", want: ""},
		{name: "reference resolved", fetcher: fetcher, value: "gcp-secret://good", want: "resolved"},
		{name: "reference without fetcher", fetcher: nil, value: "gcp-secret://good", wantErr: true},
		{name: "fetch error", fetcher: fetcher, value: "gcp-secret://missing", wantErr: true},
		{name: "empty secret", fetcher: fetcher, value: "gcp-secret://empty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSecret(context.Background(), tt.fetcher, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveSecret() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetProjectIDFromMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Metadata-Flavor") != "Google" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("lab-project\n"))
	}))
	defer srv.Close()

	got, err := getProjectIDFromMetadata(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "lab-project" {
		t.Errorf("project = %q", got)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer failing.Close()
	if _, err := getProjectIDFromMetadata(context.Background(), failing.URL); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestGetProjectID_FromEnv(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "env-project")
	got, err := getProjectID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "env-project" {
		t.Errorf("project = %q", got)
	}
}
