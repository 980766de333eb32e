package gcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// SecretScheme marks a configuration value that names a Secret Manager
// secret instead of holding the value itself.
const SecretScheme = "gcp-secret://"

// SecretFetcher defines the interface for fetching secrets
type SecretFetcher interface {
	FetchSecret(ctx context.Context, secretPath string) (string, error)
	Close() error
}

// secretAccessor is the slice of the Secret Manager client we call.
type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// SecretManagerClient wraps the GCP Secret Manager client
type SecretManagerClient struct {
	client    secretAccessor
	projectID string
	timeout   time.Duration
}

var _ SecretFetcher = (*SecretManagerClient)(nil)

// NewSecretManagerClient creates a new Secret Manager client. projectID may
// be empty, in which case it is discovered from the environment or the
// metadata server.
func NewSecretManagerClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*SecretManagerClient, error) {
	if projectID == "" {
		var err error
		projectID, err = getProjectID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get project ID: %w", err)
		}
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	return &SecretManagerClient{
		client:    client,
		projectID: projectID,
		timeout:   10 * time.Second,
	}, nil
}

// getProjectID retrieves the GCP project ID from environment variable or metadata server
func getProjectID(ctx context.Context) (string, error) {
	for _, key := range []string{"GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT"} {
		if projectID := os.Getenv(key); projectID != "" {
			return projectID, nil
		}
	}
	return getProjectIDFromMetadata(ctx, metadataBaseURL)
}

const metadataBaseURL = "http://metadata.google.internal/computeMetadata/v1"

// getProjectIDFromMetadata fetches the project ID from GCP metadata server
func getProjectIDFromMetadata(ctx context.Context, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/project/project-id", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata request: %w", err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch project ID from metadata server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", fmt.Errorf("failed to read metadata response: %w", err)
	}

	projectID := strings.TrimSpace(string(body))
	if projectID == "" {
		return "", fmt.Errorf("empty project ID from metadata server")
	}
	return projectID, nil
}

// FetchSecret retrieves a secret from GCP Secret Manager
// secretPath can be in one of the following formats:
// - projects/PROJECT_ID/secrets/SECRET_NAME/versions/VERSION
// - projects/PROJECT_ID/secrets/SECRET_NAME (defaults to latest)
// - SECRET_NAME (uses the client's project)
func (c *SecretManagerClient) FetchSecret(ctx context.Context, secretPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	name := c.normalizeSecretPath(secretPath)
	result, err := c.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", name, err)
	}
	if result.GetPayload() == nil {
		return "", fmt.Errorf("secret %s has no payload", name)
	}
	return strings.TrimSpace(string(result.GetPayload().GetData())), nil
}

// normalizeSecretPath ensures the secret path is in the correct format
func (c *SecretManagerClient) normalizeSecretPath(secretPath string) string {
	secretPath = strings.TrimPrefix(secretPath, SecretScheme)

	if strings.HasPrefix(secretPath, "projects/") && strings.Contains(secretPath, "/versions/") {
		return secretPath
	}
	if strings.HasPrefix(secretPath, "projects/") && strings.Contains(secretPath, "/secrets/") {
		return secretPath + "/versions/latest"
	}

	secretName := path.Base(secretPath)
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.projectID, secretName)
}

// Close closes the Secret Manager client
func (c *SecretManagerClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsSecretRef reports whether value names a Secret Manager secret.
func IsSecretRef(value string) bool {
	return strings.HasPrefix(value, SecretScheme)
}

// ResolveSecret returns value unchanged unless it is a gcp-secret:// reference,
// in which case the secret is fetched. A nil fetcher with a reference is an
// error.
func ResolveSecret(ctx context.Context, fetcher SecretFetcher, value string) (string, error) {
	if !IsSecretRef(value) {
		return value, nil
	}
	if fetcher == nil {
		return "", fmt.Errorf("secret reference %s needs a secret manager client", value)
	}
	secret, err := fetcher.FetchSecret(ctx, value)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", fmt.Errorf("secret %s is empty", value)
	}
	return secret, nil
}
