package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Upload limit shared by the upload handler and validation helpers.
const maxUploadBytes = 10 << 20 // 10MB, same cap the frontend advertises

// Config holds service configuration. Most values come from environment
// variables with local-dev defaults; the signed-URL service account key is
// pulled from Secret Manager at startup.
type Config struct {
	ProjectID     string
	ReportsBucket string
	VertexRegion  string
	UploadDir     string

	DevBearer      string
	AllowedOrigins []string
	Port           string
	Debug          bool

	SignedURLServiceAccountEmail string
	SignedURLPrivateKey          string
}

// serviceAccountCreds is a minimal view of a GCP service account JSON key.
type serviceAccountCreds struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// loadSigningCreds loads the signed-URL service account JSON from Google
// Secret Manager. The secret is expected to contain the raw JSON service
// account key for medimind-signed-urls@<project>.iam.gserviceaccount.com.
// Missing credentials are not fatal; signed URLs are simply unavailable.
func loadSigningCreds(ctx context.Context, projectID string) (string, string) {
	const secretID = "medimind-signed-url-credentials"

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		log.Printf("loadSigningCreds: failed to init Secret Manager client: %v", err)
		return "", ""
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("loadSigningCreds: error closing Secret Manager client: %v", err)
		}
	}()

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretID)
	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		log.Printf("loadSigningCreds: AccessSecretVersion failed for %s: %v", name, err)
		return "", ""
	}
	if resp.Payload == nil || len(resp.Payload.Data) == 0 {
		log.Printf("loadSigningCreds: secret %s has empty payload", name)
		return "", ""
	}

	var creds serviceAccountCreds
	if err := json.Unmarshal(resp.Payload.Data, &creds); err != nil {
		log.Printf("loadSigningCreds: failed to unmarshal service account JSON: %v", err)
		return "", ""
	}

	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		log.Printf("loadSigningCreds: missing client_email or private_key in secret %s", name)
		return "", ""
	}

	return creds.ClientEmail, creds.PrivateKey
}

// parseAllowedOrigins splits a comma-separated origin list, dropping empty
// entries. An empty value means "*" (local dev).
func parseAllowedOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		origins = append(origins, p)
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// LoadConfig reads configuration from environment variables with
// local-dev defaults.
func LoadConfig() Config {
	projectID := os.Getenv("MEDIMIND_PROJECT_ID")
	if projectID == "" {
		// Sensible default for local dev; change to your MediMind project.
		projectID = "medimind-dev"
	}

	devBearer := os.Getenv("AUTH_DEV_BEARER")

	// Reports bucket holding uploaded originals (kept private; access via
	// short-lived signed URLs only).
	reportsBucket := os.Getenv("MEDIMIND_REPORTS_BUCKET")
	if reportsBucket == "" {
		reportsBucket = projectID + ".appspot.com"
	}

	vertexRegion := os.Getenv("MEDIMIND_VERTEX_REGION")
	if vertexRegion == "" {
		vertexRegion = "us-central1"
	}

	uploadDir := os.Getenv("MEDIMIND_UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	debug := false
	switch strings.ToLower(os.Getenv("DEBUG")) {
	case "true", "1", "t":
		debug = true
	}

	ctx := context.Background()
	signedEmail, signedKey := loadSigningCreds(ctx, projectID)

	return Config{
		ProjectID:     projectID,
		ReportsBucket: reportsBucket,
		VertexRegion:  vertexRegion,
		UploadDir:     uploadDir,

		DevBearer:      devBearer,
		AllowedOrigins: parseAllowedOrigins(os.Getenv("ALLOWED_ORIGINS")),
		Port:           port,
		Debug:          debug,

		SignedURLServiceAccountEmail: signedEmail,
		SignedURLPrivateKey:          signedKey,
	}
}
