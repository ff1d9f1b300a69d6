package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"cloud.google.com/go/storage"
)

// signedURLTTL is how long a download link for an original file stays
// valid. Links are minted fresh on every read and never persisted.
const signedURLTTL = 15 * time.Minute

// reportBlobPath builds the bucket object path for an uploaded original.
// Files live in per-user folders so bucket-level rules can stay simple.
func reportBlobPath(userID, objectName string) string {
	return fmt.Sprintf("medical_reports/%s/%s", userID, objectName)
}

// uploadReportBlob streams the local file at localPath into the reports
// bucket and returns the blob path to store on the Report record.
func (h *Handlers) uploadReportBlob(ctx context.Context, localPath, userID, objectName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	blobPath := reportBlobPath(userID, objectName)
	w := h.Storage.Bucket(h.Cfg.ReportsBucket).Object(blobPath).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gs://%s/%s: %w", h.Cfg.ReportsBucket, blobPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gs://%s/%s: %w", h.Cfg.ReportsBucket, blobPath, err)
	}
	return blobPath, nil
}

// signedReportURL mints a short-lived V4 GET URL for a stored blob. It
// returns "" (and logs) when signing is not configured or fails, so read
// paths degrade to records without download links rather than erroring.
func (h *Handlers) signedReportURL(blobPath string) string {
	if blobPath == "" {
		return ""
	}
	if h.Cfg.SignedURLServiceAccountEmail == "" || h.Cfg.SignedURLPrivateKey == "" {
		log.Printf("signedReportURL: signing credentials not configured")
		return ""
	}

	url, err := storage.SignedURL(
		h.Cfg.ReportsBucket,
		blobPath,
		&storage.SignedURLOptions{
			Scheme:         storage.SigningSchemeV4,
			Method:         "GET",
			Expires:        time.Now().Add(signedURLTTL),
			GoogleAccessID: h.Cfg.SignedURLServiceAccountEmail,
			PrivateKey:     []byte(h.Cfg.SignedURLPrivateKey),
		},
	)
	if err != nil {
		log.Printf("signedReportURL: SignedURL error for %s: %v", blobPath, err)
		return ""
	}
	return url
}
