package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// List limits for GET /reports/{user_id}. The ordering/limit behavior is a
// server-side contract: reports come back ordered by uploaded_at descending
// and clients must not re-sort or slice.
const (
	defaultReportLimit = 50
	maxReportLimit     = 100
)

// Report is one processed upload, stored flat under
// users/{uid}/reports/{reportID}. Records are immutable after creation;
// deletion happens out-of-band.
//
// BlobPath points at the original file in the reports bucket. It is stored
// instead of a URL so that a fresh short-lived signed URL can be minted on
// every read (FileURL below, never persisted).
type Report struct {
	ReportID      string `firestore:"-" json:"report_id"`
	UserID        string `firestore:"user_id" json:"user_id"`
	Filename      string `firestore:"filename" json:"filename"`
	BlobPath      string `firestore:"blob_path" json:"blob_path"`
	ExtractedText string `firestore:"extracted_text" json:"extracted_text"`
	AIAnalysis    string `firestore:"ai_analysis" json:"ai_analysis"`
	UploadedAt    string `firestore:"uploaded_at" json:"uploaded_at"`

	FileURL string `firestore:"-" json:"file_url,omitempty"`
}

// reportsCol returns the per-user reports subcollection.
func (db *FirestoreDB) reportsCol(userID string) *firestore.CollectionRef {
	return db.client.Collection("users").Doc(userID).Collection("reports")
}

// SaveReport persists a new report document and returns its generated ID.
func (db *FirestoreDB) SaveReport(ctx context.Context, userID string, r *Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("nil report")
	}
	userID, ok := trimID(userID)
	if !ok {
		return "", fmt.Errorf("empty user_id")
	}
	r.UserID = userID

	ref := db.reportsCol(userID).NewDoc()
	if _, err := ref.Set(ctx, r); err != nil {
		return "", fmt.Errorf("save report for user %s: %w", userID, err)
	}
	return ref.ID, nil
}

// ListReportsByUser returns up to limit reports for the given user, ordered
// by uploaded_at descending. limit is clamped to [1, maxReportLimit] by the
// caller (see clampLimit).
func (db *FirestoreDB) ListReportsByUser(ctx context.Context, userID string, limit int) ([]*Report, error) {
	userID, ok := trimID(userID)
	if !ok {
		return nil, fmt.Errorf("empty user_id")
	}
	if limit <= 0 {
		limit = defaultReportLimit
	}

	q := db.reportsCol(userID).OrderBy("uploaded_at", firestore.Desc).Limit(limit)

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list reports for user %s: %w", userID, err)
	}

	reports := make([]*Report, 0, len(docs))
	for _, snap := range docs {
		var r Report
		if err := snap.DataTo(&r); err != nil {
			return nil, fmt.Errorf("decode report (%s): %w", snap.Ref.ID, err)
		}
		r.ReportID = snap.Ref.ID
		reports = append(reports, &r)
	}
	return reports, nil
}

// GetReport fetches one report by owner and document ID. A missing report
// is returned as (nil, nil).
func (db *FirestoreDB) GetReport(ctx context.Context, userID, reportID string) (*Report, error) {
	userID, ok := trimID(userID)
	if !ok {
		return nil, fmt.Errorf("empty user_id")
	}
	reportID, ok = trimID(reportID)
	if !ok {
		return nil, fmt.Errorf("empty report_id")
	}

	snap, err := db.reportsCol(userID).Doc(reportID).Get(ctx)
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get report (%s/%s): %w", userID, reportID, err)
	}
	var r Report
	if err := snap.DataTo(&r); err != nil {
		return nil, fmt.Errorf("decode report (%s/%s): %w", userID, reportID, err)
	}
	r.ReportID = snap.Ref.ID
	return &r, nil
}
