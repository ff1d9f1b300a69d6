package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// writeJSON is a small helper to send JSON responses with status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON error: %v", err)
	}
}

// devAuthOK reports whether the request carries the dev bearer token.
func (h *Handlers) devAuthOK(r *http.Request) bool {
	if h.Cfg.DevBearer == "" {
		return false
	}
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return token == h.Cfg.DevBearer
}

// GetUserIDFromRequest returns the effective user ID for this request.
//
// Priority:
//  1. If a dev escape hatch is configured (AUTH_DEV_BEARER or DEBUG) and
//     X-User-Id is set (non-empty), trust and return it. This is useful
//     for local/dev flows and automated tests.
//  2. Otherwise, require Authorization: Bearer <Firebase ID token>
//     and verify it via Firebase Admin SDK (revocation included).
//
// If no valid user can be determined, it returns an error.
func (h *Handlers) GetUserIDFromRequest(ctx context.Context, r *http.Request) (string, error) {
	// Dev/test override: X-User-Id short-circuits Firebase verification.
	// Never honored unless dev mode is explicitly configured.
	if h.Cfg.DevBearer != "" || h.Cfg.Debug {
		if userID := strings.TrimSpace(r.Header.Get("X-User-Id")); userID != "" {
			return userID, nil
		}
	}

	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", fmt.Errorf("missing Authorization bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	if token == "" {
		return "", fmt.Errorf("empty bearer token")
	}

	decoded, err := h.verifyIDToken(ctx, token)
	if err != nil || decoded == nil {
		return "", fmt.Errorf("verifyIDToken failed: %w", err)
	}

	return decoded.UID, nil
}

// callerRole loads the caller's account role, treating a missing account
// as no role. A DB error is returned so handlers can answer 500 rather
// than silently denying.
func (h *Handlers) callerRole(ctx context.Context, userID string) (string, error) {
	acc, err := h.DB.GetAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", nil
	}
	return acc.Role, nil
}

// IndexHandler implements GET / as a health/info endpoint.
func (h *Handlers) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "Endpoint not found",
		})
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "running",
		"service": "MediMind Report Analyzer API",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"upload":        "POST /upload",
			"user_reports":  "GET /reports/<user_id>",
			"report_detail": "GET /report/<report_id>",
		},
	})
}

// LoginHandler implements POST /api/login.
//
//   - Requires Authorization: Bearer <token>
//   - Tries Firebase ID token verification first; if successful, looks up
//     the account in Firestore and returns the profile (role included) or
//     account_not_found.
//   - On Firebase verification failure, falls back to dev bearer mode when
//     AUTH_DEV_BEARER matches the Authorization header.
//   - Otherwise returns {"ok": false, "error": "unauthorized"} with 401.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"ok":    false,
			"error": "Missing Authorization header",
		})
		return
	}

	token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	ctx := r.Context()

	// Try Firebase token verification first
	if token != "" {
		decoded, err := h.verifyIDToken(ctx, token)
		if err == nil && decoded != nil {
			userID := decoded.UID
			var email string
			if e, ok := decoded.Claims["email"].(string); ok {
				email = e
			}

			acc, err := h.DB.GetAccount(ctx, userID)
			if err != nil {
				log.Printf("Login GetAccount error: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
					"ok":    false,
					"error": "server_error",
				})
				return
			}

			if acc != nil {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"ok":      true,
					"user_id": userID,
					"email":   email,
					"role":    acc.Role,
					"name":    acc.Name,
				})
				return
			}

			// User authenticated with Firebase but never signed up.
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"ok":      false,
				"error":   "account_not_found",
				"message": "Please sign up to create an account",
			})
			return
		}

		if err != nil {
			log.Printf("Firebase token verification error: %v", err)
		}
	}

	// Fallback: dev bearer token for testing
	if h.devAuthOK(r) {
		var body struct {
			UserID string `json:"user_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body) // body is optional here

		userID := strings.TrimSpace(body.UserID)
		if userID == "" {
			userID = strings.TrimSpace(r.Header.Get("X-User-Id"))
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":       true,
			"user_id":  userID,
			"role":     RolePatient,
			"name":     "Test User",
			"dev_mode": true,
		})
		return
	}

	writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
		"ok":    false,
		"error": "unauthorized",
	})
}

// AccountsHandler implements POST /api/accounts (sign-up). It creates the
// Firestore profile mirror for a Firebase user, including the role the
// rest of the portal authorizes against.
func (h *Handlers) AccountsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		Name   string `json:"name"`
		Role   string `json:"role"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "invalid_json",
		})
		return
	}

	userID := strings.TrimSpace(body.UserID)
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "user_id required",
		})
		return
	}

	role := strings.ToLower(strings.TrimSpace(body.Role))
	if role == "" {
		role = RolePatient
	}
	if !validRole(role) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "role must be patient or doctor",
		})
		return
	}

	acc := &Account{
		UserID:    userID,
		Email:     strings.TrimSpace(body.Email),
		Role:      role,
		Name:      strings.TrimSpace(body.Name),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	ctx := r.Context()
	if err := h.DB.CreateAccount(ctx, userID, acc); err != nil {
		log.Printf("CreateAccount error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "server_error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"user_id": userID,
		"email":   acc.Email,
		"role":    acc.Role,
		"name":    acc.Name,
	})
}

// AccountsMeHandler implements PUT /api/accounts/me to update the
// currently authenticated user's profile. The role field is deliberately
// not updatable.
func (h *Handlers) AccountsMeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, err := h.GetUserIDFromRequest(ctx, r)
	if err != nil {
		log.Printf("AccountsMe auth error: %v", err)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "unauthorized",
		})
		return
	}

	var body struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "invalid_json",
		})
		return
	}

	updates := map[string]interface{}{}
	if body.Name != nil {
		updates["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Email != nil {
		updates["email"] = strings.TrimSpace(*body.Email)
	}

	if err := h.DB.UpdateAccount(ctx, userID, updates); err != nil {
		log.Printf("AccountsMe UpdateAccount error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "server_error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"user_id": userID,
	})
}

// AccountsByIDHandler implements DELETE /api/accounts/<user_id>. Only the
// account owner may delete it; reports and blobs are cleaned up
// out-of-band.
func (h *Handlers) AccountsByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	const prefix = "/api/accounts/"
	targetID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if targetID == "" || targetID == "me" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "user_id required",
		})
		return
	}

	ctx := r.Context()
	callerID, err := h.GetUserIDFromRequest(ctx, r)
	if err != nil {
		log.Printf("AccountsByID auth error: %v", err)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "unauthorized",
		})
		return
	}
	if callerID != targetID {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error": "You can only delete your own account",
		})
		return
	}

	if err := h.DB.DeleteAccount(ctx, targetID); err != nil {
		log.Printf("AccountsByID DeleteAccount error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "server_error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"user_id": targetID,
	})
}

// UploadHandler implements POST /upload.
//
// It accepts one multipart file (pdf, png, jpg, jpeg, gif; ≤10MB) from an
// authenticated patient, extracts its text, generates the AI analysis,
// uploads the original to the reports bucket, and persists the Report.
// Validation failures reject the request before any OCR or AI call; hard
// OCR/AI failures surface as a processing error with no record persisted.
func (h *Handlers) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Reject obviously oversized bodies up front. Chunked requests with no
	// declared length are caught by MaxBytesReader below.
	if r.ContentLength > maxUploadBytes+(1<<20) {
		uploadsRejected.WithLabelValues("too_large").Inc()
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{
			"error": "File size exceeds 10MB limit",
		})
		return
	}

	ctx := r.Context()
	userID, err := h.GetUserIDFromRequest(ctx, r)
	if err != nil {
		log.Printf("Upload auth error: %v", err)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "Missing or invalid authentication token",
		})
		return
	}

	acc, err := h.DB.GetAccount(ctx, userID)
	if err != nil {
		log.Printf("Upload GetAccount error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "server_error",
		})
		return
	}
	if acc == nil {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":   "account_not_found",
			"message": "Please sign up before uploading reports",
		})
		return
	}
	if acc.Role != RolePatient {
		// Doctors read reports; only patients create them.
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error": "Only patients can upload reports",
		})
		return
	}

	if !h.Limiter.Allow(userID) {
		uploadsRejected.WithLabelValues("rate_limited").Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error": "Too many uploads, please wait a moment and try again",
		})
		return
	}

	// Leave some slack above the file cap for multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		// The multipart layer does not always wrap the MaxBytesReader
		// error, so check its own too-large sentinel as well.
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
			uploadsRejected.WithLabelValues("too_large").Inc()
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{
				"error": "File size exceeds 10MB limit",
			})
			return
		}
		uploadsRejected.WithLabelValues("bad_multipart").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "invalid_multipart",
		})
		return
	}

	file, fh, err := r.FormFile("file")
	if err != nil {
		uploadsRejected.WithLabelValues("missing_file").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "No file provided",
		})
		return
	}
	defer file.Close()

	if strings.TrimSpace(fh.Filename) == "" {
		uploadsRejected.WithLabelValues("missing_file").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "No file selected",
		})
		return
	}
	if fh.Size > maxUploadBytes {
		uploadsRejected.WithLabelValues("too_large").Inc()
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{
			"error": "File size exceeds 10MB limit",
		})
		return
	}
	if !allowedFile(fh.Filename) {
		uploadsRejected.WithLabelValues("bad_type").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid file type. Allowed types: pdf, png, jpg, jpeg, gif",
		})
		return
	}

	ext := fileExt(fh.Filename)
	filename := sanitizeFilename(fh.Filename)
	objectName := uniqueObjectName(fh.Filename)
	tmpPath := filepath.Join(h.Cfg.UploadDir, objectName)

	tmp, err := os.Create(tmpPath)
	if err != nil {
		log.Printf("Upload temp file error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "server_error",
		})
		return
	}
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		log.Printf("Upload temp write error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "server_error",
		})
		return
	}
	if err := tmp.Close(); err != nil {
		log.Printf("Upload temp close error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "server_error",
		})
		return
	}

	extracted, aiAnalysis, err := h.processUploadedFile(ctx, tmpPath, ext)
	if err != nil {
		log.Printf("Upload processing error for user %s: %v", userID, err)
		body := map[string]interface{}{
			"error": "Processing failed",
		}
		if h.Cfg.Debug {
			body["detail"] = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}

	// The blob upload is best-effort: a report without a download link is
	// still useful, so storage trouble only costs the file_url.
	blobPath, err := h.uploadReportBlob(ctx, tmpPath, userID, objectName)
	if err != nil {
		log.Printf("Upload blob store warning for user %s: %v", userID, err)
		blobPath = ""
	}

	report := &Report{
		UserID:        userID,
		Filename:      filename,
		BlobPath:      blobPath,
		ExtractedText: extracted,
		AIAnalysis:    aiAnalysis,
		UploadedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	reportID, err := h.DB.SaveReport(ctx, userID, report)
	if err != nil {
		processingFailures.WithLabelValues("store").Inc()
		log.Printf("Upload SaveReport error for user %s: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to save report",
		})
		return
	}

	uploadsTotal.Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"report_id":      reportID,
		"filename":       filename,
		"extracted_text": extracted,
		"ai_analysis":    aiAnalysis,
		"message":        "File processed successfully",
	})
}

// UserReportsHandler implements GET /reports/<user_id>.
//
// The caller must be the owner or a doctor. Reports come back ordered by
// uploaded_at descending (server-side contract), at most `limit` records
// (default 50, cap 100), each with a fresh short-lived signed file_url.
func (h *Handlers) UserReportsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	const prefix = "/reports/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	ownerID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if ownerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "user_id required",
		})
		return
	}

	ctx := r.Context()
	callerID, err := h.GetUserIDFromRequest(ctx, r)
	if err != nil {
		log.Printf("UserReports auth error: %v", err)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "Missing or invalid authentication token",
		})
		return
	}

	role, err := h.callerRole(ctx, callerID)
	if err != nil {
		log.Printf("UserReports callerRole error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "server_error",
		})
		return
	}
	if !canAccessReports(callerID, role, ownerID) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error": "Unauthorized: You can only access your own reports",
		})
		return
	}

	limit := clampLimit(r.URL.Query().Get("limit"), defaultReportLimit, maxReportLimit)

	reports, err := h.DB.ListReportsByUser(ctx, ownerID, limit)
	if err != nil {
		log.Printf("UserReports ListReportsByUser error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve reports",
		})
		return
	}

	for _, rep := range reports {
		rep.FileURL = h.signedReportURL(rep.BlobPath)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user_id": ownerID,
		"count":   len(reports),
		"reports": reports,
	})
}

// ReportDetailHandler implements GET /report/<report_id>?user_id=<owner>.
//
// Same authorization as the list endpoint. The response includes a fresh
// 15-minute signed download link for the original file. Reads never re-run
// processing; extracted_text and ai_analysis are returned as stored.
func (h *Handlers) ReportDetailHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	const prefix = "/report/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	reportID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if reportID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "report_id required",
		})
		return
	}

	ownerID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if ownerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "user_id parameter is required",
		})
		return
	}

	ctx := r.Context()
	callerID, err := h.GetUserIDFromRequest(ctx, r)
	if err != nil {
		log.Printf("ReportDetail auth error: %v", err)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "Missing or invalid authentication token",
		})
		return
	}

	role, err := h.callerRole(ctx, callerID)
	if err != nil {
		log.Printf("ReportDetail callerRole error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "server_error",
		})
		return
	}
	if !canAccessReports(callerID, role, ownerID) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error": "Unauthorized: You can only access your own reports",
		})
		return
	}

	report, err := h.DB.GetReport(ctx, ownerID, reportID)
	if err != nil {
		log.Printf("ReportDetail GetReport error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve report",
		})
		return
	}
	if report == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "Report not found",
		})
		return
	}

	report.FileURL = h.signedReportURL(report.BlobPath)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  report,
	})
}

// PatientsHandler implements GET /patients, the doctor-only roster of
// patient accounts that backs the doctor dashboard.
func (h *Handlers) PatientsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	callerID, err := h.GetUserIDFromRequest(ctx, r)
	if err != nil {
		log.Printf("Patients auth error: %v", err)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "Missing or invalid authentication token",
		})
		return
	}

	role, err := h.callerRole(ctx, callerID)
	if err != nil {
		log.Printf("Patients callerRole error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "server_error",
		})
		return
	}
	if role != RoleDoctor {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error": "Doctor role required",
		})
		return
	}

	patients, err := h.DB.ListPatientAccounts(ctx)
	if err != nil {
		log.Printf("Patients ListPatientAccounts error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve patients",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"count":    len(patients),
		"patients": patients,
	})
}
