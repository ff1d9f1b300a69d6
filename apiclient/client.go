// Package apiclient is a small typed client for the MediMind REST API,
// used by the cmd/ tools and by anything else that talks to the portal
// from Go.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Session carries the authenticated identity for a sequence of API calls.
// It is created by Login and passed explicitly to every request method,
// so two sessions (say a patient and their doctor) can share one Client.
type Session struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Report mirrors the server's report record.
type Report struct {
	ReportID      string `json:"report_id"`
	UserID        string `json:"user_id"`
	Filename      string `json:"filename"`
	ExtractedText string `json:"extracted_text"`
	AIAnalysis    string `json:"ai_analysis"`
	UploadedAt    string `json:"uploaded_at"`
	FileURL       string `json:"file_url,omitempty"`
}

// Patient mirrors the account records returned by the doctor roster.
type Patient struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// UploadResult is the response of a successful report upload.
type UploadResult struct {
	ReportID      string `json:"report_id"`
	Filename      string `json:"filename"`
	ExtractedText string `json:"extracted_text"`
	AIAnalysis    string `json:"ai_analysis"`
}

// Client talks to one MediMind server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a Client for the given base URL, e.g. "http://localhost:8000".
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", req.Method, req.URL.Path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, sess *Session, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if sess != nil && sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	return req, nil
}

// Login exchanges a Firebase ID token (or dev bearer token) for a Session.
func (c *Client) Login(ctx context.Context, token string) (*Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/login", &Session{Token: token}, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		OK     bool   `json:"ok"`
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		Role   string `json:"role"`
		Name   string `json:"name"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, fmt.Errorf("login rejected")
	}

	return &Session{
		Token:  token,
		UserID: out.UserID,
		Role:   out.Role,
		Name:   out.Name,
		Email:  out.Email,
	}, nil
}

// Upload sends a local report file to POST /upload and returns the
// processing result.
func (c *Client) Upload(ctx context.Context, sess *Session, path string) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", sess, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		Success bool `json:"success"`
		UploadResult
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("upload not successful")
	}
	return &out.UploadResult, nil
}

// ListReports fetches the newest reports for userID, at most limit
// records (0 means the server default).
func (c *Client) ListReports(ctx context.Context, sess *Session, userID string, limit int) ([]Report, error) {
	path := "/reports/" + url.PathEscape(userID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, sess, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Success bool     `json:"success"`
		Reports []Report `json:"reports"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

// GetReport fetches one report owned by userID, including its signed
// download link.
func (c *Client) GetReport(ctx context.Context, sess *Session, userID, reportID string) (*Report, error) {
	path := "/report/" + url.PathEscape(reportID) + "?user_id=" + url.QueryEscape(userID)

	req, err := c.newRequest(ctx, http.MethodGet, path, sess, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Success bool    `json:"success"`
		Report  *Report `json:"report"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Report, nil
}

// ListPatients fetches the doctor-only patient roster.
func (c *Client) ListPatients(ctx context.Context, sess *Session) ([]Patient, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/patients", sess, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Success  bool      `json:"success"`
		Patients []Patient `json:"patients"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Patients, nil
}
