package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginAttachesBearerAndParsesProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("Authorization = %q, want Bearer tok123", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":      true,
			"user_id": "alice",
			"email":   "alice@example.com",
			"role":    "patient",
			"name":    "Alice",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	sess, err := c.Login(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if sess.UserID != "alice" || sess.Role != "patient" || sess.Token != "tok123" {
		t.Errorf("unexpected session: %+v", sess)
	}
}

func TestListReportsQueryAndDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reports/alice" {
			t.Errorf("path = %q, want /reports/alice", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("limit = %q, want 20", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"user_id": "alice",
			"count":   1,
			"reports": []map[string]interface{}{
				{
					"report_id":   "r1",
					"user_id":     "alice",
					"filename":    "cbc.pdf",
					"ai_analysis": "All values normal.",
					"uploaded_at": "2026-01-05T10:00:00Z",
				},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	sess := &Session{Token: "tok", UserID: "alice", Role: "patient"}

	reports, err := c.ListReports(context.Background(), sess, "alice", 20)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 1 || reports[0].ReportID != "r1" || reports[0].Filename != "cbc.pdf" {
		t.Errorf("unexpected reports: %+v", reports)
	}
}

func TestErrorResponsesSurfaceAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Unauthorized: You can only access your own reports",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	sess := &Session{Token: "tok", UserID: "mallory", Role: "patient"}

	_, err := c.ListReports(context.Background(), sess, "alice", 0)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestDashboardForSelectsVariant(t *testing.T) {
	c := New("http://localhost:0")

	d, err := DashboardFor(c, &Session{UserID: "alice", Role: "patient"})
	if err != nil {
		t.Fatalf("DashboardFor(patient): %v", err)
	}
	if _, ok := d.(*PatientDashboard); !ok || d.Role() != "patient" {
		t.Errorf("patient session got %T (role %q)", d, d.Role())
	}

	d, err = DashboardFor(c, &Session{UserID: "drx", Role: "doctor"})
	if err != nil {
		t.Fatalf("DashboardFor(doctor): %v", err)
	}
	if _, ok := d.(*DoctorDashboard); !ok || d.Role() != "doctor" {
		t.Errorf("doctor session got %T (role %q)", d, d.Role())
	}

	if _, err := DashboardFor(c, &Session{UserID: "x", Role: "admin"}); err == nil {
		t.Error("unknown role should be rejected")
	}
}

func TestPatientDashboardTimelineGuardsOwnership(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reports/alice" {
			t.Errorf("path = %q, want /reports/alice", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"reports": []map[string]interface{}{},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	sess := &Session{Token: "tok", UserID: "alice", Role: "patient"}
	d, err := DashboardFor(c, sess)
	if err != nil {
		t.Fatalf("DashboardFor: %v", err)
	}

	// Empty owner defaults to self.
	if _, err := d.Timeline(context.Background(), "", 0); err != nil {
		t.Errorf("Timeline(self): %v", err)
	}

	// Another patient's timeline is rejected client-side.
	if _, err := d.Timeline(context.Background(), "bob", 0); err == nil {
		t.Error("patient dashboard allowed another patient's timeline")
	}
}
