package apiclient

import (
	"context"
	"fmt"
)

// Dashboard is the role-specific view of the portal. The variant is
// chosen once, from the session's role, rather than re-checking the role
// at every call site.
type Dashboard interface {
	// Role names the variant ("patient" or "doctor").
	Role() string
	// Timeline returns the newest-first reports the viewer is entitled
	// to see for ownerID. Patients may only pass their own ID.
	Timeline(ctx context.Context, ownerID string, limit int) ([]Report, error)
}

// DashboardFor returns the Dashboard variant matching the session's role.
func DashboardFor(c *Client, sess *Session) (Dashboard, error) {
	switch sess.Role {
	case "patient":
		return &PatientDashboard{client: c, sess: sess}, nil
	case "doctor":
		return &DoctorDashboard{client: c, sess: sess}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", sess.Role)
	}
}

// PatientDashboard is the self-service view: a patient sees exactly
// their own history.
type PatientDashboard struct {
	client *Client
	sess   *Session
}

func (d *PatientDashboard) Role() string { return "patient" }

func (d *PatientDashboard) Timeline(ctx context.Context, ownerID string, limit int) ([]Report, error) {
	if ownerID == "" {
		ownerID = d.sess.UserID
	}
	if ownerID != d.sess.UserID {
		return nil, fmt.Errorf("patients can only view their own reports")
	}
	return d.client.ListReports(ctx, d.sess, ownerID, limit)
}

// Upload sends a new report for the patient themselves.
func (d *PatientDashboard) Upload(ctx context.Context, path string) (*UploadResult, error) {
	return d.client.Upload(ctx, d.sess, path)
}

// DoctorDashboard is the care-team view: any patient's timeline, plus
// the roster.
type DoctorDashboard struct {
	client *Client
	sess   *Session
}

func (d *DoctorDashboard) Role() string { return "doctor" }

func (d *DoctorDashboard) Timeline(ctx context.Context, ownerID string, limit int) ([]Report, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("ownerID required for doctor timeline")
	}
	return d.client.ListReports(ctx, d.sess, ownerID, limit)
}

// Patients lists the patient roster for pick-a-timeline flows.
func (d *DoctorDashboard) Patients(ctx context.Context) ([]Patient, error) {
	return d.client.ListPatients(ctx, d.sess)
}
