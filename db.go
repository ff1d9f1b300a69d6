package main

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Roles stored on the account profile mirror. The role gates which
// dashboard a user sees and which reports they may read.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// FirestoreDB wraps a Firestore client and exposes the operations the
// portal needs for accounts and report records.
type FirestoreDB struct {
	client *firestore.Client
}

// NewFirestoreDB creates a new Firestore client for the given project ID.
func NewFirestoreDB(ctx context.Context, projectID string) (*FirestoreDB, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &FirestoreDB{client: client}, nil
}

// Close releases underlying Firestore resources.
func (db *FirestoreDB) Close() error {
	return db.client.Close()
}

// Account is the Firestore profile mirror of a Firebase user, stored in
// the "accounts" collection keyed by Firebase UID. Identity itself (email
// verification, token lifecycle) stays with Firebase; the account carries
// the role attribute the portal authorizes against.
type Account struct {
	UserID    string `firestore:"user_id" json:"user_id"`
	Email     string `firestore:"email" json:"email"`
	Role      string `firestore:"role" json:"role"`
	Name      string `firestore:"name" json:"name"`
	CreatedAt string `firestore:"created_at" json:"created_at"`
}

// validRole reports whether s names a role the portal recognizes.
func validRole(s string) bool {
	return s == RolePatient || s == RoleDoctor
}

// CreateAccount writes the full profile document for a user.
func (db *FirestoreDB) CreateAccount(ctx context.Context, userID string, acc *Account) error {
	if acc == nil {
		return fmt.Errorf("nil account")
	}
	// Ensure the user_id field matches the document key.
	acc.UserID = userID
	_, err := db.client.Collection("accounts").Doc(userID).Set(ctx, acc)
	if err != nil {
		return fmt.Errorf("create account (%s): %w", userID, err)
	}
	return nil
}

// GetAccount fetches a profile document by Firebase UID. A missing account
// is not an error; callers should interpret a nil account as "no such
// account" (the user authenticated but never signed up).
func (db *FirestoreDB) GetAccount(ctx context.Context, userID string) (*Account, error) {
	snap, err := db.client.Collection("accounts").Doc(userID).Get(ctx)
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get account (%s): %w", userID, err)
	}
	var acc Account
	if err := snap.DataTo(&acc); err != nil {
		return nil, fmt.Errorf("decode account (%s): %w", userID, err)
	}
	return &acc, nil
}

// UpdateAccount performs a partial update (merge) with the provided fields.
// Used for the profile page; the role field is never passed through here.
func (db *FirestoreDB) UpdateAccount(ctx context.Context, userID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	_, err := db.client.Collection("accounts").Doc(userID).Set(ctx, updates, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("update account (%s): %w", userID, err)
	}
	return nil
}

// DeleteAccount removes a profile document. Report documents and blobs are
// cleaned up out-of-band.
func (db *FirestoreDB) DeleteAccount(ctx context.Context, userID string) error {
	_, err := db.client.Collection("accounts").Doc(userID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("delete account (%s): %w", userID, err)
	}
	return nil
}

// ListPatientAccounts returns all accounts with the patient role, newest
// sign-ups first. This backs the doctor's patient roster.
func (db *FirestoreDB) ListPatientAccounts(ctx context.Context) ([]*Account, error) {
	q := db.client.Collection("accounts").Where("role", "==", RolePatient).
		OrderBy("created_at", firestore.Desc)

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list patient accounts: %w", err)
	}

	accounts := make([]*Account, 0, len(docs))
	for _, snap := range docs {
		var acc Account
		if err := snap.DataTo(&acc); err != nil {
			return nil, fmt.Errorf("decode account (%s): %w", snap.Ref.ID, err)
		}
		accounts = append(accounts, &acc)
	}
	return accounts, nil
}

// trimID trims surrounding whitespace from a document/user ID and reports
// whether anything is left.
func trimID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
