package rbac

import (
	"errors"
	"testing"

	"github.com/relay-crm/core/internal/database/models"
)

func TestOwnerAuthorizer(t *testing.T) {
	a := NewOwnerAuthorizer()

	owner := &models.User{ID: 1, Username: "alice", Role: "user"}
	stranger := &models.User{ID: 2, Username: "bob", Role: "user"}
	admin := &models.User{ID: 3, Username: "root", Role: "admin"}

	if !a.Can(owner, PermCompanyEdit, owner.ID) {
		t.Error("Owner should act on own records")
	}
	if a.Can(stranger, PermCompanyEdit, owner.ID) {
		t.Error("Non-owner should be denied")
	}
	if !a.Can(admin, PermCompanyEdit, owner.ID) {
		t.Error("Admin should act on any record")
	}
	if a.Can(nil, PermCompanyView, owner.ID) {
		t.Error("Nil user should be denied")
	}
}

func TestCheck(t *testing.T) {
	a := NewOwnerAuthorizer()
	owner := &models.User{ID: 1, Username: "alice", Role: "user"}
	stranger := &models.User{ID: 2, Username: "bob", Role: "user"}

	if err := Check(a, owner, PermProjectView, owner.ID); err != nil {
		t.Errorf("Expected allow, got %v", err)
	}
	if err := Check(a, stranger, PermProjectView, owner.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}

	// A nil authorizer allows everything; services fall back to it only
	// when constructed without one.
	if err := Check(nil, stranger, PermProjectView, owner.ID); err != nil {
		t.Errorf("Expected nil authorizer to allow, got %v", err)
	}
}
