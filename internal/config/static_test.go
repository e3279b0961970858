package config

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/faucetdb/warden/internal/model"
)

func TestStaticAdmins(t *testing.T) {
	inactive := false
	s, err := NewStaticAdmins([]AdminYAML{
		{Email: " Root@Example.com ", Level: 0, ManageAdminsPrivilege: true, Company: "acme"},
		{Email: "ops@example.com", Level: 2, Forms: []string{"f2", "f1"}, DailyLimitConfig: map[string]DailyLimitThresholdYAML{
			"opened": {Alert: 1, Block: 2},
		}},
		{Email: "old@example.com", Level: 3, Active: &inactive, Company: "acme"},
	})
	if err != nil {
		t.Fatalf("NewStaticAdmins: %v", err)
	}
	ctx := context.Background()

	root, err := s.GetAdminByEmail(ctx, "ROOT@example.com", true)
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if root.ID != 1 || root.Email != "root@example.com" || !root.HasManageAdminsPrivilege() {
		t.Errorf("unexpected root admin: %+v", root)
	}

	ops, err := s.GetAdminByID(ctx, 2, true)
	if err != nil {
		t.Fatalf("GetAdminByID: %v", err)
	}
	if !slices.Equal(ops.Forms, []string{"f2", "f1"}) {
		t.Errorf("forms: got %v", ops.Forms)
	}
	if ops.DailyLimitConfig[model.CategoryOpened] != (model.DailyLimitConfig{Alert: 1, Block: 2}) {
		t.Errorf("override: got %+v", ops.DailyLimitConfig)
	}

	if _, err := s.GetAdminByEmail(ctx, "old@example.com", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("inactive admin: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetAdminByEmail(ctx, "old@example.com", false); err != nil {
		t.Errorf("inactive-inclusive lookup: %v", err)
	}

	emails, _ := s.ListAdminEmails(ctx, true, "acme")
	if !slices.Equal(emails, []string{"root@example.com"}) {
		t.Errorf("active acme emails: got %v", emails)
	}
	all, _ := s.ListAdmins(ctx, false)
	if len(all) != 3 || all[0].Email != "old@example.com" {
		t.Errorf("list: got %+v", all)
	}

	// Returned records are copies.
	root.Level = 4
	again, _ := s.GetAdminByEmail(ctx, "root@example.com", true)
	if again.Level != 0 {
		t.Error("caller mutated the allowlist")
	}
}

func TestStaticAdminsReadOnly(t *testing.T) {
	s, err := NewStaticAdmins(nil)
	if err != nil {
		t.Fatalf("NewStaticAdmins: %v", err)
	}
	ctx := context.Background()
	if !s.ReadOnly() {
		t.Error("expected ReadOnly")
	}
	if err := s.CreateAdmin(ctx, &model.AdminUser{Email: "a@b.com"}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("create: expected ErrReadOnly, got %v", err)
	}
	if err := s.UpdateAdmin(ctx, 1, model.AdminChanges{}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("update: expected ErrReadOnly, got %v", err)
	}
	if _, err := s.DeleteAdmin(ctx, 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("delete: expected ErrReadOnly, got %v", err)
	}
	if _, err := s.DeleteAdminByEmail(ctx, "a@b.com"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("delete by email: expected ErrReadOnly, got %v", err)
	}
}

func TestStaticAdminsValidation(t *testing.T) {
	tests := []struct {
		name    string
		entries []AdminYAML
	}{
		{"missing email", []AdminYAML{{Level: 1}}},
		{"duplicate", []AdminYAML{{Email: "a@b.com"}, {Email: "A@B.com"}}},
		{"level range", []AdminYAML{{Email: "a@b.com", Level: 9}}},
		{"bad category", []AdminYAML{{Email: "a@b.com", DailyLimitConfig: map[string]DailyLimitThresholdYAML{"x": {}}}}},
		{"negative limit", []AdminYAML{{Email: "a@b.com", DailyLimitConfig: map[string]DailyLimitThresholdYAML{"opened": {Alert: -1}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStaticAdmins(tt.entries); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStaticLevelLimits(t *testing.T) {
	s, err := NewStaticLevelLimits([]LevelLimitYAML{
		{Level: 2, Category: "opened", Alert: 5, Block: 10},
		{Level: 0, Category: "opened", Alert: 50, Block: 100},
		{Level: 0, Category: "displayed", Alert: 1, Block: 2},
	})
	if err != nil {
		t.Fatalf("NewStaticLevelLimits: %v", err)
	}
	ctx := context.Background()

	got, err := s.GetLevelDailyLimit(ctx, 2, model.CategoryOpened)
	if err != nil {
		t.Fatalf("GetLevelDailyLimit: %v", err)
	}
	if got.Alert != 5 || got.Block != 10 {
		t.Errorf("got %+v", got)
	}
	if _, err := s.GetLevelDailyLimit(ctx, 1, model.CategoryOpened); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	all, _ := s.ListLevelDailyLimits(ctx)
	if len(all) != 3 || all[0].Level != 0 || all[0].Category != model.CategoryDisplayed {
		t.Errorf("unexpected order: %+v", all)
	}
	byLevel, _ := s.ListLevelDailyLimitsByLevel(ctx, 0)
	if len(byLevel) != 2 {
		t.Errorf("by level: got %d", len(byLevel))
	}
	byCat, _ := s.ListLevelDailyLimitsByCategory(ctx, model.CategoryOpened)
	if len(byCat) != 2 {
		t.Errorf("by category: got %d", len(byCat))
	}

	if err := s.CreateLevelDailyLimit(ctx, model.LevelDailyLimit{}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("create: expected ErrReadOnly, got %v", err)
	}
	if err := s.UpdateLevelDailyLimit(ctx, model.LevelDailyLimit{}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("update: expected ErrReadOnly, got %v", err)
	}
	if _, err := s.DeleteLevelDailyLimits(ctx, 0); !errors.Is(err, ErrReadOnly) {
		t.Errorf("delete: expected ErrReadOnly, got %v", err)
	}
}

func TestStaticLevelLimitsValidation(t *testing.T) {
	tests := []struct {
		name    string
		entries []LevelLimitYAML
	}{
		{"bad category", []LevelLimitYAML{{Level: 0, Category: "clicked"}}},
		{"bad level", []LevelLimitYAML{{Level: 5, Category: "opened"}}},
		{"negative", []LevelLimitYAML{{Level: 0, Category: "opened", Block: -1}}},
		{"duplicate", []LevelLimitYAML{{Level: 0, Category: "opened"}, {Level: 0, Category: "opened"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStaticLevelLimits(tt.entries); err == nil {
				t.Error("expected error")
			}
		})
	}
}
