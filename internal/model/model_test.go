package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAdminPrivileges(t *testing.T) {
	tests := []struct {
		name  string
		admin AdminUser
		want  Privileges
	}{
		{
			name:  "super admin without flags",
			admin: AdminUser{Level: 0},
			want: Privileges{
				BlockPrivilege:            true,
				AnalyticsPrivilege:        true,
				FetchMotivationsPrivilege: true,
			},
		},
		{
			name:  "super admin with manage flag",
			admin: AdminUser{Level: 0, ManageAdminsPrivilege: true, ReadOnly: true},
			want: Privileges{
				ReadOnly:                  true,
				BlockPrivilege:            true,
				AnalyticsPrivilege:        true,
				ManageAdminsPrivilege:     true,
				FetchMotivationsPrivilege: true,
			},
		},
		{
			name:  "level 3 with flags",
			admin: AdminUser{Level: 3, BlockPrivilege: true, ManageAdminsPrivilege: true},
			want:  Privileges{BlockPrivilege: true},
		},
		{
			name:  "level 4 bare",
			admin: AdminUser{Level: 4},
			want:  Privileges{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.admin.Privileges(); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResetExpired(t *testing.T) {
	sent := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := AdminUser{PasswordResetSentAt: &sent}

	if a.ResetExpired(sent.Add(PasswordResetWindow)) {
		t.Error("reset expired exactly at the window boundary")
	}
	if !a.ResetExpired(sent.Add(PasswordResetWindow + time.Second)) {
		t.Error("reset still valid after the window")
	}
	if !(&AdminUser{}).ResetExpired(sent) {
		t.Error("missing sent time should count as expired")
	}
}

func TestAdminJSONHidesSecrets(t *testing.T) {
	a := AdminUser{
		ID:                 7,
		Email:              "a@example.com",
		PasswordHash:       "salt:digest",
		PasswordResetToken: "reset",
	}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, secret := range []string{"salt:digest", "reset", "password"} {
		if strings.Contains(s, secret) {
			t.Errorf("JSON leaks %q: %s", secret, s)
		}
	}

	p, _ := json.Marshal(a.Profile())
	if !strings.Contains(string(p), `"has_password":true`) {
		t.Errorf("profile missing has_password: %s", p)
	}
}

func TestDailyLimitUpdate(t *testing.T) {
	ten := 10
	zero := 0
	base := DailyLimitConfig{Alert: 1, Block: 2}

	if got := (DailyLimitUpdate{Alert: &ten}).Merge(base); got != (DailyLimitConfig{Alert: 10, Block: 2}) {
		t.Errorf("alert only: got %+v", got)
	}
	if got := (DailyLimitUpdate{Block: &zero}).Merge(base); got != (DailyLimitConfig{Alert: 1, Block: 0}) {
		t.Errorf("block only: got %+v", got)
	}
	if !(DailyLimitUpdate{}).Empty() || (DailyLimitUpdate{Alert: &ten}).Empty() {
		t.Error("Empty misreported")
	}
	if (DailyLimitUpdate{Alert: &ten}).Complete() || !(DailyLimitUpdate{Alert: &ten, Block: &zero}).Complete() {
		t.Error("Complete misreported")
	}
}

func TestParseDailyLimitCategory(t *testing.T) {
	for _, c := range DailyLimitCategories {
		got, ok := ParseDailyLimitCategory(string(c))
		if !ok || got != c {
			t.Errorf("ParseDailyLimitCategory(%q): got (%q, %v)", c, got, ok)
		}
	}
	if _, ok := ParseDailyLimitCategory("Opened"); ok {
		t.Error("category parsing should be exact")
	}
}

func TestDailyLimitOverridesJSON(t *testing.T) {
	o := DailyLimitOverrides{
		CategoryOpened:    {Alert: 1, Block: 2},
		CategoryDisplayed: {Alert: 3, Block: 4},
	}
	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back DailyLimitOverrides
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back[CategoryDisplayed] != o[CategoryDisplayed] {
		t.Errorf("got %+v", back)
	}
	cats := o.Categories()
	if len(cats) != 2 || cats[0] != CategoryDisplayed {
		t.Errorf("Categories: got %v", cats)
	}
}

func TestSessionTokenExpired(t *testing.T) {
	exp := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	tok := SessionToken{ExpiresAt: exp}
	if tok.Expired(exp.Add(-time.Nanosecond)) {
		t.Error("expired before ExpiresAt")
	}
	if !tok.Expired(exp) {
		t.Error("not expired at ExpiresAt")
	}
}

func TestNewListResponse(t *testing.T) {
	r := NewListResponse[string](nil)
	data, _ := json.Marshal(r)
	if got, want := string(data), `{"resource":[],"meta":{"count":0}}`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if n := NewListResponse([]int{1, 2, 3}).Meta.Count; n != 3 {
		t.Errorf("count: got %d, want 3", n)
	}
}
