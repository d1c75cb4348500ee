package core

import "testing"

func TestRunStatus_String(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   string
	}{
		{StatusIdle, "idle"},
		{StatusRunning, "running"},
		{StatusCompleted, "completed"},
		{StatusFailed, "failed"},
		{StatusStopped, "stopped"},
		{RunStatus(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("RunStatus(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestRunStatus_IsTerminal(t *testing.T) {
	terminal := []RunStatus{StatusCompleted, StatusFailed, StatusStopped}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	nonTerminal := []RunStatus{StatusIdle, StatusRunning}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestRunStatus_IsSuccess(t *testing.T) {
	if !StatusCompleted.IsSuccess() {
		t.Error("completed should be success")
	}
	if StatusFailed.IsSuccess() {
		t.Error("failed should not be success")
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		cat  ErrorCategory
		want string
	}{
		{ErrCategoryNone, "none"},
		{ErrCategoryNotFound, "not_found"},
		{ErrCategoryTerminal, "terminal"},
		{ErrCategoryUnavailable, "unavailable"},
		{ErrCategoryUnexpected, "unexpected"},
		{ErrCategoryStuck, "stuck"},
		{ErrCategoryConfig, "config"},
		{ErrorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.cat.String(); got != tt.want {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", tt.cat, got, tt.want)
		}
	}
}

func TestErrorCategory_IsTransient(t *testing.T) {
	if !ErrCategoryNotFound.IsTransient() || !ErrCategoryUnavailable.IsTransient() {
		t.Error("not_found and unavailable should be transient")
	}
	if ErrCategoryUnexpected.IsTransient() || ErrCategoryStuck.IsTransient() {
		t.Error("unexpected and stuck should not be transient")
	}
}
