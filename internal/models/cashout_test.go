package models

import "testing"

func TestCashoutStatus_Transitions(t *testing.T) {
	all := []CashoutStatus{CashoutPending, CashoutApproved, CashoutRejected, CashoutProcessed}
	allowed := map[[2]CashoutStatus]bool{
		{CashoutPending, CashoutApproved}:   true,
		{CashoutPending, CashoutRejected}:   true,
		{CashoutApproved, CashoutProcessed}: true,
	}
	for _, from := range all {
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != allowed[[2]CashoutStatus{from, to}] {
				t.Errorf("%s -> %s = %v", from, to, got)
			}
		}
	}
	if CashoutStatus("lost").CanTransitionTo(CashoutApproved) {
		t.Error("unknown status should not transition")
	}
}

func TestCashoutStatus_TerminalAndValid(t *testing.T) {
	tests := []struct {
		status   CashoutStatus
		terminal bool
		valid    bool
	}{
		{CashoutPending, false, true},
		{CashoutApproved, false, true},
		{CashoutRejected, true, true},
		{CashoutProcessed, true, true},
		{"lost", true, false},
		{"", true, false},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%q.Terminal() = %v", tt.status, got)
		}
		if got := tt.status.Valid(); got != tt.valid {
			t.Errorf("%q.Valid() = %v", tt.status, got)
		}
	}
}
