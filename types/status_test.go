package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseCanTransition(t *testing.T) {
	tests := []struct {
		from Phase
		to   Phase
		want bool
	}{
		{PhasePending, PhaseCreated, true},
		{PhasePending, PhaseVoting, true},
		{PhaseCreated, PhaseVoting, true},
		{PhaseVoting, PhaseWaitResult, true},
		{PhaseWaitResult, PhaseOpenResultSet, true},
		{PhaseOpenResultSet, PhaseWithdraw, true},
		{PhaseVoting, PhaseWithdraw, true},

		// never backwards, never self
		{PhaseVoting, PhaseCreated, false},
		{PhaseWithdraw, PhaseVoting, false},
		{PhaseWaitResult, PhaseVoting, false},
		{PhaseVoting, PhaseVoting, false},
		{PhaseVoting, PhasePending, false},

		{Phase("BOGUS"), PhaseVoting, false},
		{PhaseVoting, Phase("BOGUS"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestOrderStatusCanTransition(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusActive, true},
		{OrderStatusPending, OrderStatusFail, true},
		{OrderStatusPending, OrderStatusCanceled, true},
		{OrderStatusActive, OrderStatusPendingCancel, true},
		{OrderStatusActive, OrderStatusFulfilled, true},
		{OrderStatusActive, OrderStatusCanceled, true},
		{OrderStatusPendingCancel, OrderStatusCanceled, true},
		{OrderStatusPendingCancel, OrderStatusActive, true},
		{OrderStatusPendingCancel, OrderStatusFulfilled, true},

		// terminal states admit nothing
		{OrderStatusCanceled, OrderStatusActive, false},
		{OrderStatusFulfilled, OrderStatusActive, false},
		{OrderStatusFail, OrderStatusActive, false},

		{OrderStatusActive, OrderStatusActive, false},
		{OrderStatusActive, OrderStatusPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusFulfilled, OrderStatusCanceled, OrderStatusFail} {
		assert.True(t, s.Terminal(), string(s))
		for _, next := range []OrderStatus{
			OrderStatusPending, OrderStatusActive, OrderStatusPendingCancel,
			OrderStatusFulfilled, OrderStatusCanceled, OrderStatusFail,
		} {
			assert.False(t, s.CanTransition(next), "%s -> %s", s, next)
		}
	}
	assert.False(t, OrderStatusActive.Terminal())
}

func TestTxTypeFollowUp(t *testing.T) {
	tests := []struct {
		in     TxType
		want   TxType
		wantOK bool
	}{
		{TxTypeApproveCreateEvent, TxTypeCreateEvent, true},
		{TxTypeApproveSetResult, TxTypeSetResult, true},
		{TxTypeApproveVote, TxTypeVote, true},
		{TxTypeCreateEvent, "", false},
		{TxTypeTransfer, "", false},
		{TxTypeResetApprove, "", false},
	}

	for _, tt := range tests {
		got, ok := tt.in.FollowUp()
		assert.Equal(t, tt.wantOK, ok, string(tt.in))
		assert.Equal(t, tt.want, got, string(tt.in))
		assert.Equal(t, tt.wantOK, tt.in.IsApprove(), string(tt.in))
	}
}

func TestTxStatusTerminal(t *testing.T) {
	assert.False(t, TxStatusPending.Terminal())
	assert.True(t, TxStatusSuccess.Terminal())
	assert.True(t, TxStatusFail.Terminal())
}

func TestSideForTokens(t *testing.T) {
	assert.Equal(t, OrderSideBuy, SideForTokens(true))
	assert.Equal(t, OrderSideSell, SideForTokens(false))
}
