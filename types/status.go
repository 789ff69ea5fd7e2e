package types

// TxStatus is the lifecycle state of a locally submitted transaction
type TxStatus string

const (
	TxStatusPending TxStatus = "PENDING"
	TxStatusSuccess TxStatus = "SUCCESS"
	TxStatusFail    TxStatus = "FAIL"
)

// Terminal reports whether the status admits no further transitions
func (s TxStatus) Terminal() bool {
	return s == TxStatusSuccess || s == TxStatusFail
}

// Valid reports whether the status is a known value
func (s TxStatus) Valid() bool {
	switch s {
	case TxStatusPending, TxStatusSuccess, TxStatusFail:
		return true
	}
	return false
}

// TxType identifies the kind of a locally submitted transaction. The set is
// closed; follow-up resolution switches over it exhaustively.
type TxType string

const (
	TxTypeApproveCreateEvent TxType = "APPROVECREATEEVENT"
	TxTypeCreateEvent        TxType = "CREATEEVENT"
	TxTypeApproveSetResult   TxType = "APPROVESETRESULT"
	TxTypeSetResult          TxType = "SETRESULT"
	TxTypeApproveVote        TxType = "APPROVEVOTE"
	TxTypeVote               TxType = "VOTE"
	TxTypeResetApprove       TxType = "RESETAPPROVE"
	TxTypeTransfer           TxType = "TRANSFER"
	TxTypeCreateOrder        TxType = "CREATEORDER"
	TxTypeCancelOrder        TxType = "CANCELORDER"
	TxTypeFundExchange       TxType = "FUNDEXCHANGE"
	TxTypeRedeemExchange     TxType = "REDEEMEXCHANGE"
)

// Valid reports whether the type is a known value
func (t TxType) Valid() bool {
	switch t {
	case TxTypeApproveCreateEvent, TxTypeCreateEvent,
		TxTypeApproveSetResult, TxTypeSetResult,
		TxTypeApproveVote, TxTypeVote,
		TxTypeResetApprove, TxTypeTransfer,
		TxTypeCreateOrder, TxTypeCancelOrder,
		TxTypeFundExchange, TxTypeRedeemExchange:
		return true
	}
	return false
}

// FundRedeemType distinguishes the two directions of exchange balance moves
type FundRedeemType string

const (
	FundRedeemFund   FundRedeemType = "FUND"
	FundRedeemRedeem FundRedeemType = "REDEEM"
)

// Valid reports whether the type is a known value
func (t FundRedeemType) Valid() bool {
	return t == FundRedeemFund || t == FundRedeemRedeem
}

// IsApprove reports whether the type is the approval half of a two-step
// approve-then-act workflow
func (t TxType) IsApprove() bool {
	switch t {
	case TxTypeApproveCreateEvent, TxTypeApproveSetResult, TxTypeApproveVote:
		return true
	}
	return false
}

// FollowUp returns the action type an approval of this type unlocks, or
// false when the type has no follow-up.
func (t TxType) FollowUp() (TxType, bool) {
	switch t {
	case TxTypeApproveCreateEvent:
		return TxTypeCreateEvent, true
	case TxTypeApproveSetResult:
		return TxTypeSetResult, true
	case TxTypeApproveVote:
		return TxTypeVote, true
	}
	return "", false
}

// Phase is the lifecycle stage shared by topics and oracles
type Phase string

const (
	// PhasePending marks a speculative record for an approval still in flight
	PhasePending Phase = "PENDING"

	// PhaseCreated marks a record whose creation confirmed but whose round
	// has not opened yet
	PhaseCreated Phase = "CREATED"

	PhaseVoting        Phase = "VOTING"
	PhaseWaitResult    Phase = "WAITRESULT"
	PhaseOpenResultSet Phase = "OPENRESULTSET"
	PhaseWithdraw      Phase = "WITHDRAW"
)

var phaseRank = map[Phase]int{
	PhasePending:       0,
	PhaseCreated:       1,
	PhaseVoting:        2,
	PhaseWaitResult:    3,
	PhaseOpenResultSet: 4,
	PhaseWithdraw:      5,
}

// Valid reports whether the phase is a known value
func (p Phase) Valid() bool {
	_, ok := phaseRank[p]
	return ok
}

// CanTransition reports whether a record may move from p to next. Phases
// only move forward; replayed events must never regress a record.
func (p Phase) CanTransition(next Phase) bool {
	from, ok := phaseRank[p]
	if !ok {
		return false
	}
	to, ok := phaseRank[next]
	if !ok {
		return false
	}
	return to > from
}

// OrderStatus is the lifecycle state of an exchange order
type OrderStatus string

const (
	// OrderStatusPending marks a locally submitted order not yet confirmed
	OrderStatusPending OrderStatus = "PENDING"

	OrderStatusActive OrderStatus = "ACTIVE"

	// OrderStatusPendingCancel marks a locally submitted cancel not yet
	// confirmed on chain
	OrderStatusPendingCancel OrderStatus = "PENDINGCANCEL"

	OrderStatusFulfilled OrderStatus = "FULFILLED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
	OrderStatusFail      OrderStatus = "FAIL"
)

// orderTransitions lists the allowed forward moves; anything absent is
// rejected so replays and out-of-order events cannot regress an order.
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending: {
		OrderStatusActive: true,
		OrderStatusFail:   true,
		// cancel event can land before the creation is locally resolved
		OrderStatusCanceled:  true,
		OrderStatusFulfilled: true,
	},
	OrderStatusActive: {
		OrderStatusPendingCancel: true,
		OrderStatusCanceled:      true,
		OrderStatusFulfilled:     true,
	},
	OrderStatusPendingCancel: {
		OrderStatusCanceled: true,
		// cancel submission can fail; the order stays live
		OrderStatusActive: true,
		// a fill can race a pending cancel
		OrderStatusFulfilled: true,
	},
}

// Valid reports whether the status is a known value
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusActive, OrderStatusPendingCancel,
		OrderStatusFulfilled, OrderStatusCanceled, OrderStatusFail:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFulfilled || s == OrderStatusCanceled || s == OrderStatusFail
}

// CanTransition reports whether an order may move from s to next
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		return false
	}
	return orderTransitions[s][next]
}

// TradeStatus is the state of a recorded trade
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "PENDING"
	TradeStatusConfirmed TradeStatus = "CONFIRMED"
	TradeStatusFail      TradeStatus = "FAIL"
)

// Valid reports whether the status is a known value
func (s TradeStatus) Valid() bool {
	switch s {
	case TradeStatusPending, TradeStatusConfirmed, TradeStatusFail:
		return true
	}
	return false
}

// OrderSide distinguishes buy and sell orders on a market pair
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUYORDER"
	OrderSideSell OrderSide = "SELLORDER"
)

// SideForTokens derives the order side from the traded token pair: selling
// the native coin for a token is a buy of that token.
func SideForTokens(sellTokenIsNative bool) OrderSide {
	if sellTokenIsNative {
		return OrderSideBuy
	}
	return OrderSideSell
}
