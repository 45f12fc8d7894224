package account

import (
	"fmt"
	"time"
)

// RequestType classifies a credit-control request.
type RequestType int

const (
	RequestTypeInitial RequestType = iota + 1
	RequestTypeUpdate
	RequestTypeTermination
	RequestTypeEvent
)

func (t RequestType) String() string {
	switch t {
	case RequestTypeInitial:
		return "INITIAL"
	case RequestTypeUpdate:
		return "UPDATE"
	case RequestTypeTermination:
		return "TERMINATION"
	case RequestTypeEvent:
		return "EVENT"
	default:
		return "UNKNOWN"
	}
}

// ErrorCodeType categorizes a Ledger failure for result-code mapping.
type ErrorCodeType int

const (
	ErrGeneral ErrorCodeType = iota
	ErrMalformedRequest
	ErrInvalidUser
	ErrInvalidContent
	ErrBadRoamingCountry
	ErrNotEnoughBalance
	ErrNoServiceForUser
	ErrAccountingConnection
)

// ErrorCodeFromInt maps an accounting-engine numeric code to its category.
func ErrorCodeFromInt(code int) ErrorCodeType {
	switch {
	case code >= 100 && code <= 104:
		return ErrMalformedRequest
	case code == 201:
		return ErrInvalidUser
	case code == 202:
		return ErrInvalidContent
	case code == 301:
		return ErrBadRoamingCountry
	case code == 302:
		return ErrNotEnoughBalance
	case code == 303:
		return ErrNoServiceForUser
	case code >= 401 && code <= 403:
		return ErrAccountingConnection
	default:
		return ErrGeneral
	}
}

// CreditControlInfo is one request/response accounting exchange within a
// session. It is built synchronously from the decoded request, handed to the
// Ledger, mutated in place by the Ledger result and immutable thereafter.
type CreditControlInfo struct {
	SessionId       string
	RequestNumber   uint32
	RequestType     RequestType
	RequestedAction int

	SubscriptionId     string
	SubscriptionIdType int

	EventTimestamp time.Time

	CcUnits []*CreditControlUnit

	BalanceBefore int64
	BalanceAfter  int64

	Success       bool
	ErrorCode     int
	ErrorCodeType ErrorCodeType
	ErrorMessage  string

	// Operator-configured AVP passthrough, keyed by configured name.
	ServiceInfo map[string]string
}

// SetError records a failure and derives its category.
func (cc *CreditControlInfo) SetError(code int, message string) {
	cc.Success = false
	cc.ErrorCode = code
	cc.ErrorCodeType = ErrorCodeFromInt(code)
	cc.ErrorMessage = message
}

// Unit returns the accounting line for the given unit type, or nil.
func (cc *CreditControlInfo) Unit(t UnitType) *CreditControlUnit {
	for _, u := range cc.CcUnits {
		if u.UnitType == t {
			return u
		}
	}
	return nil
}

// RequestedAmount sums the monetary request over all unit lines.
func (cc *CreditControlInfo) RequestedAmount() int64 {
	var total int64
	for _, u := range cc.CcUnits {
		total += u.RequestedAmount
	}
	return total
}

// UsedAmount sums the monetary usage over all unit lines.
func (cc *CreditControlInfo) UsedAmount() int64 {
	var total int64
	for _, u := range cc.CcUnits {
		total += u.UsedAmount
	}
	return total
}

// ReservedAmount sums the reserved amount over all unit lines.
func (cc *CreditControlInfo) ReservedAmount() int64 {
	var total int64
	for _, u := range cc.CcUnits {
		total += u.ReservedAmount
	}
	return total
}

func (cc *CreditControlInfo) String() string {
	return fmt.Sprintf("CreditControlInfo[Session-Id=%s; Type=%s; Request-Number=%d; "+
		"Subscription-Id=%s; Balance-Before=%d; Balance-After=%d; Success=%t; Units=%d]",
		cc.SessionId, cc.RequestType, cc.RequestNumber,
		cc.SubscriptionId, cc.BalanceBefore, cc.BalanceAfter, cc.Success, len(cc.CcUnits))
}

// UserAccountData is the Ledger's view of one subscriber row.
type UserAccountData struct {
	Msisdn   string
	Balance  int64
	Reserved int64
	Failure  bool
}
