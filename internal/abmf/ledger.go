// Package abmf implements the Account Balance Management Function: the
// Ledger the credit-control machine reserves and debits units against.
package abmf

import (
	"github.com/RestComm/charging-server/internal/charging/account"
)

// Accounting engine error codes carried in CreditControlInfo.ErrorCode.
const (
	CodeMalformedRequest     = 100
	CodeInvalidUser          = 201
	CodeInvalidContent       = 202
	CodeBadRoamingCountry    = 301
	CodeNotEnoughBalance     = 302
	CodeNoServiceForUser     = 303
	CodeAccountingConnection = 401
)

// AccountBalanceManagement is the Ledger the credit-control machine depends
// on. Every call is asynchronous: the engine returns immediately and delivers
// the same CreditControlInfo, populated with the outcome, on the returned
// channel exactly once. The machine resumes on the delivery goroutine.
type AccountBalanceManagement interface {
	// InitialRequest makes the first reservation for a session.
	InitialRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo
	// UpdateRequest reconciles used units and reserves the next grant.
	UpdateRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo
	// TerminateRequest reconciles used units and releases the remaining
	// reservation. No new units are reserved.
	TerminateRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo
	// EventRequest debits the requested units immediately, no reservation.
	EventRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo

	// SetBypass switches the engine into pass-through mode: every request
	// is granted without touching balances.
	SetBypass(on bool)
}

// UserAdministration exposes the subscriber CRUD the management facade needs.
// Both engines implement it over the same balance store the Ledger uses.
type UserAdministration interface {
	ListUsers(filter string) ([]account.UserAccountData, error)
	GetUser(msisdn string) (*account.UserAccountData, error)
	// SetBalance creates the user when absent.
	SetBalance(msisdn string, value int64) (*account.UserAccountData, error)
	SetReserved(msisdn string, value int64) (*account.UserAccountData, error)
	// Sanitize folds the reserved amount back into the balance.
	Sanitize(msisdn string) (*account.UserAccountData, error)
	DeleteUser(msisdn string) error
}
