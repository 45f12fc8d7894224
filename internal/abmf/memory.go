package abmf

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/RestComm/charging-server/internal/charging/account"
	"github.com/RestComm/charging-server/internal/logger"
)

// MemoryEngine is the in-memory Ledger. One mutex guards the balance table;
// every reserve/debit runs as a single critical section, so the per-user
// arithmetic is atomic.
type MemoryEngine struct {
	mu     sync.Mutex
	users  map[string]*account.UserAccountData
	bypass bool
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		users: make(map[string]*account.UserAccountData),
	}
}

// LoadUsers seeds the balance table. Existing entries are overwritten.
func (e *MemoryEngine) LoadUsers(balances map[string]int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for msisdn, balance := range balances {
		e.users[msisdn] = &account.UserAccountData{
			Msisdn:  msisdn,
			Balance: balance,
		}
	}
	logger.AcctLog.Infof("loaded %d users into memory ledger", len(balances))
}

func (e *MemoryEngine) SetBypass(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.bypass = on
	logger.AcctLog.Warnf("ledger bypass set to %t", on)
}

func (e *MemoryEngine) InitialRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
	return e.dispatch(cc, applyInitial)
}

func (e *MemoryEngine) UpdateRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
	return e.dispatch(cc, applyUpdate)
}

func (e *MemoryEngine) TerminateRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
	return e.dispatch(cc, applyTerminate)
}

func (e *MemoryEngine) EventRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
	return e.dispatch(cc, applyEvent)
}

func (e *MemoryEngine) dispatch(
	cc *account.CreditControlInfo,
	apply func(cc *account.CreditControlInfo, user *account.UserAccountData) bool,
) <-chan *account.CreditControlInfo {
	ch := make(chan *account.CreditControlInfo, 1)
	go func() {
		e.run(cc, apply)
		ch <- cc
	}()
	return ch
}

func (e *MemoryEngine) run(
	cc *account.CreditControlInfo,
	apply func(cc *account.CreditControlInfo, user *account.UserAccountData) bool,
) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.bypass {
		grantAll(cc)
		return
	}
	user, ok := e.users[cc.SubscriptionId]
	if !ok {
		cc.SetError(CodeInvalidUser, fmt.Sprintf("no account for %s", cc.SubscriptionId))
		clearReservations(cc)
		logger.AcctLog.Warnf("unknown user %s", cc.SubscriptionId)
		return
	}
	apply(cc, user)
	logger.AcctLog.Debugf("%s for %s: success=%t balance=%d reserved=%d",
		cc.RequestType, cc.SubscriptionId, cc.Success, user.Balance, user.Reserved)
}

// UserAdministration over the same table.

func (e *MemoryEngine) ListUsers(filter string) ([]account.UserAccountData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	users := make([]account.UserAccountData, 0, len(e.users))
	for msisdn, user := range e.users {
		if filter != "" && !strings.HasPrefix(msisdn, filter) {
			continue
		}
		users = append(users, *user)
	}
	slices.SortFunc(users, func(a, b account.UserAccountData) int {
		return strings.Compare(a.Msisdn, b.Msisdn)
	})
	return users, nil
}

func (e *MemoryEngine) GetUser(msisdn string) (*account.UserAccountData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, ok := e.users[msisdn]
	if !ok {
		return nil, fmt.Errorf("no account for %s", msisdn)
	}
	copied := *user
	return &copied, nil
}

func (e *MemoryEngine) SetBalance(msisdn string, value int64) (*account.UserAccountData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, ok := e.users[msisdn]
	if !ok {
		user = &account.UserAccountData{Msisdn: msisdn}
		e.users[msisdn] = user
	}
	user.Balance = value
	copied := *user
	return &copied, nil
}

func (e *MemoryEngine) SetReserved(msisdn string, value int64) (*account.UserAccountData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, ok := e.users[msisdn]
	if !ok {
		return nil, fmt.Errorf("no account for %s", msisdn)
	}
	user.Reserved = value
	copied := *user
	return &copied, nil
}

func (e *MemoryEngine) Sanitize(msisdn string) (*account.UserAccountData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, ok := e.users[msisdn]
	if !ok {
		return nil, fmt.Errorf("no account for %s", msisdn)
	}
	user.Balance += user.Reserved
	user.Reserved = 0
	copied := *user
	return &copied, nil
}

func (e *MemoryEngine) DeleteUser(msisdn string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.users[msisdn]; !ok {
		return fmt.Errorf("no account for %s", msisdn)
	}
	delete(e.users, msisdn)
	return nil
}
