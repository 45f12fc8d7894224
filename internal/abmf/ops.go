package abmf

import (
	"fmt"

	"github.com/RestComm/charging-server/internal/charging/account"
)

// The apply* functions implement the balance arithmetic shared by the memory
// and MongoDB engines. Each mutates cc and user in place and reports whether
// user changed and must be persisted. Callers provide atomicity.

// grantAll marks every unit line reserved for exactly what was requested.
func grantAll(cc *account.CreditControlInfo) {
	for _, u := range cc.CcUnits {
		u.ReservedUnits = u.RequestedUnits
		u.ReservedAmount = u.RequestedAmount
	}
	cc.Success = true
}

// clearReservations zeroes the reserved fields on failure.
func clearReservations(cc *account.CreditControlInfo) {
	for _, u := range cc.CcUnits {
		u.ReservedUnits = 0
		u.ReservedAmount = 0
	}
}

func denyNotEnoughBalance(cc *account.CreditControlInfo, available, requested int64) {
	cc.SetError(CodeNotEnoughBalance,
		fmt.Sprintf("available %d < requested %d", available, requested))
	clearReservations(cc)
}

func applyInitial(cc *account.CreditControlInfo, user *account.UserAccountData) bool {
	cc.BalanceBefore = user.Balance
	cc.BalanceAfter = user.Balance

	requested := cc.RequestedAmount()
	available := user.Balance - user.Reserved
	if available < requested {
		denyNotEnoughBalance(cc, available, requested)
		return false
	}
	user.Reserved += requested
	grantAll(cc)
	return true
}

func applyUpdate(cc *account.CreditControlInfo, user *account.UserAccountData) bool {
	cc.BalanceBefore = user.Balance

	// Settle consumption since the last grant and release that grant's
	// reservation before reserving the next one.
	user.Balance -= cc.UsedAmount()
	user.Reserved -= cc.ReservedAmount()
	if user.Reserved < 0 {
		user.Reserved = 0
	}
	cc.BalanceAfter = user.Balance

	requested := cc.RequestedAmount()
	available := user.Balance - user.Reserved
	if available < requested {
		denyNotEnoughBalance(cc, available, requested)
		return true
	}
	user.Reserved += requested
	grantAll(cc)
	return true
}

func applyTerminate(cc *account.CreditControlInfo, user *account.UserAccountData) bool {
	cc.BalanceBefore = user.Balance

	user.Balance -= cc.UsedAmount()
	user.Reserved -= cc.ReservedAmount()
	if user.Reserved < 0 {
		user.Reserved = 0
	}
	cc.BalanceAfter = user.Balance
	clearReservations(cc)
	cc.Success = true
	return true
}

func applyEvent(cc *account.CreditControlInfo, user *account.UserAccountData) bool {
	cc.BalanceBefore = user.Balance

	requested := cc.RequestedAmount()
	available := user.Balance - user.Reserved
	if available < requested {
		cc.BalanceAfter = user.Balance
		denyNotEnoughBalance(cc, available, requested)
		return false
	}
	user.Balance -= requested
	cc.BalanceAfter = user.Balance
	grantAll(cc)
	return true
}
