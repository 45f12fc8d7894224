package abmf_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RestComm/charging-server/internal/abmf"
	"github.com/RestComm/charging-server/internal/charging/account"
)

func newEngine(t *testing.T, balances map[string]int64) *abmf.MemoryEngine {
	t.Helper()
	engine := abmf.NewMemoryEngine()
	engine.LoadUsers(balances)
	return engine
}

func newCC(reqType account.RequestType, msisdn string, requested int64) *account.CreditControlInfo {
	cc := &account.CreditControlInfo{
		SessionId:      "gw;1;1",
		RequestType:    reqType,
		SubscriptionId: msisdn,
	}
	if requested > 0 {
		cc.CcUnits = append(cc.CcUnits, &account.CreditControlUnit{
			UnitType:        account.UnitTypeTime,
			RequestedUnits:  requested,
			RequestedAmount: requested,
		})
	}
	return cc
}

func await(t *testing.T, ch <-chan *account.CreditControlInfo) *account.CreditControlInfo {
	t.Helper()
	select {
	case cc := <-ch:
		return cc
	case <-time.After(time.Second):
		t.Fatal("engine did not deliver")
		return nil
	}
}

func TestInitialReservesWithinBalance(t *testing.T) {
	engine := newEngine(t, map[string]int64{"111": 500})

	cc := await(t, engine.InitialRequest(newCC(account.RequestTypeInitial, "111", 200)))
	require.True(t, cc.Success)
	require.EqualValues(t, 500, cc.BalanceBefore)
	require.EqualValues(t, 500, cc.BalanceAfter)
	require.EqualValues(t, 200, cc.CcUnits[0].ReservedUnits)

	user, err := engine.GetUser("111")
	require.NoError(t, err)
	require.EqualValues(t, 500, user.Balance)
	require.EqualValues(t, 200, user.Reserved)
}

func TestInitialDeniedWhenReservationsExhaustBalance(t *testing.T) {
	engine := newEngine(t, map[string]int64{"111": 500})

	first := await(t, engine.InitialRequest(newCC(account.RequestTypeInitial, "111", 400)))
	require.True(t, first.Success)

	// 100 available after the outstanding reservation.
	second := await(t, engine.InitialRequest(newCC(account.RequestTypeInitial, "111", 200)))
	require.False(t, second.Success)
	require.Equal(t, abmf.CodeNotEnoughBalance, second.ErrorCode)
	require.Equal(t, account.ErrNotEnoughBalance, second.ErrorCodeType)
	require.EqualValues(t, 0, second.CcUnits[0].ReservedUnits)

	user, err := engine.GetUser("111")
	require.NoError(t, err)
	require.EqualValues(t, 400, user.Reserved)
}

func TestUpdateSettlesReleasesAndReReserves(t *testing.T) {
	engine := newEngine(t, map[string]int64{"111": 1000})

	initial := await(t, engine.InitialRequest(newCC(account.RequestTypeInitial, "111", 200)))
	require.True(t, initial.Success)

	update := newCC(account.RequestTypeUpdate, "111", 200)
	update.CcUnits[0].UsedUnits = 60
	update.CcUnits[0].UsedAmount = 60
	update.CcUnits[0].ReservedUnits = initial.CcUnits[0].ReservedUnits
	update.CcUnits[0].ReservedAmount = initial.CcUnits[0].ReservedAmount

	done := await(t, engine.UpdateRequest(update))
	require.True(t, done.Success)
	require.EqualValues(t, 1000, done.BalanceBefore)
	require.EqualValues(t, 940, done.BalanceAfter)

	user, err := engine.GetUser("111")
	require.NoError(t, err)
	require.EqualValues(t, 940, user.Balance)
	require.EqualValues(t, 200, user.Reserved)
}

func TestTerminateAlwaysSucceeds(t *testing.T) {
	engine := newEngine(t, map[string]int64{"111": 100})

	initial := await(t, engine.InitialRequest(newCC(account.RequestTypeInitial, "111", 100)))
	require.True(t, initial.Success)

	// Usage above the remaining balance still settles; the account may go
	// negative but the termination is never denied.
	terminate := newCC(account.RequestTypeTermination, "111", 0)
	terminate.CcUnits = append(terminate.CcUnits, &account.CreditControlUnit{
		UnitType:       account.UnitTypeTime,
		UsedUnits:      150,
		UsedAmount:     150,
		ReservedUnits:  initial.CcUnits[0].ReservedUnits,
		ReservedAmount: initial.CcUnits[0].ReservedAmount,
	})

	done := await(t, engine.TerminateRequest(terminate))
	require.True(t, done.Success)
	require.EqualValues(t, -50, done.BalanceAfter)

	user, err := engine.GetUser("111")
	require.NoError(t, err)
	require.EqualValues(t, -50, user.Balance)
	require.EqualValues(t, 0, user.Reserved)
}

func TestEventDebitsImmediately(t *testing.T) {
	engine := newEngine(t, map[string]int64{"111": 300})

	done := await(t, engine.EventRequest(newCC(account.RequestTypeEvent, "111", 100)))
	require.True(t, done.Success)
	require.EqualValues(t, 300, done.BalanceBefore)
	require.EqualValues(t, 200, done.BalanceAfter)

	denied := await(t, engine.EventRequest(newCC(account.RequestTypeEvent, "111", 500)))
	require.False(t, denied.Success)
	require.Equal(t, abmf.CodeNotEnoughBalance, denied.ErrorCode)

	user, err := engine.GetUser("111")
	require.NoError(t, err)
	require.EqualValues(t, 200, user.Balance)
}

func TestUnknownUserRejected(t *testing.T) {
	engine := newEngine(t, nil)

	done := await(t, engine.InitialRequest(newCC(account.RequestTypeInitial, "999", 100)))
	require.False(t, done.Success)
	require.Equal(t, abmf.CodeInvalidUser, done.ErrorCode)
	require.Equal(t, account.ErrInvalidUser, done.ErrorCodeType)
}

func TestBypassGrantsWithoutAccounts(t *testing.T) {
	engine := newEngine(t, nil)
	engine.SetBypass(true)

	done := await(t, engine.InitialRequest(newCC(account.RequestTypeInitial, "999", 100)))
	require.True(t, done.Success)
	require.EqualValues(t, 100, done.CcUnits[0].ReservedUnits)
}

func TestUserAdministration(t *testing.T) {
	engine := newEngine(t, map[string]int64{"222": 50, "111": 10, "333": 70})

	users, err := engine.ListUsers("")
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Equal(t, "111", users[0].Msisdn)
	require.Equal(t, "333", users[2].Msisdn)

	users, err = engine.ListUsers("22")
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "222", users[0].Msisdn)

	created, err := engine.SetBalance("444", 900)
	require.NoError(t, err)
	require.EqualValues(t, 900, created.Balance)

	_, err = engine.SetReserved("444", 300)
	require.NoError(t, err)

	sanitized, err := engine.Sanitize("444")
	require.NoError(t, err)
	require.EqualValues(t, 1200, sanitized.Balance)
	require.EqualValues(t, 0, sanitized.Reserved)

	require.NoError(t, engine.DeleteUser("444"))
	_, err = engine.GetUser("444")
	require.Error(t, err)
}
