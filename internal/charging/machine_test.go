package charging_test

import (
	"sync"
	"testing"
	"time"

	"github.com/fiorix/go-diameter/diam/datatype"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	charging_code "github.com/RestComm/charging-server/ccs_diameter/code"
	charging_datatype "github.com/RestComm/charging-server/ccs_diameter/datatype"
	"github.com/RestComm/charging-server/internal/abmf"
	"github.com/RestComm/charging-server/internal/abmf/mocks"
	"github.com/RestComm/charging-server/internal/cdr"
	"github.com/RestComm/charging-server/internal/charging"
	"github.com/RestComm/charging-server/internal/charging/account"
	"github.com/RestComm/charging-server/internal/charging/session"
	"github.com/RestComm/charging-server/internal/metrics"
	"github.com/RestComm/charging-server/internal/rating"
)

func u32(v uint32) *datatype.Unsigned32 {
	val := datatype.Unsigned32(v)
	return &val
}

func u64(v uint64) *datatype.Unsigned64 {
	val := datatype.Unsigned64(v)
	return &val
}

func enum(v int32) *datatype.Enumerated {
	val := datatype.Enumerated(v)
	return &val
}

func newCCR(sessionId string, reqType int, reqNumber uint32) *charging_datatype.CreditControlRequest {
	serviceContext := datatype.UTF8String("32251@3gpp.org")
	return &charging_datatype.CreditControlRequest{
		SessionId:         datatype.UTF8String(sessionId),
		OriginHost:        "gw.test.org",
		OriginRealm:       "test.org",
		DestinationHost:   "ocs.test.org",
		DestinationRealm:  "test.org",
		AuthApplicationId: 4,
		ServiceContextId:  &serviceContext,
		CcRequestType:     datatype.Enumerated(reqType),
		CcRequestNumber:   datatype.Unsigned32(reqNumber),
		SubscriptionId: []charging_datatype.SubscriptionId{
			{SubscriptionIdType: 0, SubscriptionIdData: "48600100100"},
		},
	}
}

func withRequestedOctets(ccr *charging_datatype.CreditControlRequest, serviceId uint32, octets uint64) {
	ccr.MultipleServicesCreditControl = append(ccr.MultipleServicesCreditControl,
		charging_datatype.MultipleServicesCreditControl{
			ServiceIdentifier:    []datatype.Unsigned32{datatype.Unsigned32(serviceId)},
			RequestedServiceUnit: &charging_datatype.ServiceUnit{CcTotalOctets: u64(octets)},
		})
}

func withRequestedTime(ccr *charging_datatype.CreditControlRequest, serviceId uint32, seconds uint32) {
	ccr.MultipleServicesCreditControl = append(ccr.MultipleServicesCreditControl,
		charging_datatype.MultipleServicesCreditControl{
			ServiceIdentifier:    []datatype.Unsigned32{datatype.Unsigned32(serviceId)},
			RequestedServiceUnit: &charging_datatype.ServiceUnit{CcTime: u32(seconds)},
		})
}

func withUsedTime(ccr *charging_datatype.CreditControlRequest, serviceId uint32, seconds uint32) {
	ccr.MultipleServicesCreditControl = append(ccr.MultipleServicesCreditControl,
		charging_datatype.MultipleServicesCreditControl{
			ServiceIdentifier: []datatype.Unsigned32{datatype.Unsigned32(serviceId)},
			UsedServiceUnit:   []charging_datatype.ServiceUnit{{CcTime: u32(seconds)}},
		})
}

type sinkSpy struct {
	mu   sync.Mutex
	recs []*cdr.Record
}

func (s *sinkSpy) WriteSettlement(rec *cdr.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *sinkSpy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func newTestMachine(
	ledger abmf.AccountBalanceManagement,
	rater rating.Rater,
	sink cdr.Sink,
	validity uint32,
) (*charging.Machine, *session.Store) {
	store := session.NewStore()
	machine := charging.NewMachine(charging.Config{
		OriginHost:   "ocs.test.org",
		OriginRealm:  "test.org",
		ValidityTime: validity,
	}, store, ledger, rater, sink, metrics.New())
	return machine, store
}

func handle(
	t *testing.T,
	m *charging.Machine,
	ccr *charging_datatype.CreditControlRequest,
) *charging_datatype.CreditControlAnswer {
	t.Helper()

	answers := make(chan *charging_datatype.CreditControlAnswer, 1)
	m.HandleRequest(ccr, nil, func(cca *charging_datatype.CreditControlAnswer) {
		answers <- cca
	})

	select {
	case cca := <-answers:
		return cca
	case <-time.After(time.Second):
		t.Fatal("no answer within a second")
		return nil
	}
}

// grant fills the reservation fields the way a successful engine run does.
func grant(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
	for _, u := range cc.CcUnits {
		u.ReservedUnits = u.RequestedUnits
		u.ReservedAmount = u.RequestedAmount
	}
	cc.Success = true
	cc.BalanceBefore = 1000
	cc.BalanceAfter = 1000
	ch := make(chan *account.CreditControlInfo, 1)
	ch <- cc
	return ch
}

func deny(code int) func(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
	return func(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
		cc.SetError(code, "denied")
		for _, u := range cc.CcUnits {
			u.ReservedUnits = 0
			u.ReservedAmount = 0
		}
		ch := make(chan *account.CreditControlInfo, 1)
		ch <- cc
		return ch
	}
}

func TestInitialReservationGranted(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockAccountBalanceManagement(ctrl)
	ledger.EXPECT().InitialRequest(gomock.Any()).DoAndReturn(grant)

	machine, store := newTestMachine(ledger, nil, nil, 0)

	ccr := newCCR("gw;1;101", charging_code.INITIAL_REQUEST, 0)
	withRequestedOctets(ccr, 10, 1000)

	cca := handle(t, machine, ccr)

	require.EqualValues(t, charging_code.DIAMETER_SUCCESS, cca.ResultCode)
	require.EqualValues(t, "ocs.test.org", cca.OriginHost)
	require.Len(t, cca.MultipleServicesCreditControl, 1)

	mscc := cca.MultipleServicesCreditControl[0]
	require.EqualValues(t, charging_code.DIAMETER_SUCCESS, mscc.ResultCode)
	require.EqualValues(t, charging.DefaultValidityTime, mscc.ValidityTime)
	require.Nil(t, mscc.FinalUnitIndication)
	require.NotNil(t, mscc.GrantedServiceUnit)
	require.NotNil(t, mscc.GrantedServiceUnit.CcTotalOctets)
	require.EqualValues(t, 1000, *mscc.GrantedServiceUnit.CcTotalOctets)

	require.Equal(t, 1, store.Count())
}

func TestInitialDeniedOnCreditLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockAccountBalanceManagement(ctrl)
	ledger.EXPECT().InitialRequest(gomock.Any()).DoAndReturn(deny(abmf.CodeNotEnoughBalance))

	machine, _ := newTestMachine(ledger, nil, nil, 0)

	ccr := newCCR("gw;1;102", charging_code.INITIAL_REQUEST, 0)
	withRequestedOctets(ccr, 10, 1000)

	cca := handle(t, machine, ccr)

	require.EqualValues(t, charging_code.DIAMETER_CREDIT_LIMIT_REACHED, cca.ResultCode)
	require.Len(t, cca.MultipleServicesCreditControl, 1)

	mscc := cca.MultipleServicesCreditControl[0]
	require.EqualValues(t, charging_code.DIAMETER_CREDIT_LIMIT_REACHED, mscc.ResultCode)
	require.Nil(t, mscc.GrantedServiceUnit)
	require.NotNil(t, mscc.FinalUnitIndication)
	require.EqualValues(t, charging_code.TERMINATE, mscc.FinalUnitIndication.FinalUnitAction)
}

func TestMissingSubscriptionIdAnswersMissingAvp(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockAccountBalanceManagement(ctrl)
	// No expectations: the ledger must never be consulted.

	machine, store := newTestMachine(ledger, nil, nil, 0)

	ccr := newCCR("gw;1;103", charging_code.INITIAL_REQUEST, 0)
	ccr.SubscriptionId = nil
	withRequestedOctets(ccr, 10, 1000)

	cca := handle(t, machine, ccr)

	require.EqualValues(t, charging_code.DIAMETER_MISSING_AVP, cca.ResultCode)
	require.Empty(t, cca.MultipleServicesCreditControl)
	require.Equal(t, 0, store.Count())
}

func TestMissingServiceContextAnswersMissingAvp(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockAccountBalanceManagement(ctrl)

	machine, store := newTestMachine(ledger, nil, nil, 0)

	ccr := newCCR("gw;1;104", charging_code.INITIAL_REQUEST, 0)
	ccr.ServiceContextId = nil
	withRequestedOctets(ccr, 10, 1000)

	cca := handle(t, machine, ccr)
	require.EqualValues(t, charging_code.DIAMETER_MISSING_AVP, cca.ResultCode)
	require.Equal(t, 0, store.Count())

	empty := datatype.UTF8String("")
	ccr = newCCR("gw;1;105", charging_code.INITIAL_REQUEST, 0)
	ccr.ServiceContextId = &empty
	withRequestedOctets(ccr, 10, 1000)

	cca = handle(t, machine, ccr)
	require.EqualValues(t, charging_code.DIAMETER_INVALID_AVP_VALUE, cca.ResultCode)
	require.Equal(t, 0, store.Count())
}

func TestDuplicateRequestNumberRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockAccountBalanceManagement(ctrl)
	ledger.EXPECT().InitialRequest(gomock.Any()).DoAndReturn(grant)

	machine, _ := newTestMachine(ledger, nil, nil, 0)

	initial := newCCR("gw;1;106", charging_code.INITIAL_REQUEST, 0)
	withRequestedOctets(initial, 10, 1000)
	cca := handle(t, machine, initial)
	require.EqualValues(t, charging_code.DIAMETER_SUCCESS, cca.ResultCode)

	replay := newCCR("gw;1;106", charging_code.UPDATE_REQUEST, 0)
	withRequestedOctets(replay, 10, 1000)
	cca = handle(t, machine, replay)
	require.EqualValues(t, charging_code.DIAMETER_INVALID_AVP_VALUE, cca.ResultCode)
}

func TestTerminationAlwaysAnswersSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockAccountBalanceManagement(ctrl)
	ledger.EXPECT().TerminateRequest(gomock.Any()).DoAndReturn(deny(abmf.CodeAccountingConnection))

	sink := &sinkSpy{}
	machine, store := newTestMachine(ledger, nil, sink, 0)

	ccr := newCCR("gw;1;107", charging_code.TERMINATION_REQUEST, 0)
	withUsedTime(ccr, 10, 40)

	cca := handle(t, machine, ccr)

	require.EqualValues(t, charging_code.DIAMETER_SUCCESS, cca.ResultCode)
	require.Equal(t, 0, store.Count())
	require.Equal(t, 1, sink.count())
}

func TestEventRequiresDirectDebiting(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockAccountBalanceManagement(ctrl)

	machine, store := newTestMachine(ledger, nil, nil, 0)

	noAction := newCCR("gw;1;108", charging_code.EVENT_REQUEST, 0)
	withRequestedOctets(noAction, 10, 1000)
	cca := handle(t, machine, noAction)
	require.EqualValues(t, charging_code.DIAMETER_MISSING_AVP, cca.ResultCode)

	refund := newCCR("gw;1;109", charging_code.EVENT_REQUEST, 0)
	refund.RequestedAction = enum(2)
	withRequestedOctets(refund, 10, 1000)
	cca = handle(t, machine, refund)
	require.EqualValues(t, charging_code.DIAMETER_UNABLE_TO_COMPLY, cca.ResultCode)

	require.Equal(t, 0, store.Count())
}

func TestUnknownRequestTypeDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockAccountBalanceManagement(ctrl)

	machine, store := newTestMachine(ledger, nil, nil, 0)

	ccr := newCCR("gw;1;110", 9, 0)
	machine.HandleRequest(ccr, nil, func(cca *charging_datatype.CreditControlAnswer) {
		t.Errorf("unexpected answer %+v", cca)
	})

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, store.Count())
}

// Full reservation cycle against the real memory engine with a rated tariff:
// consumption is charged at the rate the grant was reserved under.
func TestUsedUnitsChargedAtReservedRate(t *testing.T) {
	engine := abmf.NewMemoryEngine()
	engine.LoadUsers(map[string]int64{"48600100100": 1000})
	rater := rating.NewTariffRater(nil, 2.0)

	machine, store := newTestMachine(engine, rater, nil, 0)

	initial := newCCR("gw;1;111", charging_code.INITIAL_REQUEST, 0)
	withRequestedTime(initial, 10, 100)
	cca := handle(t, machine, initial)
	require.EqualValues(t, charging_code.DIAMETER_SUCCESS, cca.ResultCode)
	require.NotNil(t, cca.MultipleServicesCreditControl[0].GrantedServiceUnit)
	require.EqualValues(t, 100, *cca.MultipleServicesCreditControl[0].GrantedServiceUnit.CcTime)

	// 100 seconds at rate 2.0 reserved, nothing settled yet.
	user, err := engine.GetUser("48600100100")
	require.NoError(t, err)
	require.EqualValues(t, 1000, user.Balance)
	require.EqualValues(t, 200, user.Reserved)

	update := newCCR("gw;1;111", charging_code.UPDATE_REQUEST, 1)
	withUsedTime(update, 10, 60)
	withRequestedTime(update, 10, 100)
	cca = handle(t, machine, update)
	require.EqualValues(t, charging_code.DIAMETER_SUCCESS, cca.ResultCode)

	// 60 used seconds settle for 120; the old reservation is released and
	// a fresh 200 reserved.
	user, err = engine.GetUser("48600100100")
	require.NoError(t, err)
	require.EqualValues(t, 880, user.Balance)
	require.EqualValues(t, 200, user.Reserved)

	terminate := newCCR("gw;1;111", charging_code.TERMINATION_REQUEST, 2)
	withUsedTime(terminate, 10, 40)
	cca = handle(t, machine, terminate)
	require.EqualValues(t, charging_code.DIAMETER_SUCCESS, cca.ResultCode)

	user, err = engine.GetUser("48600100100")
	require.NoError(t, err)
	require.EqualValues(t, 800, user.Balance)
	require.EqualValues(t, 0, user.Reserved)
	require.Equal(t, 0, store.Count())
}

func TestEventDirectDebit(t *testing.T) {
	engine := abmf.NewMemoryEngine()
	engine.LoadUsers(map[string]int64{"48600100100": 500})

	machine, store := newTestMachine(engine, nil, nil, 0)

	ccr := newCCR("gw;1;112", charging_code.EVENT_REQUEST, 0)
	ccr.RequestedAction = enum(int32(charging_code.DIRECT_DEBITING))
	withRequestedTime(ccr, 10, 100)

	cca := handle(t, machine, ccr)
	require.EqualValues(t, charging_code.DIAMETER_SUCCESS, cca.ResultCode)

	user, err := engine.GetUser("48600100100")
	require.NoError(t, err)
	require.EqualValues(t, 400, user.Balance)
	require.Equal(t, 0, store.Count())
}

// parkedLedger holds a reservation open until the test releases it.
type parkedLedger struct {
	pending *account.CreditControlInfo
	release chan *account.CreditControlInfo
}

func parkInitial(ledger *mocks.MockAccountBalanceManagement) *parkedLedger {
	p := &parkedLedger{release: make(chan *account.CreditControlInfo, 1)}
	ledger.EXPECT().InitialRequest(gomock.Any()).DoAndReturn(
		func(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
			p.pending = cc
			return p.release
		})
	return p
}

func (p *parkedLedger) grantAndRelease() {
	for _, u := range p.pending.CcUnits {
		u.ReservedUnits = u.RequestedUnits
		u.ReservedAmount = u.RequestedAmount
	}
	p.pending.Success = true
	p.release <- p.pending
}

func TestSecondRequestWhileReservationInFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockAccountBalanceManagement(ctrl)
	parked := parkInitial(ledger)

	machine, store := newTestMachine(ledger, nil, nil, 0)

	answers := make(chan *charging_datatype.CreditControlAnswer, 1)
	initial := newCCR("gw;1;114", charging_code.INITIAL_REQUEST, 0)
	withRequestedOctets(initial, 10, 1000)
	machine.HandleRequest(initial, nil, func(cca *charging_datatype.CreditControlAnswer) {
		answers <- cca
	})

	// The reservation is still outstanding; a concurrent request on the
	// same session is rejected without touching the ledger.
	update := newCCR("gw;1;114", charging_code.UPDATE_REQUEST, 1)
	withRequestedOctets(update, 10, 1000)
	cca := handle(t, machine, update)
	require.EqualValues(t, charging_code.DIAMETER_UNABLE_TO_COMPLY, cca.ResultCode)

	parked.grantAndRelease()

	select {
	case first := <-answers:
		require.EqualValues(t, charging_code.DIAMETER_SUCCESS, first.ResultCode)
	case <-time.After(time.Second):
		t.Fatal("no answer for the parked request")
	}
	require.Equal(t, 1, store.Count())
}

func TestCloseDuringLedgerCallStaysClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockAccountBalanceManagement(ctrl)
	parked := parkInitial(ledger)

	sink := &sinkSpy{}
	machine, store := newTestMachine(ledger, nil, sink, 0)

	answers := make(chan *charging_datatype.CreditControlAnswer, 1)
	initial := newCCR("gw;1;115", charging_code.INITIAL_REQUEST, 0)
	withRequestedOctets(initial, 10, 1000)
	machine.HandleRequest(initial, nil, func(cca *charging_datatype.CreditControlAnswer) {
		answers <- cca
	})

	s, ok := store.Get("gw;1;115")
	require.True(t, ok)

	// A malformed request tears the session down while the reservation
	// is still outstanding.
	bad := newCCR("gw;1;115", charging_code.INITIAL_REQUEST, 1)
	bad.SubscriptionId = nil
	cca := handle(t, machine, bad)
	require.EqualValues(t, charging_code.DIAMETER_MISSING_AVP, cca.ResultCode)
	require.Equal(t, 0, store.Count())

	parked.grantAndRelease()

	select {
	case first := <-answers:
		require.EqualValues(t, charging_code.DIAMETER_SUCCESS, first.ResultCode)
	case <-time.After(time.Second):
		t.Fatal("no answer for the parked request")
	}

	// The torn-down session must not come back with a live timer; its
	// usage settles right away instead of on the validity timer.
	require.Equal(t, 0, store.Count())
	require.Eventually(t, func() bool {
		return sink.count() == 1
	}, time.Second, 10*time.Millisecond)

	s.Mu.Lock()
	state := s.State
	s.Mu.Unlock()
	require.Equal(t, session.StateClosed, state)
}

func TestSessionTimeoutClosesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockAccountBalanceManagement(ctrl)
	ledger.EXPECT().InitialRequest(gomock.Any()).DoAndReturn(grant)

	sink := &sinkSpy{}
	machine, store := newTestMachine(ledger, nil, sink, 1)

	ccr := newCCR("gw;1;113", charging_code.INITIAL_REQUEST, 0)
	withRequestedOctets(ccr, 10, 1000)
	cca := handle(t, machine, ccr)
	require.EqualValues(t, charging_code.DIAMETER_SUCCESS, cca.ResultCode)
	require.Equal(t, 1, store.Count())

	require.Eventually(t, func() bool {
		return store.Count() == 0
	}, 3*time.Second, 50*time.Millisecond)
	require.Equal(t, 1, sink.count())

	// The timer must not fire a second settlement.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, sink.count())
}
