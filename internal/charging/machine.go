// Package charging implements the credit-control session state machine:
// request classification, unit extraction, the asynchronous Ledger round
// trip, answer construction and session-lifetime timers.
package charging

import (
	"time"

	charging_code "github.com/RestComm/charging-server/ccs_diameter/code"
	charging_datatype "github.com/RestComm/charging-server/ccs_diameter/datatype"
	"github.com/RestComm/charging-server/internal/abmf"
	"github.com/RestComm/charging-server/internal/cdr"
	"github.com/RestComm/charging-server/internal/charging/account"
	"github.com/RestComm/charging-server/internal/charging/session"
	"github.com/RestComm/charging-server/internal/logger"
	"github.com/RestComm/charging-server/internal/metrics"
	"github.com/RestComm/charging-server/internal/rating"
)

// ResponderFunc delivers the answer for one handled request. The transport
// supplies it per request; it may run on the Ledger's delivery goroutine.
type ResponderFunc func(cca *charging_datatype.CreditControlAnswer)

type Config struct {
	OriginHost  string
	OriginRealm string
	// ValidityTime is the grant lifetime in seconds; the session timer
	// force-closes the session when nothing arrives within it.
	ValidityTime uint32
}

const DefaultValidityTime = 86400

// Machine drives the per-session credit-control flow. All collaborators are
// injected at construction; rater and cdrSink may be nil to disable rating
// and settlement respectively.
type Machine struct {
	cfg Config

	store   *session.Store
	ledger  abmf.AccountBalanceManagement
	rater   rating.Rater
	cdrSink cdr.Sink
	metrics *metrics.Metrics
}

func NewMachine(
	cfg Config,
	store *session.Store,
	ledger abmf.AccountBalanceManagement,
	rater rating.Rater,
	cdrSink cdr.Sink,
	m *metrics.Metrics,
) *Machine {
	if cfg.ValidityTime == 0 {
		cfg.ValidityTime = DefaultValidityTime
	}
	return &Machine{
		cfg:     cfg,
		store:   store,
		ledger:  ledger,
		rater:   rater,
		cdrSink: cdrSink,
		metrics: m,
	}
}

// HandleRequest processes one decoded CCR. Classification, validation and
// unit extraction run synchronously on the caller's goroutine; the answer is
// delivered through respond after the Ledger completes. serviceInfo carries
// the operator-configured AVP passthrough collected by the transport.
func (m *Machine) HandleRequest(
	ccr *charging_datatype.CreditControlRequest,
	serviceInfo map[string]string,
	respond ResponderFunc,
) {
	reqType := account.RequestType(ccr.CcRequestType)
	switch int(ccr.CcRequestType) {
	case charging_code.INITIAL_REQUEST, charging_code.UPDATE_REQUEST,
		charging_code.TERMINATION_REQUEST, charging_code.EVENT_REQUEST:
	default:
		// Unsupported command: dropped without an answer, on purpose.
		logger.ChargingLog.Warnf("unknown CC-Request-Type %d for session %s, request dropped",
			ccr.CcRequestType, ccr.SessionId)
		m.metrics.DroppedRequests.Inc()
		return
	}
	m.metrics.CcrTotal.WithLabelValues(reqType.String()).Inc()

	sessionId := string(ccr.SessionId)
	reqNumber := uint32(ccr.CcRequestNumber)

	subId, subType, ok := subscriptionOf(ccr)
	if !ok {
		logger.ChargingLog.Warnf("SID<%s/%s#%d> no Subscription-Id, answering MISSING_AVP",
			limitString(sessionId, 9), reqType, reqNumber)
		m.answer(respond, m.protocolAnswer(ccr, charging_code.DIAMETER_MISSING_AVP), reqType)
		m.closeIfExists(sessionId)
		return
	}

	s, existed := m.store.GetOrCreate(sessionId)
	if !existed {
		m.metrics.ActiveSessions.Set(float64(m.store.Count()))
	}

	s.Mu.Lock()
	if s.State == session.StateClosed {
		s.Mu.Unlock()
		m.answer(respond, m.protocolAnswer(ccr, charging_code.DIAMETER_UNABLE_TO_COMPLY), reqType)
		return
	}
	if s.State == session.StateReserving {
		// A reservation is already in flight for this session; the
		// history is not safe for interleaved mutation.
		s.Mu.Unlock()
		logger.ChargingLog.Warnf("%s request while reservation in flight, answering UNABLE_TO_COMPLY",
			s.LogId(reqType, reqNumber))
		m.answer(respond, m.protocolAnswer(ccr, charging_code.DIAMETER_UNABLE_TO_COMPLY), reqType)
		return
	}
	if int64(reqNumber) <= s.LastRequestNumber {
		s.Mu.Unlock()
		logger.ChargingLog.Warnf("%s out-of-order CC-Request-Number (last %d), answering INVALID_AVP_VALUE",
			s.LogId(reqType, reqNumber), s.LastRequestNumber)
		m.answer(respond, m.protocolAnswer(ccr, charging_code.DIAMETER_INVALID_AVP_VALUE), reqType)
		return
	}

	m.updateSession(s, ccr, subId, subType)

	cc := &account.CreditControlInfo{
		SessionId:          sessionId,
		RequestNumber:      reqNumber,
		RequestType:        reqType,
		SubscriptionId:     subId,
		SubscriptionIdType: subType,
		EventTimestamp:     eventTimeOf(ccr),
		ServiceInfo:        serviceInfo,
	}

	var call func(*account.CreditControlInfo) <-chan *account.CreditControlInfo
	switch reqType {
	case account.RequestTypeInitial, account.RequestTypeUpdate:
		if rc, ok := checkServiceContext(ccr); !ok {
			s.Mu.Unlock()
			logger.ChargingLog.Warnf("%s bad Service-Context-Id, answering %d",
				s.LogId(reqType, reqNumber), rc)
			m.answer(respond, m.protocolAnswer(ccr, rc), reqType)
			if !existed {
				m.dropSession(s)
			}
			return
		}
		if reqType == account.RequestTypeUpdate {
			m.extractUsed(cc, ccr, s.LastReservation())
			call = m.ledger.UpdateRequest
		} else {
			call = m.ledger.InitialRequest
		}
		m.extractRequested(cc, ccr, firstServiceId(s))
	case account.RequestTypeTermination:
		m.extractUsed(cc, ccr, s.LastReservation())
		call = m.ledger.TerminateRequest
	case account.RequestTypeEvent:
		if ccr.RequestedAction == nil {
			s.Mu.Unlock()
			m.answer(respond, m.protocolAnswer(ccr, charging_code.DIAMETER_MISSING_AVP), reqType)
			if !existed {
				m.dropSession(s)
			}
			return
		}
		if int(*ccr.RequestedAction) != charging_code.DIRECT_DEBITING {
			s.Mu.Unlock()
			logger.ChargingLog.Warnf("%s unsupported Requested-Action %d",
				s.LogId(reqType, reqNumber), *ccr.RequestedAction)
			m.answer(respond, m.protocolAnswer(ccr, charging_code.DIAMETER_UNABLE_TO_COMPLY), reqType)
			if !existed {
				m.dropSession(s)
			}
			return
		}
		cc.RequestedAction = int(*ccr.RequestedAction)
		m.extractRequested(cc, ccr, firstServiceId(s))
		call = m.ledger.EventRequest
	}

	s.State = session.StateReserving
	s.LastRequestNumber = int64(reqNumber)
	s.Mu.Unlock()

	logger.ChargingLog.Infof("%s dispatching to ledger: units=%d requestedAmount=%d usedAmount=%d",
		s.LogId(reqType, reqNumber), len(cc.CcUnits), cc.RequestedAmount(), cc.UsedAmount())

	start := time.Now()
	ch := call(cc)
	go func() {
		done := <-ch
		m.metrics.LedgerDuration.Observe(time.Since(start).Seconds())
		m.resume(s, ccr, done, respond)
	}()
}

// resume runs on the Ledger's delivery goroutine once the reservation
// decision is in. It appends the exchange to the session history, builds and
// sends the answer, and re-arms or tears down the session.
func (m *Machine) resume(
	s *session.UserSessionInfo,
	ccr *charging_datatype.CreditControlRequest,
	cc *account.CreditControlInfo,
	respond ResponderFunc,
) {
	terminating := cc.RequestType == account.RequestTypeTermination

	s.Mu.Lock()
	// The session may have been torn down while the Ledger call was
	// outstanding. Closed is terminal: answer and settle, never re-arm.
	closedMeanwhile := s.State == session.StateClosed
	s.AppendHistory(cc)

	resultCode := mapResultCode(cc)
	if terminating {
		// Termination cannot be denied; the session is going away
		// regardless of how the final reconciliation went.
		resultCode = charging_code.DIAMETER_SUCCESS
	}

	cca := m.buildAnswer(ccr, s, resultCode)

	closing := terminating || cc.RequestType == account.RequestTypeEvent || closedMeanwhile
	if closing {
		s.CancelTimer()
		s.State = session.StateClosed
	} else {
		s.State = session.StateAwaitingRequest
		validity := time.Duration(m.cfg.ValidityTime) * time.Second
		s.ArmTimer(validity, func() { m.sessionTimeout(s) })
	}
	s.Mu.Unlock()

	if closing {
		m.store.Delete(s.SessionId)
		m.metrics.ActiveSessions.Set(float64(m.store.Count()))
	}

	logger.ChargingLog.Infof("%s answering %d (success=%t balance %d -> %d)",
		s.LogId(cc.RequestType, cc.RequestNumber), resultCode,
		cc.Success, cc.BalanceBefore, cc.BalanceAfter)
	m.answer(respond, cca, cc.RequestType)

	if terminating || closedMeanwhile {
		m.writeSettlement(s)
	}
}

// sessionTimeout force-closes a session whose validity window elapsed with
// no request. Skips when a reservation is in flight or the session already
// closed, so teardown stays idempotent.
func (m *Machine) sessionTimeout(s *session.UserSessionInfo) {
	s.Mu.Lock()
	if s.State != session.StateAwaitingRequest {
		s.Mu.Unlock()
		return
	}
	s.State = session.StateClosed
	s.CancelTimer()
	s.Mu.Unlock()

	m.store.Delete(s.SessionId)
	m.metrics.SessionTimeouts.Inc()
	m.metrics.ActiveSessions.Set(float64(m.store.Count()))
	logger.ChargingLog.Warnf("session %s force-closed after %ds of inactivity",
		limitString(s.SessionId, 9), m.cfg.ValidityTime)

	m.writeSettlement(s)
}

func (m *Machine) writeSettlement(s *session.UserSessionInfo) {
	if m.cdrSink == nil || len(s.History()) == 0 {
		return
	}
	rec := cdr.Aggregate(s)
	if err := m.cdrSink.WriteSettlement(rec); err != nil {
		logger.ChargingLog.Errorf("write settlement for session %s: %+v", s.SessionId, err)
		m.metrics.CdrWritesTotal.WithLabelValues("error").Inc()
		return
	}
	m.metrics.CdrWritesTotal.WithLabelValues("ok").Inc()
}

func (m *Machine) answer(
	respond ResponderFunc,
	cca *charging_datatype.CreditControlAnswer,
	reqType account.RequestType,
) {
	respond(cca)
	m.metrics.CcaTotal.WithLabelValues(reqType.String(), resultCodeLabel(cca.ResultCode)).Inc()
}

// closeIfExists tears a session down after a fatal protocol error.
func (m *Machine) closeIfExists(sessionId string) {
	s, ok := m.store.Get(sessionId)
	if !ok {
		return
	}
	s.Mu.Lock()
	s.CancelTimer()
	s.State = session.StateClosed
	s.Mu.Unlock()
	m.store.Delete(sessionId)
	m.metrics.ActiveSessions.Set(float64(m.store.Count()))
}

// dropSession removes a session that was created for a request which then
// failed validation, before any timer was armed.
func (m *Machine) dropSession(s *session.UserSessionInfo) {
	m.store.Delete(s.SessionId)
	m.metrics.ActiveSessions.Set(float64(m.store.Count()))
}

// updateSession refreshes the session's identity fields from the request
// before the asynchronous boundary, so a concurrent timer sees them.
func (m *Machine) updateSession(
	s *session.UserSessionInfo,
	ccr *charging_datatype.CreditControlRequest,
	subId string,
	subType int,
) {
	s.SubscriptionId = subId
	s.SubscriptionIdType = subType
	s.OriginHost = string(ccr.OriginHost)
	s.OriginRealm = string(ccr.OriginRealm)
	s.DestinationHost = string(ccr.DestinationHost)
	s.DestinationRealm = string(ccr.DestinationRealm)

	for _, g := range ccr.MultipleServicesCreditControl {
		for _, sid := range g.ServiceIdentifier {
			if !containsServiceId(s.ServiceIds, uint32(sid)) {
				s.ServiceIds = append(s.ServiceIds, uint32(sid))
			}
		}
	}
}

func containsServiceId(ids []uint32, id uint32) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func firstServiceId(s *session.UserSessionInfo) uint32 {
	if len(s.ServiceIds) == 0 {
		return 0
	}
	return s.ServiceIds[0]
}

func subscriptionOf(ccr *charging_datatype.CreditControlRequest) (string, int, bool) {
	for _, sub := range ccr.SubscriptionId {
		if len(sub.SubscriptionIdData) > 0 {
			return string(sub.SubscriptionIdData), int(sub.SubscriptionIdType), true
		}
	}
	return "", 0, false
}

func eventTimeOf(ccr *charging_datatype.CreditControlRequest) time.Time {
	if ccr.EventTimestamp != nil {
		return time.Time(*ccr.EventTimestamp)
	}
	return time.Now()
}

// checkServiceContext validates Service-Context-Id for Initial/Update.
// Absent maps to MISSING_AVP, present-but-empty to INVALID_AVP_VALUE.
func checkServiceContext(ccr *charging_datatype.CreditControlRequest) (uint32, bool) {
	if ccr.ServiceContextId == nil {
		return charging_code.DIAMETER_MISSING_AVP, false
	}
	if len(*ccr.ServiceContextId) == 0 {
		return charging_code.DIAMETER_INVALID_AVP_VALUE, false
	}
	return 0, true
}

func limitString(str string, limit int) string {
	if len(str) <= 2*limit {
		return str
	}
	return str[:limit] + ".." + str[len(str)-limit:]
}
