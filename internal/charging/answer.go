package charging

import (
	"strconv"

	"github.com/fiorix/go-diameter/diam/datatype"

	charging_code "github.com/RestComm/charging-server/ccs_diameter/code"
	charging_datatype "github.com/RestComm/charging-server/ccs_diameter/datatype"
	"github.com/RestComm/charging-server/internal/charging/account"
	"github.com/RestComm/charging-server/internal/charging/session"
)

// mapResultCode turns a Ledger outcome into a Diameter result code.
func mapResultCode(cc *account.CreditControlInfo) uint32 {
	if cc.Success {
		return charging_code.DIAMETER_SUCCESS
	}
	switch cc.ErrorCodeType {
	case account.ErrInvalidUser:
		return charging_code.DIAMETER_USER_UNKNOWN
	case account.ErrBadRoamingCountry, account.ErrNoServiceForUser:
		return charging_code.DIAMETER_END_USER_SERVICE_DENIED
	case account.ErrNotEnoughBalance:
		return charging_code.DIAMETER_CREDIT_LIMIT_REACHED
	default:
		return charging_code.DIAMETER_UNABLE_TO_COMPLY
	}
}

func resultCodeLabel(rc datatype.Unsigned32) string {
	return strconv.FormatUint(uint64(rc), 10)
}

// protocolAnswer builds an answer for a request rejected before any Ledger
// call: just the envelope and the message-level result code, no MSCC groups.
func (m *Machine) protocolAnswer(
	ccr *charging_datatype.CreditControlRequest,
	resultCode uint32,
) *charging_datatype.CreditControlAnswer {
	return &charging_datatype.CreditControlAnswer{
		SessionId:         ccr.SessionId,
		ResultCode:        datatype.Unsigned32(resultCode),
		OriginHost:        datatype.DiameterIdentity(m.cfg.OriginHost),
		OriginRealm:       datatype.DiameterIdentity(m.cfg.OriginRealm),
		AuthApplicationId: ccr.AuthApplicationId,
		CcRequestType:     ccr.CcRequestType,
		CcRequestNumber:   ccr.CcRequestNumber,
	}
}

// buildAnswer maps the session's accumulated reservation state onto the
// answer structure: every MSCC group of the request is echoed, granted units
// come from the last reservation, and a Final-Unit-Indication is attached
// when the session is ending or the reservation was denied. Caller holds the
// session lock.
func (m *Machine) buildAnswer(
	ccr *charging_datatype.CreditControlRequest,
	s *session.UserSessionInfo,
	resultCode uint32,
) *charging_datatype.CreditControlAnswer {
	cca := m.protocolAnswer(ccr, resultCode)

	last := s.LastReservation()
	terminating := int(ccr.CcRequestType) == charging_code.TERMINATION_REQUEST

	for _, g := range ccr.MultipleServicesCreditControl {
		mscc := charging_datatype.MultipleServicesCreditControlAnswer{
			RatingGroup:       g.RatingGroup,
			ServiceIdentifier: g.ServiceIdentifier,
			ValidityTime:      datatype.Unsigned32(m.cfg.ValidityTime),
		}
		if last != nil && last.Success {
			mscc.ResultCode = charging_code.DIAMETER_SUCCESS
			mscc.GrantedServiceUnit = grantedUnits(last)
			if terminating {
				mscc.FinalUnitIndication = &charging_datatype.FinalUnitIndication{
					FinalUnitAction: charging_code.TERMINATE,
				}
			}
		} else {
			subResult := resultCode
			if last != nil {
				subResult = mapResultCode(last)
			}
			mscc.ResultCode = datatype.Unsigned32(subResult)
			mscc.FinalUnitIndication = &charging_datatype.FinalUnitIndication{
				FinalUnitAction: charging_code.TERMINATE,
			}
		}
		cca.MultipleServicesCreditControl = append(cca.MultipleServicesCreditControl, mscc)
	}
	return cca
}

// grantedUnits builds the Granted-Service-Unit block from a successful
// reservation, populating only the unit types actually reserved.
func grantedUnits(cc *account.CreditControlInfo) *charging_datatype.ServiceUnit {
	su := &charging_datatype.ServiceUnit{}
	granted := false
	for _, u := range cc.CcUnits {
		if u.ReservedUnits <= 0 {
			continue
		}
		account.SetUnitValue(su, u.UnitType, u.ReservedUnits)
		granted = true
	}
	if !granted {
		return nil
	}
	return su
}
