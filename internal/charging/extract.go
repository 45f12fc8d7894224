package charging

import (
	"math"

	charging_datatype "github.com/RestComm/charging-server/ccs_diameter/datatype"
	"github.com/RestComm/charging-server/internal/charging/account"
	"github.com/RestComm/charging-server/internal/logger"
	"github.com/RestComm/charging-server/internal/rating"
)

// ensureUnit returns the accounting line for a unit type, creating it and
// keeping the line order stable on first sight.
func ensureUnit(cc *account.CreditControlInfo, t account.UnitType) *account.CreditControlUnit {
	if u := cc.Unit(t); u != nil {
		return u
	}
	u := &account.CreditControlUnit{UnitType: t}
	cc.CcUnits = append(cc.CcUnits, u)
	return u
}

// extractRequested folds the Requested-Service-Unit counters of every MSCC
// group into cc, one line per present unit type, then prices each line. A
// request with no MSCC groups gets the implicit all-zero treatment: no lines,
// a zero-amount reservation.
func (m *Machine) extractRequested(
	cc *account.CreditControlInfo,
	ccr *charging_datatype.CreditControlRequest,
	serviceId uint32,
) {
	for _, g := range ccr.MultipleServicesCreditControl {
		for _, t := range account.AccountedUnitTypes {
			v, present := account.UnitValue(g.RequestedServiceUnit, t)
			if !present || v < 0 {
				continue
			}
			ensureUnit(cc, t).RequestedUnits += v
		}
	}

	for _, u := range cc.CcUnits {
		if u.RequestedUnits == 0 && u.UsedUnits > 0 {
			// Used-only line, already priced by extractUsed.
			continue
		}
		if m.rater == nil {
			u.RequestedAmount = u.RequestedUnits
			continue
		}
		rate, respCode := m.rater.GetRate(cc.SessionId, serviceId, u.UnitType, u.RequestedUnits)
		if respCode != rating.RespSuccess {
			// Never block a request on a rating-engine outage.
			logger.RatingLog.Warnf("rating %s units for session %s failed (code %d), using rate 1.0",
				u.UnitType, cc.SessionId, respCode)
			m.metrics.RaterFallbacks.Inc()
			rate = 1.0
		}
		u.RateForService = rate
		u.RequestedAmount = ceilAmount(u.RequestedUnits, rate)
	}
}

// extractUsed folds the Used-Service-Unit counters of every MSCC group into
// cc and carries the previous reservation forward per unit type, so the
// Ledger can release exactly what was reserved and charge consumption at the
// rate it was granted under.
func (m *Machine) extractUsed(
	cc *account.CreditControlInfo,
	ccr *charging_datatype.CreditControlRequest,
	prev *account.CreditControlInfo,
) {
	for _, g := range ccr.MultipleServicesCreditControl {
		for i := range g.UsedServiceUnit {
			for _, t := range account.AccountedUnitTypes {
				v, present := account.UnitValue(&g.UsedServiceUnit[i], t)
				if !present || v < 0 {
					continue
				}
				ensureUnit(cc, t).UsedUnits += v
			}
		}
	}

	for _, u := range cc.CcUnits {
		if u.UsedUnits == 0 {
			continue
		}
		if prev != nil {
			if p := prev.Unit(u.UnitType); p != nil {
				u.ReservedUnits = p.ReservedUnits
				u.ReservedAmount = p.ReservedAmount
				u.RateForService = p.RateForService
			}
		}
		if m.rater == nil {
			u.UsedAmount = u.UsedUnits
		} else {
			u.UsedAmount = ceilAmount(u.UsedUnits, u.RateForService)
		}
	}
}

func ceilAmount(units int64, rate float64) int64 {
	return int64(math.Ceil(float64(units) * rate))
}
