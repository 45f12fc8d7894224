// Package rating resolves a monetary rate for requested service units.
package rating

import (
	"github.com/RestComm/charging-server/internal/charging/account"
)

// Response codes returned by a rating engine. Zero means the rate is usable.
const (
	RespSuccess = 0
	RespFailure = 1
)

// Rater converts requested units into a monetary rate. A non-zero response
// code means the rate could not be determined; callers fall back to a
// permissive default rather than blocking the request.
type Rater interface {
	GetRate(sessionId string, serviceId uint32, unitType account.UnitType, requestedUnits int64) (float64, int)
}

// TariffRater rates from a static per-service tariff table. Services without
// an entry rate at the default.
type TariffRater struct {
	rates       map[uint32]float64
	defaultRate float64
}

func NewTariffRater(rates map[uint32]float64, defaultRate float64) *TariffRater {
	if defaultRate <= 0 {
		defaultRate = 1.0
	}
	return &TariffRater{
		rates:       rates,
		defaultRate: defaultRate,
	}
}

func (r *TariffRater) GetRate(
	sessionId string, serviceId uint32, unitType account.UnitType, requestedUnits int64,
) (float64, int) {
	if rate, ok := r.rates[serviceId]; ok {
		return rate, RespSuccess
	}
	return r.defaultRate, RespSuccess
}
