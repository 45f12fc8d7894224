package account

import (
	"github.com/fiorix/go-diameter/diam/datatype"

	charging_datatype "github.com/RestComm/charging-server/ccs_diameter/datatype"
)

// UnitType enumerates the CC-xxx unit counters of RFC 4006 8.32.
type UnitType int

const (
	UnitTypeTime UnitType = iota
	UnitTypeMoney
	UnitTypeTotalOctets
	UnitTypeInputOctets
	UnitTypeOutputOctets
	UnitTypeServiceSpecific
)

func (t UnitType) String() string {
	switch t {
	case UnitTypeTime:
		return "TIME"
	case UnitTypeMoney:
		return "MONEY"
	case UnitTypeTotalOctets:
		return "TOTAL_OCTETS"
	case UnitTypeInputOctets:
		return "INPUT_OCTETS"
	case UnitTypeOutputOctets:
		return "OUTPUT_OCTETS"
	case UnitTypeServiceSpecific:
		return "SERVICE_SPECIFIC_UNITS"
	default:
		return "UNKNOWN"
	}
}

// AccountedUnitTypes lists the unit types this server accounts for. MONEY is
// not supported by 3GPP and is excluded on purpose.
var AccountedUnitTypes = []UnitType{
	UnitTypeTime,
	UnitTypeTotalOctets,
	UnitTypeInputOctets,
	UnitTypeOutputOctets,
	UnitTypeServiceSpecific,
}

// unitAccessor reads one unit-type counter out of a decoded service-unit
// group. The second return is false when the AVP was absent, which is not the
// same thing as a present zero (zero is a valid "no more units" request).
type unitAccessor func(*charging_datatype.ServiceUnit) (int64, bool)

// Static accessor table, built once. Replaces the reflective
// method-name-by-convention lookup of older generations of this server.
var unitAccessors = map[UnitType]unitAccessor{
	UnitTypeTime: func(su *charging_datatype.ServiceUnit) (int64, bool) {
		if su.CcTime == nil {
			return 0, false
		}
		return int64(*su.CcTime), true
	},
	UnitTypeTotalOctets: func(su *charging_datatype.ServiceUnit) (int64, bool) {
		if su.CcTotalOctets == nil {
			return 0, false
		}
		return int64(*su.CcTotalOctets), true
	},
	UnitTypeInputOctets: func(su *charging_datatype.ServiceUnit) (int64, bool) {
		if su.CcInputOctets == nil {
			return 0, false
		}
		return int64(*su.CcInputOctets), true
	},
	UnitTypeOutputOctets: func(su *charging_datatype.ServiceUnit) (int64, bool) {
		if su.CcOutputOctets == nil {
			return 0, false
		}
		return int64(*su.CcOutputOctets), true
	},
	UnitTypeServiceSpecific: func(su *charging_datatype.ServiceUnit) (int64, bool) {
		if su.CcServiceSpecificUnits == nil {
			return 0, false
		}
		return int64(*su.CcServiceSpecificUnits), true
	},
}

// UnitValue extracts the counter for one unit type from a service-unit group.
func UnitValue(su *charging_datatype.ServiceUnit, t UnitType) (int64, bool) {
	accessor, ok := unitAccessors[t]
	if !ok || su == nil {
		return 0, false
	}
	return accessor(su)
}

// unitSetters is the static write-side counterpart of unitAccessors, used
// when populating a Granted-Service-Unit block.
var unitSetters = map[UnitType]func(*charging_datatype.ServiceUnit, int64){
	UnitTypeTime: func(su *charging_datatype.ServiceUnit, v int64) {
		value := datatype.Unsigned32(v)
		su.CcTime = &value
	},
	UnitTypeTotalOctets: func(su *charging_datatype.ServiceUnit, v int64) {
		value := datatype.Unsigned64(v)
		su.CcTotalOctets = &value
	},
	UnitTypeInputOctets: func(su *charging_datatype.ServiceUnit, v int64) {
		value := datatype.Unsigned64(v)
		su.CcInputOctets = &value
	},
	UnitTypeOutputOctets: func(su *charging_datatype.ServiceUnit, v int64) {
		value := datatype.Unsigned64(v)
		su.CcOutputOctets = &value
	},
	UnitTypeServiceSpecific: func(su *charging_datatype.ServiceUnit, v int64) {
		value := datatype.Unsigned64(v)
		su.CcServiceSpecificUnits = &value
	},
}

// SetUnitValue writes the counter for one unit type into a service-unit
// group. MONEY and unknown types are ignored.
func SetUnitValue(su *charging_datatype.ServiceUnit, t UnitType, v int64) {
	if setter, ok := unitSetters[t]; ok {
		setter(su, v)
	}
}

// CreditControlUnit is one unit-type accounting line within a request.
type CreditControlUnit struct {
	UnitType        UnitType
	RequestedUnits  int64
	RequestedAmount int64
	ReservedUnits   int64
	ReservedAmount  int64
	UsedUnits       int64
	UsedAmount      int64
	// Monetary rate per unit; 0 when rating is disabled and accounting is
	// unit-for-unit.
	RateForService float64
}
