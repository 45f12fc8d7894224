package datatype

import (
	"github.com/fiorix/go-diameter/diam/datatype"
)

// Decoded Ro Credit-Control-Request. Optional AVPs are pointers so that an
// absent AVP stays distinguishable from a present zero value.
type CreditControlRequest struct {
	SessionId         datatype.UTF8String       `avp:"Session-Id"`
	OriginHost        datatype.DiameterIdentity `avp:"Origin-Host"`
	OriginRealm       datatype.DiameterIdentity `avp:"Origin-Realm"`
	DestinationHost   datatype.DiameterIdentity `avp:"Destination-Host"`
	DestinationRealm  datatype.DiameterIdentity `avp:"Destination-Realm"`
	AuthApplicationId datatype.Unsigned32       `avp:"Auth-Application-Id"`
	ServiceContextId  *datatype.UTF8String      `avp:"Service-Context-Id"`
	CcRequestType     datatype.Enumerated       `avp:"CC-Request-Type"`
	CcRequestNumber   datatype.Unsigned32       `avp:"CC-Request-Number"`
	EventTimestamp    *datatype.Time            `avp:"Event-Timestamp"`
	RequestedAction   *datatype.Enumerated      `avp:"Requested-Action"`
	SubscriptionId    []SubscriptionId          `avp:"Subscription-Id"`

	MultipleServicesCreditControl []MultipleServicesCreditControl `avp:"Multiple-Services-Credit-Control"`
}

type SubscriptionId struct {
	SubscriptionIdType datatype.Enumerated `avp:"Subscription-Id-Type"`
	SubscriptionIdData datatype.UTF8String `avp:"Subscription-Id-Data"`
}

// One MSCC group of a request: units requested for, and used since the last
// grant of, a single service or rating group.
type MultipleServicesCreditControl struct {
	RatingGroup          *datatype.Unsigned32  `avp:"Rating-Group"`
	ServiceIdentifier    []datatype.Unsigned32 `avp:"Service-Identifier"`
	RequestedServiceUnit *ServiceUnit          `avp:"Requested-Service-Unit"`
	UsedServiceUnit      []ServiceUnit         `avp:"Used-Service-Unit"`
}

// ServiceUnit carries the unit-type counters of a Requested-, Used- or
// Granted-Service-Unit grouped AVP. CC-Money is not supported by 3GPP and is
// deliberately not mapped.
type ServiceUnit struct {
	CcTime                 *datatype.Unsigned32 `avp:"CC-Time"`
	CcTotalOctets          *datatype.Unsigned64 `avp:"CC-Total-Octets"`
	CcInputOctets          *datatype.Unsigned64 `avp:"CC-Input-Octets"`
	CcOutputOctets         *datatype.Unsigned64 `avp:"CC-Output-Octets"`
	CcServiceSpecificUnits *datatype.Unsigned64 `avp:"CC-Service-Specific-Units"`
}

// Decoded Ro Credit-Control-Answer as built by the charging core.
type CreditControlAnswer struct {
	SessionId         datatype.UTF8String       `avp:"Session-Id"`
	ResultCode        datatype.Unsigned32       `avp:"Result-Code"`
	OriginHost        datatype.DiameterIdentity `avp:"Origin-Host"`
	OriginRealm       datatype.DiameterIdentity `avp:"Origin-Realm"`
	AuthApplicationId datatype.Unsigned32       `avp:"Auth-Application-Id"`
	CcRequestType     datatype.Enumerated       `avp:"CC-Request-Type"`
	CcRequestNumber   datatype.Unsigned32       `avp:"CC-Request-Number"`

	MultipleServicesCreditControl []MultipleServicesCreditControlAnswer `avp:"Multiple-Services-Credit-Control"`
}

type MultipleServicesCreditControlAnswer struct {
	RatingGroup         *datatype.Unsigned32  `avp:"Rating-Group"`
	ServiceIdentifier   []datatype.Unsigned32 `avp:"Service-Identifier"`
	GrantedServiceUnit  *ServiceUnit          `avp:"Granted-Service-Unit"`
	ValidityTime        datatype.Unsigned32   `avp:"Validity-Time"`
	ResultCode          datatype.Unsigned32   `avp:"Result-Code"`
	FinalUnitIndication *FinalUnitIndication  `avp:"Final-Unit-Indication"`
}

type FinalUnitIndication struct {
	FinalUnitAction datatype.Enumerated `avp:"Final-Unit-Action"`
}
