package code

// Command codes and application ids used on the Ro reference point.
const (
	CreditControl = 272

	// Ro / Diameter Credit-Control Application id (RFC 4006).
	Ro_interface = 4
)

// CC-Request-Type (AVP 416).
const (
	INITIAL_REQUEST     = 1
	UPDATE_REQUEST      = 2
	TERMINATION_REQUEST = 3
	EVENT_REQUEST       = 4
)

// Requested-Action (AVP 436), for EVENT_REQUEST only.
const (
	DIRECT_DEBITING = 0
	REFUND_ACCOUNT  = 1
	CHECK_BALANCE   = 2
	PRICE_ENQUIRY   = 3
)

// Subscription-Id-Type (AVP 450).
const (
	END_USER_E164    = 0
	END_USER_IMSI    = 1
	END_USER_SIP_URI = 2
	END_USER_NAI     = 3
	END_USER_PRIVATE = 4
)

// Final-Unit-Action (AVP 449).
const (
	TERMINATE       = 0
	REDIRECT        = 1
	RESTRICT_ACCESS = 2
)

// Result codes (RFC 3588 / RFC 4006).
const (
	DIAMETER_SUCCESS                 = 2001
	DIAMETER_END_USER_SERVICE_DENIED = 4010
	DIAMETER_CREDIT_LIMIT_REACHED    = 4012
	DIAMETER_INVALID_AVP_VALUE       = 5004
	DIAMETER_MISSING_AVP             = 5005
	DIAMETER_UNABLE_TO_COMPLY        = 5012
	DIAMETER_USER_UNKNOWN            = 5030
)
