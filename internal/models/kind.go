package models

// Stage is one tracked request/response lifecycle.
type Stage string

const (
	StageTransaction Stage = "transaction"
	StageDiscounts   Stage = "evaluate_discounts"
)

// Role tells whether a record opens or closes a stage occurrence.
type Role string

const (
	RoleRequest  Role = "request"
	RoleResponse Role = "response"
)

// RecordKind classifies a log row by the marker phrase it carries.
type RecordKind int

const (
	KindDiscountRequest RecordKind = iota
	KindDiscountResponse
	KindTransactionRequest
	KindTransactionResponse
)

// Kinds lists every record kind in classification priority order.
var Kinds = []RecordKind{
	KindDiscountRequest,
	KindDiscountResponse,
	KindTransactionRequest,
	KindTransactionResponse,
}

var kindMarkers = map[RecordKind]string{
	KindDiscountRequest:     "Evaluate Discounts Request: ",
	KindDiscountResponse:    "Evaluate Discounts Search success. Response - ",
	KindTransactionRequest:  "Transaction Request",
	KindTransactionResponse: "Transaction post success. Response -",
}

// Marker returns the phrase that identifies the kind inside a log message.
func (k RecordKind) Marker() string {
	return kindMarkers[k]
}

// Stage returns the lifecycle the kind belongs to.
func (k RecordKind) Stage() Stage {
	switch k {
	case KindDiscountRequest, KindDiscountResponse:
		return StageDiscounts
	default:
		return StageTransaction
	}
}

// Role returns whether the kind is a request or a response.
func (k RecordKind) Role() Role {
	switch k {
	case KindDiscountRequest, KindTransactionRequest:
		return RoleRequest
	default:
		return RoleResponse
	}
}

func (k RecordKind) String() string {
	switch k {
	case KindDiscountRequest:
		return "DiscountRequest"
	case KindDiscountResponse:
		return "DiscountResponse"
	case KindTransactionRequest:
		return "TransactionRequest"
	case KindTransactionResponse:
		return "TransactionResponse"
	default:
		return "Unknown"
	}
}

// Markers returns the marker phrases in classification priority order.
func Markers() []string {
	markers := make([]string, len(Kinds))
	for i, k := range Kinds {
		markers[i] = k.Marker()
	}
	return markers
}
