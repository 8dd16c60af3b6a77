package types

// RequestStatus is the lifecycle state of a producer-side operation request.
// Transitions are driven only by the request pipeline:
// Pending -> Proving -> Submitted -> Complete | Failed.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestProving   RequestStatus = "proving"
	RequestSubmitted RequestStatus = "submitted"
	RequestComplete  RequestStatus = "complete"
	RequestFailed    RequestStatus = "failed"
)

// Request is one client submitted operation against an AD.
type Request struct {
	ID     string        `json:"id"`
	ADID   AdID          `json:"ad_id"`
	Op     Operation     `json:"op"`
	Status RequestStatus `json:"status"`
	// Result is the broadcast reference (feed entry reference) once submitted.
	Result string `json:"result,omitempty"`
	// Reason is set when Status is RequestFailed.
	Reason string `json:"reason,omitempty"`
}
