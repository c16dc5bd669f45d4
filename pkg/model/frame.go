package model

// Frame is the JSON envelope exchanged over the live channel.
type Frame struct {
	Type      MessageType `json:"type"`
	ClientRef string      `json:"client_ref,omitempty"`

	// Set on send frames.
	RecipientID string `json:"recipient_id,omitempty"`
	ListingID   string `json:"listing_id,omitempty"`
	Body        string `json:"body,omitempty"`

	// Set on message and ack frames.
	Message *Message `json:"message,omitempty"`

	// Set on error frames. Error is one of the Category values below.
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

const (
	CategoryValidation  = "validation"
	CategoryForbidden   = "forbidden"
	CategoryRateLimited = "rate_limited"
	CategoryBadFrame    = "bad_frame"
	CategoryInternal    = "internal"
)
