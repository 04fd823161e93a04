package dto

// InboundMessageRequest is the payload channel integrations post to the
// intake webhook.
type InboundMessageRequest struct {
	ExternalID  string  `json:"external_id"`
	DisplayName string  `json:"display_name"`
	Phone       *string `json:"phone,omitempty"`
	Text        string  `json:"text"`
}

// InboundMessageResponse acknowledges intake.
type InboundMessageResponse struct {
	TicketID    string `json:"ticket_id,omitempty"`
	ExternalKey string `json:"external_key,omitempty"`
	Accepted    bool   `json:"accepted"`
}
