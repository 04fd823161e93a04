package domain

import "time"

// Channel enumerates the message sources a client can arrive from.
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelTelegram  Channel = "telegram"
	ChannelInstagram Channel = "instagram"
	ChannelWeb       Channel = "web"
)

// Client is an end customer tracked across channels.
type Client struct {
	ID          string
	Channel     Channel
	ExternalID  string
	DisplayName string
	Phone       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
