package domain

// Delivery channels for outbound verification messages.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Delivery is a fire-and-forget outbound message handed to the notification
// dispatcher. The auth flows only build the payload; they never wait for
// delivery to complete.
type Delivery struct {
	Channel     string
	Destination string
	Subject     string
	Body        string
}
