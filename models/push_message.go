package models

// Push result statuses shared by tickets and receipts
const (
	PushStatusOk    = "ok"
	PushStatusError = "error"
)

// DeviceNotRegistered is the gateway's permanent failure for a destination token
const DeviceNotRegistered = "DeviceNotRegistered"

// Notification type carried in the payload so the app can deep link
const NotificationTypeNewPost = "new_post"

type PushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Sound string            `json:"sound,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

type PushErrorDetails struct {
	Error string `json:"error,omitempty" mapstructure:"error"`
}

// PushResult is what the gateway answers per message on submission (a ticket)
// and per ticket id on receipt lookup (a receipt). Receipts carry no ID.
type PushResult struct {
	Status  string            `json:"status"`
	ID      string            `json:"id,omitempty"`
	Message string            `json:"message,omitempty"`
	Details *PushErrorDetails `json:"details,omitempty"`
}

func (r PushResult) Ok() bool {
	return r.Status == PushStatusOk
}

// ErrorReason returns the machine readable error, if the gateway sent one
func (r PushResult) ErrorReason() string {
	if r.Details == nil {
		return ""
	}
	return r.Details.Error
}

func (r PushResult) DeviceNotRegistered() bool {
	return r.Status == PushStatusError && r.ErrorReason() == DeviceNotRegistered
}
