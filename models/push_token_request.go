package models

type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}
