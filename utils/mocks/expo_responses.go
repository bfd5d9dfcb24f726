package mocks

import (
	"bytes"
	"io"
)

// Body wraps a canned response so each mock call gets a fresh reader
func Body(s string) io.ReadCloser {
	return io.NopCloser(bytes.NewReader([]byte(s)))
}

var ExpoSendResponse = "{\n  \"data\": [\n    {\"status\": \"ok\", \"id\": \"ticket-1\"},\n    {\"status\": \"error\", \"message\": \"\\\"ExponentPushToken[gone]\\\" is not a registered push notification recipient\", \"details\": {\"error\": \"DeviceNotRegistered\"}}\n  ]\n}"

var ExpoReceiptsResponse = "{\n  \"data\": {\n    \"ticket-1\": {\"status\": \"ok\"},\n    \"ticket-2\": {\"status\": \"error\", \"message\": \"The device cannot receive push notifications anymore\", \"details\": {\"error\": \"DeviceNotRegistered\"}}\n  }\n}"

var ExpoRequestErrorResponse = "{\n  \"errors\": [\n    {\"code\": \"PUSH_TOO_MANY_EXPERIENCE_IDS\", \"message\": \"All push notification messages in the same request must be for the same project\"}\n  ]\n}"
