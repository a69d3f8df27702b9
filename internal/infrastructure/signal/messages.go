package signal

import "encoding/json"

// Envelope is the outer shape of every client message. Fields beyond
// Type are read per message kind; payloads destined for a peer (SDP
// blobs, ICE candidates, device lists, alert bodies) stay opaque raw
// JSON and are forwarded verbatim.
type Envelope struct {
	Type string `json:"type"`
}

type JoinRoomMessage struct {
	RoomID     string `json:"roomId"`
	Role       string `json:"role"`
	CameraName string `json:"cameraName,omitempty"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
}

type OfferMessage struct {
	Target string          `json:"target"`
	Offer  json.RawMessage `json:"offer"`
}

type AnswerMessage struct {
	Target string          `json:"target"`
	Answer json.RawMessage `json:"answer"`
}

type ICECandidateMessage struct {
	Target    string          `json:"target"`
	Candidate json.RawMessage `json:"candidate"`
}

type RequestDeviceListMessage struct {
	RoomID string `json:"roomId"`
}

type DeviceListMessage struct {
	Target  string          `json:"target"`
	Devices json.RawMessage `json:"devices"`
}

type SwitchDeviceRequestMessage struct {
	RoomID     string `json:"roomId"`
	DeviceType string `json:"deviceType"`
	DeviceID   string `json:"deviceId"`
}

type DeviceSwitchedMessage struct {
	Target     string `json:"target"`
	DeviceType string `json:"deviceType"`
	DeviceID   string `json:"deviceId"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
}

type SecurityAlertMessage struct {
	Alert json.RawMessage `json:"alert"`
}

type SecurityAlertsStatusMessage struct {
	Status json.RawMessage `json:"status"`
}

type UpdateAlertSettingsMessage struct {
	TargetRoomID string          `json:"targetRoomId"`
	Settings     json.RawMessage `json:"settings"`
}

type RequestAlertSettingsMessage struct {
	RoomID string `json:"roomId"`
}

type SendAlertSettingsMessage struct {
	Target   string          `json:"target"`
	Settings json.RawMessage `json:"settings"`
}
