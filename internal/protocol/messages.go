package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ent0n29/mentra/internal/plan"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypePanelOpen  MessageType = "panel_open"
	TypePanelClose MessageType = "panel_close"
	TypeSubmit     MessageType = "submit"
	TypeStop       MessageType = "stop"
	TypeStartDay   MessageType = "start_day"

	TypeTranscript        MessageType = "transcript"
	TypeThinkingStart     MessageType = "thinking_start"
	TypeThinkingEnd       MessageType = "thinking_end"
	TypeBusy              MessageType = "busy"
	TypeInputLocked       MessageType = "input_locked"
	TypeInputUnlocked     MessageType = "input_unlocked"
	TypeInputCleared      MessageType = "input_cleared"
	TypePlaceholder       MessageType = "placeholder"
	TypeFocus             MessageType = "focus"
	TypePanelOpened       MessageType = "panel_opened"
	TypeTranscriptCleared MessageType = "transcript_cleared"
	TypeSystemEvent       MessageType = "system_event"
	TypeErrorEvent        MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// PanelControl carries the payload-free client messages: panel_open,
// panel_close and stop.
type PanelControl struct {
	Type MessageType `json:"type"`
}

type Submit struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// StartDay wraps the day signal; the signal fields sit beside "type" on the wire.
type StartDay struct {
	Type   MessageType
	Signal plan.StartDay
}

type Transcript struct {
	Type MessageType `json:"type"`
	Role string      `json:"role"`
	HTML string      `json:"html"`
	Text string      `json:"text"`
}

// Thinking is sent as thinking_start and thinking_end.
type Thinking struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id"`
}

type Busy struct {
	Type MessageType `json:"type"`
	Busy bool        `json:"busy"`
}

// Signal is a server message without payload (input_locked, focus, ...).
type Signal struct {
	Type MessageType `json:"type"`
}

type Placeholder struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type SystemEvent struct {
	Type   MessageType `json:"type"`
	TabID  string      `json:"tab_id"`
	Code   string      `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	TabID     string      `json:"tab_id"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes one inbound frame. A start_day frame never fails
// on its signal fields: malformed parts select the fallback message instead.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypePanelOpen, TypePanelClose, TypeStop:
		return PanelControl{Type: env.Type}, nil
	case TypeSubmit:
		var msg Submit
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeStartDay:
		return StartDay{Type: env.Type, Signal: plan.DecodeStartDay(raw)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, env.Type)
	}
}
