package relay

import (
	"encoding/json"
	"strings"
)

// Client-facing events. Every message written to the widget is one of these.
type clientEvent interface{ isClientEvent() }

type connectedEvent struct {
	Type string `json:"type"`
}

type agentSetEvent struct {
	Type                string `json:"type"`
	AgentID             int64  `json:"agent_id"`
	Name                string `json:"name"`
	InstructionsPreview string `json:"instructions_preview"`
}

type promptSetEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type transcriptUserEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type transcriptAssistantEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type audioChunkEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type speechStartedEvent struct {
	Type string `json:"type"`
}

type speechStoppedEvent struct {
	Type string `json:"type"`
}

type responseDoneEvent struct {
	Type string `json:"type"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (connectedEvent) isClientEvent()           {}
func (agentSetEvent) isClientEvent()            {}
func (promptSetEvent) isClientEvent()           {}
func (transcriptUserEvent) isClientEvent()      {}
func (transcriptAssistantEvent) isClientEvent() {}
func (audioChunkEvent) isClientEvent()          {}
func (speechStartedEvent) isClientEvent()       {}
func (speechStoppedEvent) isClientEvent()       {}
func (responseDoneEvent) isClientEvent()        {}
func (errorEvent) isClientEvent()               {}

func newErrorEvent(msg string) errorEvent {
	return errorEvent{Type: "error", Error: msg}
}

// instructionsPreview truncates agent instructions for the agent_set event so
// full prompts are never echoed to the page. Truncation counts runes, never
// splitting a multi-byte character.
func instructionsPreview(instructions string) string {
	const max = 100
	runes := []rune(instructions)
	if len(runes) <= max {
		return instructions
	}
	return string(runes[:max]) + "..."
}

// upstreamFrame is the superset of fields the relay reads from upstream
// events; everything else in the frame is ignored.
type upstreamFrame struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Delta      string `json:"delta"`
	Error      struct {
		Message string `json:"message"`
	} `json:"error"`
}

// eventTranslator maps upstream frames to client events. It owns the
// assistant transcript buffer, which accumulates audio_transcript deltas and
// is flushed (and cleared) on the matching done frame. Only the session's
// outbound loop touches it.
type eventTranslator struct {
	transcript strings.Builder
}

// translate returns the client event for one upstream frame, or ok=false when
// the frame produces no client-visible event (deltas being buffered, frame
// types the widget has no use for, or unparsable payloads).
func (t *eventTranslator) translate(frame []byte) (clientEvent, bool) {
	var f upstreamFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, false
	}

	switch f.Type {
	case "conversation.item.input_audio_transcription.completed":
		if f.Transcript == "" {
			return nil, false
		}
		return transcriptUserEvent{Type: "transcript_user", Text: f.Transcript}, true

	case "response.audio_transcript.delta":
		t.transcript.WriteString(f.Delta)
		return nil, false

	case "response.audio_transcript.done":
		if t.transcript.Len() == 0 {
			return nil, false
		}
		text := t.transcript.String()
		t.transcript.Reset()
		return transcriptAssistantEvent{Type: "transcript_assistant", Text: text}, true

	case "response.audio.delta":
		if f.Delta == "" {
			return nil, false
		}
		return audioChunkEvent{Type: "audio_chunk", Audio: f.Delta}, true

	case "response.done":
		return responseDoneEvent{Type: "response_done"}, true

	case "input_audio_buffer.speech_started":
		return speechStartedEvent{Type: "speech_started"}, true

	case "input_audio_buffer.speech_stopped":
		return speechStoppedEvent{Type: "speech_stopped"}, true

	case "error":
		msg := f.Error.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return newErrorEvent(msg), true
	}

	return nil, false
}
