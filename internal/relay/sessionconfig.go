package relay

import "strconv"

// Defaults applied when an agent omits or misconfigures its VAD parameters.
const (
	defaultVADThreshold     = 0.5
	defaultPrefixPaddingMs  = 300
	defaultSilenceDuration  = 500
	transcriptionModel      = "whisper-1"
	audioFormatPCM16        = "pcm16"
	turnDetectionServerVAD  = "server_vad"
)

// reservedSessionKeys are the session.update keys owned by the relay. Extra
// agent parameters never overwrite them; colliding extras are dropped.
var reservedSessionKeys = map[string]bool{
	"type":                      true,
	"modalities":                true,
	"input_audio_format":        true,
	"output_audio_format":       true,
	"input_audio_transcription": true,
	"turn_detection":            true,
	"voice":                     true,
	"instructions":              true,
}

// sessionInitFrame builds the session.update frame that primes a fresh
// upstream connection. agent may be nil (custom prompt mode); in that case
// fallbackInstructions, when non-empty, is applied instead of agent
// instructions.
func sessionInitFrame(agent *AgentConfig, fallbackInstructions string) map[string]any {
	session := map[string]any{
		"modalities":                []string{"audio", "text"},
		"input_audio_format":        audioFormatPCM16,
		"output_audio_format":       audioFormatPCM16,
		"input_audio_transcription": map[string]any{"model": transcriptionModel},
		"turn_detection":            turnDetection(agent),
	}

	instructions := fallbackInstructions
	if agent != nil {
		if agent.Instructions != "" {
			instructions = agent.Instructions
		}
		if agent.Voice != "" {
			session["voice"] = agent.Voice
		}
		for k, v := range agent.Extra {
			if reservedSessionKeys[k] {
				continue
			}
			session[k] = v
		}
	}
	if instructions != "" {
		session["instructions"] = instructions
	}

	return map[string]any{
		"type":    "session.update",
		"session": session,
	}
}

func turnDetection(agent *AgentConfig) map[string]any {
	threshold := defaultVADThreshold
	prefixPadding := defaultPrefixPaddingMs
	silenceDuration := defaultSilenceDuration

	if agent != nil {
		if v, err := strconv.ParseFloat(agent.NoiseThreshold, 64); err == nil {
			threshold = v
		}
		if agent.PrefixPaddingMs > 0 {
			prefixPadding = agent.PrefixPaddingMs
		}
		if agent.SilenceDurationMs > 0 {
			silenceDuration = agent.SilenceDurationMs
		}
	}

	return map[string]any{
		"type":                turnDetectionServerVAD,
		"threshold":           threshold,
		"prefix_padding_ms":   prefixPadding,
		"silence_duration_ms": silenceDuration,
	}
}

// sessionInstructionsFrame builds the live session.update sent when a prompt
// command arrives on an already-connected session.
func sessionInstructionsFrame(instructions string) map[string]any {
	return map[string]any{
		"type":    "session.update",
		"session": map[string]any{"instructions": instructions},
	}
}
