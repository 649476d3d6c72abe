package relay

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Client commands form a closed set; dispatch in the session switches over
// these variants so a new action cannot be forwarded without being handled.
type command interface{ isCommand() }

type setAgentCommand struct {
	AgentID *int64
}

type connectCommand struct{}

type promptCommand struct {
	Text string
}

type audioChunkCommand struct {
	Audio string // base64 PCM16 payload, forwarded verbatim
}

type commitCommand struct{}

type unknownCommand struct {
	Action string
}

func (setAgentCommand) isCommand()   {}
func (connectCommand) isCommand()    {}
func (promptCommand) isCommand()     {}
func (audioChunkCommand) isCommand() {}
func (commitCommand) isCommand()     {}
func (unknownCommand) isCommand()    {}

// parseCommand decodes one inbound client message. A non-JSON or non-object
// payload is a parse error; an unrecognized action is not (it parses to
// unknownCommand so the session can log and ignore it).
func parseCommand(data []byte) (command, error) {
	// json.Unmarshal accepts a bare null into a struct, so object-ness has to
	// be checked up front.
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("message must be a JSON object")
	}

	var env struct {
		Action  string `json:"action"`
		AgentID *int64 `json:"agent_id"`
		Prompt  string `json:"prompt"`
		Audio   string `json:"audio"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Action {
	case "set_agent":
		return setAgentCommand{AgentID: env.AgentID}, nil
	case "connect":
		return connectCommand{}, nil
	case "prompt":
		return promptCommand{Text: env.Prompt}, nil
	case "audio_chunk":
		return audioChunkCommand{Audio: env.Audio}, nil
	case "commit":
		return commitCommand{}, nil
	default:
		return unknownCommand{Action: env.Action}, nil
	}
}
