package httpapi

import (
	"fmt"
	"net/http"

	"github.com/voxbridge/voxbridge/internal/store"
)

// handleAgentEmbed returns the snippet a customer pastes into their page,
// plus the relay URL the widget will connect to.
func (r *Router) handleAgentEmbed(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	id, ok := pathID(w, req)
	if !ok {
		return
	}

	agent, err := r.store.GetAgentForUser(req.Context(), id, authUser.ID)
	if err != nil {
		if store.IsNotFound(err) {
			http.Error(w, `{"error": "agent not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	embedCode := fmt.Sprintf(
		`<script src="%s/widget.js" data-agent-id="%d" async></script>`,
		r.cfg.PublicBaseURL, agent.ID,
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":   agent.ID,
		"domain":     agent.Domain,
		"embed_code": embedCode,
		"ws_url":     wsURLFromPublicBase(r.cfg.PublicBaseURL) + "/ws",
	})
}

// handleWidgetScript serves the embeddable widget loader. The script reads
// its agent id from the script tag, opens the relay socket and bridges the
// page microphone to it.
func (r *Router) handleWidgetScript(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")

	script := fmt.Sprintf(widgetScript, wsURLFromPublicBase(r.cfg.PublicBaseURL)+"/ws")
	_, _ = w.Write([]byte(script))
}

// widgetScript is the embeddable client. %q is replaced with the relay URL.
const widgetScript = `(function () {
  "use strict";

  var RELAY_URL = %q;
  var current = document.currentScript;
  var agentId = current ? parseInt(current.getAttribute("data-agent-id"), 10) : NaN;

  var ws = null;
  var audioCtx = null;
  var processor = null;
  var playQueue = [];
  var playing = false;

  function b64ToBytes(b64) {
    var bin = atob(b64);
    var bytes = new Uint8Array(bin.length);
    for (var i = 0; i < bin.length; i++) bytes[i] = bin.charCodeAt(i);
    return bytes;
  }

  function bytesToB64(bytes) {
    var bin = "";
    for (var i = 0; i < bytes.length; i++) bin += String.fromCharCode(bytes[i]);
    return btoa(bin);
  }

  function floatToPCM16(float32) {
    var pcm = new Int16Array(float32.length);
    for (var i = 0; i < float32.length; i++) {
      var s = Math.max(-1, Math.min(1, float32[i]));
      pcm[i] = s < 0 ? s * 0x8000 : s * 0x7fff;
    }
    return new Uint8Array(pcm.buffer);
  }

  function playNext() {
    if (playing || playQueue.length === 0 || !audioCtx) return;
    playing = true;
    var bytes = playQueue.shift();
    var pcm = new Int16Array(bytes.buffer);
    var buf = audioCtx.createBuffer(1, pcm.length, 24000);
    var ch = buf.getChannelData(0);
    for (var i = 0; i < pcm.length; i++) ch[i] = pcm[i] / 0x8000;
    var src = audioCtx.createBufferSource();
    src.buffer = buf;
    src.connect(audioCtx.destination);
    src.onended = function () { playing = false; playNext(); };
    src.start();
  }

  function emit(name, detail) {
    document.dispatchEvent(new CustomEvent("voxbridge:" + name, { detail: detail }));
  }

  function startMic() {
    navigator.mediaDevices.getUserMedia({ audio: true }).then(function (stream) {
      audioCtx = new (window.AudioContext || window.webkitAudioContext)({ sampleRate: 24000 });
      var source = audioCtx.createMediaStreamSource(stream);
      processor = audioCtx.createScriptProcessor(4096, 1, 1);
      processor.onaudioprocess = function (e) {
        if (!ws || ws.readyState !== WebSocket.OPEN) return;
        var pcm = floatToPCM16(e.inputBuffer.getChannelData(0));
        ws.send(JSON.stringify({ action: "audio_chunk", audio: bytesToB64(pcm) }));
      };
      source.connect(processor);
      processor.connect(audioCtx.destination);
    }).catch(function (err) {
      emit("error", { error: "microphone access denied: " + err.message });
    });
  }

  function connect() {
    ws = new WebSocket(RELAY_URL);
    ws.onopen = function () {
      if (!isNaN(agentId)) ws.send(JSON.stringify({ action: "set_agent", agent_id: agentId }));
      ws.send(JSON.stringify({ action: "connect" }));
    };
    ws.onmessage = function (msg) {
      var ev;
      try { ev = JSON.parse(msg.data); } catch (e) { return; }
      if (ev.type === "connected") {
        startMic();
      } else if (ev.type === "audio_chunk") {
        playQueue.push(b64ToBytes(ev.audio));
        playNext();
      }
      emit(ev.type, ev);
    };
    ws.onclose = function () {
      if (processor) processor.disconnect();
      if (audioCtx) audioCtx.close();
      emit("closed", {});
    };
  }

  window.VoxBridge = {
    start: connect,
    stop: function () { if (ws) ws.close(); },
    prompt: function (text) {
      if (ws && ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify({ action: "prompt", prompt: text }));
    },
    commit: function () {
      if (ws && ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify({ action: "commit" }));
    }
  };
})();
`
