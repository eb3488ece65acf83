package protocol

import "fmt"

// Tag identifies a message kind on the wire
type Tag byte

// Client to server tags
const (
	TagAudioSegment  Tag = 0x01
	TagPauseRequest  Tag = 0x02
	TagResumeRequest Tag = 0x03
	TagInterruptTTS  Tag = 0x04
)

// Server to client tags
const (
	TagReady         Tag = 0x10
	TagTextDisplay   Tag = 0x11
	TagErrorNotice   Tag = 0x12
	TagTTSAudioChunk Tag = 0x13
	TagTTSEnd        Tag = 0x14
	TagSummaryText   Tag = 0x15
)

// Orchestrator <-> server tags, carried on the local channel only
const (
	TagSessionStart      Tag = 0x20
	TagSessionReady      Tag = 0x21
	TagTranscript        Tag = 0x22
	TagReplyText         Tag = 0x23
	TagSessionEnd        Tag = 0x24
	TagFeedback          Tag = 0x25
	TagSummary           Tag = 0x26
	TagOrchestratorError Tag = 0x27
)

// Range is the ownership partition a tag belongs to
type Range int

const (
	RangeUnknown Range = iota
	RangeClientToServer
	RangeServerToClient
	RangeOrchestrator
)

func (r Range) String() string {
	switch r {
	case RangeClientToServer:
		return "client->server"
	case RangeServerToClient:
		return "server->client"
	case RangeOrchestrator:
		return "orchestrator<->server"
	default:
		return "unknown"
	}
}

// TagNames maps tags to human-readable names for logging
var TagNames = map[Tag]string{
	TagAudioSegment:      "AUDIO_SEGMENT",
	TagPauseRequest:      "PAUSE_REQUEST",
	TagResumeRequest:     "RESUME_REQUEST",
	TagInterruptTTS:      "INTERRUPT_TTS",
	TagReady:             "READY",
	TagTextDisplay:       "TEXT_DISPLAY",
	TagErrorNotice:       "ERROR_NOTICE",
	TagTTSAudioChunk:     "TTS_AUDIO_CHUNK",
	TagTTSEnd:            "TTS_END",
	TagSummaryText:       "SUMMARY_TEXT",
	TagSessionStart:      "SESSION_START",
	TagSessionReady:      "SESSION_READY",
	TagTranscript:        "TRANSCRIPT",
	TagReplyText:         "REPLY_TEXT",
	TagSessionEnd:        "SESSION_END",
	TagFeedback:          "FEEDBACK",
	TagSummary:           "SUMMARY",
	TagOrchestratorError: "ORCHESTRATOR_ERROR",
}

func (t Tag) String() string {
	if name, ok := TagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TAG(0x%02x)", byte(t))
}

// Known reports whether the tag is part of the protocol
func (t Tag) Known() bool {
	_, ok := TagNames[t]
	return ok
}

// Range returns the ownership range of a known tag
func (t Tag) Range() Range {
	if !t.Known() {
		return RangeUnknown
	}
	switch {
	case t >= 0x01 && t <= 0x0F:
		return RangeClientToServer
	case t >= 0x10 && t <= 0x1F:
		return RangeServerToClient
	case t >= 0x20 && t <= 0x2F:
		return RangeOrchestrator
	}
	return RangeUnknown
}

// Message is the closed set of protocol messages. Only types in this package implement it.
type Message interface {
	Tag() Tag
	isMessage()
}

// AudioSegment is a complete user utterance, 16 kHz mono 16-bit
type AudioSegment struct {
	Samples []int16
}

// PauseRequest asks the server to stop processing speech and replies
type PauseRequest struct{}

// ResumeRequest lifts a previous PauseRequest
type ResumeRequest struct{}

// InterruptTTS signals a barge-in: the current reply must stop streaming
type InterruptTTS struct{}

// Ready acknowledges the session handshake to the client
type Ready struct{}

// TextDisplay carries text for the client to show
type TextDisplay struct {
	Text string
}

// ErrorNotice carries a user-facing error description
type ErrorNotice struct {
	Text string
}

// TTSAudioChunk is one slice of synthesized reply audio, 16 kHz mono 16-bit
type TTSAudioChunk struct {
	Samples []int16
}

// TTSEnd marks the end of one reply's audio. Sent exactly once per reply.
type TTSEnd struct{}

// SummaryText carries the end-of-session summary for the client
type SummaryText struct {
	Text string
}

// SessionStart opens a session. Config is opaque to the router; see SessionConfig.
type SessionStart struct {
	Config []byte
}

// SessionReady acknowledges SessionStart to the orchestrator
type SessionReady struct{}

// Transcript is the text of one user utterance
type Transcript struct {
	Text string
}

// ReplyText is the text-generation backend's reply to speak
type ReplyText struct {
	Text string
}

// SessionEnd closes the session from the orchestrator side
type SessionEnd struct{}

// Feedback is coaching text to display on the client
type Feedback struct {
	Text string
}

// Summary is the session summary produced by the orchestrator
type Summary struct {
	Text string
}

// OrchestratorError reports an orchestrator-side failure to show to the user
type OrchestratorError struct {
	Text string
}

func (AudioSegment) Tag() Tag      { return TagAudioSegment }
func (PauseRequest) Tag() Tag      { return TagPauseRequest }
func (ResumeRequest) Tag() Tag     { return TagResumeRequest }
func (InterruptTTS) Tag() Tag      { return TagInterruptTTS }
func (Ready) Tag() Tag             { return TagReady }
func (TextDisplay) Tag() Tag       { return TagTextDisplay }
func (ErrorNotice) Tag() Tag       { return TagErrorNotice }
func (TTSAudioChunk) Tag() Tag     { return TagTTSAudioChunk }
func (TTSEnd) Tag() Tag            { return TagTTSEnd }
func (SummaryText) Tag() Tag       { return TagSummaryText }
func (SessionStart) Tag() Tag      { return TagSessionStart }
func (SessionReady) Tag() Tag      { return TagSessionReady }
func (Transcript) Tag() Tag        { return TagTranscript }
func (ReplyText) Tag() Tag         { return TagReplyText }
func (SessionEnd) Tag() Tag        { return TagSessionEnd }
func (Feedback) Tag() Tag          { return TagFeedback }
func (Summary) Tag() Tag           { return TagSummary }
func (OrchestratorError) Tag() Tag { return TagOrchestratorError }

func (AudioSegment) isMessage()      {}
func (PauseRequest) isMessage()      {}
func (ResumeRequest) isMessage()     {}
func (InterruptTTS) isMessage()      {}
func (Ready) isMessage()             {}
func (TextDisplay) isMessage()       {}
func (ErrorNotice) isMessage()       {}
func (TTSAudioChunk) isMessage()     {}
func (TTSEnd) isMessage()            {}
func (SummaryText) isMessage()       {}
func (SessionStart) isMessage()      {}
func (SessionReady) isMessage()      {}
func (Transcript) isMessage()        {}
func (ReplyText) isMessage()         {}
func (SessionEnd) isMessage()        {}
func (Feedback) isMessage()          {}
func (Summary) isMessage()           {}
func (OrchestratorError) isMessage() {}
