package app

import (
	"fmt"
	"sync"
	"time"
)

// Clip identifies which stream is (or was last) playing on a leg.
type Clip int

const (
	ClipNone Clip = iota
	ClipSignal
	ClipSilence
)

// String returns the string representation of Clip.
func (c Clip) String() string {
	switch c {
	case ClipNone:
		return "none"
	case ClipSignal:
		return "signal"
	case ClipSilence:
		return "silence"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Call holds the shared state of one bridged call. All field access is
// serialized by the per-call mutex, held for the duration of one event
// reaction.
type Call struct {
	ID string

	// RecordEnabled is decided once, at inbound answer time.
	RecordEnabled bool
	// PlaybackCount counts completed plays of the reference clip.
	PlaybackCount int
	// Iterations and Tail are copied from configuration at answer time.
	Iterations int
	Tail       float64

	// Recordings maps "caller"/"callee" to the recording file path.
	Recordings map[string]string

	legs []*Leg
	mu   sync.Mutex
}

// TailDelay returns the linger before stopping a recording.
func (c *Call) TailDelay() time.Duration {
	return time.Duration(c.Tail * float64(time.Second))
}

// Leg holds the per-session state of one side of a bridge.
type Leg struct {
	ID      string
	Inbound bool
	Clip    Clip
	// Recorded defaults to true so that "both legs recorded" checks do
	// not block on a leg that was never asked to record.
	Recorded bool
	Hungup   bool

	call   *Call
	handle MediaLeg
}

// Call returns the owning call of this leg.
func (l *Leg) Call() *Call { return l.call }

// Handle returns the host-provided media handle for this leg.
func (l *Leg) Handle() MediaLeg { return l.handle }

// MediaLeg is the host-provided handle for one call leg. Media commands
// are fire-and-forget requests to the underlying switch; the
// orchestration does not track or cancel them once issued.
type MediaLeg interface {
	ID() string
	CallID() string
	IsInbound() bool

	Answer()
	Playback(stream string)
	StopApp()
	StartRecord(path string, stereo bool)
	StopRecord(delay time.Duration)
	ScheduleHangup(delay time.Duration)

	// Get reads a field from the event payload that fired for this leg,
	// e.g. the played or recorded file path.
	Get(field string) string
	// SetVar stores a leg-scoped flag the host persists across events.
	SetVar(key, value string)
}

// Event enumerates the call-leg events the orchestrator reacts to.
type Event int

const (
	EventChannelCreate Event = iota
	EventChannelPark
	EventChannelAnswer
	EventPlaybackStart
	EventPlaybackStop
	EventRecordStart
	EventRecordStop
	EventChannelDestroy
)

// String returns the event name as produced by the switch.
func (e Event) String() string {
	switch e {
	case EventChannelCreate:
		return "CHANNEL_CREATE"
	case EventChannelPark:
		return "CHANNEL_PARK"
	case EventChannelAnswer:
		return "CHANNEL_ANSWER"
	case EventPlaybackStart:
		return "PLAYBACK_START"
	case EventPlaybackStop:
		return "PLAYBACK_STOP"
	case EventRecordStart:
		return "RECORD_START"
	case EventRecordStop:
		return "RECORD_STOP"
	case EventChannelDestroy:
		return "CHANNEL_DESTROY"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}
