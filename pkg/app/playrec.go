// Package app implements the dual-leg play/record orchestration used
// for reproducible call-quality tests: a reference clip is played on
// one leg of a bridged call while both legs are recorded, and a single
// completion callback reports the resulting recording paths.
package app

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"playrec/pkg/metrics"
)

// ErrConfiguration marks invalid orchestrator configuration, rejected
// at construction time before any call is processed.
var ErrConfiguration = errors.New("invalid playrec configuration")

const hangupDelay = 500 * time.Millisecond

// Config is the orchestration surface consumed at construction.
type Config struct {
	// Host identifies the switch the recordings live on, reported
	// through the completion callback.
	Host string
	// AudioFile is the full path of the reference clip on the switch.
	AudioFile string
	// Silence is the stream played on the peer leg as a
	// synchronization signal. Defaults to an infinite silence stream.
	Silence string
	// RecordingsDir is where per-leg recording files are written.
	RecordingsDir string
	// ClipLength is the measured duration of the reference clip in
	// seconds.
	ClipLength float64
	// Iterations is the number of times the clip is played. Ignored
	// when TargetDuration is set.
	Iterations int
	// TargetDuration, when positive, derives Iterations and the
	// trailing recording linger from the clip length.
	TargetDuration float64
	// Period is the recording admission rate in calls per recording;
	// 1 records every call, 0 disables recording.
	Period int
	// Stereo selects stereo recording files.
	Stereo bool
	// Callback receives the recording paths of each completed call.
	Callback func(RecInfo)
}

// PlayRec is the event-reaction state machine. It holds no per-call
// state of its own; every reaction reads and mutates records owned by
// the registry under the call's reaction lock.
type PlayRec struct {
	log      *logrus.Entry
	reg      *Registry
	gate     *RateGate
	sink     *CompletionSink
	observer *metrics.Metrics

	host       string
	audioFile  string
	silence    string
	recsDir    string
	clipLength float64
	stereo     bool
	iterations int
	tail       float64

	handlers map[Event]func(*Call, *Leg)
}

// New validates the configuration and builds the orchestrator. The
// observer may be nil.
func New(cfg Config, log *logrus.Entry, observer *metrics.Metrics) (*PlayRec, error) {
	if cfg.AudioFile == "" {
		return nil, fmt.Errorf("%w: reference clip not set", ErrConfiguration)
	}
	if cfg.ClipLength <= 0 {
		return nil, fmt.Errorf("%w: clip length must be positive", ErrConfiguration)
	}
	if cfg.Period > 0 && cfg.RecordingsDir == "" {
		return nil, fmt.Errorf("%w: recording enabled but no recordings directory", ErrConfiguration)
	}
	silence := cfg.Silence
	if silence == "" {
		silence = "silence_stream://0"
	}

	p := &PlayRec{
		log:        log,
		reg:        NewRegistry(),
		gate:       NewRateGate(cfg.Period),
		sink:       NewCompletionSink(cfg.Callback, log),
		observer:   observer,
		host:       cfg.Host,
		audioFile:  cfg.AudioFile,
		silence:    silence,
		recsDir:    cfg.RecordingsDir,
		clipLength: cfg.ClipLength,
		stereo:     cfg.Stereo,
		iterations: cfg.Iterations,
		tail:       1.0,
	}
	if p.iterations <= 0 {
		p.iterations = 1
	}
	if cfg.TargetDuration > 0 {
		p.SetDuration(cfg.TargetDuration)
	}

	// static dispatch table, built once
	p.handlers = map[Event]func(*Call, *Leg){
		EventChannelCreate:  p.onCreate,
		EventChannelPark:    p.onPark,
		EventChannelAnswer:  p.onAnswer,
		EventPlaybackStart:  p.onPlaybackStart,
		EventPlaybackStop:   p.onPlaybackStop,
		EventRecordStart:    p.onRecordStart,
		EventRecordStop:     p.onRecordStop,
		EventChannelDestroy: p.onDestroy,
	}
	return p, nil
}

// Registry exposes the call registry, e.g. for gauge refresh on scrape.
func (p *PlayRec) Registry() *Registry { return p.reg }

// SplitDuration derives the clip iteration count and the trailing
// recording linger from a target call duration. The tail is clamped to
// a minimum of one second so a trailing stop-record command is never
// issued with near-zero delay.
func SplitDuration(duration, clipLength float64) (int, float64) {
	iterations := math.Floor(duration / clipLength)
	tail := duration - iterations*clipLength
	if tail < 1.0 {
		tail = 1.0
	}
	return int(iterations), tail
}

// SetDuration adjusts the play count and tail for a new target call
// duration.
func (p *PlayRec) SetDuration(seconds float64) {
	p.iterations, p.tail = SplitDuration(seconds, p.clipLength)
}

// OnEvent dispatches one delivered leg event to its reaction, holding
// the call's reaction lock for the whole reaction. Events for distinct
// calls run fully in parallel.
func (p *PlayRec) OnEvent(ev Event, h MediaLeg) {
	fn, ok := p.handlers[ev]
	if !ok {
		return
	}
	call := p.reg.GetOrCreateCall(h.CallID())
	call.mu.Lock()
	defer call.mu.Unlock()
	leg := p.reg.GetOrCreateLeg(h, call)
	fn(call, leg)
}

// onCreate marks outbound legs to not be hung up automatically by the
// originator.
func (p *PlayRec) onCreate(_ *Call, leg *Leg) {
	if !leg.Inbound {
		leg.handle.SetVar("noautohangup", "true")
	}
}

// onPark answers the inbound leg once it is parked.
func (p *PlayRec) onPark(_ *Call, leg *Leg) {
	if leg.Inbound {
		leg.handle.Answer()
	}
}

func (p *PlayRec) onAnswer(call *Call, leg *Leg) {
	if leg.Inbound {
		if p.observer != nil {
			p.observer.IncCallsAnswered()
		}
		if p.gate.ShouldRecord() {
			path := fmt.Sprintf("%s/callee_%s.wav", p.recsDir, leg.ID)
			leg.handle.StartRecord(path, p.stereo)
			call.Recordings["callee"] = path
			call.RecordEnabled = true
			if p.observer != nil {
				p.observer.IncRecordingsStarted()
			}
		}
		// set call length
		call.Iterations = p.iterations
		call.Tail = p.tail
		return
	}

	if call.RecordEnabled {
		path := fmt.Sprintf("%s/caller_%s.wav", p.recsDir, leg.ID)
		leg.handle.StartRecord(path, p.stereo)
		call.Recordings["caller"] = path
	} else {
		p.triggerPlayback(call, leg)
	}
}

func (p *PlayRec) onPlaybackStart(call *Call, leg *Leg) {
	fp := leg.handle.Get("Playback-File-Path")
	p.log.Debugf("playing file '%s' for session '%s'", fp, leg.ID)

	switch fp {
	case p.audioFile:
		leg.Clip = ClipSignal
	case p.silence:
		// silence confirmed running: now the peer may start the clip,
		// so the two legs never play the reference simultaneously
		leg.Clip = ClipSilence
		peer, err := p.reg.PeerOf(leg)
		if err != nil {
			p.log.Warnf("silence started on '%s' before bridge: %v", leg.ID, err)
			return
		}
		peer.handle.StopApp()
		peer.handle.Playback(p.audioFile)
	}
}

// onPlaybackStop either triggers another play of the signal if more
// iterations are required, stops both recordings, or hangs up the call.
func (p *PlayRec) onPlaybackStop(call *Call, leg *Leg) {
	p.log.Debugf("finished playing '%s' for session '%s'",
		leg.handle.Get("Playback-File-Path"), leg.ID)
	if leg.Clip != ClipSignal {
		return
	}

	call.PlaybackCount++
	if call.PlaybackCount < call.Iterations {
		leg.handle.Playback(p.silence)
		return
	}

	// no more clips are expected to play
	if call.RecordEnabled {
		tail := call.TailDelay()
		leg.handle.StopRecord(tail)
		peer, err := p.reg.PeerOf(leg)
		if err != nil {
			p.log.Warnf("stopping recording on '%s' without a peer: %v", leg.ID, err)
			return
		}
		// infinite silence must be manually killed
		peer.handle.StopApp()
		peer.handle.StopRecord(tail)
	} else {
		p.log.Debugf("sending hangup for session '%s'", leg.ID)
		leg.handle.ScheduleHangup(hangupDelay)
	}
}

// triggerPlayback starts clip playback on the given leg indirectly:
// the peer first plays an infinite silence stream, whose playback-start
// event in turn starts the reference clip on this leg.
func (p *PlayRec) triggerPlayback(call *Call, leg *Leg) {
	peer, err := p.reg.PeerOf(leg)
	if err != nil {
		p.log.Warnf("cannot trigger playback for '%s': %v", leg.ID, err)
		return
	}
	peer.handle.Playback(p.silence)
	peer.Clip = ClipSilence
	// start counting clips played from here
	call.PlaybackCount = 0
}

func (p *PlayRec) onRecordStart(call *Call, leg *Leg) {
	p.log.Debugf("recording file '%s' for session '%s'",
		leg.handle.Get("Record-File-Path"), leg.ID)
	leg.Recorded = false

	// start signal playback from the caller side
	if !leg.Inbound {
		p.triggerPlayback(call, leg)
	}
}

func (p *PlayRec) onRecordStop(call *Call, leg *Leg) {
	p.log.Debugf("finished recording file '%s' for session '%s'",
		leg.handle.Get("Record-File-Path"), leg.ID)
	leg.Recorded = true
	if leg.Hungup {
		p.log.Warnf("session '%s' was already hung up prior to recording completion", leg.ID)
		if p.observer != nil {
			p.observer.IncLateRecordStops()
		}
	}

	peerRecorded := true
	if peer, err := p.reg.PeerOf(leg); err == nil {
		peerRecorded = peer.Recorded
	}
	if !peerRecorded {
		return
	}

	// far end already finished: tear the call down and report
	p.log.Debugf("sending hangup for session '%s'", leg.ID)
	leg.handle.ScheduleHangup(hangupDelay)

	caller, callee := call.Recordings["caller"], call.Recordings["callee"]
	if caller != "" && callee != "" {
		p.sink.Deliver(RecInfo{Host: p.host, Caller: caller, Callee: callee})
		if p.observer != nil {
			p.observer.IncCompletions()
		}
	} else {
		p.log.Debugf("call '%s' finished recording without both paths, dropping", call.ID)
	}
	// eviction in the same critical section makes delivery exactly-once
	p.reg.Remove(call)
}

// onDestroy drives forced eviction for calls that end before the
// record-stop path could evict them.
func (p *PlayRec) onDestroy(call *Call, leg *Leg) {
	leg.Hungup = true

	for _, other := range call.legs {
		if !other.Hungup {
			return
		}
		if !other.Recorded {
			// a record-stop is still expected, let it finish the call
			return
		}
	}
	p.reg.Remove(call)
}
