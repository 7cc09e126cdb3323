package app

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAudio   = "/sounds/ivr/8000/clip.wav"
	testSilence = "silence_stream://0"
)

// fakeLeg implements MediaLeg and records every issued media command.
type fakeLeg struct {
	mu      sync.Mutex
	id      string
	callID  string
	inbound bool
	fields  map[string]string
	cmds    []string
}

func newFakeLeg(id, callID string, inbound bool) *fakeLeg {
	return &fakeLeg{id: id, callID: callID, inbound: inbound, fields: map[string]string{}}
}

func (f *fakeLeg) push(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
}

func (f *fakeLeg) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cmds))
	copy(out, f.cmds)
	return out
}

func (f *fakeLeg) setField(k, v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields[k] = v
}

func (f *fakeLeg) ID() string      { return f.id }
func (f *fakeLeg) CallID() string  { return f.callID }
func (f *fakeLeg) IsInbound() bool { return f.inbound }

func (f *fakeLeg) Answer()                { f.push("answer") }
func (f *fakeLeg) Playback(stream string) { f.push("playback " + stream) }
func (f *fakeLeg) StopApp()               { f.push("break") }
func (f *fakeLeg) SetVar(k, v string)     { f.push(fmt.Sprintf("setvar %s=%s", k, v)) }
func (f *fakeLeg) StartRecord(path string, stereo bool) {
	f.push("record " + path)
}
func (f *fakeLeg) StopRecord(delay time.Duration) {
	f.push(fmt.Sprintf("stoprecord %s", delay))
}
func (f *fakeLeg) ScheduleHangup(delay time.Duration) {
	f.push(fmt.Sprintf("hangup %s", delay))
}
func (f *fakeLeg) Get(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields[field]
}

func quietLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("name", "test")
}

func newTestApp(t *testing.T, cfg Config) *PlayRec {
	t.Helper()
	if cfg.AudioFile == "" {
		cfg.AudioFile = testAudio
	}
	if cfg.ClipLength == 0 {
		cfg.ClipLength = 4.25
	}
	if cfg.Host == "" {
		cfg.Host = "fs-test"
	}
	if cfg.Period > 0 && cfg.RecordingsDir == "" {
		cfg.RecordingsDir = "/recs"
	}
	p, err := New(cfg, quietLog(), nil)
	require.NoError(t, err)
	return p
}

// bridge dispatches the setup events shared by every scenario: create,
// park and both answers.
func bridge(p *PlayRec, in, out *fakeLeg) {
	p.OnEvent(EventChannelCreate, out)
	p.OnEvent(EventChannelPark, in)
	p.OnEvent(EventChannelAnswer, in)
	p.OnEvent(EventChannelAnswer, out)
}

// playOnce walks the trigger bounce to one completed reference play on
// the out leg: silence starts on in, which starts the clip on out.
func playOnce(p *PlayRec, in, out *fakeLeg) {
	in.setField("Playback-File-Path", testSilence)
	p.OnEvent(EventPlaybackStart, in)
	out.setField("Playback-File-Path", testAudio)
	p.OnEvent(EventPlaybackStart, out)
	p.OnEvent(EventPlaybackStop, out)
}

func TestConfigValidation(t *testing.T) {
	log := quietLog()

	_, err := New(Config{ClipLength: 4.25}, log, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = New(Config{AudioFile: testAudio}, log, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = New(Config{AudioFile: testAudio, ClipLength: 4.25, Period: 1}, log, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = New(Config{AudioFile: testAudio, ClipLength: 4.25, Period: 1, RecordingsDir: "/recs"}, log, nil)
	assert.NoError(t, err)
}

func TestSplitDuration(t *testing.T) {
	it, tail := SplitDuration(10, 4.25)
	assert.Equal(t, 2, it)
	assert.InDelta(t, 1.5, tail, 1e-9)

	it, tail = SplitDuration(4, 4.25)
	assert.Equal(t, 0, it)
	assert.InDelta(t, 4.0, tail, 1e-9)

	// remainder below one second is clamped
	it, tail = SplitDuration(9, 4.25)
	assert.Equal(t, 2, it)
	assert.InDelta(t, 1.0, tail, 1e-9)
}

func TestUnrecordedCallHangsUpAfterFinalPlay(t *testing.T) {
	var delivered []RecInfo
	p := newTestApp(t, Config{
		Iterations: 1,
		Period:     0, // never record
		Callback:   func(info RecInfo) { delivered = append(delivered, info) },
	})
	in := newFakeLeg("in-1", "call-1", true)
	out := newFakeLeg("out-1", "call-1", false)

	bridge(p, in, out)
	assert.Contains(t, out.commands(), "setvar noautohangup=true")
	assert.Contains(t, in.commands(), "answer")
	// outbound answer triggers silence on the peer, not on itself
	assert.Contains(t, in.commands(), "playback "+testSilence)

	playOnce(p, in, out)
	assert.Contains(t, out.commands(), "playback "+testAudio)
	assert.Contains(t, out.commands(), "hangup 500ms")

	assert.Empty(t, delivered)
	for _, cmd := range append(in.commands(), out.commands()...) {
		assert.NotContains(t, cmd, "record")
	}
}

func TestPlaybackLoopsUntilIterations(t *testing.T) {
	p := newTestApp(t, Config{Iterations: 3})
	in := newFakeLeg("in-1", "call-1", true)
	out := newFakeLeg("out-1", "call-1", false)

	bridge(p, in, out)
	playOnce(p, in, out)

	call := p.reg.GetOrCreateCall("call-1")
	assert.Equal(t, 1, call.PlaybackCount)
	// one more play required: the leg re-enters the silence bounce
	assert.Contains(t, out.commands(), "playback "+testSilence)
	assert.NotContains(t, out.commands(), "hangup 500ms")
}

func TestSilenceStopDoesNotCount(t *testing.T) {
	p := newTestApp(t, Config{Iterations: 2})
	in := newFakeLeg("in-1", "call-1", true)
	out := newFakeLeg("out-1", "call-1", false)

	bridge(p, in, out)
	in.setField("Playback-File-Path", testSilence)
	p.OnEvent(EventPlaybackStart, in)
	p.OnEvent(EventPlaybackStop, in)

	call := p.reg.GetOrCreateCall("call-1")
	assert.Equal(t, 0, call.PlaybackCount)
}

func TestRecordedCallCompletesOnce(t *testing.T) {
	for _, inFirst := range []bool{true, false} {
		name := "outbound stops last"
		if !inFirst {
			name = "inbound stops last"
		}
		t.Run(name, func(t *testing.T) {
			var delivered []RecInfo
			p := newTestApp(t, Config{
				Iterations: 1,
				Period:     1,
				Callback:   func(info RecInfo) { delivered = append(delivered, info) },
			})
			in := newFakeLeg("in-1", "call-1", true)
			out := newFakeLeg("out-1", "call-1", false)

			bridge(p, in, out)
			assert.Contains(t, in.commands(), "record /recs/callee_in-1.wav")
			assert.Contains(t, out.commands(), "record /recs/caller_out-1.wav")

			// record-start on the caller kicks off the playback bounce
			p.OnEvent(EventRecordStart, out)
			p.OnEvent(EventRecordStart, in)
			assert.Contains(t, in.commands(), "playback "+testSilence)

			playOnce(p, in, out)
			assert.Contains(t, out.commands(), "stoprecord 1s")
			assert.Contains(t, in.commands(), "stoprecord 1s")
			assert.Contains(t, in.commands(), "break")
			assert.Empty(t, delivered)

			first, second := in, out
			if !inFirst {
				first, second = out, in
			}
			p.OnEvent(EventRecordStop, first)
			assert.Empty(t, delivered)
			p.OnEvent(EventRecordStop, second)

			require.Len(t, delivered, 1)
			assert.Equal(t, "fs-test", delivered[0].Host)
			assert.Equal(t, "/recs/caller_out-1.wav", delivered[0].Caller)
			assert.Equal(t, "/recs/callee_in-1.wav", delivered[0].Callee)
			assert.Contains(t, second.commands(), "hangup 500ms")
			assert.Equal(t, 0, p.reg.Len())
		})
	}
}

func TestConcurrentRecordStopDeliversOnce(t *testing.T) {
	var delivered atomic.Int64
	p := newTestApp(t, Config{
		Iterations: 1,
		Period:     1,
		Callback:   func(RecInfo) { delivered.Add(1) },
	})

	const calls = 50
	for i := 0; i < calls; i++ {
		callID := fmt.Sprintf("call-%d", i)
		in := newFakeLeg(fmt.Sprintf("in-%d", i), callID, true)
		out := newFakeLeg(fmt.Sprintf("out-%d", i), callID, false)

		bridge(p, in, out)
		p.OnEvent(EventRecordStart, out)
		p.OnEvent(EventRecordStart, in)
		playOnce(p, in, out)

		var wg sync.WaitGroup
		wg.Add(2)
		for _, leg := range []*fakeLeg{in, out} {
			leg := leg
			go func() {
				defer wg.Done()
				p.OnEvent(EventRecordStop, leg)
			}()
		}
		wg.Wait()
	}

	assert.Equal(t, int64(calls), delivered.Load())
	assert.Equal(t, 0, p.reg.Len())
}

func TestRecordStopWithoutPathsIsSilent(t *testing.T) {
	var delivered []RecInfo
	p := newTestApp(t, Config{
		Iterations: 1,
		Period:     0,
		Callback:   func(info RecInfo) { delivered = append(delivered, info) },
	})
	in := newFakeLeg("in-1", "call-1", true)
	out := newFakeLeg("out-1", "call-1", false)

	bridge(p, in, out)
	// a stray record-stop for a call that was never admitted
	p.OnEvent(EventRecordStop, in)

	assert.Empty(t, delivered)
	assert.Equal(t, 0, p.reg.Len())
}

func TestLateRecordStopStillCompletes(t *testing.T) {
	var delivered []RecInfo
	p := newTestApp(t, Config{
		Iterations: 1,
		Period:     1,
		Callback:   func(info RecInfo) { delivered = append(delivered, info) },
	})
	in := newFakeLeg("in-1", "call-1", true)
	out := newFakeLeg("out-1", "call-1", false)

	bridge(p, in, out)
	p.OnEvent(EventRecordStart, out)
	p.OnEvent(EventRecordStart, in)
	playOnce(p, in, out)

	// the caller leg hangs up before its recording finishes
	p.OnEvent(EventChannelDestroy, out)
	assert.Equal(t, 1, p.reg.Len())

	p.OnEvent(EventRecordStop, out)
	p.OnEvent(EventRecordStop, in)
	require.Len(t, delivered, 1)
	assert.Equal(t, 0, p.reg.Len())
}

func TestDestroyEvictsUnrecordedCall(t *testing.T) {
	p := newTestApp(t, Config{Iterations: 1})
	in := newFakeLeg("in-1", "call-1", true)
	out := newFakeLeg("out-1", "call-1", false)

	bridge(p, in, out)
	assert.Equal(t, 1, p.reg.Len())

	p.OnEvent(EventChannelDestroy, in)
	assert.Equal(t, 1, p.reg.Len())
	p.OnEvent(EventChannelDestroy, out)
	assert.Equal(t, 0, p.reg.Len())
}
