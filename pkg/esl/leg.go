package esl

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/percipia/eslgo"
	"github.com/percipia/eslgo/command"
	"github.com/sirupsen/logrus"

	"playrec/pkg/app"
)

// legHandle implements app.MediaLeg against one firing channel event.
// All media commands go out as background API commands: they are
// fire-and-forget, the orchestration never waits on their outcome.
type legHandle struct {
	conn    *eslgo.Conn
	log     *logrus.Entry
	event   *eslgo.Event
	id      string
	callID  string
	inbound bool
}

func newLegHandle(conn *eslgo.Conn, log *logrus.Entry, e *eslgo.Event) *legHandle {
	id := e.GetHeader("Unique-ID")
	callID := e.GetHeader("Channel-Call-UUID")
	if callID == "" {
		callID = id
	}
	return &legHandle{
		conn:    conn,
		log:     log,
		event:   e,
		id:      id,
		callID:  callID,
		inbound: e.GetHeader("Call-Direction") == "inbound",
	}
}

func (l *legHandle) ID() string      { return l.id }
func (l *legHandle) CallID() string  { return l.callID }
func (l *legHandle) IsInbound() bool { return l.inbound }

func (l *legHandle) Answer() {
	l.api("uuid_answer", l.id)
}

func (l *legHandle) Playback(stream string) {
	l.api("uuid_broadcast", fmt.Sprintf("%s playback::%s aleg", l.id, stream))
}

func (l *legHandle) StopApp() {
	l.api("uuid_break", l.id+" all")
}

func (l *legHandle) StartRecord(path string, stereo bool) {
	if stereo {
		l.SetVar("RECORD_STEREO", "true")
	}
	l.api("uuid_record", fmt.Sprintf("%s start %s", l.id, path))
}

func (l *legHandle) StopRecord(delay time.Duration) {
	l.api("sched_api", fmt.Sprintf("+%d none uuid_record %s stop all", delaySeconds(delay), l.id))
}

func (l *legHandle) ScheduleHangup(delay time.Duration) {
	l.api("sched_hangup", fmt.Sprintf("+%d %s NORMAL_CLEARING", delaySeconds(delay), l.id))
}

func (l *legHandle) Get(field string) string {
	return l.event.GetHeader(field)
}

func (l *legHandle) SetVar(key, value string) {
	l.api("uuid_setvar", fmt.Sprintf("%s %s %s", l.id, key, value))
}

func (l *legHandle) api(cmd, args string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	_, err := l.conn.SendCommand(ctx, command.API{
		Command:    cmd,
		Arguments:  args,
		Background: true,
	})
	if err != nil {
		l.log.Warnf("%s %s failed: %v", cmd, args, err)
	}
}

// delaySeconds rounds a delay up to whole seconds, the granularity of
// the switch scheduler.
func delaySeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

var _ app.MediaLeg = (*legHandle)(nil)
