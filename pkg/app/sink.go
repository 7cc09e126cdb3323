package app

import "github.com/sirupsen/logrus"

// RecInfo carries the result of one recorded call.
type RecInfo struct {
	Host   string
	Caller string
	Callee string
}

// CompletionSink delivers RecInfo to the user-supplied callback. It is
// invoked at most once per call: the registry eviction happens in the
// same critical section as the delivery, so a racing record-stop for
// the peer leg can never observe the call again.
type CompletionSink struct {
	log *logrus.Entry
	cb  func(RecInfo)
}

// NewCompletionSink wraps the callback; a nil callback makes Deliver a
// no-op.
func NewCompletionSink(cb func(RecInfo), log *logrus.Entry) *CompletionSink {
	return &CompletionSink{log: log, cb: cb}
}

// Deliver invokes the callback with the completed call's recordings.
func (s *CompletionSink) Deliver(info RecInfo) {
	if s.cb == nil {
		return
	}
	s.log.Debugf("delivering recordings caller=%s callee=%s", info.Caller, info.Callee)
	s.cb(info)
}
