package esl

import "playrec/pkg/app"

// eventKind maps a switch event name to the orchestrator's event enum.
// Unlisted events are ignored.
func eventKind(name string) (app.Event, bool) {
	switch name {
	case "CHANNEL_CREATE":
		return app.EventChannelCreate, true
	case "CHANNEL_PARK":
		return app.EventChannelPark, true
	case "CHANNEL_ANSWER":
		return app.EventChannelAnswer, true
	case "PLAYBACK_START":
		return app.EventPlaybackStart, true
	case "PLAYBACK_STOP":
		return app.EventPlaybackStop, true
	case "RECORD_START":
		return app.EventRecordStart, true
	case "RECORD_STOP":
		return app.EventRecordStop, true
	case "CHANNEL_DESTROY":
		return app.EventChannelDestroy, true
	default:
		return 0, false
	}
}
