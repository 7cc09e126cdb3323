package esl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"playrec/pkg/app"
)

func TestEventKind(t *testing.T) {
	cases := map[string]app.Event{
		"CHANNEL_CREATE":  app.EventChannelCreate,
		"CHANNEL_PARK":    app.EventChannelPark,
		"CHANNEL_ANSWER":  app.EventChannelAnswer,
		"PLAYBACK_START":  app.EventPlaybackStart,
		"PLAYBACK_STOP":   app.EventPlaybackStop,
		"RECORD_START":    app.EventRecordStart,
		"RECORD_STOP":     app.EventRecordStop,
		"CHANNEL_DESTROY": app.EventChannelDestroy,
	}
	for name, want := range cases {
		got, ok := eventKind(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}

	_, ok := eventKind("CHANNEL_EXECUTE")
	assert.False(t, ok)
}

func TestDelaySeconds(t *testing.T) {
	assert.Equal(t, 1, delaySeconds(500*time.Millisecond))
	assert.Equal(t, 1, delaySeconds(time.Second))
	assert.Equal(t, 2, delaySeconds(1500*time.Millisecond))
	assert.Equal(t, 1, delaySeconds(0))
}
