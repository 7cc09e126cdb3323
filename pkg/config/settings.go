// Package config loads application settings from an ini file.
package config

import (
	"fmt"

	ini "gopkg.in/ini.v1"
)

// Settings holds application configuration loaded from settings.ini.
type Settings struct {
	eslAddress  string
	eslPassword string

	filename   string
	category   string
	clipLength float64
	sampleRate int
	silence    string

	iterations int
	duration   float64

	recPeriod     int
	recStereo     bool
	recordingsDir string

	metricsListen string
}

// Load reads configuration from the ini file and validates required
// fields.
func Load(cfg *ini.File) (*Settings, error) {
	s := &Settings{}

	sec := cfg.Section("esl")
	s.eslAddress = sec.Key("address").MustString("127.0.0.1:8021")
	s.eslPassword = sec.Key("password").MustString("ClueCon")

	sec = cfg.Section("sounds")
	s.filename = sec.Key("filename").MustString("ivr-founder_of_freesource.wav")
	s.category = sec.Key("category").MustString("ivr")
	s.clipLength = sec.Key("clip_length").MustFloat64(4.25)
	s.sampleRate = sec.Key("sample_rate").MustInt(8000)
	s.silence = sec.Key("silence_stream").MustString("silence_stream://0")

	sec = cfg.Section("call")
	s.iterations = sec.Key("iterations").MustInt(1)
	s.duration = sec.Key("duration").MustFloat64(0)

	sec = cfg.Section("recording")
	s.recPeriod = sec.Key("period").MustInt(1)
	s.recStereo = sec.Key("stereo").MustBool(false)
	s.recordingsDir = sec.Key("directory").String()

	sec = cfg.Section("metrics")
	s.metricsListen = sec.Key("listen").MustString(":9132")

	if s.filename == "" {
		return nil, fmt.Errorf("sounds filename must be set")
	}
	if s.clipLength <= 0 {
		return nil, fmt.Errorf("sounds clip_length must be positive")
	}

	return s, nil
}

func (s *Settings) ESLAddress() string  { return s.eslAddress }
func (s *Settings) ESLPassword() string { return s.eslPassword }

func (s *Settings) Filename() string    { return s.filename }
func (s *Settings) Category() string    { return s.category }
func (s *Settings) ClipLength() float64 { return s.clipLength }
func (s *Settings) SampleRate() int     { return s.sampleRate }
func (s *Settings) Silence() string     { return s.silence }

func (s *Settings) Iterations() int         { return s.iterations }
func (s *Settings) TargetDuration() float64 { return s.duration }

func (s *Settings) RecordPeriod() int     { return s.recPeriod }
func (s *Settings) RecordStereo() bool    { return s.recStereo }
func (s *Settings) RecordingsDir() string { return s.recordingsDir }

func (s *Settings) MetricsListen() string { return s.metricsListen }

// AudioFile builds the clip path under the switch's sounds directory,
// following the <prefix>/<category>/<rate>/<filename> layout.
func (s *Settings) AudioFile(soundPrefix string) string {
	return fmt.Sprintf("%s/%s/%d/%s", soundPrefix, s.category, s.sampleRate, s.filename)
}
