package logutil

import (
	"github.com/rs/zerolog"
)

// LevelSampler drops every event below Level. It is used to keep the
// per-file debug output of directory analysis quiet unless asked for.
type LevelSampler struct {
	Level zerolog.Level
}

func (l LevelSampler) Sample(lvl zerolog.Level) bool {
	return lvl >= l.Level
}
