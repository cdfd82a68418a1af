package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"urdfpanel/internal/logging"
)

// ReplaySource plays back a recording of JSON frames, one per line.
type ReplaySource struct {
	Path string
	Rate float64 // frames per second
	Loop bool
	Log  logging.Log
}

// Run emits one frame per tick until the file is exhausted (or forever with
// Loop) or ctx is done. Lines that fail to decode are skipped.
func (s *ReplaySource) Run(ctx context.Context, sink Sink) error {
	log := s.Log
	if log == nil {
		log = logging.Discard()
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("replay %s: %w", s.Path, err)
	}
	frames := make([]Frame, 0, bytes.Count(data, []byte{'\n'})+1)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 || b[0] == '#' {
			continue
		}
		f, err := DecodeJSON(b)
		if err != nil {
			log.Warnf("%s:%d: %v", s.Path, line, err)
			continue
		}
		frames = append(frames, f)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("replay %s: %w", s.Path, err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("replay %s: no frames", s.Path)
	}
	log.Infof("replaying %d frames from %s at %.1f Hz", len(frames), s.Path, s.rate())

	ticker := time.NewTicker(tickInterval(s.Rate))
	defer ticker.Stop()
	for i := 0; ; i++ {
		if i == len(frames) {
			if !s.Loop {
				return nil
			}
			i = 0
		}
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			f := frames[i]
			f.At = now
			sink(f)
		}
	}
}

func (s *ReplaySource) rate() float64 { return effectiveRate(s.Rate) }
