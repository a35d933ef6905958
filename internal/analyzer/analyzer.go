// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package analyzer wraps the media-analyzer subprocess (spec §6
// "Media analyzer contract"): an os/exec invocation of ffprobe against
// a stream URL, with a bounded read duration, overall timeout, retry
// loop, and user-agent/proxy passthrough, producing a typed probe
// result rather than raw ffprobe JSON.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamforge/controller/internal/config"
	"github.com/streamforge/controller/internal/logging"
)

// Status mirrors the media-analyzer contract's status enum.
type Status string

const (
	StatusOK      Status = "OK"
	StatusError   Status = "Error"
	StatusTimeout Status = "Timeout"
)

// Result is the media-analyzer contract's output shape (spec §6).
// Zero/missing Width|Height implies a dead stream; a nil BitrateKbps
// with valid Width/Height/FPS triggers the scorer's fallback path.
type Result struct {
	Status      Status
	Width       int
	Height      int
	FPS         float64
	VideoCodec  string
	AudioCodec  string
	BitrateKbps *int
	Error       string
}

// Params is the media-analyzer contract's input shape (spec §6).
type Params struct {
	URL                string
	DurationSeconds    int
	TimeoutSeconds     int
	Retries            int
	RetryDelaySeconds  int
	UserAgent          string
	Proxy              string
}

// Analyzer runs ffprobe against stream URLs.
type Analyzer struct {
	binaryPath string
}

// New returns an Analyzer invoking cfg.BinaryPath (default "ffprobe").
func New(cfg config.AnalyzerConfig) *Analyzer {
	binary := cfg.BinaryPath
	if binary == "" {
		binary = "ffprobe"
	}
	return &Analyzer{binaryPath: binary}
}

// Probe runs the analyzer with retries, sleeping RetryDelaySeconds
// between attempts. A timed-out or crashed attempt is retried like
// any other failure; retries exhausted yields a Status Error/Timeout
// result rather than a Go error — per spec §4.8/§7, analyzer failure
// never fails the calling channel's probe cycle.
func (a *Analyzer) Probe(ctx context.Context, p Params) Result {
	var last Result
	attempts := p.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		last = a.probeOnce(ctx, p)
		if last.Status == StatusOK {
			return last
		}
		if attempt < attempts-1 && p.RetryDelaySeconds > 0 {
			select {
			case <-ctx.Done():
				return Result{Status: StatusTimeout, Error: ctx.Err().Error()}
			case <-time.After(time.Duration(p.RetryDelaySeconds) * time.Second):
			}
		}
	}
	return last
}

func (a *Analyzer) probeOnce(ctx context.Context, p Params) Result {
	timeout := time.Duration(p.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
	}
	if p.DurationSeconds > 0 {
		args = append(args, "-read_intervals", fmt.Sprintf("%%+%d", p.DurationSeconds))
	}
	if p.UserAgent != "" {
		args = append(args, "-user_agent", p.UserAgent)
	}
	if p.Proxy != "" {
		args = append(args, "-http_proxy", p.Proxy)
	}
	args = append(args, p.URL)

	cmd := exec.CommandContext(runCtx, a.binaryPath, args...)
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			logging.Warn().Str("url", p.URL).Msg("media analyzer timed out")
			return Result{Status: StatusTimeout, Error: "analyzer timed out"}
		}
		logging.Warn().Err(err).Str("url", p.URL).Msg("media analyzer exited non-zero")
		return Result{Status: StatusError, Error: err.Error()}
	}

	parsed, err := parseProbeOutput(out)
	if err != nil {
		logging.Warn().Err(err).Str("url", p.URL).Msg("media analyzer produced unparseable output")
		return Result{Status: StatusError, Error: err.Error()}
	}
	return parsed
}

type ffprobeStream struct {
	CodecType     string `json:"codec_type"`
	CodecName     string `json:"codec_name"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	RFrameRate    string `json:"r_frame_rate"`
	BitRate       string `json:"bit_rate"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

func parseProbeOutput(raw []byte) (Result, error) {
	var decoded ffprobeOutput
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	result := Result{Status: StatusOK}
	var bitrateKbps *int

	for _, s := range decoded.Streams {
		switch s.CodecType {
		case "video":
			result.Width = s.Width
			result.Height = s.Height
			result.VideoCodec = s.CodecName
			result.FPS = parseFrameRate(s.RFrameRate)
			if kbps, ok := parseBitrateKbps(s.BitRate); ok {
				bitrateKbps = &kbps
			}
		case "audio":
			result.AudioCodec = s.CodecName
		}
	}

	result.BitrateKbps = bitrateKbps
	return result, nil
}

// parseFrameRate converts ffprobe's "num/den" rational fps string.
func parseFrameRate(raw string) float64 {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func parseBitrateKbps(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	bps, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return int(bps / 1000), true
}
