// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scorer implements the Quality Scorer (spec §4.7): a pure,
// side-effect-free function from a probe result plus weighting
// configuration to a single comparable score.
package scorer

import "github.com/streamforge/controller/internal/models"

// missingBitrateFallbackScore is the fixed score used when bitrate is
// unknown but resolution and fps are (spec §4.7, §9).
const missingBitrateFallbackScore = 0.40

// ultraHDWidth/ultraHDHeight is the ≥3840×2160 threshold the
// prefer_4k/avoid_4k quality preferences key off.
const ultraHDWidth, ultraHDHeight = 3840, 2160

// priorityBoostFactor converts an account's integer priority into a
// small additive score boost, keeping priority as a tie-breaker
// rather than something that can outweigh actual stream quality.
const priorityBoostFactor = 0.001

// Weights parameterizes the weighted sum of normalized components.
type Weights struct {
	Resolution float64
	Bitrate    float64
	FPS        float64
	Codec      float64
}

// Normalization holds the constants each raw measurement is divided
// by before weighting, so every component lands in roughly [0,1]
// before the quality-preference and priority adjustments are applied.
type Normalization struct {
	MaxResolutionPixels float64
	MaxBitrateKbps      float64
	MaxFPS              float64
	CodecScores         map[string]float64
	DefaultCodecScore   float64
}

// DefaultNormalization gives sensible ceilings: 4K60 as the
// resolution/fps ceiling, 20 Mbps as the bitrate ceiling, and a small
// codec-efficiency table favoring newer codecs.
func DefaultNormalization() Normalization {
	return Normalization{
		MaxResolutionPixels: ultraHDWidth * ultraHDHeight,
		MaxBitrateKbps:      20000,
		MaxFPS:              60,
		CodecScores: map[string]float64{
			"av1":  1.0,
			"hevc": 0.9,
			"h265": 0.9,
			"vp9":  0.85,
			"h264": 0.7,
			"avc":  0.7,
			"mpeg2video": 0.4,
		},
		DefaultCodecScore: 0.5,
	}
}

// Input is everything Score needs for one stream.
type Input struct {
	Probe             models.ProbeResult
	QualityPreference models.QualityPreference
	AccountPriority   int
	Weights           Weights
	Normalization     Normalization
}

// Score computes the quality score for one stream (spec §4.7).
func Score(in Input) float64 {
	if in.Probe.IsDead() {
		return 0.0
	}

	if in.Probe.BitrateKbps == nil && in.Probe.ResolutionW > 0 && in.Probe.ResolutionH > 0 && in.Probe.FPS > 0 {
		return missingBitrateFallbackScore
	}

	norm := in.Normalization
	if norm.MaxResolutionPixels == 0 {
		norm = DefaultNormalization()
	}

	resNorm := clamp01(float64(in.Probe.ResolutionW*in.Probe.ResolutionH) / norm.MaxResolutionPixels)
	fpsNorm := clamp01(in.Probe.FPS / norm.MaxFPS)
	codecNorm := codecScore(norm, in.Probe.VideoCodec)

	var bitrateNorm float64
	if in.Probe.BitrateKbps != nil {
		bitrateNorm = clamp01(float64(*in.Probe.BitrateKbps) / norm.MaxBitrateKbps)
	}

	score := in.Weights.Resolution*resNorm +
		in.Weights.Bitrate*bitrateNorm +
		in.Weights.FPS*fpsNorm +
		in.Weights.Codec*codecNorm

	score += qualityPreferenceAdjustment(in.QualityPreference, in.Probe.ResolutionW, in.Probe.ResolutionH)
	score += float64(in.AccountPriority) * priorityBoostFactor

	return score
}

// qualityPreferenceAdjustment applies the fixed deltas from spec §4.7.
func qualityPreferenceAdjustment(pref models.QualityPreference, width, height int) float64 {
	switch pref {
	case models.QualityPrefer4K:
		if width >= ultraHDWidth && height >= ultraHDHeight {
			return 0.5
		}
	case models.QualityAvoid4K:
		if width >= ultraHDWidth && height >= ultraHDHeight {
			return -0.5
		}
	case models.QualityMax1080p:
		if width > 1920 {
			return -10.0
		}
	case models.QualityMax720p:
		if width > 1280 {
			return -10.0
		}
	}
	return 0
}

func codecScore(norm Normalization, codec string) float64 {
	if v, ok := norm.CodecScores[codec]; ok {
		return v
	}
	return norm.DefaultCodecScore
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
