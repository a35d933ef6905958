// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	automationConfigFile   = "automation_config.json"
	streamCheckerConfigFile = "stream_checker_config.json"
	profileConfigFile      = "profile_config.json"
)

// Store bundles the Config Store's blobs that don't belong to a more
// specific subsystem package (channel/group settings live in
// internal/settings, regex patterns in internal/regexstore, update
// tracking in internal/updatetracker, dead streams in
// internal/deadstream, the changelog in internal/changelog — each
// opens its own JSONStore against the same directory).
type Store struct {
	Automation    *JSONStore[AutomationConfig]
	StreamChecker *JSONStore[StreamCheckerConfig]
	Profile       *JSONStore[ProfileConfig]
}

// Open initializes every blob this package owns under dir, using v
// for struct validation on writes (pass validation.GetValidator()).
func Open(dir string, v *validator.Validate) (*Store, error) {
	automation, err := NewJSONStore(dir, automationConfigFile, DefaultAutomationConfig(), v)
	if err != nil {
		return nil, fmt.Errorf("open automation config: %w", err)
	}

	streamChecker, err := NewJSONStore(dir, streamCheckerConfigFile, DefaultStreamCheckerConfig(), v)
	if err != nil {
		return nil, fmt.Errorf("open stream checker config: %w", err)
	}

	profile, err := NewJSONStore(dir, profileConfigFile, DefaultProfileConfig(), v)
	if err != nil {
		return nil, fmt.Errorf("open profile config: %w", err)
	}

	return &Store{
		Automation:    automation,
		StreamChecker: streamChecker,
		Profile:       profile,
	}, nil
}
