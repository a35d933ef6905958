// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "errors"

// ErrPersistence wraps write-temp-then-rename failures (spec §7): the
// operation fails, the caller sees a 500, and in-memory state is left
// untouched because the swap happens only after the write succeeds.
var ErrPersistence = errors.New("store: persistence failure")

// ErrValidation wraps a rejected write: the payload failed struct
// validation and was neither persisted nor swapped into memory.
var ErrValidation = errors.New("store: validation failure")

// IsPersistence reports whether err wraps ErrPersistence.
func IsPersistence(err error) bool { return errors.Is(err, ErrPersistence) }

// IsValidation reports whether err wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
