// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package signal defines the core signal vocabulary for the limbic bus.
//
// A signal is one timestamped occurrence of a named event kind with a
// bounded lifetime (TTL) and a scalar intensity (level). Producers attach
// opaque string metadata; the bus never interprets payload semantics.
//
// Thread Safety:
//
//	Envelope values are immutable after construction and safe to share
//	across goroutines.
package signal

// Kind identifies the kind of signal flowing through the bus.
//
// Kinds are open-ended strings; the constants below cover the signal
// vocabulary used by the built-in adaptive triggers. Embedding hosts may
// define their own kinds freely.
type Kind string

const (
	// KindStress is emitted when a tracked pressure scalar spikes.
	KindStress Kind = "stress"

	// KindRecovery is emitted when a tracked pressure scalar releases.
	KindRecovery Kind = "recovery"

	// KindNovelty is emitted when an observation diverges from baseline.
	KindNovelty Kind = "novelty"

	// KindReward is emitted when a downstream action reports success.
	KindReward Kind = "reward"

	// KindAlert is a safety-critical kind; alert cooldowns default to zero
	// so alerts are never throttled.
	KindAlert Kind = "alert"

	// KindTrigger is published by the adaptive threshold engine when a
	// scalar stream crosses its dynamic threshold.
	KindTrigger Kind = "trigger"
)

// String returns the kind as a plain string.
func (k Kind) String() string { return string(k) }

// PublishResult reports why a published signal was or was not retained.
//
// Description:
//
//	Dropped signals are a normal outcome, not an error. Callers that only
//	care about retention can use Accepted(); callers that need to
//	distinguish a cooldown drop from a veto (statistics, tests) switch on
//	the variant directly.
type PublishResult int

const (
	// ResultAccepted means the signal survived cooldown and modulation and
	// was retained for delivery.
	ResultAccepted PublishResult = iota

	// ResultDeniedCooldown means the (kind, source) pair was still inside
	// its cooldown window.
	ResultDeniedCooldown

	// ResultVetoed means a modulation stage dropped the signal.
	ResultVetoed

	// ResultFaulted means the envelope was malformed (for example a NaN
	// level) and was rejected before admission.
	ResultFaulted
)

// Accepted returns true if the signal was retained.
func (r PublishResult) Accepted() bool { return r == ResultAccepted }

// String returns a human-readable result name.
func (r PublishResult) String() string {
	switch r {
	case ResultAccepted:
		return "accepted"
	case ResultDeniedCooldown:
		return "denied_cooldown"
	case ResultVetoed:
		return "vetoed"
	case ResultFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}
