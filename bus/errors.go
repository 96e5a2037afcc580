// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bus

import "errors"

// Configuration errors raised eagerly at registration time. Runtime data
// problems (cooldown denials, vetoes, handler panics) are never surfaced
// as errors; they are counted and, where useful, logged.
var (
	// ErrNilHandler is returned when subscribing with a nil handler.
	ErrNilHandler = errors.New("bus: handler must not be nil")

	// ErrNilRule is returned when adding a nil modulation rule.
	ErrNilRule = errors.New("bus: modulation rule must not be nil")

	// ErrUnknownSubscription is returned when unsubscribing an unknown ID.
	ErrUnknownSubscription = errors.New("bus: unknown subscription id")

	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("bus: expiry sweep already running")
)
