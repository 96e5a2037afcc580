// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package signal

import (
	"strconv"
	"time"
)

// Metadata keys used by trigger envelopes.
const (
	MetaTriggerKind = "trigger_kind"
	MetaValue       = "value"
	MetaThreshold   = "threshold"
	MetaContext     = "context"
)

// TriggerEvent describes one adaptive threshold crossing.
type TriggerEvent struct {
	// TriggerKind names the scalar stream that crossed its threshold.
	TriggerKind Kind `json:"trigger_kind"`

	// Value is the observed scalar.
	Value float64 `json:"value"`

	// Threshold is the dynamic threshold at fire time.
	Threshold float64 `json:"threshold"`

	// Context is optional producer context for the crossing.
	Context string `json:"context,omitempty"`
}

// Envelope packages the trigger as a KindTrigger signal.
//
// Description:
//
//	The trigger's fields are encoded into envelope metadata so that any
//	subscriber can consume the crossing without a payload type dependency.
//	Level is the observed value clamped to [0, 1]; TTL defaults short
//	because a stale trigger is worthless.
//
// Inputs:
//
//	source - Producer identifier, typically "threshold-engine".
//	ttl - Active lifetime for the trigger signal.
//
// Outputs:
//
//	*Envelope - Trigger envelope ready to publish.
//	error - ErrBadLevel if the observed value is not finite.
func (t TriggerEvent) Envelope(source string, ttl time.Duration) (*Envelope, error) {
	md := map[string]string{
		MetaTriggerKind: string(t.TriggerKind),
		MetaValue:       strconv.FormatFloat(t.Value, 'f', -1, 64),
		MetaThreshold:   strconv.FormatFloat(t.Threshold, 'f', -1, 64),
	}
	if t.Context != "" {
		md[MetaContext] = t.Context
	}
	return New(KindTrigger, t.Value, source, WithTTL(ttl), WithMetadata(md))
}

// ParseTrigger recovers a TriggerEvent from a trigger envelope.
//
// Outputs:
//
//	TriggerEvent - The decoded crossing.
//	bool - False if the envelope is not a trigger or is missing fields.
func ParseTrigger(e *Envelope) (TriggerEvent, bool) {
	if e == nil || e.Kind != KindTrigger || e.Metadata == nil {
		return TriggerEvent{}, false
	}
	value, err := strconv.ParseFloat(e.Metadata[MetaValue], 64)
	if err != nil {
		return TriggerEvent{}, false
	}
	threshold, err := strconv.ParseFloat(e.Metadata[MetaThreshold], 64)
	if err != nil {
		return TriggerEvent{}, false
	}
	return TriggerEvent{
		TriggerKind: Kind(e.Metadata[MetaTriggerKind]),
		Value:       value,
		Threshold:   threshold,
		Context:     e.Metadata[MetaContext],
	}, true
}
