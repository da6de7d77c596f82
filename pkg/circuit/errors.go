// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package circuit

import "fmt"

// Reason identifies which invariant (or class of invariant) an
// InvariantViolation is reporting against.  This is the structured payload
// carried by every core error, so callers can dispatch on the failure kind
// without string-matching the message.
type Reason uint

const (
	// ReasonDefinitionInvalid covers violations of I5-I10 on a Definition.
	ReasonDefinitionInvalid Reason = iota
	// ReasonComponentInvalid covers violations of I1-I4 on a Component.
	ReasonComponentInvalid
	// ReasonCircuitInvalid covers I11 and duplicate-name violations.
	ReasonCircuitInvalid
	// ReasonNoMatchingCallset is raised by the callset resolver when no
	// callset matches and the definition has no generic callset.
	ReasonNoMatchingCallset
	// ReasonAmbiguousCallsets is raised when multiple callsets match but no
	// callset-group names exactly that set.
	ReasonAmbiguousCallsets
	// ReasonUnnameableAmbiguity is raised when multiple callsets match and at
	// least one has no name.
	ReasonUnnameableAmbiguity
	// ReasonRenameViolation covers rename preconditions.
	ReasonRenameViolation
	// ReasonDuplicateInsert covers two inserts of the same name with
	// different structural identity and no force flag.
	ReasonDuplicateInsert
)

// String gives a short machine-stable tag for a Reason, used in error
// messages and in the serialization of diagnostics.
func (r Reason) String() string {
	switch r {
	case ReasonDefinitionInvalid:
		return "DefinitionInvalid"
	case ReasonComponentInvalid:
		return "ComponentInvalid"
	case ReasonCircuitInvalid:
		return "CircuitInvalid"
	case ReasonNoMatchingCallset:
		return "NoMatchingCallset"
	case ReasonAmbiguousCallsets:
		return "AmbiguousCallsets"
	case ReasonUnnameableAmbiguity:
		return "UnnameableAmbiguity"
	case ReasonRenameViolation:
		return "RenameViolation"
	case ReasonDuplicateInsert:
		return "DuplicateInsert"
	default:
		return "Unknown"
	}
}

// InvariantViolation is the distinguished failure mode of every fallible
// circuit-builder operation (see §4.1 of the specification).  It carries a
// structured Reason alongside a human-readable message, and optionally the
// name of the component or definition implicated.
type InvariantViolation struct {
	reason  Reason
	subject string
	msg     string
}

// NewInvariantViolation constructs a structured failure for a given reason,
// subject (component/definition/callset name, or "" if not applicable) and
// message.
func NewInvariantViolation(reason Reason, subject, msg string) *InvariantViolation {
	return &InvariantViolation{reason, subject, msg}
}

// Reason returns the structured reason code for this violation.
func (e *InvariantViolation) Reason() Reason {
	return e.reason
}

// Subject returns the name of the component, definition or callset this
// violation concerns, or the empty string if not applicable.
func (e *InvariantViolation) Subject() string {
	return e.subject
}

// Error implements the error interface.
func (e *InvariantViolation) Error() string {
	if e.subject == "" {
		return fmt.Sprintf("%s: %s", e.reason, e.msg)
	}

	return fmt.Sprintf("%s(%s): %s", e.reason, e.subject, e.msg)
}
