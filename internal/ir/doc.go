// Package ir provides the value model shared by every basestar package.
//
// This package contains value and schema types only. All other internal
// packages import ir; ir imports nothing internal. This keeps the value
// model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Values are a closed set of kinds (Integer, Float, Text, Sequence,
//     Mapping, Boolean, Undefined); IRValue is sealed to this package.
//   - Operators are resolved through a pairwise coercion matrix keyed by
//     (Kind, Kind), never by reflection on host types.
//   - Undefined is a value, not an error: a missing variable yields
//     IRUndefined and each operator decides how it propagates.
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the only
//     encoding used for content hashes.
package ir
