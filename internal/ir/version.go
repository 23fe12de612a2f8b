package ir

// IRVersion is bumped whenever the canonical encoding of values or
// expressions changes. It is part of every hash domain, so stored keys
// from an older encoding never match new ones.
const IRVersion = "1"

// EngineVersion is reported by the basestar binary.
const EngineVersion = "0.1.0"
