package types

// Version is the canonical project version.
// The CLI, the export stream and the notification contract share it.
const Version = "0.3.0"

// ContractVersion is the version of the export stream and notification
// payloads. It moves in lockstep with Version.
const ContractVersion = Version
