package metrics

// Pre-defined metrics for the ethaccess library. All metrics live in
// DefaultRegistry so they are globally accessible without passing a
// registry around.

var (
	// ---- Access list codec metrics ----

	// BALEncodes counts block access list encodings.
	BALEncodes = DefaultRegistry.Counter("bal.encodes")
	// BALEncodedBytes counts total bytes produced by the encoder.
	BALEncodedBytes = DefaultRegistry.Counter("bal.encoded_bytes")
	// BALDecodes counts block access lists decoded successfully.
	BALDecodes = DefaultRegistry.Counter("bal.decodes")
	// BALDecodeFailures counts decode attempts rejected as malformed.
	BALDecodeFailures = DefaultRegistry.Counter("bal.decode_failures")
	// BALHashes counts commitment hash computations.
	BALHashes = DefaultRegistry.Counter("bal.hashes")
	// BALHashedBytes counts total bytes hashed for commitments.
	BALHashedBytes = DefaultRegistry.Counter("bal.hashed_bytes")

	// ---- Authorization metrics ----

	// AuthorizationsApplied counts set-code authorizations applied to state.
	AuthorizationsApplied = DefaultRegistry.Counter("auth.applied")
	// AuthorizationsRejected counts authorizations skipped as invalid.
	AuthorizationsRejected = DefaultRegistry.Counter("auth.rejected")
)
