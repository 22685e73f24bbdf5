// Package httpserver exposes the attestation engine as a JSON HTTP API.
//
// # Endpoints
//
//   - POST /api/v1/attest: run one attestation end to end. The body names
//     the content locator and carries the structured metadata document. On
//     success the sealed proof artifact is returned with status 201. An
//     attestation that fails after sealing still returns its artifact in the
//     error body: 502 for an unreachable quorum (negative proof), 504 for a
//     tracking timeout (still-pending proof).
//   - POST /api/v1/verify: independently re-verify an artifact. Content may
//     be supplied inline as base64 or fetched through the artifact's
//     locator; metadata is optional. The staged verification report is the
//     payload, so a FAILED verdict is still a 200 response.
//   - GET /api/v1/proofs/{document_id}: return the stored artifact.
//
// # Operational endpoints
//
// The server carries the usual liveness (/livez), readiness (/readyz) and
// drain (/drain, /undrain) endpoints. Draining flips readiness atomically so
// load balancers stop routing before shutdown; in-flight attestations are
// not interrupted. Metrics are served on a separate listener and pprof can
// be mounted under /debug.
//
// # Error mapping
//
// Validation failures map to 400, oracle rejections to 422, upstream
// backend failures to 502 and wall-clock ceilings to 504. The error body is
// a JSON envelope with the failure description and, when one was sealed
// anyway, the proof artifact.
package httpserver
