// Package storage retrieves document bytes from the external systems a
// content locator can point at, and persists assembled proof artifacts.
//
// Content retrieval is read-only: the engine never writes documents, it only
// fetches the bytes a locator names and checks them against the locator's
// pinned digest. Sources are configured from backend URIs and composed into
// an ordered mirror list:
//
//   - file:// for local file systems
//   - ipfs:// for IPFS nodes or gateways
//   - s3:// for Amazon S3 and compatible object stores
//   - vault:// for HashiCorp Vault KV v2 mounts
//   - http:// and https:// for plain web mirrors
//
// # Backend URI Format
//
// A backend URI configures one source instance. The scheme selects the
// source type, the rest carries connection parameters:
//
//	file:///var/lib/attestation/content
//	ipfs://127.0.0.1:5001/?timeout=30s
//	s3://s3.eu-west-1.amazonaws.com?region=eu-west-1&access_key=AK&secret_key=SK
//	vault://vault.internal:8200?token=hvs.XXXX
//	https://
//
// A document locator reuses the same schemes but names one document, for
// example s3://my-bucket/documents/contract.pdf or ipfs://bafybeih...; each
// configured source serves the locators of its own scheme.
//
// # Multi-Source Mirroring
//
// MultiSource tries its sources in configuration order and returns the first
// fetch whose bytes hash to the locator's digest. Mirrors serving corrupted
// or stale bytes are skipped, so one bad mirror cannot poison an attestation
// run.
//
// # Proof Persistence
//
// FileProofStore keeps one JSON file per artifact, named by document ID,
// written atomically and checksum-validated on read.
package storage
