// Package interfaces defines core interfaces and types for the content
// attestation engine, separating interface definitions from implementations.
//
// The package provides interfaces for the key collaborators of the system:
//
// # Oracle Interfaces
//
// OracleService: The external attestation oracle. The engine submits a
// document ID plus content locator and polls for a signed report; the report
// is untrusted input until its signature and freshness have been validated.
//
// # Ledger Interfaces
//
// Ledger: Answers anchoring-transaction status queries for a single chain,
// reporting inclusion height, confirmation depth and revert state.
//
// LedgerDialer: Opens ledger connections by chain ID, used by the verifier
// to re-query chains named in an artifact without sharing engine state.
//
// # Storage Interfaces
//
// ContentSource: Retrieves externally stored document bytes by content
// locator across multiple backend types (file, S3, IPFS, Vault, HTTP).
//
// SourceFactory: Creates content sources from URI strings and manages
// ordered mirror lists for redundant retrieval.
//
// ProofStore: Durably persists assembled proof artifacts by document ID.
//
// # Identity Types
//
// The package also defines the identity primitives every component shares:
//
// - Digest: 32-byte SHA-256 hash with fixed-length hex JSON encoding
// - DocumentID: digest-derived identity of one (content, metadata) pair
// - ContentLocator: URI plus pinned content digest
// - OracleReport, ChainAnchor, ChainConfirmation: attestation evidence
// - ProofArtifact: the self-checksummed output of an attestation run
// - VerificationReport: per-stage verification outcomes with overall verdict
//
// # Error Taxonomy
//
// Structured error types distinguish how failures must be handled:
// IntegrityFault (fatal, never retried), TransientNetworkError (absorbed by
// retry logic), ValidationError (terminal for the request, names the failing
// field), QuorumUnreachableError (terminal, still yields a negative
// artifact) and TimeoutError (wall-clock ceiling exceeded).
package interfaces
