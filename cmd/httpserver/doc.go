// Package main (cmd/httpserver) runs the attestation engine as a service.
//
// The server exposes the attestation API: submitting documents for
// cross-chain attestation, independently re-verifying proof artifacts, and
// retrieving stored artifacts by document ID. It wires together the content
// source mirror list, the attestation oracle, per-chain confirmation
// tracking and the file-backed proof store.
//
// The oracle is selected by --oracle-url. An empty URL starts the built-in
// development stub, which signs real secp256k1 reports with a key derived
// from --dev-oracle-seed and anchors on synthetic transaction references.
// The stub exists for wiring up the pipeline locally; its anchors will not
// confirm on real chains.
//
// Ledgers are configured with repeatable --ledger flags naming the chain ID,
// RPC endpoint and optional per-chain confirmation depth. The quorum rule
// defaults to a majority of the configured chains.
//
// The server implements graceful shutdown on SIGINT/SIGTERM and supports
// health checks, metrics collection, and optional profiling endpoints.
//
// Example usage:
//
//	httpserver \
//	  --listen-addr 127.0.0.1:8080 \
//	  --storage-backend file:///var/lib/attestation/content \
//	  --storage-backend https:// \
//	  --proof-dir /var/lib/attestation/proofs \
//	  --ledger chainID=eth-mainnet,rpc=http://127.0.0.1:8545,depth=12 \
//	  --ledger chainID=polygon,rpc=http://127.0.0.1:8546,depth=64 \
//	  --quorum 2 \
//	  --oracle-url http://oracle.internal:9000 \
//	  --oracle-signer 0x32cEb60b53aB03b0c1Bd2b2c37A708e9a2E3b529
package main
