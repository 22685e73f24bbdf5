// Command attest runs a single attestation end to end and prints the
// resulting proof artifact as JSON on stdout (or into --out).
//
// The document is named by a locator URI plus its expected SHA-256 digest.
// Point --content-file at a local copy to have the digest computed, or pass
// --digest directly when the bytes live behind a remote backend. When --uri
// is omitted it defaults to file://<absolute path of --content-file>, in
// which case the storage backends must include an unconfined file source.
//
// The pipeline flags mirror the server: --storage-backend, --ledger,
// --quorum, --oracle-url and --oracle-signer. Without --oracle-url a
// built-in stub oracle signs the report, which is only useful against
// development ledgers.
//
// The artifact is written even when confirmation tracking fails quorum or
// times out, so the sealed record of the failed run is preserved; the
// command still exits non-zero in that case. Logs go to stderr.
//
// Example:
//
//	attest \
//	  --content-file ./release-notes.pdf \
//	  --metadata-file ./release-notes.meta.json \
//	  --storage-backend file:// \
//	  --ledger chainID=eth-mainnet,rpc=https://rpc.example.org \
//	  --oracle-url https://oracle.example.org \
//	  --oracle-signer 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed \
//	  --out ./release-notes.proof.json
package main
