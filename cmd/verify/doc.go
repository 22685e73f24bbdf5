// Command verify checks a proof artifact from first principles, without
// trusting the service that produced it.
//
// It re-derives the artifact checksum, the content digest, the document
// identity, the oracle signature and the on-ledger confirmations, then
// prints a stage table on stderr and a single "<document-id> <verdict>"
// line on stdout. The exit status is zero only for a VERIFIED verdict, so
// the command slots into scripts directly.
//
// The document bytes come from --content-file, or are fetched through the
// configured --storage-backend mirrors using the locator embedded in the
// artifact. Supplying --metadata-file additionally re-derives the metadata
// digest; without it that stage is reported as skipped. Ledger RPC
// endpoints are passed with the same --ledger syntax the server uses, and
// --oracle-signer pins the set of oracle keys the artifact may be signed
// with; without it the signature stage only proves the signature recovers
// to some address, which it then reports.
//
// Example:
//
//	verify \
//	  --artifact ./release-notes.proof.json \
//	  --content-file ./release-notes.pdf \
//	  --ledger chainID=eth-mainnet,rpc=https://rpc.example.org \
//	  --oracle-signer 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed
package main
