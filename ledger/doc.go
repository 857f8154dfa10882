// Package ledger keeps a tamper-evident record of completed broadcasts.
//
// # Core Components
//
// Blockchain: An append-only log of deliveries with hash chaining.
//
// Block: One delivery observed by this participant, linked to the previous
// block by its hash.
//
// Delivery: What was broadcast, from which root, to how many participants,
// and the digest of the received payload.
//
// # Usage
//
// Append a Delivery after every successful broadcast. Comparing the digests
// recorded by different participants shows whether they received the same
// bytes. Verify can be called at any time to check the chain is intact, and
// Restore rebuilds a chain from persisted blocks.
package ledger
