// Package domain defines the core business entities of the confirmation
// pipeline: the task record mirrored onto the ledger, the mutation intents
// carried by the queue, and the receipt the ledger returns for a confirmed
// write.
package domain
