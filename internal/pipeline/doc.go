// Package pipeline implements the confirmation pipeline: it takes decoded
// task-mutation intents, dispatches the matching ledger operation, and
// reconciles the outcome into the task record store.
//
// The pipeline is deliberately ignorant of the queue it is fed from. Its
// contract with the consumer is the returned error: nil means the message
// can be acknowledged, a permanent error (see IsPermanent) means the message
// must be acknowledged and dropped, and any other error means the message
// should be requeued for another attempt.
package pipeline
