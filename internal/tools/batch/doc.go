// Package batch runs the tool calls of one model turn.
//
// Calls execute strictly in the order the model emitted them, and results
// keep that order. Recoverable failures are collected as failed results so
// the model can react to them; a fatal failure stops the batch.
package batch
