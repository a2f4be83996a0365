// Package dispatch runs the send paths end to end: single emails, immediate
// campaign sends, scheduled occurrences, and scheduling itself.
//
// A campaign send resolves its audience, drops suppressed addresses, claims
// each recipient for the occurrence so a re-run never mails an address
// twice, renders and batches the messages, and sends the batches in order.
// Every attempt leaves a delivery log entry, one per batch plus a summary.
package dispatch
