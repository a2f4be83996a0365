// Package delivery keeps the append-only delivery log and derives the
// dashboard statistics and the daily send quota from it.
//
// Writing the log never fails a caller: a failed append is reported on the
// structured logger and counted in metrics, and the dispatch goes on.
package delivery
