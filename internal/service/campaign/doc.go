// Package campaign implements campaign lifecycle management.
//
// The service layer owns the status machine (draft, scheduled, sending,
// sent, error) and the mutable campaign fields. Sending itself is driven by
// the dispatch service, which moves campaigns through the machine via
// Transition. It depends on repository interfaces defined in this package
// and never imports net/http.
//
// Repository implementations live in repository/postgres/.
package campaign
