// Package suppression implements the per-user suppression list.
//
// This is the single source of truth for whether an email address should
// receive mail. Entries are added manually or by bounce/complaint handling
// and are checked before every single send and before each campaign run.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly.
package suppression
