// Package contact manages a user's contacts and resolves campaign
// audiences.
//
// Resolve is the audience query used by campaign dispatch: a tag filter
// matches contacts carrying any of the named tags, a segment filter matches
// contacts assigned to that segment, and an empty filter matches every
// contact the owner has. An empty result is not an error.
//
// Repository implementations live in repository/postgres/.
package contact
