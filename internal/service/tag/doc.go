// Package tag manages the user's tag catalogue.
//
// Contacts reference tags by name, so renaming a tag rewrites the name in
// every contact of the same owner, and deleting one strips it from them.
// Both happen inside the repository's transaction.
package tag
