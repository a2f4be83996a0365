// Package template stores reusable email content and previews it against
// a contact or a set of sample values.
package template
