// Package guard decides which fragments of a page view a user gets to see.
//
// A Fragment carries a Requirement: a set of allowed access roles, a
// permission, or both. Fragments the user does not satisfy render their
// fallback, which is nothing unless one was set.
package guard
