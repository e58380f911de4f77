// Package textutil holds the small text routines behind archive naming: the
// {name}/{name:0N} template language, asset extension inference, description
// whitespace cleanup, and filename sanitizing.
package textutil
