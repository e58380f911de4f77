// Package fanbox resolves a post identifier into a PostDescriptor: the
// author, title, publish time, cover URL, description text, and ordered asset
// URLs that make up a downloadable archive.
//
// The content API returns one of three body shapes (image, file, article).
// Each is decoded into its own Body variant from the type discriminator and
// normalized by a dedicated function, so callers never see the raw wire
// structure.
package fanbox
