// Package archive assembles a post's description, cover, and assets into an
// in-memory archive and encodes it as a zip file.
//
// Assets are fetched strictly one after another in descriptor order. Any
// failure aborts the build with a *services.PackagingError and no partial
// archive is returned.
package archive
