// Package library maintains the catalogue of source media items: probed
// metadata plus a content fingerprint that distinguishes renames from new
// files. The transcode engine resolves media by identifier and never writes
// to this catalogue.
package library
