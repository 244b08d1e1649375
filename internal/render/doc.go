// Package render turns the raw `modules` option text into the document the
// blackbox exporter reads from its config file.
//
// The output always has exactly one top-level key, modules. Input that already
// carries a modules key is used as-is; anything else is nested under it.
// Serialization sorts mapping keys so that rendering unchanged input twice is
// byte-identical.
package render
