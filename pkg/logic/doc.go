// Package logic holds the pure condition and template functions used by the
// activity runtime: {{name}} rendering, suffix-operator conditions, show_if
// content filtering, if/elif/else navigation, weighted draws and progressive
// hints. Nothing here performs I/O.
package logic
