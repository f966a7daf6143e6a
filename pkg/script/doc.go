// Package script runs author-supplied Lua hooks against activity metadata.
//
// A script sees two globals: metadata, a table holding a copy of the run's
// metadata, and script_result, initially nil. After the script finishes the
// runner reads both back. Only the base, string, table and math libraries are
// opened and the chunk loaders are removed, so a script cannot reach the file
// system or load further code.
package script
