// Package benchmarks measures client round trips and the hot paths of
// command parsing and response validation.
package benchmarks
