// Package utils holds small helpers shared by servers and tests. Tool input
// schemas are reflected from argument structs with invopop/jsonschema;
// CheckGoroutines verifies that goroutines exit.
package utils
