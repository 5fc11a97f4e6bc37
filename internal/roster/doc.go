// Package roster supplies the lists of test user IDs a batch runs against.
//
// Lists are plain values. Lab returns the accounts provisioned in the lab
// identity provider; LoadFile reads a list from a YAML or text file.
package roster
