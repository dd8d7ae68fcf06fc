package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage information to the given writer.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `lodestone - Embedded versioned key/value store

Usage:
  lodestone <command> [options]

Commands:
  stats       Show space accounting for a store file
  get         Look up a single key
  set         Store a key/value pair
  delete      Remove a key
  keys        List keys in ascending order
  version     Show version information

Use "lodestone <command> -h" for more information about a command.
`)
}

// printStatsUsage prints the stats command usage.
func printStatsUsage(w io.Writer) {
	fmt.Fprint(w, `Show space accounting for a store file

Usage:
  lodestone stats -file <path> [options]

Options:
  -file string
        Store file path (required)
  -page-size int
        Page size the store was created with (default 4096)
  -h, -help
        Show this help message
`)
}

// printGetUsage prints the get command usage.
func printGetUsage(w io.Writer) {
	fmt.Fprint(w, `Look up a single key

Usage:
  lodestone get -file <path> -key <key> [options]

Options:
  -file string
        Store file path (required)
  -key string
        Key to look up (required)
  -page-size int
        Page size the store was created with (default 4096)
  -h, -help
        Show this help message
`)
}

// printSetUsage prints the set command usage.
func printSetUsage(w io.Writer) {
	fmt.Fprint(w, `Store a key/value pair

Usage:
  lodestone set -file <path> -key <key> -value <value> [options]

Options:
  -file string
        Store file path (required)
  -key string
        Key to store (required)
  -value string
        Value to store
  -page-size int
        Page size the store was created with (default 4096)
  -h, -help
        Show this help message
`)
}

// printDeleteUsage prints the delete command usage.
func printDeleteUsage(w io.Writer) {
	fmt.Fprint(w, `Remove a key

Usage:
  lodestone delete -file <path> -key <key> [options]

Options:
  -file string
        Store file path (required)
  -key string
        Key to delete (required)
  -page-size int
        Page size the store was created with (default 4096)
  -h, -help
        Show this help message
`)
}

// printKeysUsage prints the keys command usage.
func printKeysUsage(w io.Writer) {
	fmt.Fprint(w, `List keys in ascending order

Usage:
  lodestone keys -file <path> [options]

Options:
  -file string
        Store file path (required)
  -prefix string
        Only list keys starting with this prefix
  -values
        Print values alongside keys
  -page-size int
        Page size the store was created with (default 4096)
  -h, -help
        Show this help message
`)
}

// printVersionUsage prints the version command usage.
func printVersionUsage(w io.Writer) {
	fmt.Fprint(w, `Show version information

Usage:
  lodestone version [options]

Options:
  -short
        Show only version number
  -h, -help
        Show this help message
`)
}
