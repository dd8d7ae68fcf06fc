// Package main provides CLI commands for inspecting and editing lodestone
// store files.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/lodestone-db/lodestone"
)

// statsCmd handles the stats command.
func statsCmd(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	file := fs.String("file", "", "Store file path")
	pageSize := fs.Int("page-size", 0, "Page size the store was created with")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		printStatsUsage(os.Stdout)
		return 0
	}

	s, ok := openReadOnly(*file, *pageSize)
	if !ok {
		return 1
	}
	defer s.Close()

	stats := s.Stats()
	fmt.Printf("Store: %s\n", *file)
	fmt.Printf("  Live pages:      %d\n", stats.LivePages)
	fmt.Printf("  Free pages:      %d\n", stats.FreePages)
	fmt.Printf("  Refcount pages:  %d\n", stats.RefCountPages)
	fmt.Printf("  File size:       %d bytes\n", stats.Bytes)
	fmt.Printf("  Last txn id:     %d\n", stats.LastTxnID)

	return 0
}

// getCmd handles the get command.
func getCmd(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	file := fs.String("file", "", "Store file path")
	pageSize := fs.Int("page-size", 0, "Page size the store was created with")
	key := fs.String("key", "", "Key to look up")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		printGetUsage(os.Stdout)
		return 0
	}

	if *key == "" {
		fmt.Fprintln(os.Stderr, "Error: -key is required")
		return 1
	}

	s, ok := openReadOnly(*file, *pageSize)
	if !ok {
		return 1
	}
	defer s.Close()

	var value []byte
	var found bool
	err := s.View(func(tx *lodestone.ReadTxn) error {
		var err error
		value, found, err = tx.Get([]byte(*key))
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading key: %v\n", err)
		return 1
	}
	if !found {
		fmt.Fprintf(os.Stderr, "Key not found: %s\n", *key)
		return 1
	}

	os.Stdout.Write(value)
	fmt.Println()
	return 0
}

// setCmd handles the set command.
func setCmd(args []string) int {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	file := fs.String("file", "", "Store file path")
	pageSize := fs.Int("page-size", 0, "Page size the store was created with")
	key := fs.String("key", "", "Key to store")
	value := fs.String("value", "", "Value to store")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		printSetUsage(os.Stdout)
		return 0
	}

	if *key == "" {
		fmt.Fprintln(os.Stderr, "Error: -key is required")
		return 1
	}

	s, ok := openWritable(*file, *pageSize)
	if !ok {
		return 1
	}
	defer s.Close()

	err := s.Update(func(tx *lodestone.WriteTxn) error {
		return tx.Put([]byte(*key), []byte(*value))
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing key: %v\n", err)
		return 1
	}

	fmt.Printf("Stored %q (%d bytes)\n", *key, len(*value))
	return 0
}

// deleteCmd handles the delete command.
func deleteCmd(args []string) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	file := fs.String("file", "", "Store file path")
	pageSize := fs.Int("page-size", 0, "Page size the store was created with")
	key := fs.String("key", "", "Key to delete")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		printDeleteUsage(os.Stdout)
		return 0
	}

	if *key == "" {
		fmt.Fprintln(os.Stderr, "Error: -key is required")
		return 1
	}

	s, ok := openWritable(*file, *pageSize)
	if !ok {
		return 1
	}
	defer s.Close()

	var found bool
	err := s.Update(func(tx *lodestone.WriteTxn) error {
		var err error
		found, err = tx.Delete([]byte(*key))
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting key: %v\n", err)
		return 1
	}
	if !found {
		fmt.Fprintf(os.Stderr, "Key not found: %s\n", *key)
		return 1
	}

	fmt.Printf("Deleted %q\n", *key)
	return 0
}

// keysCmd handles the keys command.
func keysCmd(args []string) int {
	fs := flag.NewFlagSet("keys", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	file := fs.String("file", "", "Store file path")
	pageSize := fs.Int("page-size", 0, "Page size the store was created with")
	prefix := fs.String("prefix", "", "Only list keys starting with this prefix")
	values := fs.Bool("values", false, "Print values alongside keys")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		printKeysUsage(os.Stdout)
		return 0
	}

	s, ok := openReadOnly(*file, *pageSize)
	if !ok {
		return 1
	}
	defer s.Close()

	count := 0
	err := s.View(func(tx *lodestone.ReadTxn) error {
		it := tx.Seek([]byte(*prefix))
		for {
			k, v, ok := it.Next()
			if !ok {
				break
			}
			if *prefix != "" && !bytes.HasPrefix(k, []byte(*prefix)) {
				break
			}
			if *values {
				fmt.Printf("%s\t%s\n", k, v)
			} else {
				fmt.Printf("%s\n", k)
			}
			count++
		}
		return it.Err()
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing keys: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stderr, "%d key(s)\n", count)
	return 0
}

// openReadOnly opens a store file for inspection, printing errors to stderr.
func openReadOnly(file string, pageSize int) (*lodestone.Store, bool) {
	return openStore(file, pageSize, true)
}

// openWritable opens a store file for modification, printing errors to stderr.
func openWritable(file string, pageSize int) (*lodestone.Store, bool) {
	return openStore(file, pageSize, false)
}

func openStore(file string, pageSize int, readOnly bool) (*lodestone.Store, bool) {
	if file == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		return nil, false
	}

	opts := lodestone.DefaultOptions().WithReadOnly(readOnly)
	if pageSize != 0 {
		opts = opts.WithPageSize(pageSize)
	}

	s, err := lodestone.Open(file, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return nil, false
	}
	return s, true
}
