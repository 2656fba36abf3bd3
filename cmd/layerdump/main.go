// layerdump prints the contents of an image layer file for debugging.
//
// Usage:
//
//	layerdump [-verbose] <layer file>...
//
// The file is opened by path: identity is taken from the on-disk summary
// and a file name that disagrees with it only produces a warning.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/em3ndez/neon/pkg/layer"
)

func main() {
	verbose := flag.Bool("verbose", false, "walk the index and print every key")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [-verbose] <layer file>...\n", os.Args[0])
		os.Exit(2)
	}

	exitCode := 0
	for _, path := range flag.Args() {
		if err := dump(path, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func dump(path string, verbose bool) error {
	l, err := layer.NewImageLayerForPath(path)
	if err != nil {
		return err
	}
	return l.Dump(verbose)
}
