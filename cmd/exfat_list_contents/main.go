package main

import (
	"fmt"
	"os"

	"path/filepath"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/dsoprea/go-exfat-reader"
)

type rootParameters struct {
	Filepath       string `short:"f" long:"filepath" description:"File-path of exFAT filesystem" required:"true"`
	FilenameFilter string `short:"p" long:"pattern" description:"Filename filter"`
	ShowDetail     bool   `short:"d" long:"detail" description:"Show additional entry detail"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	f, err := os.Open(rootArguments.Filepath)
	log.PanicIf(err)

	defer f.Close()

	root, err := exfat.OpenImage(f)
	log.PanicIf(err)

	paths, items, err := exfat.List(root)
	log.PanicIf(err)

	for _, currentPath := range paths {
		item := items[currentPath]

		if rootArguments.FilenameFilter != "" {
			// Since the paths are separated by Windows-standard backward-
			// slashes, they won't necessarily split correctly on all
			// platforms. Therefore, we just match against the item's own
			// name.
			isMatched, err := filepath.Match(rootArguments.FilenameFilter, item.Name())
			log.PanicIf(err)

			if isMatched != true {
				continue
			}
		}

		if rootArguments.ShowDetail == true {
			fmt.Printf("## %s\n", currentPath)
			fmt.Printf("\n")

			fmt.Printf("Attributes:\n")
			item.Attributes().DumpBareIndented("  ")
			fmt.Printf("\n")

			fmt.Printf("Created: [%s]\n", item.Timestamps().Created())
			fmt.Printf("Modified: [%s]\n", item.Timestamps().Modified())
			fmt.Printf("Accessed: [%s]\n", item.Timestamps().Accessed())

			if file, ok := item.(*exfat.File); ok == true {
				fmt.Printf("Size: (%d)\n", file.Size())
			}

			fmt.Printf("\n")
		} else {
			size := uint64(0)
			if file, ok := item.(*exfat.File); ok == true {
				size = file.Size()
			}

			fmt.Printf("%15s %30s %s\n", humanize.Comma(int64(size)), item.Timestamps().Modified(), currentPath)
		}
	}
}
