package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	"github.com/dsoprea/go-exfat-reader"
)

type rootParameters struct {
	FilesystemFilepath string `short:"f" long:"filesystem-filepath" description:"File-path of exFAT filesystem" required:"true"`
	ExtractFilepath    string `short:"e" long:"extract-filepath" description:"File-path to extract (use backward slashes)" required:"true"`
	OutputFilepath     string `short:"o" long:"output-filepath" description:"File-path to write to ('-' for STDOUT)" required:"true"`
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

	f, err := os.Open(rootArguments.FilesystemFilepath)
	log.PanicIf(err)

	defer f.Close()

	root, err := exfat.OpenImage(f)
	log.PanicIf(err)

	// The List() call provides a simple lookup for the complete path
	// strings, which avoids any interpretation/construction of path names on
	// our end.
	_, items, err := exfat.List(root)
	log.PanicIf(err)

	item, found := items[rootArguments.ExtractFilepath]
	if found != true {
		fmt.Printf("File not found.\n")
		os.Exit(2)
	}

	file, ok := item.(*exfat.File)
	if ok != true {
		fmt.Printf("Path is a directory.\n")
		os.Exit(2)
	}

	var g *os.File

	if rootArguments.OutputFilepath == "-" {
		g = os.Stdout
	} else {
		var err error

		g, err = os.Create(rootArguments.OutputFilepath)
		log.PanicIf(err)

		defer func() {
			g.Close()
		}()
	}

	_, err = io.Copy(g, file)
	log.PanicIf(err)

	if rootArguments.OutputFilepath != "-" {
		fmt.Printf("(%d) bytes written.\n", file.Size())
	}
}
