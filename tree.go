// This file supports browsing the filesystem at the tree level: a recursive
// walk over the item API and a flat path listing derived from it.

package exfat

import (
	"strings"

	"github.com/dsoprea/go-logging"
)

// WalkVisitorFunc is a visitor callback invoked for every item reachable
// from the root. pathParts holds the item's path components, the item's own
// name last.
type WalkVisitorFunc func(pathParts []string, item Item) (err error)

// Walk traverses the whole volume depth-first. Within one directory the
// subdirectories are visited (and descended into) in on-disk order first,
// then the files.
func Walk(root *Root, cb WalkVisitorFunc) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	err = walkItems(root.Items(), nil, cb)
	log.PanicIf(err)

	return nil
}

func walkItems(items []Item, pathParts []string, cb WalkVisitorFunc) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	files := make([]Item, 0)

	for _, item := range items {
		d, ok := item.(*Directory)
		if ok == false {
			files = append(files, item)
			continue
		}

		childPathParts := make([]string, len(pathParts)+1)
		copy(childPathParts, pathParts)
		childPathParts[len(childPathParts)-1] = d.Name()

		err := cb(childPathParts, d)
		log.PanicIf(err)

		children, err := d.Open()
		log.PanicIf(err)

		err = walkItems(children, childPathParts, cb)
		log.PanicIf(err)
	}

	// Do the files all at once, at the bottom.
	for _, item := range files {
		childPathParts := make([]string, len(pathParts)+1)
		copy(childPathParts, pathParts)
		childPathParts[len(childPathParts)-1] = item.Name()

		err := cb(childPathParts, item)
		log.PanicIf(err)
	}

	return nil
}

// List returns every path on the volume along with the item it resolves to.
// Path components are joined with Windows-standard backward-slashes.
func List(root *Root) (paths []string, items map[string]Item, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	paths = make([]string, 0)
	items = make(map[string]Item)

	cb := func(pathParts []string, item Item) (err error) {
		itemPath := strings.Join(pathParts, `\`)

		paths = append(paths, itemPath)
		items[itemPath] = item

		return nil
	}

	err = Walk(root, cb)
	log.PanicIf(err)

	return paths, items, nil
}
