// This file implements the public facade: opening a volume, scanning the
// root directory, and the Directory/File objects handed to callers.

package exfat

import (
	"io"

	"github.com/dsoprea/go-logging"
)

// volume is the shared state of one open filesystem: the byte source, the
// validated geometry and the active FAT. It is created at open and never
// mutated; Directory, File and ClustersReader objects all reference the same
// instance.
type volume struct {
	p      DiskPartition
	params *Params
	fat    *Fat
}

// Item is one member of a directory listing: a *Directory or a *File.
type Item interface {
	// Name returns the decoded filename.
	Name() string

	// Timestamps returns the created/modified/accessed triple.
	Timestamps() Timestamps

	// Attributes returns the entry's attribute bits.
	Attributes() FileAttributes
}

// Root is an opened exFAT filesystem: the parsed metadata of the root
// directory plus its top-level items.
type Root struct {
	vol *volume
	bsh BootSectorHeader

	volumeLabel    string
	hasVolumeLabel bool

	items []Item
}

// Open parses the boot region and the root directory of the volume
// presented by the given partition.
func Open(p DiskPartition) (root *Root, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	bsh, err := parseBootSectorHeader(p)
	log.PanicIf(err)

	params, err := NewParams(bsh)
	log.PanicIf(err)

	fat, err := LoadFat(p, params, params.VolumeFlags.ActiveFat())
	log.PanicIf(err)

	vol := &volume{
		p:      p,
		params: params,
		fat:    fat,
	}

	// The root directory's length is not declared anywhere; the stream runs
	// to the end of the FAT chain.
	cr, err := NewClustersReader(p, params, fat, params.FirstClusterOfRootDirectory)
	log.PanicIf(err)

	er := NewEntriesReader(cr)

	root = &Root{
		vol: vol,
		bsh: bsh,
	}

	var allocationBitmaps [2]*ClusterAllocation
	upcaseTableSeen := false

	for {
		record, err := er.ReadRecord()
		log.PanicIf(err)

		ty := record.Type

		if ty.IsRegular() == false {
			break
		}

		if ty.IsPrimary() == false {
			log.Panic(newEntryError(ErrNotPrimaryEntry, record.Index, record.Cluster))
		}

		if ty.IsCritical() == false {
			log.Panic(newEntryError(ErrUnknownEntry, record.Index, record.Cluster))
		}

		switch ty.TypeCode() {
		case 1:
			// Allocation Bitmap. One bitmap per FAT, in order.

			index := 0
			if allocationBitmaps[1] != nil {
				log.Panic(ErrTooManyAllocationBitmap)
			} else if allocationBitmaps[0] != nil {
				index = 1
			}

			if int(record.Data[1]&1) != index {
				log.Panic(ErrWrongAllocationBitmap)
			}

			ca, err := loadClusterAllocation(record)
			log.PanicIf(err)

			allocationBitmaps[index] = &ca
		case 2:
			// Up-case Table. Presence only; the contents are not read.

			if upcaseTableSeen == true {
				log.Panic(ErrMultipleUpcaseTable)
			}

			_, err := loadClusterAllocation(record)
			log.PanicIf(err)

			upcaseTableSeen = true
		case 3:
			// Volume Label.

			if root.hasVolumeLabel == true {
				log.Panic(ErrMultipleVolumeLabel)
			}

			parsedRaw, err := parseDirectoryEntry(ty, record.Data)
			log.PanicIf(err)

			vlde := parsedRaw.(*ExfatVolumeLabelDirectoryEntry)

			if vlde.CharacterCount > 11 {
				log.Panic(ErrInvalidVolumeLabel)
			}

			root.volumeLabel = vlde.Label()
			root.hasVolumeLabel = true
		case 5:
			// File.

			fe, err := loadFileEntry(record, er)
			log.PanicIf(err)

			root.items = append(root.items, newItem(vol, fe))
		default:
			log.Panic(newEntryError(ErrUnknownEntry, record.Index, record.Cluster))
		}
	}

	if params.NumberOfFats == 2 {
		if allocationBitmaps[1] == nil {
			log.Panic(ErrNoAllocationBitmap)
		}
	} else if allocationBitmaps[0] == nil {
		log.Panic(ErrNoAllocationBitmap)
	}

	if upcaseTableSeen == false {
		log.Panic(ErrNoUpcaseTable)
	}

	return root, nil
}

// OpenImage is a convenience form of Open over a seekable stream.
func OpenImage(rs io.ReadSeeker) (root *Root, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	image, err := NewImage(rs)
	log.PanicIf(err)

	root, err = Open(image)
	log.PanicIf(err)

	return root, nil
}

// VolumeLabel returns the volume label, or an empty string when the root
// directory carries none.
func (root *Root) VolumeLabel() string {
	return root.volumeLabel
}

// HasVolumeLabel indicates whether a volume label is present.
func (root *Root) HasVolumeLabel() bool {
	return root.hasVolumeLabel
}

// Items returns the top-level files and directories, in on-disk order.
func (root *Root) Items() []Item {
	return root.items
}

// BootSectorHeader returns the raw boot-sector header the volume was opened
// with.
func (root *Root) BootSectorHeader() BootSectorHeader {
	return root.bsh
}

// Params returns the validated volume geometry.
func (root *Root) Params() Params {
	return *root.vol.params
}

func newItem(vol *volume, fe FileEntry) Item {
	if fe.Attributes.IsDirectory() == true {
		return &Directory{
			vol:        vol,
			name:       fe.Name,
			attributes: fe.Attributes,
			stream:     fe.Stream,
			timestamps: fe.Timestamps,
		}
	}

	return &File{
		vol:        vol,
		name:       fe.Name,
		attributes: fe.Attributes,
		stream:     fe.Stream,
		size:       fe.Stream.ValidDataLength,
		timestamps: fe.Timestamps,
	}
}

// Directory is one subdirectory of an open volume.
type Directory struct {
	vol        *volume
	name       string
	attributes FileAttributes
	stream     ExfatStreamExtensionDirectoryEntry
	timestamps Timestamps
}

// Name returns the directory's name.
func (d *Directory) Name() string {
	return d.name
}

// Timestamps returns the directory's timestamps.
func (d *Directory) Timestamps() Timestamps {
	return d.timestamps
}

// Attributes returns the directory's attribute bits.
func (d *Directory) Attributes() FileAttributes {
	return d.attributes
}

// Open reads the directory's entry stream and returns its items in on-disk
// order. Only File entry-sets may occur below the root.
func (d *Directory) Open() (items []Item, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	cr, err := NewClustersReaderFromAllocation(d.vol.p, d.vol.params, d.vol.fat, d.stream.Allocation())
	log.PanicIf(err)

	er := NewEntriesReader(cr)

	items = make([]Item, 0)

	for {
		record, err := er.ReadRecord()
		log.PanicIf(err)

		ty := record.Type

		if ty.IsRegular() == false {
			break
		}

		if ty.IsPrimary() == false {
			log.Panic(newEntryError(ErrNotPrimaryEntry, record.Index, record.Cluster))
		}

		if ty.IsCritical() == false || ty.TypeCode() != 5 {
			log.Panic(newEntryError(ErrNotFileEntry, record.Index, record.Cluster))
		}

		fe, err := loadFileEntry(record, er)
		log.PanicIf(err)

		items = append(items, newItem(d.vol, fe))
	}

	return items, nil
}

// File is one file of an open volume. It implements io.Reader and io.Seeker
// over the file's valid data; the cluster stream underneath is constructed
// on first use.
type File struct {
	vol        *volume
	name       string
	attributes FileAttributes
	stream     ExfatStreamExtensionDirectoryEntry
	size       uint64
	timestamps Timestamps

	reader *ClustersReader
}

// Name returns the file's name.
func (f *File) Name() string {
	return f.name
}

// Timestamps returns the file's timestamps.
func (f *File) Timestamps() Timestamps {
	return f.timestamps
}

// Attributes returns the file's attribute bits.
func (f *File) Attributes() FileAttributes {
	return f.attributes
}

// Size returns the file's valid data length. Allocated bytes beyond it are
// undefined and are not exposed.
func (f *File) Size() uint64 {
	return f.size
}

// IsEmpty indicates a zero-length file.
func (f *File) IsEmpty() bool {
	return f.size == 0
}

// isEmptyStream indicates a file with no allocation at all: nothing to read
// and nowhere to seek.
func (f *File) isEmptyStream() bool {
	return f.stream.FirstCluster == 0
}

func (f *File) ensureReader() (cr *ClustersReader, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	if f.reader == nil {
		// The stream is deliberately sized to the valid data length rather
		// than the allocation's data length: reads beyond valid data return
		// EOF even when clusters are allocated there.
		allocation := ClusterAllocation{
			FirstCluster: f.stream.FirstCluster,
			DataLength:   f.size,
			NoFatChain:   f.stream.GeneralSecondaryFlags.NoFatChain(),
		}

		reader, err := NewClustersReaderFromAllocation(f.vol.p, f.vol.params, f.vol.fat, allocation)
		log.PanicIf(err)

		f.reader = reader
	}

	return f.reader, nil
}

// Read implements io.Reader over the file's valid data.
func (f *File) Read(buf []byte) (n int, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	if f.isEmptyStream() == true {
		if len(buf) == 0 {
			return 0, nil
		}

		return 0, io.EOF
	}

	cr, err := f.ensureReader()
	log.PanicIf(err)

	n, err = cr.Read(buf)
	if err == io.EOF {
		return 0, io.EOF
	}

	log.PanicIf(err)

	return n, nil
}

// Seek implements io.Seeker with the same clamping rules as the cluster
// stream. An empty file clamps every in-range seek to zero.
func (f *File) Seek(offset int64, whence int) (position int64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	if f.isEmptyStream() == true {
		position, err := resolveSeek(0, 0, offset, whence)
		log.PanicIf(err)

		return int64(position), nil
	}

	cr, err := f.ensureReader()
	log.PanicIf(err)

	position, err = cr.Seek(offset, whence)
	log.PanicIf(err)

	return position, nil
}

// Rewind moves the cursor back to the start of the file.
func (f *File) Rewind() (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	if f.isEmptyStream() == true {
		return nil
	}

	cr, err := f.ensureReader()
	log.PanicIf(err)

	cr.Rewind()

	return nil
}

// StreamPosition returns the current read offset.
func (f *File) StreamPosition() (position uint64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	if f.isEmptyStream() == true {
		return 0, nil
	}

	cr, err := f.ensureReader()
	log.PanicIf(err)

	return cr.StreamPosition(), nil
}
