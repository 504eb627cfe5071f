// This file handles the 32-byte directory-entry records: classifying them,
// unpacking the specific entry structures, and assembling File entry-sets
// from a record stream.

package exfat

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

const (
	// Every directory entry is 32 bytes (Section 6.1).
	directoryEntryBytesCount = 32

	// Each FileName entry carries up to fifteen UTF-16 code units
	// (Section 7.7.3).
	fileNameEntryUnitCount = 15
)

// EntryType decomposes the first byte of a directory-entry record.
type EntryType uint8

// IsEndOfDirectory indicates that this is the last entry in the directory.
func (et EntryType) IsEndOfDirectory() bool {
	return et == 0
}

// IsUnusedEntryMarker indicates that the record is a deleted-entry
// placeholder.
func (et EntryType) IsUnusedEntryMarker() bool {
	return et >= 0x01 && et <= 0x7f
}

// IsRegular indicates that the record is in use and unremarkable.
func (et EntryType) IsRegular() bool {
	return et >= 0x81 && et <= 0xff
}

// TypeCode indicates the general type of the entry. This is only unique in
// combination with the importance and category flags.
func (et EntryType) TypeCode() int {
	return int(et & 31)
}

// TypeImportance indicates whether the entry-type is benign rather than
// critical.
func (et EntryType) TypeImportance() bool {
	return et&32 > 0
}

// IsCritical indicates whether the importance flag is cleared.
func (et EntryType) IsCritical() bool {
	return et.TypeImportance() == false
}

// IsBenign indicates whether the importance flag is set.
func (et EntryType) IsBenign() bool {
	return et.TypeImportance() == true
}

// TypeCategory indicates whether this is a secondary record accompanying a
// primary record.
func (et EntryType) TypeCategory() bool {
	return et&64 > 0
}

// IsPrimary indicates whether the category flag is cleared.
func (et EntryType) IsPrimary() bool {
	return et.TypeCategory() == false
}

// IsSecondary indicates whether the category flag is set.
func (et EntryType) IsSecondary() bool {
	return et.TypeCategory() == true
}

// IsInUse indicates that the record's in-use bit is set.
func (et EntryType) IsInUse() bool {
	return et&128 > 0
}

// String returns a descriptive string.
func (et EntryType) String() string {
	return fmt.Sprintf("EntryType<TYPE-CODE=(%d) IS-CRITICAL=[%v] IS-PRIMARY=[%v] IS-IN-USE=[%v]>", et.TypeCode(), et.IsCritical(), et.IsPrimary(), et.IsInUse())
}

// Dump prints all flags/states embedded in the entry-type value.
func (et EntryType) Dump() {
	fmt.Printf("Entry Type\n")
	fmt.Printf("==========\n")
	fmt.Printf("\n")

	fmt.Printf("TypeCode: (%d)\n", et.TypeCode())
	fmt.Printf("IsCritical: [%v]\n", et.IsCritical())
	fmt.Printf("IsPrimary: [%v]\n", et.IsPrimary())
	fmt.Printf("IsInUse: [%v]\n", et.IsInUse())
	fmt.Printf("IsEndOfDirectory: [%v]\n", et.IsEndOfDirectory())
	fmt.Printf("IsUnusedEntryMarker: [%v]\n", et.IsUnusedEntryMarker())
	fmt.Printf("IsRegular: [%v]\n", et.IsRegular())
	fmt.Printf("\n")
}

// FileAttributes decomposes the attributes of a file/directory.
type FileAttributes uint16

// IsReadOnly returns whether the file should be read-only.
func (fa FileAttributes) IsReadOnly() bool {
	return fa&1 > 0
}

// IsHidden returns whether the file should be hidden from standard listings.
func (fa FileAttributes) IsHidden() bool {
	return fa&2 > 0
}

// IsSystem returns the system flag.
func (fa FileAttributes) IsSystem() bool {
	return fa&4 > 0
}

// IsDirectory returns whether this entry is a directory.
func (fa FileAttributes) IsDirectory() bool {
	return fa&16 > 0
}

// IsArchive returns whether the archive flag has been set.
func (fa FileAttributes) IsArchive() bool {
	return fa&32 > 0
}

// String returns a descriptive string.
func (fa FileAttributes) String() string {
	return fmt.Sprintf("FileAttributes<IS-READONLY=[%v] IS-HIDDEN=[%v] IS-SYSTEM=[%v] IS-DIRECTORY=[%v] IS-ARCHIVE=[%v]>",
		fa.IsReadOnly(), fa.IsHidden(), fa.IsSystem(), fa.IsDirectory(), fa.IsArchive())
}

// DumpBareIndented prints the attribute states with arbitrary indentation.
func (fa FileAttributes) DumpBareIndented(indent string) {
	fmt.Printf("%sRead Only? [%v]\n", indent, fa.IsReadOnly())
	fmt.Printf("%sHidden? [%v]\n", indent, fa.IsHidden())
	fmt.Printf("%sSystem? [%v]\n", indent, fa.IsSystem())
	fmt.Printf("%sDirectory? [%v]\n", indent, fa.IsDirectory())
	fmt.Printf("%sArchive? [%v]\n", indent, fa.IsArchive())
}

// GeneralSecondaryFlags decomposes the flags embedded in secondary directory
// entries.
type GeneralSecondaryFlags uint8

// IsAllocationPossible indicates that the entry can reference a cluster
// allocation.
func (gsf GeneralSecondaryFlags) IsAllocationPossible() bool {
	return gsf&1 > 0
}

// NoFatChain indicates that the allocation is one contiguous series of
// clusters and the FAT entries for them are not to be interpreted.
func (gsf GeneralSecondaryFlags) NoFatChain() bool {
	return gsf&2 > 0
}

// String returns a descriptive string.
func (gsf GeneralSecondaryFlags) String() string {
	return fmt.Sprintf("GeneralSecondaryFlags<IsAllocationPossible=[%v] NoFatChain=[%v]>",
		gsf.IsAllocationPossible(), gsf.NoFatChain())
}

// ExfatFileDirectoryEntry describes a File entry: the primary record of the
// entry-set describing one file or directory (Section 7.4).
type ExfatFileDirectoryEntry struct {
	// EntryType: 0x85 when in use.
	EntryType EntryType

	// SecondaryCountRaw: how many secondary records belong to this set.
	SecondaryCountRaw uint8

	// SetChecksum: 16-bit rotating checksum over the whole set, excluding
	// these two bytes.
	SetChecksum uint16

	// FileAttributes: read-only/hidden/system/directory/archive bits.
	FileAttributes FileAttributes

	// Reserved1: contents reserved.
	Reserved1 uint16

	// CreateTimestampRaw: packed creation date/time.
	CreateTimestampRaw uint32

	// LastModifiedTimestampRaw: packed modification date/time.
	LastModifiedTimestampRaw uint32

	// LastAccessedTimestampRaw: packed access date/time.
	LastAccessedTimestampRaw uint32

	// Create10msIncrement: refinement of the creation timestamp.
	Create10msIncrement uint8

	// LastModified10msIncrement: refinement of the modification timestamp.
	LastModified10msIncrement uint8

	// CreateUtcOffset: UTC offset of the creation timestamp.
	CreateUtcOffset uint8

	// LastModifiedUtcOffset: UTC offset of the modification timestamp.
	LastModifiedUtcOffset uint8

	// LastAccessedUtcOffset: UTC offset of the access timestamp.
	LastAccessedUtcOffset uint8

	// Reserved2: contents reserved.
	Reserved2 [7]byte
}

// SecondaryCount indicates how many of the subsequent secondary entries
// belong to this entry.
func (fdf ExfatFileDirectoryEntry) SecondaryCount() uint8 {
	return fdf.SecondaryCountRaw
}

// CreateTimestamp returns the assembled creation timestamp.
func (fdf ExfatFileDirectoryEntry) CreateTimestamp() Timestamp {
	return NewTimestamp(fdf.CreateTimestampRaw, fdf.Create10msIncrement, int8(fdf.CreateUtcOffset))
}

// LastModifiedTimestamp returns the assembled modification timestamp.
func (fdf ExfatFileDirectoryEntry) LastModifiedTimestamp() Timestamp {
	return NewTimestamp(fdf.LastModifiedTimestampRaw, fdf.LastModified10msIncrement, int8(fdf.LastModifiedUtcOffset))
}

// LastAccessedTimestamp returns the assembled access timestamp. The access
// timestamp carries no 10ms refinement.
func (fdf ExfatFileDirectoryEntry) LastAccessedTimestamp() Timestamp {
	return NewTimestamp(fdf.LastAccessedTimestampRaw, 0, int8(fdf.LastAccessedUtcOffset))
}

// String returns a descriptive string.
func (fdf ExfatFileDirectoryEntry) String() string {
	return fmt.Sprintf("FileDirectoryEntry<SECONDARY-COUNT=(%d) CTIME=[%s] MTIME=[%s] ATIME=[%s]>",
		fdf.SecondaryCountRaw,
		fdf.CreateTimestamp(), fdf.LastModifiedTimestamp(), fdf.LastAccessedTimestamp())
}

// Dump prints the file entry's info to STDOUT.
func (fdf ExfatFileDirectoryEntry) Dump() {
	fmt.Printf("File Directory Entry\n")
	fmt.Printf("====================\n")
	fmt.Printf("\n")

	fmt.Printf("SecondaryCount: (%d)\n", fdf.SecondaryCount())
	fmt.Printf("SetChecksum: (0x%04x)\n", fdf.SetChecksum)
	fmt.Printf("CreateTimestamp: [%s]\n", fdf.CreateTimestamp())
	fmt.Printf("LastModifiedTimestamp: [%s]\n", fdf.LastModifiedTimestamp())
	fmt.Printf("LastAccessedTimestamp: [%s]\n", fdf.LastAccessedTimestamp())
	fmt.Printf("\n")

	fmt.Printf("Attributes:\n")

	fdf.FileAttributes.DumpBareIndented("  ")

	fmt.Printf("\n")
}

// ExfatStreamExtensionDirectoryEntry describes the actual contents of a file
// (Section 7.6). It is the first secondary record of every File entry-set.
type ExfatStreamExtensionDirectoryEntry struct {
	// EntryType: 0xc0 when in use.
	EntryType EntryType

	// GeneralSecondaryFlags: allocation-possible and no-FAT-chain bits.
	GeneralSecondaryFlags GeneralSecondaryFlags

	// Reserved1: contents reserved.
	Reserved1 [1]byte

	// NameLength: length of the filename in UTF-16 code units.
	NameLength uint8

	// NameHash: hash of the up-cased filename; not interpreted here.
	NameHash uint16

	// Reserved2: contents reserved.
	Reserved2 [2]byte

	// ValidDataLength: how far into the data stream user data has been
	// written. Bytes between this and DataLength are undefined and are not
	// exposed. For directories this always equals DataLength.
	ValidDataLength uint64

	// Reserved3: contents reserved.
	Reserved3 [4]byte

	// FirstCluster: first cluster of the allocation; zero for an empty
	// file.
	FirstCluster uint32

	// DataLength: size of the allocation in bytes.
	DataLength uint64
}

// Allocation returns the entry's cluster allocation.
func (sede ExfatStreamExtensionDirectoryEntry) Allocation() ClusterAllocation {
	return ClusterAllocation{
		FirstCluster: sede.FirstCluster,
		DataLength:   sede.DataLength,
		NoFatChain:   sede.GeneralSecondaryFlags.NoFatChain(),
	}
}

// String returns a descriptive string.
func (sede ExfatStreamExtensionDirectoryEntry) String() string {
	return fmt.Sprintf("StreamExtensionDirectoryEntry<GENERAL-SECONDARY-FLAGS=(%08b) NAME-LENGTH=(%d) VALID-DATA-LENGTH=(%d) FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>",
		sede.GeneralSecondaryFlags, sede.NameLength, sede.ValidDataLength, sede.FirstCluster, sede.DataLength)
}

// Dump prints the stream entry's info to STDOUT.
func (sede ExfatStreamExtensionDirectoryEntry) Dump() {
	fmt.Printf("Stream Extension Directory Entry\n")
	fmt.Printf("================================\n")
	fmt.Printf("\n")

	fmt.Printf("NameLength: (%d)\n", sede.NameLength)
	fmt.Printf("NameHash: (0x%04x)\n", sede.NameHash)
	fmt.Printf("ValidDataLength: (%d)\n", sede.ValidDataLength)
	fmt.Printf("FirstCluster: (%d)\n", sede.FirstCluster)
	fmt.Printf("DataLength: (%d)\n", sede.DataLength)
	fmt.Printf("GeneralSecondaryFlags: %s\n", sede.GeneralSecondaryFlags)
	fmt.Printf("\n")
}

// ExfatFileNameDirectoryEntry carries one part of a filename (Section 7.7).
type ExfatFileNameDirectoryEntry struct {
	// EntryType: 0xc1 when in use.
	EntryType EntryType

	// GeneralSecondaryFlags: no allocation is possible for this type.
	GeneralSecondaryFlags GeneralSecondaryFlags

	// FileName: up to fifteen UTF-16LE code units.
	FileName [30]byte
}

// String returns a descriptive string.
func (fnde ExfatFileNameDirectoryEntry) String() string {
	return fmt.Sprintf("FileNameDirectoryEntry<GENERAL-SECONDARY-FLAGS=(%08b) FILENAME=%v>", fnde.GeneralSecondaryFlags, fnde.FileName[:])
}

// ExfatAllocationBitmapDirectoryEntry points to the cluster chain holding an
// allocation bitmap (Section 7.1). Its contents are not read here.
type ExfatAllocationBitmapDirectoryEntry struct {
	// EntryType: 0x81 when in use.
	EntryType EntryType

	// BitmapFlags: bit zero is the bitmap index (which FAT the bitmap
	// corresponds to).
	BitmapFlags uint8

	// Reserved: contents reserved.
	Reserved [18]byte

	// FirstCluster: first cluster of the bitmap.
	FirstCluster uint32

	// DataLength: size of the bitmap in bytes.
	DataLength uint64
}

// BitmapIndex returns which FAT/Allocation-Bitmap pair this bitmap belongs
// to: zero or one.
func (abde ExfatAllocationBitmapDirectoryEntry) BitmapIndex() int {
	return int(abde.BitmapFlags & 1)
}

// String returns a descriptive string.
func (abde ExfatAllocationBitmapDirectoryEntry) String() string {
	return fmt.Sprintf("AllocationBitmapDirectoryEntry<BITMAP-FLAGS=[%08b] FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>", abde.BitmapFlags, abde.FirstCluster, abde.DataLength)
}

// ExfatUpcaseTableDirectoryEntry points to the cluster chain holding the
// up-case table (Section 7.2). Its contents are not read here.
type ExfatUpcaseTableDirectoryEntry struct {
	// EntryType: 0x82 when in use.
	EntryType EntryType

	// Reserved1: contents reserved.
	Reserved1 [3]byte

	// TableChecksum: checksum of the table data; not validated here.
	TableChecksum uint32

	// Reserved2: contents reserved.
	Reserved2 [12]byte

	// FirstCluster: first cluster of the table.
	FirstCluster uint32

	// DataLength: size of the table in bytes.
	DataLength uint64
}

// String returns a descriptive string.
func (utde ExfatUpcaseTableDirectoryEntry) String() string {
	return fmt.Sprintf("UpcaseTableDirectoryEntry<TABLE-CHECKSUM=[0x%08x] FIRST-CLUSTER=(%d) DATA-LENGTH=(%d)>", utde.TableChecksum, utde.FirstCluster, utde.DataLength)
}

// ExfatVolumeLabelDirectoryEntry embeds the volume label (Section 7.3).
type ExfatVolumeLabelDirectoryEntry struct {
	// EntryType: 0x83 when in use.
	EntryType EntryType

	// CharacterCount: length of the label in UTF-16 code units; at most
	// eleven.
	CharacterCount uint8

	// VolumeLabel: the label plus the reserved tail; tools in the wild use
	// both, so they're kept together here.
	VolumeLabel [30]byte
}

// Label constructs and returns the decoded label.
func (vlde ExfatVolumeLabelDirectoryEntry) Label() string {
	return UnicodeFromAscii(vlde.VolumeLabel[:], int(vlde.CharacterCount))
}

// String returns a descriptive string.
func (vlde ExfatVolumeLabelDirectoryEntry) String() string {
	return fmt.Sprintf("VolumeLabelDirectoryEntry<CHARACTER-COUNT=(%d) LABEL=[%s]>", vlde.CharacterCount, vlde.Label())
}

// DirectoryEntryParserKey describes the combination of attributes that
// uniquely identify an entry-type (Section 6.2.1.1).
type DirectoryEntryParserKey struct {
	typeCode   int
	isCritical bool
	isPrimary  bool
}

// String returns a descriptive string.
func (depk DirectoryEntryParserKey) String() string {
	return fmt.Sprintf("DirectoryEntryParserKey<TYPE-CODE=(%d) IS-CRITICAL=[%v] IS-PRIMARY=[%v]>", depk.typeCode, depk.isCritical, depk.isPrimary)
}

var (
	// directoryEntryParsers maps the entry-types interpreted by this
	// implementation to their structures.
	directoryEntryParsers = map[DirectoryEntryParserKey]reflect.Type{
		// Allocation Bitmap (Section 7.1)
		{typeCode: 1, isCritical: true, isPrimary: true}: reflect.TypeOf(ExfatAllocationBitmapDirectoryEntry{}),

		// Up-case Table (Section 7.2)
		{typeCode: 2, isCritical: true, isPrimary: true}: reflect.TypeOf(ExfatUpcaseTableDirectoryEntry{}),

		// Volume Label (Section 7.3)
		{typeCode: 3, isCritical: true, isPrimary: true}: reflect.TypeOf(ExfatVolumeLabelDirectoryEntry{}),

		// File (Section 7.4)
		{typeCode: 5, isCritical: true, isPrimary: true}: reflect.TypeOf(ExfatFileDirectoryEntry{}),

		// Stream Extension (Section 7.6)
		{typeCode: 0, isCritical: true, isPrimary: false}: reflect.TypeOf(ExfatStreamExtensionDirectoryEntry{}),

		// File Name (Section 7.7)
		{typeCode: 1, isCritical: true, isPrimary: false}: reflect.TypeOf(ExfatFileNameDirectoryEntry{}),
	}
)

func parseDirectoryEntry(entryType EntryType, directoryEntryData []byte) (parsed interface{}, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	depk := DirectoryEntryParserKey{
		typeCode:   entryType.TypeCode(),
		isCritical: entryType.IsCritical(),
		isPrimary:  entryType.IsPrimary(),
	}

	structType, found := directoryEntryParsers[depk]
	if found == false {
		log.Panicf("no struct-type recorded for entry-type: %s", depk)
	}

	s := reflect.New(structType)
	x := s.Interface()

	err = restruct.Unpack(directoryEntryData, defaultEncoding, x)
	log.PanicIf(err)

	return x, nil
}

// ClusterAllocation is the portion of a directory entry that references a
// cluster run.
type ClusterAllocation struct {
	// FirstCluster is the first cluster of the run; zero when nothing is
	// allocated.
	FirstCluster uint32

	// DataLength is the run's size in bytes.
	DataLength uint64

	// NoFatChain indicates the run is contiguous and the FAT is not to be
	// consulted for it.
	NoFatChain bool
}

// String returns a descriptive string.
func (ca ClusterAllocation) String() string {
	return fmt.Sprintf("ClusterAllocation<FIRST-CLUSTER=(%d) DATA-LENGTH=(%d) NO-FAT-CHAIN=[%v]>", ca.FirstCluster, ca.DataLength, ca.NoFatChain)
}

// DirectoryEntryRecord is one raw record as produced by the record cursor,
// annotated with its position for diagnostics.
type DirectoryEntryRecord struct {
	// Type is the record's first byte.
	Type EntryType

	// Data is the full 32-byte record.
	Data []byte

	// Index is the record index within the directory's stream.
	Index int

	// Cluster is the cluster that holds the record.
	Cluster uint32
}

// EntriesReader is a cursor over the 32-byte records of one directory's
// logical stream.
type EntriesReader struct {
	cr    *ClustersReader
	index int
}

// NewEntriesReader returns a cursor over the given stream.
func NewEntriesReader(cr *ClustersReader) *EntriesReader {
	return &EntriesReader{
		cr: cr,
	}
}

// ReadRecord returns the next record and advances the cursor by 32 bytes. A
// stream that ends mid-record, or without an end-of-directory record,
// surfaces as ErrUnexpectedEof.
func (er *EntriesReader) ReadRecord() (record DirectoryEntryRecord, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	cluster := er.cr.Cluster()

	data := make([]byte, directoryEntryBytesCount)

	for filled := 0; filled < len(data); {
		n, err := er.cr.Read(data[filled:])
		if err != nil {
			if errors.Is(err, io.EOF) == true {
				log.Panic(ErrUnexpectedEof)
			}

			log.Panic(err)
		}

		filled += n
	}

	record = DirectoryEntryRecord{
		Type:    EntryType(data[0]),
		Data:    data,
		Index:   er.index,
		Cluster: cluster,
	}

	er.index++

	return record, nil
}

// FileEntry is one fully-assembled and validated File entry-set: the
// primary File record, its Stream Extension and the name carried by its
// FileName records.
type FileEntry struct {
	// Name is the decoded filename.
	Name string

	// Attributes carries the directory/read-only/hidden/system/archive
	// bits.
	Attributes FileAttributes

	// Stream is the set's Stream Extension record.
	Stream ExfatStreamExtensionDirectoryEntry

	// Timestamps is the created/modified/accessed triple.
	Timestamps Timestamps
}

// loadFileEntry assembles the entry-set whose primary File record was just
// read from the cursor: it consumes the declared secondary records,
// validates their kinds and the set checksum, and decodes the name.
func loadFileEntry(primary DirectoryEntryRecord, er *EntriesReader) (fe FileEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	parsedRaw, err := parseDirectoryEntry(primary.Type, primary.Data)
	log.PanicIf(err)

	fdf := parsedRaw.(*ExfatFileDirectoryEntry)

	// A File entry always carries at least a Stream Extension and one
	// FileName record.
	if fdf.SecondaryCountRaw < 2 {
		log.Panic(newEntryError(ErrMalformedEntrySet, primary.Index, primary.Cluster))
	}

	checksum := entrySetChecksum(0, primary.Data, true)

	// The first secondary must be the Stream Extension.

	record, err := er.ReadRecord()
	log.PanicIf(err)

	if record.Type.IsRegular() == false || record.Type.IsSecondary() == false || record.Type.IsCritical() == false || record.Type.TypeCode() != 0 {
		log.Panic(newEntryError(ErrMalformedEntrySet, record.Index, record.Cluster))
	}

	checksum = entrySetChecksum(checksum, record.Data, false)

	parsedRaw, err = parseDirectoryEntry(record.Type, record.Data)
	log.PanicIf(err)

	sede := parsedRaw.(*ExfatStreamExtensionDirectoryEntry)

	if sede.ValidDataLength > sede.DataLength {
		log.Panic(newEntryError(ErrMalformedEntrySet, record.Index, record.Cluster))
	}

	// The remaining secondaries must all be FileName records.

	unitCapacity := int(fdf.SecondaryCountRaw-1) * fileNameEntryUnitCount

	if sede.NameLength == 0 || int(sede.NameLength) > unitCapacity {
		log.Panic(newEntryError(ErrInvalidName, record.Index, record.Cluster))
	}

	units := make([]uint16, 0, unitCapacity)

	for i := uint8(1); i < fdf.SecondaryCountRaw; i++ {
		record, err := er.ReadRecord()
		log.PanicIf(err)

		if record.Type.IsRegular() == false || record.Type.IsSecondary() == false || record.Type.IsCritical() == false || record.Type.TypeCode() != 1 {
			log.Panic(newEntryError(ErrMalformedEntrySet, record.Index, record.Cluster))
		}

		checksum = entrySetChecksum(checksum, record.Data, false)

		for j := 0; j < fileNameEntryUnitCount; j++ {
			units = append(units, defaultEncoding.Uint16(record.Data[2+j*2:]))
		}
	}

	if checksum != fdf.SetChecksum {
		log.Panic(newEntryError(ErrBadChecksum, primary.Index, primary.Cluster))
	}

	fe = FileEntry{
		Name:       UnicodeFromUnits(units[:sede.NameLength]),
		Attributes: fdf.FileAttributes,
		Stream:     *sede,
		Timestamps: NewTimestamps(fdf.CreateTimestamp(), fdf.LastModifiedTimestamp(), fdf.LastAccessedTimestamp()),
	}

	return fe, nil
}

// loadClusterAllocation extracts and validates the cluster allocation of an
// Allocation Bitmap or Up-case Table record, whose FirstCluster/DataLength
// fields share one layout.
func loadClusterAllocation(record DirectoryEntryRecord) (ca ClusterAllocation, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	firstCluster := defaultEncoding.Uint32(record.Data[20:])
	dataLength := defaultEncoding.Uint64(record.Data[24:])

	if firstCluster < 2 {
		log.Panic(newEntryError(ErrInvalidFirstCluster, record.Index, record.Cluster))
	}

	if dataLength == 0 {
		log.Panic(newEntryError(ErrInvalidDataLength, record.Index, record.Cluster))
	}

	ca = ClusterAllocation{
		FirstCluster: firstCluster,
		DataLength:   dataLength,
	}

	return ca, nil
}

// entrySetChecksum folds one 32-byte record into the running entry-set
// checksum: rotate right by one, then add each byte. The primary record
// contributes all of its bytes except the two that hold the checksum
// itself.
func entrySetChecksum(checksum uint16, record []byte, isPrimary bool) uint16 {
	for i, b := range record {
		if isPrimary == true && (i == 2 || i == 3) {
			continue
		}

		checksum = (checksum<<15 | checksum>>1) + uint16(b)
	}

	return checksum
}
