// This file defines the stable error kinds surfaced by the parser. Every
// failure mode that depends on the contents of the image maps to exactly one
// of these so that callers can distinguish a malformed image from an I/O
// problem.

package exfat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotExFat indicates that the boot region does not carry the exFAT
	// filesystem name or the must-be-zero range is not zeroed.
	ErrNotExFat = errors.New("image is not exFAT")

	// ErrInvalidBytesPerSectorShift indicates a BytesPerSectorShift outside
	// of [9, 12].
	ErrInvalidBytesPerSectorShift = errors.New("invalid BytesPerSectorShift")

	// ErrInvalidSectorsPerClusterShift indicates a SectorsPerClusterShift
	// greater than (25 - BytesPerSectorShift).
	ErrInvalidSectorsPerClusterShift = errors.New("invalid SectorsPerClusterShift")

	// ErrInvalidNumberOfFats indicates a NumberOfFats other than one or two,
	// or an active-FAT selection that points at a FAT the volume does not
	// carry.
	ErrInvalidNumberOfFats = errors.New("invalid NumberOfFats")

	// ErrInvalidVolumeLabel indicates a volume-label character-count greater
	// than eleven.
	ErrInvalidVolumeLabel = errors.New("invalid volume label")

	// ErrInvalidFatLength indicates that FatLength produces an offset that
	// does not fit in sixty-four bits.
	ErrInvalidFatLength = errors.New("invalid FatLength")

	// ErrInvalidFatOffset indicates that FatOffset produces an offset that
	// does not fit in sixty-four bits.
	ErrInvalidFatOffset = errors.New("invalid FatOffset")

	// ErrInvalidFirstCluster indicates an allocation whose first cluster is
	// below the cluster-heap floor or whose FAT chain is empty.
	ErrInvalidFirstCluster = errors.New("first cluster is not valid")

	// ErrInvalidDataLength indicates an allocation whose declared length is
	// inconsistent with its cluster chain (or is zero where a no-FAT-chain
	// extent requires it to be positive).
	ErrInvalidDataLength = errors.New("data length is not valid")

	// ErrMalformedEntrySet indicates a directory entry-set whose secondary
	// records are missing or of the wrong kind.
	ErrMalformedEntrySet = errors.New("malformed directory entry-set")

	// ErrBadChecksum indicates a directory entry-set whose computed checksum
	// does not match the declared one.
	ErrBadChecksum = errors.New("entry-set checksum mismatch")

	// ErrInvalidName indicates a declared name-length that the FileName
	// records of the entry-set cannot satisfy.
	ErrInvalidName = errors.New("invalid name in entry-set")

	// ErrTooManyAllocationBitmap indicates more than two Allocation Bitmap
	// entries in the root directory.
	ErrTooManyAllocationBitmap = errors.New("too many allocation bitmaps in root directory")

	// ErrWrongAllocationBitmap indicates an Allocation Bitmap whose bitmap-
	// index flag does not correspond to its position.
	ErrWrongAllocationBitmap = errors.New("allocation bitmap does not correspond to its FAT")

	// ErrMultipleUpcaseTable indicates more than one Up-case Table entry in
	// the root directory.
	ErrMultipleUpcaseTable = errors.New("multiple up-case tables in root directory")

	// ErrMultipleVolumeLabel indicates more than one Volume Label entry in
	// the root directory.
	ErrMultipleVolumeLabel = errors.New("multiple volume labels in root directory")

	// ErrNoAllocationBitmap indicates that the root directory carries fewer
	// Allocation Bitmaps than the volume has FATs.
	ErrNoAllocationBitmap = errors.New("missing allocation bitmap for a FAT")

	// ErrNoUpcaseTable indicates that the root directory carries no Up-case
	// Table.
	ErrNoUpcaseTable = errors.New("no up-case table")

	// ErrUnexpectedEof indicates that the byte source was exhausted in the
	// middle of a structure.
	ErrUnexpectedEof = errors.New("unexpected end of partition")

	// ErrInvalidSeek indicates a seek that would place the cursor before the
	// start of the stream.
	ErrInvalidSeek = errors.New("invalid seek")
)

// ClusterUnavailableError indicates that a chain referenced a cluster outside
// of the cluster heap.
type ClusterUnavailableError struct {
	Cluster uint32
}

func (cue ClusterUnavailableError) Error() string {
	return fmt.Sprintf("cluster (%d) is not available", cue.Cluster)
}

// ReadError decorates a byte-source failure with the offset that was being
// read.
type ReadError struct {
	Offset uint64
	Cause  error
}

func (re ReadError) Error() string {
	return fmt.Sprintf("cannot read data at (0x%016x): %s", re.Offset, re.Cause)
}

func (re ReadError) Unwrap() error {
	return re.Cause
}

// EntryError locates a directory-entry failure by record index and the
// cluster that holds the record.
type EntryError struct {
	Kind    error
	Index   int
	Cluster uint32
}

func (ee EntryError) Error() string {
	return fmt.Sprintf("%s: entry (%d) on cluster (%d)", ee.Kind, ee.Index, ee.Cluster)
}

func (ee EntryError) Unwrap() error {
	return ee.Kind
}

var (
	// ErrNotPrimaryEntry indicates a secondary record where a primary was
	// expected. Wrapped in an EntryError.
	ErrNotPrimaryEntry = errors.New("not a primary entry")

	// ErrNotFileEntry indicates a primary record other than a File entry in
	// a non-root directory. Wrapped in an EntryError.
	ErrNotFileEntry = errors.New("not a file entry")

	// ErrUnknownEntry indicates an unrecognized primary record in the root
	// directory. Wrapped in an EntryError.
	ErrUnknownEntry = errors.New("unknown directory entry")
)

func newEntryError(kind error, index int, cluster uint32) EntryError {
	return EntryError{
		Kind:    kind,
		Index:   index,
		Cluster: cluster,
	}
}
