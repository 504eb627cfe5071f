// This file manages the boot region: the raw boot-sector header as it exists
// on disk, and the validated Params geometry that every other component
// derives offsets from.

package exfat

import (
	"bytes"
	"fmt"
	"reflect"

	"encoding/binary"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

const (
	bootSectorHeaderSize = 512
)

var (
	defaultEncoding = binary.LittleEndian

	requiredFileSystemName = []byte("EXFAT   ")
)

// BootSectorHeader describes the main set of filesystem parameters, laid out
// exactly as the first 512 bytes of the volume.
type BootSectorHeader struct {
	// JumpBoot: boot-strapping jump instruction (Section 3.1.1). Not
	// interpreted here.
	JumpBoot [3]byte

	// FileSystemName: must be "EXFAT   " with three trailing spaces
	// (Section 3.1.2).
	FileSystemName [8]byte

	// MustBeZero: the range a FAT12/16/32 BIOS parameter block would occupy;
	// all zero on an exFAT volume (Section 3.1.3).
	MustBeZero [53]byte

	// PartitionOffset: media-relative sector offset of this partition
	// (Section 3.1.4). Zero means "ignore".
	PartitionOffset uint64

	// VolumeLength: size of the volume in sectors (Section 3.1.5).
	VolumeLength uint64

	// FatOffset: volume-relative sector offset of the first FAT
	// (Section 3.1.6).
	FatOffset uint32

	// FatLength: length of each FAT in sectors (Section 3.1.7).
	FatLength uint32

	// ClusterHeapOffset: volume-relative sector offset of the cluster heap
	// (Section 3.1.8).
	ClusterHeapOffset uint32

	// ClusterCount: number of clusters in the cluster heap (Section 3.1.9).
	ClusterCount uint32

	// FirstClusterOfRootDirectory: cluster index of the first cluster of the
	// root directory; at least two, at most ClusterCount + 1
	// (Section 3.1.10).
	FirstClusterOfRootDirectory uint32

	// VolumeSerialNumber: unique serial number derived from the format time
	// (Section 3.1.11).
	VolumeSerialNumber uint32

	// FileSystemRevision: minor then major revision number (Section 3.1.12).
	FileSystemRevision [2]uint8

	// VolumeFlags: status flags; excluded from the boot checksum and stale
	// in the backup boot sector (Section 3.1.13).
	VolumeFlags VolumeFlags

	// BytesPerSectorShift: bytes per sector expressed as log2(N); nine
	// through twelve (Section 3.1.14).
	BytesPerSectorShift uint8

	// SectorsPerClusterShift: sectors per cluster expressed as log2(N); at
	// most 25 - BytesPerSectorShift (Section 3.1.15).
	SectorsPerClusterShift uint8

	// NumberOfFats: one, or two for TexFAT volumes (Section 3.1.16).
	NumberOfFats uint8

	// DriveSelect: extended INT 13h drive number (Section 3.1.17).
	DriveSelect uint8

	// PercentInUse: rounded-down percentage of allocated clusters, or 0xff
	// when unknown (Section 3.1.18).
	PercentInUse uint8

	// Reserved: contents reserved.
	Reserved [7]byte

	// BootCode: boot-strapping instructions (Section 3.1.19).
	BootCode [390]byte

	// BootSignature: 0xaa55 for a valid boot sector (Section 3.1.20).
	BootSignature uint16
}

// SectorSize returns the effective sector size in bytes.
func (bsh BootSectorHeader) SectorSize() uint64 {
	return uint64(1) << bsh.BytesPerSectorShift
}

// SectorsPerCluster returns the effective sectors-per-cluster count.
func (bsh BootSectorHeader) SectorsPerCluster() uint64 {
	return uint64(1) << bsh.SectorsPerClusterShift
}

// String returns a description of the BSH.
func (bsh BootSectorHeader) String() string {
	return fmt.Sprintf("BootSector<SN=(0x%08x) REVISION=(0x%02x)-(0x%02x)>", bsh.VolumeSerialNumber, bsh.FileSystemRevision[0], bsh.FileSystemRevision[1])
}

// Dump prints all of the BSH parameters along with the common calculated
// ones.
func (bsh BootSectorHeader) Dump() {
	fmt.Printf("Boot Sector Header\n")
	fmt.Printf("==================\n")
	fmt.Printf("\n")

	fmt.Printf("PartitionOffset: (%d)\n", bsh.PartitionOffset)
	fmt.Printf("VolumeLength: (%d)\n", bsh.VolumeLength)
	fmt.Printf("FatOffset: (%d)\n", bsh.FatOffset)
	fmt.Printf("FatLength: (%d)\n", bsh.FatLength)
	fmt.Printf("ClusterHeapOffset: (%d)\n", bsh.ClusterHeapOffset)
	fmt.Printf("ClusterCount: (%d)\n", bsh.ClusterCount)
	fmt.Printf("FirstClusterOfRootDirectory: (%d)\n", bsh.FirstClusterOfRootDirectory)
	fmt.Printf("VolumeSerialNumber: (0x%08x)\n", bsh.VolumeSerialNumber)
	fmt.Printf("FileSystemRevision: (0x%02x) (0x%02x)\n", bsh.FileSystemRevision[0], bsh.FileSystemRevision[1])
	fmt.Printf("BytesPerSectorShift: (%d)\n", bsh.BytesPerSectorShift)
	fmt.Printf("-> Sector-size: 2^(%d) -> %d\n", bsh.BytesPerSectorShift, bsh.SectorSize())
	fmt.Printf("SectorsPerClusterShift: (%d)\n", bsh.SectorsPerClusterShift)
	fmt.Printf("-> Sectors-per-cluster: 2^(%d) -> %d\n", bsh.SectorsPerClusterShift, bsh.SectorsPerCluster())
	fmt.Printf("NumberOfFats: (%d)\n", bsh.NumberOfFats)
	fmt.Printf("DriveSelect: (%d)\n", bsh.DriveSelect)
	fmt.Printf("PercentInUse: (%d)\n", bsh.PercentInUse)
	fmt.Printf("\n")

	fmt.Printf("VolumeFlags: (%d)\n", bsh.VolumeFlags)
	bsh.VolumeFlags.DumpBareIndented("  ")

	fmt.Printf("\n")
}

const (
	// VolumeFlagActiveFat selects which FAT and Allocation Bitmap are
	// active; a set bit is only possible when NumberOfFats is two
	// (Section 3.1.13.1).
	VolumeFlagActiveFat VolumeFlags = 1

	// VolumeFlagVolumeDirty describes whether the volume is probably in an
	// inconsistent state (Section 3.1.13.2).
	VolumeFlagVolumeDirty = 2

	// VolumeFlagMediaFailure describes whether the hosting media has
	// reported unresolved failures (Section 3.1.13.3).
	VolumeFlagMediaFailure = 4
)

// VolumeFlags represents the state flags of the filesystem.
type VolumeFlags uint16

// ActiveFat returns the index of the FAT and Allocation Bitmap in use: zero
// for the first, one for the second.
func (vf VolumeFlags) ActiveFat() int {
	return int(vf & VolumeFlagActiveFat)
}

// IsDirty indicates that the volume was not cleanly unmounted and may be
// inconsistent.
func (vf VolumeFlags) IsDirty() bool {
	return vf&VolumeFlagVolumeDirty > 0
}

// HasHadMediaFailures indicates whether media errors have been detected.
func (vf VolumeFlags) HasHadMediaFailures() bool {
	return vf&VolumeFlagMediaFailure > 0
}

// DumpBareIndented prints the volume flags with arbitrary indentation.
func (vf VolumeFlags) DumpBareIndented(indent string) {
	fmt.Printf("%sRaw Value: (%08b)\n", indent, vf)
	fmt.Printf("%sActiveFat: (%d)\n", indent, vf.ActiveFat())
	fmt.Printf("%sIsDirty: [%v]\n", indent, vf.IsDirty())
	fmt.Printf("%sHasHadMediaFailures: [%v]\n", indent, vf.HasHadMediaFailures())
}

// Params carries the validated geometry of an open volume. It is derived
// from the boot-sector header once and never mutated.
type Params struct {
	// FatOffset is the volume-relative sector offset of the first FAT.
	FatOffset uint64

	// FatLength is the length of each FAT in sectors.
	FatLength uint64

	// ClusterHeapOffset is the volume-relative sector offset of the cluster
	// heap.
	ClusterHeapOffset uint64

	// ClusterCount is the number of clusters in the cluster heap, excluding
	// the two reserved indices.
	ClusterCount uint32

	// FirstClusterOfRootDirectory is the first cluster of the root
	// directory's entry stream.
	FirstClusterOfRootDirectory uint32

	// VolumeFlags carries the active-FAT and dirty bits.
	VolumeFlags VolumeFlags

	// BytesPerSector is the sector size in bytes.
	BytesPerSector uint64

	// SectorsPerCluster is the cluster size in sectors.
	SectorsPerCluster uint64

	// NumberOfFats is one or two.
	NumberOfFats uint8
}

// ClusterSize returns the allocation-unit size in bytes.
func (params *Params) ClusterSize() uint64 {
	return params.BytesPerSector * params.SectorsPerCluster
}

// ClusterOffset returns the byte offset of the given cluster within the
// partition. The second return is false when the cluster lies outside of the
// cluster heap or the offset does not fit in sixty-four bits.
func (params *Params) ClusterOffset(cluster uint32) (offset uint64, ok bool) {
	if cluster < 2 || uint64(cluster) > uint64(params.ClusterCount)+1 {
		return 0, false
	}

	sectors, ok := checkedMul(uint64(cluster-2), params.SectorsPerCluster)
	if ok == false {
		return 0, false
	}

	sector, ok := checkedAdd(params.ClusterHeapOffset, sectors)
	if ok == false {
		return 0, false
	}

	return checkedMul(sector, params.BytesPerSector)
}

func checkedAdd(a, b uint64) (sum uint64, ok bool) {
	sum = a + b
	return sum, sum >= a
}

func checkedMul(a, b uint64) (product uint64, ok bool) {
	if a == 0 {
		return 0, true
	}

	product = a * b
	return product, product/a == b
}

func parseBootSectorHeader(p DiskPartition) (bsh BootSectorHeader, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(err).Name(), err)
			}
		}
	}()

	raw := make([]byte, bootSectorHeaderSize)

	err = ReadExact(p, 0, raw)
	log.PanicIf(err)

	err = restruct.Unpack(raw, defaultEncoding, &bsh)
	log.PanicIf(err)

	if bytes.Equal(bsh.FileSystemName[:], requiredFileSystemName) != true {
		log.Panic(ErrNotExFat)
	}

	for _, c := range bsh.MustBeZero {
		if c != 0 {
			log.Panic(ErrNotExFat)
		}
	}

	return bsh, nil
}

// NewParams validates the boot-sector header and derives the volume geometry
// from it.
func NewParams(bsh BootSectorHeader) (params *Params, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	if bsh.BytesPerSectorShift < 9 || bsh.BytesPerSectorShift > 12 {
		log.Panic(ErrInvalidBytesPerSectorShift)
	}

	if bsh.SectorsPerClusterShift > 25-bsh.BytesPerSectorShift {
		log.Panic(ErrInvalidSectorsPerClusterShift)
	}

	if bsh.NumberOfFats != 1 && bsh.NumberOfFats != 2 {
		log.Panic(ErrInvalidNumberOfFats)
	}

	// The active FAT must actually be present on the volume.
	if bsh.VolumeFlags.ActiveFat() == 1 && bsh.NumberOfFats == 1 {
		log.Panic(ErrInvalidNumberOfFats)
	}

	params = &Params{
		FatOffset:                   uint64(bsh.FatOffset),
		FatLength:                   uint64(bsh.FatLength),
		ClusterHeapOffset:           uint64(bsh.ClusterHeapOffset),
		ClusterCount:                bsh.ClusterCount,
		FirstClusterOfRootDirectory: bsh.FirstClusterOfRootDirectory,
		VolumeFlags:                 bsh.VolumeFlags,
		BytesPerSector:              bsh.SectorSize(),
		SectorsPerCluster:           bsh.SectorsPerCluster(),
		NumberOfFats:                bsh.NumberOfFats,
	}

	return params, nil
}
