// This file loads the File Allocation Table and materializes cluster chains
// from it.

package exfat

import (
	"github.com/dsoprea/go-logging"
)

// MappedCluster represents one entry in the FAT: the successor of the cluster
// the entry is indexed by, or a sentinel.
type MappedCluster uint32

// IsBad indicates that the corresponding cluster has been marked as having
// one or more bad sectors.
func (mc MappedCluster) IsBad() bool {
	return mc == 0xfffffff7
}

// IsLast indicates that no more clusters follow the cluster that led to this
// entry.
func (mc MappedCluster) IsLast() bool {
	return mc == 0xffffffff
}

// Fat is the collection of all FAT entries of one table. Entry indices zero
// and one are reserved; entry N maps cluster N for N of two and up.
type Fat struct {
	entries []MappedCluster
}

// LoadFat reads the FAT with the given index (zero or one) into memory. The
// offset derivations are checked; an image whose FatLength or FatOffset
// overflow the address space is rejected rather than read from a wrapped
// offset.
func LoadFat(p DiskPartition, params *Params, index int) (fat *Fat, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	skipped, ok := checkedMul(params.FatLength, uint64(index))
	if ok == false {
		log.Panic(ErrInvalidFatLength)
	}

	sector, ok := checkedAdd(params.FatOffset, skipped)
	if ok == false {
		log.Panic(ErrInvalidFatOffset)
	}

	offset, ok := checkedMul(sector, params.BytesPerSector)
	if ok == false {
		log.Panic(ErrInvalidFatOffset)
	}

	entryCount := uint64(params.ClusterCount) + 2

	raw := make([]byte, entryCount*4)

	err = ReadExact(p, offset, raw)
	log.PanicIf(err)

	entries := make([]MappedCluster, entryCount)
	for i := range entries {
		entries[i] = MappedCluster(defaultEncoding.Uint32(raw[i*4:]))
	}

	fat = &Fat{
		entries: entries,
	}

	return fat, nil
}

// EntryCount returns the number of entries in the table, including the two
// reserved ones.
func (fat *Fat) EntryCount() int {
	return len(fat.entries)
}

// Entry returns the mapping for the given cluster.
func (fat *Fat) Entry(cluster uint32) MappedCluster {
	return fat.entries[cluster]
}

// Chain materializes the cluster chain starting at the given cluster. The
// walk terminates on an index below two, an index beyond the table, or a
// bad-cluster sentinel; the conventional end-of-chain value is beyond the
// table and therefore needs no special case. The emitted length is bounded
// by the table size so that a cyclic FAT still terminates, quietly, as if
// truncated.
func (fat *Fat) Chain(first uint32) (chain []uint32) {
	chain = make([]uint32, 0)

	current := uint64(first)
	for len(chain) < len(fat.entries) {
		if current < 2 || current >= uint64(len(fat.entries)) {
			break
		}

		entry := fat.entries[current]
		if entry.IsBad() == true {
			break
		}

		chain = append(chain, uint32(current))
		current = uint64(entry)
	}

	return chain
}
