// This file implements the seekable logical byte stream over a cluster
// chain. The stream hides the physical fragmentation of the chain: callers
// see a contiguous run of dataLength bytes.

package exfat

import (
	"io"

	"github.com/dsoprea/go-logging"
)

// ClustersReader reads all data in a cluster chain as one logical stream. It
// implements io.Reader and io.Seeker.
type ClustersReader struct {
	p      DiskPartition
	params *Params

	// chain is the materialized FAT walk. It is nil for a no-FAT-chain
	// extent, whose clusters are computed from firstCluster instead.
	chain []uint32

	firstCluster uint32
	clusterSpan  uint64

	dataLength uint64
	offset     uint64
}

// NewClustersReader returns a stream over the FAT chain starting at the
// given cluster. The stream length is the full capacity of the chain. This
// is the form the root directory is read with, where no declared length
// exists.
func NewClustersReader(p DiskPartition, params *Params, fat *Fat, firstCluster uint32) (cr *ClustersReader, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	cr, err = newClustersReader(p, params, fat, firstCluster, 0, false, false)
	log.PanicIf(err)

	return cr, nil
}

// NewClustersReaderFromAllocation returns a stream over the given
// allocation, honoring its no-FAT-chain flag and sized to its declared
// length.
func NewClustersReaderFromAllocation(p DiskPartition, params *Params, fat *Fat, allocation ClusterAllocation) (cr *ClustersReader, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	cr, err = newClustersReader(p, params, fat, allocation.FirstCluster, allocation.DataLength, true, allocation.NoFatChain)
	log.PanicIf(err)

	return cr, nil
}

func newClustersReader(p DiskPartition, params *Params, fat *Fat, firstCluster uint32, dataLength uint64, haveDataLength, noFatChain bool) (cr *ClustersReader, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	if firstCluster < 2 {
		log.Panic(ErrInvalidFirstCluster)
	}

	clusterSize := params.ClusterSize()

	cr = &ClustersReader{
		p:            p,
		params:       params,
		firstCluster: firstCluster,
	}

	if noFatChain == true {
		// A no-FAT-chain extent is one contiguous series of clusters whose
		// FAT entries are invalid, and its declared length must be positive.
		if haveDataLength == false || dataLength == 0 {
			log.Panic(ErrInvalidDataLength)
		}

		cr.clusterSpan = (dataLength + clusterSize - 1) / clusterSize
		cr.dataLength = dataLength

		return cr, nil
	}

	chain := fat.Chain(firstCluster)
	if len(chain) == 0 {
		log.Panic(ErrInvalidFirstCluster)
	}

	capacity := uint64(len(chain)) * clusterSize

	if haveDataLength == true {
		if dataLength > capacity {
			log.Panic(ErrInvalidDataLength)
		}
	} else {
		dataLength = capacity
	}

	cr.chain = chain
	cr.clusterSpan = uint64(len(chain))
	cr.dataLength = dataLength

	return cr, nil
}

// DataLength returns the logical stream length in bytes.
func (cr *ClustersReader) DataLength() uint64 {
	return cr.dataLength
}

// StreamPosition returns the current stream offset.
func (cr *ClustersReader) StreamPosition() uint64 {
	return cr.offset
}

// Rewind moves the cursor back to the start of the stream.
func (cr *ClustersReader) Rewind() {
	cr.offset = 0
}

// Cluster returns the cluster under the cursor, for diagnostics.
func (cr *ClustersReader) Cluster() uint32 {
	index := cr.offset / cr.params.ClusterSize()
	if index >= cr.clusterSpan {
		index = cr.clusterSpan - 1
	}

	return cr.clusterAt(index)
}

func (cr *ClustersReader) clusterAt(index uint64) uint32 {
	if cr.chain != nil {
		return cr.chain[index]
	}

	// An extent running past the largest cluster index maps to cluster zero,
	// which lies outside of the heap.
	cluster := uint64(cr.firstCluster) + index
	if cluster > 0xffffffff {
		return 0
	}

	return uint32(cluster)
}

// Read fills buf from the stream and advances the cursor. One call returns
// at most the remainder of the cluster under the cursor; callers that need a
// full buffer should loop or use io.ReadFull.
func (cr *ClustersReader) Read(buf []byte) (n int, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	if len(buf) == 0 {
		return 0, nil
	}

	if cr.offset == cr.dataLength {
		return 0, io.EOF
	}

	clusterSize := cr.params.ClusterSize()

	index := cr.offset / clusterSize
	within := cr.offset % clusterSize

	cluster := cr.clusterAt(index)

	clusterOffset, ok := cr.params.ClusterOffset(cluster)
	if ok == false {
		log.Panic(ClusterUnavailableError{Cluster: cluster})
	}

	physical, ok := checkedAdd(clusterOffset, within)
	if ok == false {
		log.Panic(ClusterUnavailableError{Cluster: cluster})
	}

	remaining := clusterSize - within
	if total := cr.dataLength - cr.offset; total < remaining {
		remaining = total
	}

	amount := uint64(len(buf))
	if remaining < amount {
		amount = remaining
	}

	err = ReadExact(cr.p, physical, buf[:amount])
	log.PanicIf(err)

	cr.offset += amount

	return int(amount), nil
}

// Seek implements io.Seeker. The cursor clamps to [0, DataLength]; a seek
// that would land before the start of the stream fails with ErrInvalidSeek.
func (cr *ClustersReader) Seek(offset int64, whence int) (position int64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	absolute, err := resolveSeek(cr.offset, cr.dataLength, offset, whence)
	log.PanicIf(err)

	cr.offset = absolute

	return int64(absolute), nil
}

// resolveSeek applies the stream seek rules: forward motion clamps to the
// stream length, backward motion past the start is an error.
func resolveSeek(current, limit uint64, offset int64, whence int) (absolute uint64, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	switch whence {
	case io.SeekStart:
		if offset < 0 {
			log.Panic(ErrInvalidSeek)
		}

		absolute = clampOffset(uint64(offset), limit)
	case io.SeekEnd:
		if offset >= 0 {
			absolute = limit
		} else {
			distance := uint64(-offset)
			if distance > limit {
				log.Panic(ErrInvalidSeek)
			}

			absolute = limit - distance
		}
	case io.SeekCurrent:
		if offset >= 0 {
			target, ok := checkedAdd(current, uint64(offset))
			if ok == false {
				target = limit
			}

			absolute = clampOffset(target, limit)
		} else {
			distance := uint64(-offset)
			if distance > current {
				log.Panic(ErrInvalidSeek)
			}

			absolute = current - distance
		}
	default:
		log.Panic(ErrInvalidSeek)
	}

	return absolute, nil
}

func clampOffset(offset, limit uint64) uint64 {
	if offset > limit {
		return limit
	}

	return offset
}
