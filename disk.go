// This file defines the byte-source capability that the parser reads the
// partition image through, and an adapter that presents any io.ReadSeeker as
// one.

package exfat

import (
	"io"
	"sync"

	"github.com/dsoprea/go-logging"
)

// DiskPartition is a positional byte source presenting a raw exFAT partition.
// Read may return fewer bytes than requested; a count of zero indicates the
// end of the partition. Read must be safe to call concurrently if handles to
// the open volume are shared between goroutines.
type DiskPartition interface {
	Read(offset uint64, buf []byte) (n int, err error)
}

// ReadExact reads from the partition until buf is filled. A premature end of
// the partition surfaces as ErrUnexpectedEof.
func ReadExact(p DiskPartition, offset uint64, buf []byte) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	for len(buf) > 0 {
		n, err := p.Read(offset, buf)
		if err != nil {
			log.Panic(ReadError{Offset: offset, Cause: err})
		}

		if n == 0 {
			log.Panic(ErrUnexpectedEof)
		}

		offset += uint64(n)
		buf = buf[n:]
	}

	return nil
}

// Image adapts a seekable stream (usually an *os.File with a raw image) to
// the DiskPartition interface. Reads are serialized behind a mutex that also
// tracks the current seek position, so a read at the position the stream is
// already at does not pay for a redundant seek.
type Image struct {
	mutex    sync.Mutex
	rs       io.ReadSeeker
	position uint64
}

// NewImage returns an Image over the given stream. The stream's current
// position is taken as-is; callers normally hand in a freshly-opened file.
func NewImage(rs io.ReadSeeker) (image *Image, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	position, err := rs.Seek(0, io.SeekCurrent)
	log.PanicIf(err)

	image = &Image{
		rs:       rs,
		position: uint64(position),
	}

	return image, nil
}

// Read satisfies DiskPartition with one positional read against the
// underlying stream.
func (image *Image) Read(offset uint64, buf []byte) (n int, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	image.mutex.Lock()
	defer image.mutex.Unlock()

	if offset != image.position {
		effective, err := image.rs.Seek(int64(offset), io.SeekStart)
		log.PanicIf(err)

		// The requested offset is beyond what the stream can address.
		if uint64(effective) != offset {
			return 0, nil
		}

		image.position = offset
	}

	n, err = image.rs.Read(buf)
	if err == io.EOF {
		image.position += uint64(n)
		return n, nil
	}

	log.PanicIf(err)

	image.position += uint64(n)

	return n, nil
}
