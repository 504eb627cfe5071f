package exfat

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/dsoprea/go-logging"
)

// The fixture is deliberately fragmented: the FAT chain from cluster (2)
// visits (2), (4), (3), in that order.
func getFragmentedFixture() (p DiskPartition, params *Params, fat *Fat, data []byte) {
	data = make([]byte, 128)
	for i := range data {
		data[i] = byte(i)
	}

	p = getTestPartition(data)

	params = &Params{
		ClusterHeapOffset: 0,
		ClusterCount:      8,
		BytesPerSector:    16,
		SectorsPerCluster: 1,
		NumberOfFats:      1,
	}

	fat = &Fat{
		entries: []MappedCluster{
			0xfffffff8, 0xffffffff,
			4,          // 2 -> 4
			0xffffffff, // 3 -> end
			3,          // 4 -> 3
			0, 0, 0, 0,
			0xfffffff7, // 9 is bad
		},
	}

	return p, params, fat, data
}

func fixtureExpectedBytes(data []byte) []byte {
	expected := make([]byte, 0, 48)
	expected = append(expected, data[0:16]...)
	expected = append(expected, data[32:48]...)
	expected = append(expected, data[16:32]...)

	return expected
}

func TestNewClustersReader(t *testing.T) {
	p, params, fat, data := getFragmentedFixture()

	cr, err := NewClustersReader(p, params, fat, 2)
	log.PanicIf(err)

	// No declared length: the stream spans the full chain capacity.
	if cr.DataLength() != 48 {
		t.Fatalf("Data-length not correct: (%d)", cr.DataLength())
	}

	recovered, err := io.ReadAll(cr)
	log.PanicIf(err)

	if bytes.Equal(recovered, fixtureExpectedBytes(data)) != true {
		t.Fatalf("Recovered data not correct: %v", recovered)
	}
}

func TestNewClustersReaderFromAllocation(t *testing.T) {
	p, params, fat, data := getFragmentedFixture()

	allocation := ClusterAllocation{
		FirstCluster: 2,
		DataLength:   40,
	}

	cr, err := NewClustersReaderFromAllocation(p, params, fat, allocation)
	log.PanicIf(err)

	if cr.DataLength() != 40 {
		t.Fatalf("Data-length not correct: (%d)", cr.DataLength())
	}

	recovered, err := io.ReadAll(cr)
	log.PanicIf(err)

	if bytes.Equal(recovered, fixtureExpectedBytes(data)[:40]) != true {
		t.Fatalf("Recovered data not correct: %v", recovered)
	}
}

func TestClustersReader_Read_OneClusterPerCall(t *testing.T) {
	p, params, fat, _ := getFragmentedFixture()

	allocation := ClusterAllocation{
		FirstCluster: 2,
		DataLength:   40,
	}

	cr, err := NewClustersReaderFromAllocation(p, params, fat, allocation)
	log.PanicIf(err)

	buffer := make([]byte, 64)

	n, err := cr.Read(buffer)
	log.PanicIf(err)

	if n != 16 {
		t.Fatalf("One read should yield at most one cluster: (%d)", n)
	}

	n, err = cr.Read(buffer)
	log.PanicIf(err)

	if n != 16 {
		t.Fatalf("Second read not correct: (%d)", n)
	}

	// The tail of the stream is a partial cluster.
	n, err = cr.Read(buffer)
	log.PanicIf(err)

	if n != 8 {
		t.Fatalf("Tail read not correct: (%d)", n)
	}

	if _, err := cr.Read(buffer); err != io.EOF {
		t.Fatalf("Expected EOF after tail: [%v]", err)
	}
}

func TestClustersReader_Read_EmptyBuffer(t *testing.T) {
	p, params, fat, _ := getFragmentedFixture()

	cr, err := NewClustersReader(p, params, fat, 2)
	log.PanicIf(err)

	n, err := cr.Read(nil)
	log.PanicIf(err)

	if n != 0 {
		t.Fatalf("Empty-buffer read not correct: (%d)", n)
	}
}

func TestClustersReader_NoFatChain(t *testing.T) {
	p, params, fat, data := getFragmentedFixture()

	// Clusters (5) and (6) are contiguous; their FAT entries are not
	// consulted.
	allocation := ClusterAllocation{
		FirstCluster: 5,
		DataLength:   32,
		NoFatChain:   true,
	}

	cr, err := NewClustersReaderFromAllocation(p, params, fat, allocation)
	log.PanicIf(err)

	recovered, err := io.ReadAll(cr)
	log.PanicIf(err)

	if bytes.Equal(recovered, data[48:80]) != true {
		t.Fatalf("Recovered data not correct: %v", recovered)
	}
}

func TestClustersReader_NoFatChain_ZeroLength(t *testing.T) {
	p, params, fat, _ := getFragmentedFixture()

	allocation := ClusterAllocation{
		FirstCluster: 5,
		DataLength:   0,
		NoFatChain:   true,
	}

	_, err := NewClustersReaderFromAllocation(p, params, fat, allocation)
	if isKind(err, ErrInvalidDataLength) != true {
		t.Fatalf("Expected data-length error: [%v]", err)
	}
}

func TestClustersReader_InvalidFirstCluster(t *testing.T) {
	p, params, fat, _ := getFragmentedFixture()

	for _, firstCluster := range []uint32{0, 1} {
		_, err := NewClustersReader(p, params, fat, firstCluster)
		if isKind(err, ErrInvalidFirstCluster) != true {
			t.Fatalf("Expected first-cluster error for (%d): [%v]", firstCluster, err)
		}
	}

	// Cluster (9) is marked bad, so its chain is empty.
	_, err := NewClustersReader(p, params, fat, 9)
	if isKind(err, ErrInvalidFirstCluster) != true {
		t.Fatalf("Expected first-cluster error for empty chain: [%v]", err)
	}
}

func TestClustersReader_DataLengthExceedsChain(t *testing.T) {
	p, params, fat, _ := getFragmentedFixture()

	allocation := ClusterAllocation{
		FirstCluster: 2,
		DataLength:   49,
	}

	_, err := NewClustersReaderFromAllocation(p, params, fat, allocation)
	if isKind(err, ErrInvalidDataLength) != true {
		t.Fatalf("Expected data-length error: [%v]", err)
	}
}

func TestClustersReader_ClusterUnavailable(t *testing.T) {
	p, params, fat, _ := getFragmentedFixture()

	// The second cluster of the extent, (10), lies beyond the heap.
	allocation := ClusterAllocation{
		FirstCluster: 9,
		DataLength:   32,
		NoFatChain:   true,
	}

	cr, err := NewClustersReaderFromAllocation(p, params, fat, allocation)
	log.PanicIf(err)

	buffer := make([]byte, 16)

	_, err = cr.Read(buffer)
	log.PanicIf(err)

	_, err = cr.Read(buffer)

	var cue ClusterUnavailableError
	if errors.As(err, &cue) != true {
		t.Fatalf("Expected cluster-unavailable error: [%v]", err)
	} else if cue.Cluster != 10 {
		t.Fatalf("Unavailable cluster not correct: (%d)", cue.Cluster)
	}
}

func TestClustersReader_Seek(t *testing.T) {
	p, params, fat, data := getFragmentedFixture()

	allocation := ClusterAllocation{
		FirstCluster: 2,
		DataLength:   40,
	}

	cr, err := NewClustersReaderFromAllocation(p, params, fat, allocation)
	log.PanicIf(err)

	// Start.

	position, err := cr.Seek(20, io.SeekStart)
	log.PanicIf(err)

	if position != 20 {
		t.Fatalf("Start-seek position not correct: (%d)", position)
	}

	recovered, err := io.ReadAll(cr)
	log.PanicIf(err)

	if bytes.Equal(recovered, fixtureExpectedBytes(data)[20:40]) != true {
		t.Fatalf("Post-seek read not correct: %v", recovered)
	}

	// Start past the end clamps.

	position, err = cr.Seek(100, io.SeekStart)
	log.PanicIf(err)

	if position != 40 {
		t.Fatalf("Clamped position not correct: (%d)", position)
	}

	// End.

	position, err = cr.Seek(0, io.SeekEnd)
	log.PanicIf(err)

	if position != 40 {
		t.Fatalf("End-seek position not correct: (%d)", position)
	}

	position, err = cr.Seek(-8, io.SeekEnd)
	log.PanicIf(err)

	if position != 32 {
		t.Fatalf("Negative end-seek position not correct: (%d)", position)
	}

	if _, err := cr.Seek(-41, io.SeekEnd); isKind(err, ErrInvalidSeek) != true {
		t.Fatalf("Expected invalid-seek error: [%v]", err)
	}

	// Current.

	position, err = cr.Seek(0, io.SeekStart)
	log.PanicIf(err)

	position, err = cr.Seek(10, io.SeekCurrent)
	log.PanicIf(err)

	if position != 10 {
		t.Fatalf("Current-seek position not correct: (%d)", position)
	}

	position, err = cr.Seek(0, io.SeekCurrent)
	log.PanicIf(err)

	if position != 10 {
		t.Fatalf("Zero current-seek should be idempotent: (%d)", position)
	}

	position, err = cr.Seek(-10, io.SeekCurrent)
	log.PanicIf(err)

	if position != 0 {
		t.Fatalf("Negative current-seek position not correct: (%d)", position)
	}

	if _, err := cr.Seek(-1, io.SeekCurrent); isKind(err, ErrInvalidSeek) != true {
		t.Fatalf("Expected invalid-seek error: [%v]", err)
	}

	if _, err := cr.Seek(-1, io.SeekStart); isKind(err, ErrInvalidSeek) != true {
		t.Fatalf("Expected invalid-seek error for negative start: [%v]", err)
	}
}

func TestClustersReader_RewindAndPosition(t *testing.T) {
	p, params, fat, data := getFragmentedFixture()

	cr, err := NewClustersReader(p, params, fat, 2)
	log.PanicIf(err)

	first, err := io.ReadAll(cr)
	log.PanicIf(err)

	if cr.StreamPosition() != 48 {
		t.Fatalf("Stream-position not correct: (%d)", cr.StreamPosition())
	}

	cr.Rewind()

	if cr.StreamPosition() != 0 {
		t.Fatalf("Stream-position after rewind not correct: (%d)", cr.StreamPosition())
	}

	second, err := io.ReadAll(cr)
	log.PanicIf(err)

	if bytes.Equal(first, second) != true {
		t.Fatalf("Reread after rewind not identical.")
	}

	if bytes.Equal(first, fixtureExpectedBytes(data)) != true {
		t.Fatalf("Recovered data not correct.")
	}
}

func TestClustersReader_Cluster(t *testing.T) {
	p, params, fat, _ := getFragmentedFixture()

	cr, err := NewClustersReader(p, params, fat, 2)
	log.PanicIf(err)

	if cr.Cluster() != 2 {
		t.Fatalf("Cluster under cursor not correct: (%d)", cr.Cluster())
	}

	_, err = cr.Seek(16, io.SeekStart)
	log.PanicIf(err)

	if cr.Cluster() != 4 {
		t.Fatalf("Cluster under cursor after seek not correct: (%d)", cr.Cluster())
	}
}
