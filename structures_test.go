package exfat

import (
	"testing"

	"github.com/dsoprea/go-logging"
	"github.com/xaionaro-go/bytesextra"
)

func getTestPartition(data []byte) *Image {
	image, err := NewImage(bytesextra.NewReadWriteSeeker(data))
	log.PanicIf(err)

	return image
}

func TestParseBootSectorHeader(t *testing.T) {
	p := getTestPartition(buildTestImage())

	bsh, err := parseBootSectorHeader(p)
	log.PanicIf(err)

	if bsh.VolumeSerialNumber != 0x3d51a058 {
		t.Fatalf("Volume serial-number not correct: 0x%x", bsh.VolumeSerialNumber)
	} else if bsh.SectorSize() != 512 {
		t.Fatalf("Sector-size not correct: (%d)", bsh.SectorSize())
	} else if bsh.SectorsPerCluster() != 1 {
		t.Fatalf("Sectors-per-cluster not correct: (%d)", bsh.SectorsPerCluster())
	}
}

func TestParseBootSectorHeader_NotExFat(t *testing.T) {
	p := getTestPartition(make([]byte, 512))

	_, err := parseBootSectorHeader(p)
	if err == nil {
		t.Fatalf("Expected parse of zeroed boot sector to fail.")
	} else if isKind(err, ErrNotExFat) != true {
		t.Fatalf("Expected not-exfat error: [%s]", err)
	}
}

func TestParseBootSectorHeader_MustBeZeroViolation(t *testing.T) {
	data := buildTestImage()
	data[20] = 0xcc

	p := getTestPartition(data)

	_, err := parseBootSectorHeader(p)
	if isKind(err, ErrNotExFat) != true {
		t.Fatalf("Expected not-exfat error: [%v]", err)
	}
}

func TestNewParams(t *testing.T) {
	p := getTestPartition(buildTestImage())

	bsh, err := parseBootSectorHeader(p)
	log.PanicIf(err)

	params, err := NewParams(bsh)
	log.PanicIf(err)

	if params.FatOffset != testFatOffsetSectors {
		t.Fatalf("FatOffset not correct: (%d)", params.FatOffset)
	} else if params.FatLength != 1 {
		t.Fatalf("FatLength not correct: (%d)", params.FatLength)
	} else if params.ClusterHeapOffset != testHeapOffsetSectors {
		t.Fatalf("ClusterHeapOffset not correct: (%d)", params.ClusterHeapOffset)
	} else if params.ClusterCount != testClusterCount {
		t.Fatalf("ClusterCount not correct: (%d)", params.ClusterCount)
	} else if params.FirstClusterOfRootDirectory != testRootCluster {
		t.Fatalf("FirstClusterOfRootDirectory not correct: (%d)", params.FirstClusterOfRootDirectory)
	} else if params.ClusterSize() != testClusterSize {
		t.Fatalf("Cluster-size not correct: (%d)", params.ClusterSize())
	} else if params.NumberOfFats != 1 {
		t.Fatalf("NumberOfFats not correct: (%d)", params.NumberOfFats)
	}
}

func TestNewParams_InvalidBytesPerSectorShift(t *testing.T) {
	for _, shift := range []uint8{8, 13} {
		bsh := BootSectorHeader{
			BytesPerSectorShift: shift,
			NumberOfFats:        1,
		}

		_, err := NewParams(bsh)
		if isKind(err, ErrInvalidBytesPerSectorShift) != true {
			t.Fatalf("Expected bytes-per-sector-shift error for shift (%d): [%v]", shift, err)
		}
	}
}

func TestNewParams_InvalidSectorsPerClusterShift(t *testing.T) {
	bsh := BootSectorHeader{
		BytesPerSectorShift:    9,
		SectorsPerClusterShift: 17,
		NumberOfFats:           1,
	}

	_, err := NewParams(bsh)
	if isKind(err, ErrInvalidSectorsPerClusterShift) != true {
		t.Fatalf("Expected sectors-per-cluster-shift error: [%v]", err)
	}
}

func TestNewParams_InvalidNumberOfFats(t *testing.T) {
	bsh := BootSectorHeader{
		BytesPerSectorShift: 9,
		NumberOfFats:        3,
	}

	_, err := NewParams(bsh)
	if isKind(err, ErrInvalidNumberOfFats) != true {
		t.Fatalf("Expected number-of-fats error: [%v]", err)
	}
}

func TestNewParams_ActiveFatNotPresent(t *testing.T) {
	bsh := BootSectorHeader{
		BytesPerSectorShift: 9,
		NumberOfFats:        1,
		VolumeFlags:         VolumeFlagActiveFat,
	}

	_, err := NewParams(bsh)
	if isKind(err, ErrInvalidNumberOfFats) != true {
		t.Fatalf("Expected number-of-fats error for absent active FAT: [%v]", err)
	}
}

func TestParams_ClusterOffset(t *testing.T) {
	params := &Params{
		ClusterHeapOffset: testHeapOffsetSectors,
		ClusterCount:      testClusterCount,
		BytesPerSector:    512,
		SectorsPerCluster: 1,
	}

	offset, ok := params.ClusterOffset(2)
	if ok != true || offset != testHeapOffsetSectors*512 {
		t.Fatalf("Cluster (2) offset not correct: (%d) [%v]", offset, ok)
	}

	offset, ok = params.ClusterOffset(testClusterCount + 1)
	if ok != true || offset != (testHeapOffsetSectors+testClusterCount-1)*512 {
		t.Fatalf("Last-cluster offset not correct: (%d) [%v]", offset, ok)
	}

	if _, ok := params.ClusterOffset(0); ok != false {
		t.Fatalf("Cluster (0) should be undefined.")
	}

	if _, ok := params.ClusterOffset(1); ok != false {
		t.Fatalf("Cluster (1) should be undefined.")
	}

	if _, ok := params.ClusterOffset(testClusterCount + 2); ok != false {
		t.Fatalf("Beyond-heap cluster should be undefined.")
	}
}

func TestParams_ClusterOffset_Overflow(t *testing.T) {
	params := &Params{
		ClusterHeapOffset: 0xffffffffffffffff,
		ClusterCount:      0xffffffff,
		BytesPerSector:    4096,
		SectorsPerCluster: 256,
	}

	if _, ok := params.ClusterOffset(0xf0000000); ok != false {
		t.Fatalf("Overflowing cluster offset should be undefined.")
	}
}

func TestCheckedArithmetic(t *testing.T) {
	if sum, ok := checkedAdd(1, 2); ok != true || sum != 3 {
		t.Fatalf("Checked add not correct.")
	}

	if _, ok := checkedAdd(0xffffffffffffffff, 1); ok != false {
		t.Fatalf("Checked add should have overflowed.")
	}

	if product, ok := checkedMul(3, 4); ok != true || product != 12 {
		t.Fatalf("Checked multiply not correct.")
	}

	if _, ok := checkedMul(0x8000000000000000, 2); ok != false {
		t.Fatalf("Checked multiply should have overflowed.")
	}

	if product, ok := checkedMul(0, 0xffffffffffffffff); ok != true || product != 0 {
		t.Fatalf("Checked multiply by zero not correct.")
	}
}

func TestVolumeFlags(t *testing.T) {
	vf := VolumeFlags(3)

	if vf.ActiveFat() != 1 {
		t.Fatalf("ActiveFat not correct.")
	} else if vf.IsDirty() != true {
		t.Fatalf("IsDirty not correct.")
	} else if vf.HasHadMediaFailures() != false {
		t.Fatalf("HasHadMediaFailures not correct.")
	}
}

func TestBootSectorHeader_Dump(t *testing.T) {
	p := getTestPartition(buildTestImage())

	bsh, err := parseBootSectorHeader(p)
	log.PanicIf(err)

	bsh.Dump()
}
