package exfat

import (
	"errors"

	"encoding/binary"

	"github.com/xaionaro-go/bytesextra"
)

// The synthetic volume the tests run against. Geometry is kept tiny: 512-
// byte sectors, one sector per cluster, a one-sector FAT and an eight-
// cluster heap.
//
//	cluster 2: allocation bitmap data
//	cluster 3: up-case table data
//	cluster 4: root directory
//	cluster 5: "file1" contents
//	cluster 6: "dir1" directory
//	cluster 7: "file2" contents
const (
	testBytesPerSector    = 512
	testSectorsPerCluster = 1
	testClusterSize       = testBytesPerSector * testSectorsPerCluster
	testFatOffsetSectors  = 2
	testHeapOffsetSectors = 4
	testClusterCount      = 8
	testRootCluster       = 4

	testFile1Cluster = 5
	testDir1Cluster  = 6
	testFile2Cluster = 7

	testFile1Contents = "Test file 1.\n"
	testFile2Contents = "Test file 2.\n"
	testVolumeLabel   = "Test image"
)

func testClusterOffset(cluster int) int {
	return (testHeapOffsetSectors + cluster - 2) * testBytesPerSector
}

func testRootRecordOffset(index int) int {
	return testClusterOffset(testRootCluster) + index*directoryEntryBytesCount
}

func encodeTestTimestamp(year, month, day, hour, minute, second int) uint32 {
	return uint32(year-1980)<<25 | uint32(month)<<21 | uint32(day)<<16 |
		uint32(hour)<<11 | uint32(minute)<<5 | uint32(second/2)
}

var (
	// The fixed timestamps carried by the image.
	testDir1Created   = encodeTestTimestamp(2023, 3, 6, 13, 2, 32)
	testDir1Modified  = encodeTestTimestamp(2023, 3, 6, 13, 3, 18)
	testFile1Modified = encodeTestTimestamp(2023, 3, 6, 13, 3, 6)
	testFile2Modified = encodeTestTimestamp(2023, 3, 6, 13, 3, 18)
)

func testFileRecord(secondaryCount int, attributes uint16, created, modified, accessed uint32) []byte {
	record := make([]byte, directoryEntryBytesCount)

	record[0] = 0x85
	record[1] = byte(secondaryCount)
	binary.LittleEndian.PutUint16(record[4:], attributes)
	binary.LittleEndian.PutUint32(record[8:], created)
	binary.LittleEndian.PutUint32(record[12:], modified)
	binary.LittleEndian.PutUint32(record[16:], accessed)

	return record
}

func testStreamRecord(flags byte, nameLength int, validDataLength, dataLength uint64, firstCluster uint32) []byte {
	record := make([]byte, directoryEntryBytesCount)

	record[0] = 0xc0
	record[1] = flags
	record[3] = byte(nameLength)
	binary.LittleEndian.PutUint64(record[8:], validDataLength)
	binary.LittleEndian.PutUint32(record[20:], firstCluster)
	binary.LittleEndian.PutUint64(record[24:], dataLength)

	return record
}

func testNameRecord(name string) []byte {
	record := make([]byte, directoryEntryBytesCount)

	record[0] = 0xc1

	for i, r := range name {
		binary.LittleEndian.PutUint16(record[2+i*2:], uint16(r))
	}

	return record
}

// testEntrySet computes the set checksum over the given records, patches it
// into the primary, and returns the concatenated set. The checksum encoder
// here is independent of the one under test.
func testEntrySet(records ...[]byte) []byte {
	var checksum uint16

	for recordIndex, record := range records {
		for i, b := range record {
			if recordIndex == 0 && (i == 2 || i == 3) {
				continue
			}

			checksum = (checksum<<15 | checksum>>1) + uint16(b)
		}
	}

	binary.LittleEndian.PutUint16(records[0][2:], checksum)

	set := make([]byte, 0, len(records)*directoryEntryBytesCount)
	for _, record := range records {
		set = append(set, record...)
	}

	return set
}

func testAllocationBitmapRecord(bitmapFlags byte, firstCluster uint32, dataLength uint64) []byte {
	record := make([]byte, directoryEntryBytesCount)

	record[0] = 0x81
	record[1] = bitmapFlags
	binary.LittleEndian.PutUint32(record[20:], firstCluster)
	binary.LittleEndian.PutUint64(record[24:], dataLength)

	return record
}

func testUpcaseTableRecord(firstCluster uint32, dataLength uint64) []byte {
	record := make([]byte, directoryEntryBytesCount)

	record[0] = 0x82
	binary.LittleEndian.PutUint32(record[20:], firstCluster)
	binary.LittleEndian.PutUint64(record[24:], dataLength)

	return record
}

func testVolumeLabelRecord(label string) []byte {
	record := make([]byte, directoryEntryBytesCount)

	record[0] = 0x83
	record[1] = byte(len(label))

	for i, r := range label {
		binary.LittleEndian.PutUint16(record[2+i*2:], uint16(r))
	}

	return record
}

func buildTestBootSector() []byte {
	boot := make([]byte, testBytesPerSector)

	copy(boot[0:], []byte{0xeb, 0x76, 0x90})
	copy(boot[3:], []byte("EXFAT   "))

	binary.LittleEndian.PutUint32(boot[80:], testFatOffsetSectors)
	binary.LittleEndian.PutUint32(boot[84:], 1)
	binary.LittleEndian.PutUint32(boot[88:], testHeapOffsetSectors)
	binary.LittleEndian.PutUint32(boot[92:], testClusterCount)
	binary.LittleEndian.PutUint32(boot[96:], testRootCluster)
	binary.LittleEndian.PutUint32(boot[100:], 0x3d51a058)

	// Revision 1.00.
	boot[104] = 0x00
	boot[105] = 0x01

	binary.LittleEndian.PutUint16(boot[106:], 0)

	boot[108] = 9
	boot[109] = 0
	boot[110] = 1
	boot[111] = 0x80
	boot[112] = 0xff

	binary.LittleEndian.PutUint16(boot[510:], 0xaa55)

	return boot
}

// buildTestImage assembles the reference volume.
func buildTestImage() []byte {
	image := make([]byte, (testHeapOffsetSectors+testClusterCount)*testBytesPerSector)

	copy(image[0:], buildTestBootSector())

	// FAT: media descriptor, reserved, then one single-cluster chain per
	// allocated cluster.
	fatOffset := testFatOffsetSectors * testBytesPerSector

	binary.LittleEndian.PutUint32(image[fatOffset+0*4:], 0xfffffff8)
	binary.LittleEndian.PutUint32(image[fatOffset+1*4:], 0xffffffff)
	for cluster := 2; cluster <= testFile2Cluster; cluster++ {
		binary.LittleEndian.PutUint32(image[fatOffset+cluster*4:], 0xffffffff)
	}

	// Root directory.
	rootOffset := testClusterOffset(testRootCluster)

	rootRecords := make([]byte, 0)
	rootRecords = append(rootRecords, testVolumeLabelRecord(testVolumeLabel)...)
	rootRecords = append(rootRecords, testAllocationBitmapRecord(0, 2, 1)...)
	rootRecords = append(rootRecords, testUpcaseTableRecord(3, 2)...)

	// "file1" walks the FAT; "dir1" is a contiguous no-FAT-chain extent.
	rootRecords = append(rootRecords, testEntrySet(
		testFileRecord(2, 0x20, testFile1Modified, testFile1Modified, testFile1Modified),
		testStreamRecord(0x01, len("file1"), uint64(len(testFile1Contents)), uint64(len(testFile1Contents)), testFile1Cluster),
		testNameRecord("file1"))...)

	rootRecords = append(rootRecords, testEntrySet(
		testFileRecord(2, 0x10, testDir1Created, testDir1Modified, testDir1Created),
		testStreamRecord(0x03, len("dir1"), testClusterSize, testClusterSize, testDir1Cluster),
		testNameRecord("dir1"))...)

	copy(image[rootOffset:], rootRecords)

	// dir1.
	dir1Offset := testClusterOffset(testDir1Cluster)

	dir1Records := testEntrySet(
		testFileRecord(2, 0x20, testFile2Modified, testFile2Modified, testFile2Modified),
		testStreamRecord(0x03, len("file2"), uint64(len(testFile2Contents)), uint64(len(testFile2Contents)), testFile2Cluster),
		testNameRecord("file2"))

	copy(image[dir1Offset:], dir1Records)

	// File contents.
	copy(image[testClusterOffset(testFile1Cluster):], testFile1Contents)
	copy(image[testClusterOffset(testFile2Cluster):], testFile2Contents)

	return image
}

func openTestImage(data []byte) (root *Root, err error) {
	image, err := NewImage(bytesextra.NewReadWriteSeeker(data))
	if err != nil {
		return nil, err
	}

	return Open(image)
}

// isKind reports whether err is the given taxonomy kind, seeing through the
// wrapping the logging layer applies on the way out.
func isKind(err, kind error) bool {
	return errors.Is(err, kind)
}

func getTestRoot() *Root {
	root, err := openTestImage(buildTestImage())
	if err != nil {
		panic(err)
	}

	return root
}
