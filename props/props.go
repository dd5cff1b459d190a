// Package props enumerates the item- and archive-level property identifiers understood by the archive engine, along
// with the variant kind each one is exchanged as.
//
// The numeric values are part of the binary contract with the engine and must never be renumbered.
package props

import (
	"fmt"

	"github.com/nguyengg/zbridge/propvar"
)

// ID identifies one item- or archive-level property.
type ID uint32

const (
	NoProperty ID = iota
	MainSubfile
	HandlerItemIndex
	Directory
	Name
	Extension
	IsFolder
	Size
	PackedSize
	Attributes
	CreationTime
	LastAccessTime
	LastWriteTime
	Solid
	Commented
	Encrypted
	SplitBefore
	SplitAfter
	DictionarySize
	CRC
	Type
	IsAnti
	Method
	HostOS
	FileSystem
	User
	Group
	Block
	Comment
	Position
	Prefix
	NumSubDirs
	NumSubFiles
	UnpackVersion
	Volume
	IsVolume
	Offset
	Links
	NumBlocks
	NumVolumes
	TimeType
	Bit64
	BigEndian
	CPU
	PhysicalSize
	HeadersSize
	Checksum
	Characteristics
	VirtualAddress
	UniqueID
	ShortName
	CreatorApplication
	SectorSize
	PosixAttributes
	SymbolicLink
	Error
)

const (
	TotalSize ID = 0x1100 + iota
	FreeSpace
	ClusterSize
	VolumeName
)

const (
	LocalName ID = 0x1200 + iota
	Provider
)

// UserDefined is the first identifier available for user-defined properties.
const UserDefined ID = 0x10000

var names = map[ID]string{
	NoProperty:         "NoProperty",
	MainSubfile:        "MainSubfile",
	HandlerItemIndex:   "HandlerItemIndex",
	Directory:          "Directory",
	Name:               "Name",
	Extension:          "Extension",
	IsFolder:           "IsFolder",
	Size:               "Size",
	PackedSize:         "PackedSize",
	Attributes:         "Attributes",
	CreationTime:       "CreationTime",
	LastAccessTime:     "LastAccessTime",
	LastWriteTime:      "LastWriteTime",
	Solid:              "Solid",
	Commented:          "Commented",
	Encrypted:          "Encrypted",
	SplitBefore:        "SplitBefore",
	SplitAfter:         "SplitAfter",
	DictionarySize:     "DictionarySize",
	CRC:                "CRC",
	Type:               "Type",
	IsAnti:             "IsAnti",
	Method:             "Method",
	HostOS:             "HostOS",
	FileSystem:         "FileSystem",
	User:               "User",
	Group:              "Group",
	Block:              "Block",
	Comment:            "Comment",
	Position:           "Position",
	Prefix:             "Prefix",
	NumSubDirs:         "NumSubDirs",
	NumSubFiles:        "NumSubFiles",
	UnpackVersion:      "UnpackVersion",
	Volume:             "Volume",
	IsVolume:           "IsVolume",
	Offset:             "Offset",
	Links:              "Links",
	NumBlocks:          "NumBlocks",
	NumVolumes:         "NumVolumes",
	TimeType:           "TimeType",
	Bit64:              "Bit64",
	BigEndian:          "BigEndian",
	CPU:                "CPU",
	PhysicalSize:       "PhysicalSize",
	HeadersSize:        "HeadersSize",
	Checksum:           "Checksum",
	Characteristics:    "Characteristics",
	VirtualAddress:     "VirtualAddress",
	UniqueID:           "UniqueID",
	ShortName:          "ShortName",
	CreatorApplication: "CreatorApplication",
	SectorSize:         "SectorSize",
	PosixAttributes:    "PosixAttributes",
	SymbolicLink:       "SymbolicLink",
	Error:              "Error",
	TotalSize:          "TotalSize",
	FreeSpace:          "FreeSpace",
	ClusterSize:        "ClusterSize",
	VolumeName:         "VolumeName",
	LocalName:          "LocalName",
	Provider:           "Provider",
}

func (id ID) String() string {
	if s, ok := names[id]; ok {
		return s
	}
	if id >= UserDefined {
		return fmt.Sprintf("UserDefined+%d", uint32(id-UserDefined))
	}
	return fmt.Sprintf("ID(%d)", uint32(id))
}

// KindOf returns the variant kind a property is exchanged as, or propvar.Empty for identifiers the schema does not
// constrain (including user-defined ones).
//
// Answering the engine with a different kind is a local program error that should be caught before crossing the
// boundary.
func KindOf(id ID) propvar.Kind {
	switch id {
	case Directory, Name, Extension, Method, HostOS, FileSystem, User, Group, Comment, Prefix, Volume, CPU,
		Checksum, UniqueID, ShortName, CreatorApplication, SymbolicLink, Error, VolumeName, LocalName, Provider,
		Type:
		return propvar.String
	case IsFolder, Solid, Commented, Encrypted, SplitBefore, SplitAfter, IsAnti, IsVolume, Bit64, BigEndian:
		return propvar.Bool
	case Size, PackedSize, Position, Offset, PhysicalSize, HeadersSize, VirtualAddress, TotalSize, FreeSpace:
		return propvar.UInt64
	case HandlerItemIndex, MainSubfile, Attributes, DictionarySize, CRC, Block, NumSubDirs, NumSubFiles,
		UnpackVersion, Links, NumBlocks, NumVolumes, TimeType, Characteristics, SectorSize, ClusterSize,
		PosixAttributes:
		return propvar.UInt32
	case CreationTime, LastAccessTime, LastWriteTime:
		return propvar.FileTime
	default:
		return propvar.Empty
	}
}
