package engine

import "strings"

// IID is the 128-bit identifier naming one interface role of the binary contract.
type IID [16]byte

// iid builds the engine's identifier for interface group/sub.
//
// All of the engine's interface identifiers share the same prefix and differ only in the group and sub-interface
// octets.
func iid(group, sub byte) IID {
	return IID{0x69, 0x0F, 0x17, 0x23, 0xC1, 0x40, 0x8A, 0x27, 0x00, 0x00, 0x00, group, 0x00, sub, 0x00, 0x00}
}

// Interface identifiers, one per boundary role.
var (
	IIDSequentialInStream  = iid(0x03, 0x01)
	IIDSequentialOutStream = iid(0x03, 0x02)
	IIDInStream            = iid(0x03, 0x03)
	IIDOutStream           = iid(0x03, 0x04)

	IIDCryptoGetTextPassword  = iid(0x05, 0x10)
	IIDCryptoGetTextPassword2 = iid(0x05, 0x11)

	IIDArchiveOpenCallback       = iid(0x06, 0x10)
	IIDArchiveExtractCallback    = iid(0x06, 0x20)
	IIDArchiveOpenVolumeCallback = iid(0x06, 0x30)
	IIDInArchive                 = iid(0x06, 0x60)
	IIDArchiveUpdateCallback     = iid(0x06, 0x80)
	IIDOutArchive                = iid(0x06, 0xA0)
)

// Format identifies an archive container format the engine can parse or produce.
type Format byte

const (
	FormatZip   Format = 0x01
	FormatBZip2 Format = 0x02
	FormatRar   Format = 0x03
	Format7z    Format = 0x07
	FormatCab   Format = 0x08
	FormatISO   Format = 0xE7
	FormatWim   Format = 0xE6
	FormatTar   Format = 0xEE
	FormatGZip  Format = 0xEF
	FormatXz    Format = 0x0C
)

// ClassID returns the 128-bit identifier the engine uses to instantiate a handler for the format.
func (f Format) ClassID() IID {
	return IID{0x69, 0x0F, 0x17, 0x23, 0xC1, 0x40, 0x8A, 0x27, 0x10, 0x00, 0x00, 0x01, 0x10, byte(f), 0x00, 0x00}
}

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatBZip2:
		return "bzip2"
	case FormatRar:
		return "rar"
	case Format7z:
		return "7z"
	case FormatCab:
		return "cab"
	case FormatISO:
		return "iso"
	case FormatWim:
		return "wim"
	case FormatTar:
		return "tar"
	case FormatGZip:
		return "gzip"
	case FormatXz:
		return "xz"
	default:
		return "unknown"
	}
}

// FormatByExtension guesses the container format from a file extension such as ".7z" or "zip".
func FormatByExtension(ext string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "zip", "zipx", "jar", "apk":
		return FormatZip, true
	case "bz2", "bzip2":
		return FormatBZip2, true
	case "rar":
		return FormatRar, true
	case "7z":
		return Format7z, true
	case "cab":
		return FormatCab, true
	case "iso":
		return FormatISO, true
	case "wim":
		return FormatWim, true
	case "tar":
		return FormatTar, true
	case "gz", "gzip", "tgz":
		return FormatGZip, true
	case "xz", "txz":
		return FormatXz, true
	default:
		return 0, false
	}
}
