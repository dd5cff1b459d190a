//go:build windows

package stream

import (
	"time"

	"golang.org/x/sys/windows"
)

// restoreTimes sets creation, last-access, and last-write times in one call.
//
// The file must not be held open by the stream anymore; it is reopened here with write-attributes access only.
func restoreTimes(path string, t time.Time) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}

	h, err := windows.CreateFile(
		p,
		windows.FILE_WRITE_ATTRIBUTES,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	ft := windows.NsecToFiletime(t.UnixNano())
	return windows.SetFileTime(h, &ft, &ft, &ft)
}
