// SPDX-License-Identifier: MPL-2.0

package platform

import "strings"

// WindowsReservedNames are device file names Windows refuses as file or
// directory names, with or without an extension. Runtime names become
// store directory names, so they must avoid these.
var WindowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// IsWindowsReservedName reports whether a name collides with a Windows
// reserved device name. The check is case-insensitive and ignores any
// extension, matching how Windows itself treats "CON.txt" as reserved.
func IsWindowsReservedName(name string) bool {
	if name == "" {
		return false
	}
	base := name
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return WindowsReservedNames[strings.ToUpper(base)]
}
