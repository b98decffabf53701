// Package permissions exposes the platform's opaque capability bitmask.
// The restore engine only ever tests ManageServer; the remaining bits are
// listed for completeness and pass through untouched.
package permissions

// Permission bits. The encoding is owned by the core platform; restore
// treats role bitmasks as opaque values and only consults ManageServer.
const (
	ViewChannels   int64 = 1 << 0
	SendMessages   int64 = 1 << 1
	ManageChannels int64 = 1 << 2
	ManageRoles    int64 = 1 << 3
	KickMembers    int64 = 1 << 4
	BanMembers     int64 = 1 << 5
	ManageServer   int64 = 1 << 6
	Administrator  int64 = 1 << 7
)

// Has reports whether bits grants the given flag. Administrator implies
// every other capability.
func Has(bits, flag int64) bool {
	if bits&Administrator != 0 {
		return true
	}
	return bits&flag == flag
}
