// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tarfs

// Overlay-filesystem compatibility. An image built from a layer tar
// can flag a directory as "opaque", meaning it fully replaces any
// same-named directory in a lower overlay layer. The flag is exposed
// as a single synthetic extended attribute; the format stores no
// other attributes.
const (
	// OpaqueXattr is the attribute name overlay implementations
	// query.
	OpaqueXattr = "trusted.overlay.opaque"

	// OpaqueXattrValue is the affirmative value.
	OpaqueXattrValue = "y"
)

// OverlayXattr answers a synthetic extended attribute query. It
// returns (OpaqueXattrValue, true) only when name is [OpaqueXattr]
// and the inode is a directory with the opaque flag set. Every other
// combination returns ("", false), which callers must surface as
// "attribute not present" — not as an empty value — so the host
// interface falls through to its normal unsupported-attribute path.
func (i *Inode) OverlayXattr(name string) (string, bool) {
	if name != OpaqueXattr || !i.IsDir() || !i.opaque {
		return "", false
	}
	return OpaqueXattrValue, true
}
