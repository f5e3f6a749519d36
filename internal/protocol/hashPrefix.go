package protocol

// makeHashPrefix combines three ASCII characters into a 4-byte prefix with the last byte set to zero.
func makeHashPrefix(a, b, c byte) [4]byte {
	return [4]byte{a, b, c, 0}
}

// HashPrefix constants for the leaf-hash domains used by §4.2: inner
// nodes, account-state leaves, and transaction leaves (with or without
// metadata share the same txNode prefix). These MUST match the C++ enum
// values from the XRPL protocol.
var (
	HashPrefixTxNode    = makeHashPrefix('S', 'N', 'D') // Transaction (with or without metadata)
	HashPrefixLeafNode  = makeHashPrefix('M', 'L', 'N') // Account State
	HashPrefixInnerNode = makeHashPrefix('M', 'I', 'N') // Inner node (v1 tree)
)
