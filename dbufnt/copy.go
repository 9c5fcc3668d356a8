package dbufnt

// streamingCopy copies src into dst, standing in for the cache-bypassing
// 128-bit streaming stores the design note describes for payloads at or
// above the non-temporal threshold. Go exposes no portable non-temporal
// store or store-fence intrinsic, so this falls back to an ordinary copy;
// per the design note, correctness does not depend on the store kind, only
// the size gate that selects this path.
func streamingCopy(dst, src []byte) {
	copy(dst, src)
}
