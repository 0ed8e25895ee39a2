package session

import (
	"testing"
	"time"
)

// FuzzNonceCacheSeen exercises the replay guard with adversarial keyid/
// nonce pairs: it must never panic, and the second Seen call for any
// fixed pair must report a replay as long as the TTL has not elapsed.
func FuzzNonceCacheSeen(f *testing.F) {
	f.Add("conv-1", "aaaa")
	f.Add("", "")
	f.Add("conv-1", "")
	f.Add("", "bbbb")

	f.Fuzz(func(t *testing.T, keyid, nonce string) {
		nc := NewNonceCache(time.Minute)
		defer nc.Close()

		first := nc.Seen(keyid, nonce)
		second := nc.Seen(keyid, nonce)

		if keyid == "" || nonce == "" {
			if first || second {
				t.Fatalf("empty keyid/nonce must never register as seen")
			}
			return
		}
		if first {
			t.Fatalf("first Seen() for a fresh pair reported a replay")
		}
		if !second {
			t.Fatalf("second Seen() for the same pair did not report a replay")
		}
	})
}
