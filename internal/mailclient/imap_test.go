package mailclient

import (
	"fmt"
	"testing"
	"time"
)

// Fetch collects batches in ascending sequence order; the callers rely on
// the Session contract of newest-first delivery.
func TestReverseMessages_NewestFirst(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, n := range []int{0, 1, 2, 5} {
		msgs := make([]RawMessage, 0, n)
		for i := 0; i < n; i++ {
			msgs = append(msgs, RawMessage{
				MessageID:  fmt.Sprintf("<seq-%d@test>", i),
				UID:        uint32(i + 1),
				ReceivedAt: base.Add(time.Duration(i) * time.Minute),
			})
		}

		reverseMessages(msgs)

		if len(msgs) != n {
			t.Fatalf("length changed: got %d, want %d", len(msgs), n)
		}
		for i := 1; i < len(msgs); i++ {
			if msgs[i].ReceivedAt.After(msgs[i-1].ReceivedAt) {
				t.Errorf("n=%d: message %d is newer than message %d", n, i, i-1)
			}
		}
		if n > 0 && msgs[0].UID != uint32(n) {
			t.Errorf("n=%d: first message UID = %d, want %d", n, msgs[0].UID, n)
		}
	}
}
