package playback

import "testing"

func TestSubscription_DropsWhenBufferFull(t *testing.T) {
	sub := newSubscription()

	// Overfill the buffer; sends must never block.
	for i := 0; i < eventBufferSize*2; i++ {
		sub.sendState(StateChange{Previous: StateStopped, Current: StatePlaying})
	}

	received := 0
	for {
		select {
		case <-sub.StateChanged:
			received++
		default:
			if received != eventBufferSize {
				t.Errorf("received %d events, want %d", received, eventBufferSize)
			}
			return
		}
	}
}

func TestSubscription_CloseSignalsDone(t *testing.T) {
	sub := newSubscription()
	sub.close()

	select {
	case <-sub.Done:
	default:
		t.Error("Done channel not closed")
	}
}
