package scrobble

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// reconcileInterval is how often pending listens are retried.
	reconcileInterval = 5 * time.Minute
	// maxAttempts caps retries per listen so a permanently rejected
	// submission cannot churn forever.
	maxAttempts = 10
)

// Reconciler periodically retries eligible listens that were never
// delivered, giving scrobbling its at-least-once guarantee across
// crashes and offline stretches.
type Reconciler struct {
	client   Reporter
	store    ListenStore
	log      *log.Logger
	interval time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

// NewReconciler creates a reconciler with the default interval.
func NewReconciler(client Reporter, store ListenStore, logger *log.Logger) *Reconciler {
	return &Reconciler{
		client:   client,
		store:    store,
		log:      logger,
		interval: reconcileInterval,
		done:     make(chan struct{}),
	}
}

// Start runs an immediate sweep and then sweeps on the interval until
// Stop is called.
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.Sweep()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// Sweep submits every pending listen under the attempt cap. Failures
// are recorded and retried on the next sweep.
func (r *Reconciler) Sweep() {
	if !r.client.IsAuthenticated() {
		return
	}

	pending, err := r.store.PendingListens()
	if err != nil {
		r.log.Warn("failed to load pending listens", "err", err)
		return
	}

	for _, l := range pending {
		if l.Attempts >= maxAttempts {
			continue
		}
		if err := r.client.Scrobble(toScrobbleTrack(l)); err != nil {
			r.log.Debug("scrobble retry failed", "listen", l.ID, "attempts", l.Attempts+1, "err", err)
			if rerr := r.store.RecordListenAttempt(l.ID, err.Error()); rerr != nil {
				r.log.Warn("failed to record scrobble attempt", "listen", l.ID, "err", rerr)
			}
			continue
		}
		if err := r.store.MarkListenDelivered(l.ID); err != nil {
			r.log.Warn("failed to mark listen delivered", "listen", l.ID, "err", err)
			continue
		}
		r.log.Info("delivered pending scrobble", "listen", l.ID, "track", l.Track)
	}
}

// Stop halts the sweep loop and waits for it to finish.
func (r *Reconciler) Stop() {
	close(r.done)
	r.wg.Wait()
}
