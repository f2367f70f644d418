// Package worker provides a generic bounded worker pool.
//
// A Pool runs a fixed number of goroutines consuming a bounded queue. Submit
// never blocks: when the queue is full the item is dropped and ErrQueueFull
// returned, leaving back-pressure decisions to the caller. The scheduler uses
// a pool to fan publish attempts out to publishers and treats ErrQueueFull as
// a failed attempt.
//
//	pool := worker.NewPool(4, 256, func(ctx context.Context, job publishJob) error {
//	    return job.publisher.Publish(ctx, job.record)
//	}, worker.WithMetricsRegistry[publishJob](registry, "semevents_publish_pool"))
//
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(job); errors.Is(err, worker.ErrQueueFull) {
//	    // record the drop
//	}
//
// Stop closes the queue and waits for queued items to finish. Cancelling the
// context passed to Start makes workers exit without draining the queue.
package worker
