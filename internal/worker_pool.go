package internal

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"karl/internal/jitterbuffer"
)

// workerPoolSize caps the number of goroutines decoding payout frames
// concurrently, so a burst across many SSRCs' 20ms ticks can't spawn an
// unbounded number of decode goroutines.
var (
	workerPoolSize = runtime.NumCPU() * 2
	decodeJobs     = make(chan decodeJob, 1000)
	wg             sync.WaitGroup

	framesDecoded atomic.Uint64
	decodeErrors  atomic.Uint64
	samplesOut    atomic.Uint64
)

// decodeJob carries one jitter-buffer delivery to a pool worker for decode.
type decodeJob struct {
	result jitterbuffer.GetResult
	ssrc   uint32
}

// InitWorkerPool starts the fixed-size pool of decode workers that drain
// decodeJobs. Call once at startup; jobs submitted before this runs queue
// in the buffered channel.
func InitWorkerPool() {
	log.Printf("Initializing jitter buffer decode worker pool with %d workers", workerPoolSize)

	for i := 0; i < workerPoolSize; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range decodeJobs {
				decodeWorkerFrame(job, workerID)
			}
		}(i)
	}
}

// decodeWorkerFrame performs the actual Opus decode for one delivered frame
// off the pool, skipping any frame that is not NORMAL or has an empty payload.
func decodeWorkerFrame(job decodeJob, workerID int) {
	result := job.result
	if result.DataType != jitterbuffer.DataTypeNormal || len(result.Payload) == 0 {
		return
	}

	pcm, err := DecodeToPCM(result.Payload)
	if err != nil {
		decodeErrors.Add(1)
		IncrementErrorMetric(ErrCodeCodec)
		log.Printf("Worker %d failed to decode frame for SSRC %d (seq=%d): %v",
			workerID, job.ssrc, result.SeqNum, err)
		return
	}

	framesDecoded.Add(1)
	samplesOut.Add(uint64(len(pcm)))
	IncrementCounter("jitter_buffer_decode")
}

// SubmitDecodeJob hands a delivered frame to the pool for decoding. It is
// non-blocking: if every worker is busy and the queue is full, the frame is
// dropped rather than stalling the playout ticker that called it.
func SubmitDecodeJob(result jitterbuffer.GetResult, ssrc uint32) {
	select {
	case decodeJobs <- decodeJob{result: result, ssrc: ssrc}:
	default:
		decodeErrors.Add(1)
		IncrementErrorMetric(ErrCodeJitterBuffer)
		log.Printf("decode worker queue full, dropping frame for SSRC %d (seq=%d)", ssrc, result.SeqNum)
	}
}

// StopWorkerPool shuts down the decode worker pool gracefully, draining any
// queued jobs before returning.
func StopWorkerPool() {
	close(decodeJobs)
	wg.Wait()
	log.Println("jitter buffer decode worker pool stopped")
}
