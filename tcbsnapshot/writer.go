package tcbsnapshot

import (
	"io"
	"log"
	"sync"

	"github.com/gocarina/gocsv"
)

// RecordChan is a channel of Snapshot rows awaiting a CSV writer.
//
// Grounded on saver.NewMarshaller/runMarshaller: a bounded channel feeding
// a single background goroutine, generalized here from "marshal to
// protobuf and write to a zstd file" to "batch into CSV rows and flush to
// an io.Writer".
type RecordChan chan<- *Snapshot

const batchSize = 64

func runWriter(recs <-chan *Snapshot, wtr io.Writer, wg *sync.WaitGroup) {
	defer wg.Done()
	batch := make([]*Snapshot, 0, batchSize)
	wroteHeader := false

	flush := func() {
		if len(batch) == 0 {
			return
		}
		var err error
		if !wroteHeader {
			err = gocsv.Marshal(batch, wtr)
			wroteHeader = true
		} else {
			err = gocsv.MarshalWithoutHeaders(batch, wtr)
		}
		if err != nil {
			log.Println("tcbsnapshot: could not write batch:", err)
		}
		batch = batch[:0]
	}

	for rec := range recs {
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			flush()
		}
	}
	flush()
}

// NewWriter starts a background goroutine that batches Snapshot rows
// arriving on the returned channel and marshals them as CSV to wtr,
// flushing every batchSize rows and once more when the channel is
// closed. wg.Wait() returns once the final flush has completed.
func NewWriter(wtr io.Writer, wg *sync.WaitGroup) RecordChan {
	recs := make(chan *Snapshot, 100)
	wg.Add(1)
	go runWriter(recs, wtr, wg)
	return recs
}
