package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/mahaj/carmarket-chat/pkg/model"
)

type fakeWriter struct {
	mu    sync.Mutex
	err   error
	calls int
	msgs  []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	records chan kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.records:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error { return nil }

type countingDeliverer struct {
	mu  sync.Mutex
	ids []int64
}

func (d *countingDeliverer) Deliver(msg *model.Message) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, msg.ID)
	return 1
}

func (d *countingDeliverer) seen() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.ids...)
}

func testMessage(id int64) *model.Message {
	return &model.Message{
		ID:          id,
		SenderID:    "bob",
		RecipientID: "alice",
		ListingID:   "L1",
		Body:        "hello",
		CreatedAt:   time.UnixMilli(1700000000000).UTC(),
	}
}

func TestPublishKeysByRecipient(t *testing.T) {
	t.Parallel()
	w := &fakeWriter{}
	k := newKafka(w, &fakeReader{}, zerolog.Nop())

	if err := k.Publish(context.Background(), testMessage(42)); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "alice" {
		t.Fatalf("written = %+v", w.msgs)
	}
	got, err := Decode(w.msgs[0].Value)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 42 || got.Body != "hello" || !got.CreatedAt.Equal(testMessage(42).CreatedAt) {
		t.Fatalf("decoded = %+v", got)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()
	w := &fakeWriter{err: errors.New("broker down")}
	k := newKafka(w, &fakeReader{}, zerolog.Nop())

	for i := 0; i < breakerFailures; i++ {
		if err := k.Publish(context.Background(), testMessage(int64(i+1))); err == nil {
			t.Fatal("expected error")
		}
	}
	err := k.Publish(context.Background(), testMessage(99))
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open breaker", err)
	}
	if w.calls != breakerFailures {
		t.Fatalf("writer called %d times", w.calls)
	}
}

func TestRunDeliversAndSkipsMalformed(t *testing.T) {
	t.Parallel()
	r := &fakeReader{records: make(chan kafka.Message, 3)}
	k := newKafka(&fakeWriter{}, r, zerolog.Nop())

	good, _ := Encode(testMessage(7))
	r.records <- kafka.Message{Value: []byte("{not json")}
	r.records <- kafka.Message{Value: []byte(`{"id":"0"}`)}
	r.records <- kafka.Message{Value: good}

	d := &countingDeliverer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		k.Run(ctx, d)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(d.seen()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if ids := d.seen(); len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("delivered %v, want [7]", ids)
	}
}
