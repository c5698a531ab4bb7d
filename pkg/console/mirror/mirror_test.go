package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/goleak"

	"github.com/sharpjs/PSConcurrent/internal/testutil"
	pcerrors "github.com/sharpjs/PSConcurrent/pkg/common/errors"
	"github.com/sharpjs/PSConcurrent/pkg/console"
	"github.com/sharpjs/PSConcurrent/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStream records XADD calls.
type fakeStream struct {
	mu   sync.Mutex
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = append(f.args, a)

	cmd := redis.NewStringCmd(ctx, "xadd", a.Stream)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("0-1")
	}
	return cmd
}

func (f *fakeStream) entries() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]interface{}, len(f.args))
	for i, a := range f.args {
		out[i] = a.Values.(map[string]interface{})
	}
	return out
}

func TestNewValidation(t *testing.T) {
	rec := console.NewRecorder()

	_, err := New(rec, Config{Stream: "s"})
	testutil.AssertErrorIs(t, err, pcerrors.ErrInvalidConfiguration)

	_, err = New(rec, Config{Client: &fakeStream{}})
	testutil.AssertErrorIs(t, err, pcerrors.ErrInvalidArgument)

	_, err = New(nil, Config{Client: &fakeStream{}, Stream: "s"})
	testutil.AssertErrorIs(t, err, pcerrors.ErrInvalidConfiguration)
}

func TestMirrorsMultiplexedLines(t *testing.T) {
	rec := console.NewRecorder()
	stream := &fakeStream{}
	m, err := New(rec, Config{Client: stream, Stream: "out", BatchID: "b1"})
	testutil.AssertNoError(t, err)

	mux := console.New(m)
	mux.ForWorker(1).Write("a")
	mux.ForWorker(2).WriteErrorLine("b")
	mux.ForWorker(1).WriteLine("c")
	mux.ForWorker(1).Write("tail")
	testutil.AssertNoError(t, m.Close())
	testutil.AssertNoError(t, m.Close())

	// The wrapped UI sees everything unchanged.
	testutil.AssertEqual(t, rec.String(), "[Task 1]: a\n[Task 2]: ERROR: b\n[Task 1]: (...) c\n[Task 1]: tail")

	got := stream.entries()
	want := []struct{ kind, text string }{
		{"text", "[Task 1]: a"},
		{"error", "[Task 2]: ERROR: b"},
		{"text", "[Task 1]: (...) c"},
		{"text", "[Task 1]: tail"},
	}
	testutil.AssertEqual(t, len(got), len(want))
	for i, w := range want {
		testutil.AssertEqual(t, got[i]["kind"].(string), w.kind)
		testutil.AssertEqual(t, got[i]["text"].(string), w.text)
		testutil.AssertEqual(t, got[i]["batch"].(string), "b1")
		testutil.AssertEqual(t, got[i]["seq"].(int64), int64(i+1))
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()
	testutil.AssertEqual(t, stream.args[0].Stream, "out")
	testutil.AssertEqual(t, stream.args[0].MaxLen, int64(10000))
	testutil.AssertEqual(t, stream.args[0].Approx, true)
}

func TestInformationAndReads(t *testing.T) {
	rec := console.NewRecorder("answer")
	stream := &fakeStream{}
	m, err := New(rec, Config{Client: stream, Stream: "out", MaxLen: -1})
	testutil.AssertNoError(t, err)

	m.WriteInformation("note")
	m.WriteProgress(1, console.ProgressRecord{Activity: "x"})
	m.Write("Name: ")
	line, err := m.ReadLine()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, line, "answer")
	testutil.AssertNoError(t, m.Close())

	got := stream.entries()
	testutil.AssertEqual(t, len(got), 2)
	testutil.AssertEqual(t, got[0]["kind"].(string), "information")
	testutil.AssertEqual(t, got[0]["text"].(string), "note")
	testutil.AssertEqual(t, got[1]["text"].(string), "Name: ")
	testutil.AssertEqual(t, len(rec.Records()), 2)

	stream.mu.Lock()
	defer stream.mu.Unlock()
	testutil.AssertEqual(t, stream.args[0].MaxLen, int64(0))
}

func TestPublishFailuresAreCounted(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	stream := &fakeStream{err: errors.New("connection refused")}
	m, err := New(console.NewRecorder(), Config{Client: stream, Stream: "out", Metrics: reg})
	testutil.AssertNoError(t, err)

	m.WriteLine("one")
	m.WriteLine("two")
	testutil.AssertNoError(t, m.Close())

	testutil.AssertEqual(t, promtestutil.ToFloat64(reg.ConsoleMirrorFails.WithLabelValues("out")), 2.0)
}

func TestWritesAfterCloseAreNotPublished(t *testing.T) {
	stream := &fakeStream{}
	rec := console.NewRecorder()
	m, err := New(rec, Config{Client: stream, Stream: "out"})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, m.Close())

	m.WriteLine("late")
	testutil.AssertEqual(t, rec.String(), "late\n")
	testutil.AssertEqual(t, len(stream.entries()), 0)
}
