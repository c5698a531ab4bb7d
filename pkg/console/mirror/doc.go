// Package mirror copies console output to a Redis stream.
//
// A Mirror wraps a console.UI. Every call is forwarded to the wrapped UI
// unchanged; in addition, each completed line of text is appended to a
// Redis stream with XADD so that a batch can be followed from another
// machine with XREAD:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	m, err := mirror.New(console.NewTerminalUI(os.Stdout, os.Stdin), mirror.Config{
//		Client: rdb,
//		Stream: "psconcurrent:output",
//	})
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//	mux := console.New(m)
//
// Entries carry the fields kind, text, batch and seq. Publishing happens on a
// background goroutine; when the buffer is full, lines are dropped rather
// than stalling the console.
package mirror
