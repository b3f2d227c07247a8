package xlog

import (
	"sync"
	"testing"
	"time"

	"github.com/benz9527/xtree/lib/id"
	"github.com/stretchr/testify/require"
)

// captureWriter keeps every flushed line so the tests can check order
// and completeness.
type captureWriter struct {
	lines [][]byte
}

func (w *captureWriter) Write(data []byte) (n int, err error) {
	line := make([]byte, len(data))
	copy(line, data)
	w.lines = append(w.lines, line)
	return len(data), nil
}

func (w *captureWriter) Close() error { return nil }

func randomLines(width, count int) []string {
	nanoID, err := id.ClassicNanoID(width)
	if err != nil {
		panic(err)
	}
	lines := make([]string, count)
	for i := range lines {
		lines[i] = nanoID()
	}
	return lines
}

func TestXLogBufferSyncer(t *testing.T) {
	w := &captureWriter{}
	syncer := &XLogBufferSyncer{
		outWriter:     w,
		arena:         &xLogArena{size: 1 << 10},
		flushInterval: 500 * time.Millisecond,
	}
	syncer.initialize()

	lines := randomLines(100, 200)
	for _, line := range lines {
		_, err := syncer.Write([]byte(line))
		require.NoError(t, err)
	}
	time.Sleep(1 * time.Second)
	require.NoError(t, syncer.Sync())

	// Single writer, so the flush order matches the write order.
	require.NotZero(t, len(w.lines))
	for i, line := range lines {
		require.Equal(t, []byte(line), w.lines[i])
	}
	syncer.Stop()
}

func TestXLogBufferSyncer_DataRace(t *testing.T) {
	w := &captureWriter{}
	syncer := &XLogBufferSyncer{
		outWriter:     w,
		arena:         &xLogArena{size: 1 << 10},
		flushInterval: 500 * time.Millisecond,
	}
	syncer.initialize()

	lines := randomLines(100, 200)
	mid := len(lines) >> 1
	var wg sync.WaitGroup
	wg.Add(2)
	for _, part := range [][]string{lines[:mid], lines[mid:]} {
		go func(part []string) {
			defer wg.Done()
			for _, line := range part {
				_, err := syncer.Write([]byte(line))
				require.NoError(t, err)
			}
		}(part)
	}
	wg.Wait()
	time.Sleep(1 * time.Second)
	require.NoError(t, syncer.Sync())

	// Interleaving is fair game here, every line still has to come out.
	require.NotZero(t, len(w.lines))
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		set[line] = struct{}{}
	}
	for _, line := range w.lines {
		_, ok := set[string(line)]
		require.True(t, ok, string(line))
	}
	syncer.Stop()
}
