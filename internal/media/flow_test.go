package media

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowSubscribeAndWrite(t *testing.T) {
	var f Flow

	var wg sync.WaitGroup
	var ready sync.WaitGroup

	// Hundred subscribers
	for i := 0; i < 100; i++ {
		wg.Add(1)
		ready.Add(1)
		go func() {
			defer wg.Done()
			s := f.Subscribe(1)
			ready.Done()
			p, ok := <-s
			assert.True(t, ok)
			assert.True(t, bytes.Equal(p, []byte{0xc0, 0xff, 0xee}))
		}()
	}

	ready.Wait()
	f.Write([]byte{0xc0, 0xff, 0xee})
	wg.Wait()
}

func TestFlowDropsOldest(t *testing.T) {
	var f Flow
	s := f.Subscribe(2)

	f.Write([]byte{1})
	f.Write([]byte{2})
	f.Write([]byte{3})

	assert.Equal(t, []byte{2}, <-s)
	assert.Equal(t, []byte{3}, <-s)

	missed, err := f.Unsubscribe(s)
	require.NoError(t, err)
	assert.Equal(t, 1, missed)

	_, ok := <-s
	assert.False(t, ok, "channel closed after unsubscribe")
}

func TestFlowStartStop(t *testing.T) {
	started := 0
	stopped := make(chan struct{})
	f := Flow{
		Start: func() { started++ },
		Stop:  func() { close(stopped) },
	}

	a := f.Subscribe(1)
	b := f.Subscribe(1)
	assert.Equal(t, 1, started)

	_, err := f.Unsubscribe(a)
	require.NoError(t, err)
	_, err = f.Unsubscribe(b)
	require.NoError(t, err)
	<-stopped

	_, err = f.Unsubscribe(a)
	assert.Equal(t, errNotFound, err)
}

func TestFlowClose(t *testing.T) {
	var f Flow
	s := f.Subscribe(4)
	f.Write([]byte{1})

	require.NoError(t, f.Close())
	_, ok := <-s
	assert.False(t, ok)
	assert.Equal(t, 0, f.Subscribers())
}

func TestFlowZeroCapacity(t *testing.T) {
	var f Flow
	assert.Panics(t, func() { f.Subscribe(0) })
}
