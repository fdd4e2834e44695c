package interrupt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_NotYetInitialized(t *testing.T) {
	v := New()
	require.Equal(t, MaxStackLimit, v.StackLimit())
	require.False(t, v.CheckStackPointer(0))
	require.False(t, v.CheckStackPointer(^uintptr(0)-1))
}

func TestSetStackLimit_RealLimit(t *testing.T) {
	v := New()
	v.SetStackLimit(1000)
	require.True(t, v.CheckStackPointer(1000))
	require.True(t, v.CheckStackPointer(2000))
	require.False(t, v.CheckStackPointer(999))
}

func TestRequestInterrupt_TrapsNextCheck(t *testing.T) {
	v := New()
	v.SetStackLimit(1000)
	require.True(t, v.CheckStackPointer(5000))

	v.RequestInterrupt()
	// Even a stack pointer that was comfortably above the real limit now
	// fails the check, because InterruptSentinel sits just under MAX.
	require.False(t, v.CheckStackPointer(5000))
}

func TestDisambiguate(t *testing.T) {
	v := New()
	v.SetStackLimit(1000)
	require.Equal(t, TrapCodeStackOverflow, v.Disambiguate())

	v.RequestInterrupt()
	require.Equal(t, TrapCodeInterrupted, v.Disambiguate())
}

func TestInterruptSentinel_WithinWindowOfMax(t *testing.T) {
	require.Equal(t, uintptr(windowSize), MaxStackLimit-InterruptSentinel)
}

func TestRequestInterrupt_ConcurrentFromOtherGoroutine(t *testing.T) {
	v := New()
	v.SetStackLimit(1000)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v.RequestInterrupt()
	}()
	wg.Wait()

	require.Equal(t, TrapCodeInterrupted, v.Disambiguate())
}

func TestTrapCode_String(t *testing.T) {
	require.Equal(t, "stack overflow", TrapCodeStackOverflow.String())
	require.Equal(t, "interrupted", TrapCodeInterrupted.String())
}
