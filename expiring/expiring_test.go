package expiring_test

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Pallinder/go-randomdata"
	"github.com/rflandau/voidnet/expiring"
	. "github.com/rflandau/voidnet/internal/testsupport"
)

func TestTable(t *testing.T) {
	t.Run("prune on timeout", func(t *testing.T) {
		var tbl expiring.Table[int, float64]
		var fired atomic.Int32
		tbl.Store(0, 1.1, 5*time.Millisecond, func(k int, v float64) {
			if k != 0 || v != 1.1 {
				t.Errorf("expire callback got %d/%v", k, v)
			}
			fired.Add(1)
		})
		if !Eventually(time.Second, func() bool { return fired.Load() == 1 }) {
			t.Fatal("expire callback never fired")
		}
		if v, found := tbl.Load(0); found {
			t.Errorf("k/v 0/%v should have expired, but was found", v)
		}
		if tbl.Len() != 0 {
			t.Fatal(ExpectedActual(0, tbl.Len()))
		}
	})

	t.Run("no prune prior to timeout", func(t *testing.T) {
		var tbl expiring.Table[string, bool]
		for i := range 5 {
			k := randomdata.SillyName() + strconv.Itoa(i)
			tbl.Store(k, true, time.Minute, nil)
			if v, found := tbl.Load(k); !found || !v {
				t.Fatal(ExpectedActual(true, found))
			}
		}
		if tbl.Len() != 5 {
			t.Fatal(ExpectedActual(5, tbl.Len()))
		}
		tbl.Clear()
		if tbl.Len() != 0 {
			t.Fatal(ExpectedActual(0, tbl.Len()))
		}
	})

	t.Run("delete stops the timer", func(t *testing.T) {
		var tbl expiring.Table[string, int]
		var fired atomic.Bool
		tbl.Store("k", 1, 10*time.Millisecond, func(string, int) { fired.Store(true) })
		if !tbl.Delete("k") {
			t.Fatal("delete did not find the key")
		}
		if tbl.Delete("k") {
			t.Fatal("second delete found the key")
		}
		time.Sleep(30 * time.Millisecond)
		if fired.Load() {
			t.Fatal("deleted entry still fired its callback")
		}
	})

	t.Run("overwrite cancels the old timer", func(t *testing.T) {
		var tbl expiring.Table[string, int]
		var firedOld atomic.Bool
		tbl.Store("k", 1, 10*time.Millisecond, func(string, int) { firedOld.Store(true) })
		tbl.Store("k", 2, time.Minute, nil)
		time.Sleep(30 * time.Millisecond)
		if firedOld.Load() {
			t.Fatal("overwritten entry fired its callback")
		}
		if v, found := tbl.Load("k"); !found || v != 2 {
			t.Fatal(ExpectedActual(2, v))
		}
	})

	t.Run("refresh extends", func(t *testing.T) {
		var tbl expiring.Table[int, int]
		tbl.Store(1, 1, 40*time.Millisecond, nil)
		if !tbl.Refresh(1, time.Minute) {
			t.Fatal("refresh did not find the key")
		}
		time.Sleep(80 * time.Millisecond)
		if _, found := tbl.Load(1); !found {
			t.Fatal("refreshed entry expired on its original timer")
		}
		if tbl.Refresh(2, time.Minute) {
			t.Fatal("refreshed a key that was never stored")
		}
	})

	t.Run("parallel stores", func(t *testing.T) {
		var (
			tbl expiring.Table[int, int]
			wg  sync.WaitGroup
		)
		for i := range 64 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tbl.Store(i, i, time.Minute, nil)
			}()
		}
		wg.Wait()
		if tbl.Len() != 64 {
			t.Fatal(ExpectedActual(64, tbl.Len()))
		}
	})
}
