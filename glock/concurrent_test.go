// Copyright 2021 the Go-GLock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glock

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/go-glock/go-glock/internal/testutil"
)

func init() {
	SetLogger(testutil.NewLogger())
}

// expectBlocked runs fn in a goroutine and asserts that it does not
// finish within a short window. The returned channel closes when fn
// eventually returns.
func expectBlocked(t *testing.T, fn func()) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
		t.Fatal("expected the operation to block, but it finished immediately")
	case <-time.After(50 * time.Millisecond):
	}
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("blocked operation did not finish after unblocking")
	}
}

func TestExclusiveWaitsForShared(t *testing.T) {
	r, err := NewRoot(0)
	require.NoError(t, err)

	g, err := r.Lock(Shared)
	require.NoError(t, err)

	_, err = r.TryLock(Exclusive)
	require.True(t, IsBusy(err))

	done := expectBlocked(t, func() {
		mg, err := r.LockExclusive()
		if err != nil {
			t.Error(err)
			return
		}
		mg.Unlock()
	})

	g.Unlock()
	waitDone(t, done)

	// Drained again.
	mg, err := r.TryLockExclusive()
	require.NoError(t, err)
	mg.Unlock()
}

func TestImplicitParentBlocksExclusive(t *testing.T) {
	r, err := NewRoot(0)
	require.NoError(t, err)
	c, err := r.NewChild("c", 0)
	require.NoError(t, err)

	// Shared on the child without a parent guard: the intention on
	// the root is taken implicitly.
	cg, err := c.TryLock(Shared)
	require.NoError(t, err)

	_, err = r.TryLock(Exclusive)
	require.True(t, IsBusy(err))

	rg, err := r.TryLock(IntentionShared)
	require.NoError(t, err)
	rg.Unlock()

	cg.Unlock()

	// The implicit intention went away with the child guard.
	mg, err := r.TryLockExclusive()
	require.NoError(t, err)
	mg.Unlock()
}

func TestSharedParentAutoUpgrade(t *testing.T) {
	r, err := NewRoot(0)
	require.NoError(t, err)
	c, err := r.NewChild("c", 0)
	require.NoError(t, err)

	g, err := r.TryLock(IntentionShared)
	require.NoError(t, err)

	// The exclusive child acquisition upgrades the lent guard from
	// IS to MinUpgradable(IS, IX) = IX.
	cg, err := c.TryLockUsingParent(Exclusive, g)
	require.NoError(t, err)
	assert.Equal(t, IntentionExclusive, g.LockType())

	cg.Unlock()
	g.Unlock()

	assert.Equal(t, [lockTypeCount]int{}, countsOf(r.kernel))
	assert.Equal(t, [lockTypeCount]int{}, countsOf(c.kernel))
}

func TestUpgradeToExclusiveWaitsForParent(t *testing.T) {
	r, err := NewRoot(0)
	require.NoError(t, err)
	c, err := r.NewChild("c", 0)
	require.NoError(t, err)

	cg, err := c.TryLock(Shared)
	require.NoError(t, err)

	// IS on the root (implicit, from the child) is compatible with
	// Shared taken directly on the root.
	rg, err := r.TryLock(Shared)
	require.NoError(t, err)

	// Upgrading the child to Exclusive needs IS->IX on the root,
	// which the root's Shared blocks.
	_, err = cg.TryUpgradeToExclusive()
	require.True(t, IsBusy(err))
	assert.Equal(t, Shared, cg.LockType())

	mgc := make(chan *LockGuardMut, 1)
	done := expectBlocked(t, func() {
		mg, err := cg.UpgradeToExclusive()
		if err != nil {
			t.Error(err)
			return
		}
		mgc <- mg
	})

	rg.Unlock()
	waitDone(t, done)

	mg := <-mgc
	assert.Equal(t, Exclusive, mg.LockType())
	mg.Unlock()

	assert.Equal(t, [lockTypeCount]int{}, countsOf(r.kernel))
	assert.Equal(t, [lockTypeCount]int{}, countsOf(c.kernel))
}

func TestConcurrentChildIdentity(t *testing.T) {
	r, err := NewRoot(0)
	require.NoError(t, err)

	const workers = 8
	kernels := make([]*lockKernel, workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			kernels[i] = r.kernel.childKernel("x")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// Every concurrent lookup of "x" resolved to the same node.
	for i := 1; i < workers; i++ {
		assert.True(t, kernels[0] == kernels[i])
	}
	for _, k := range kernels {
		k.decRef()
	}
	assert.Equal(t, 0, childCount(r.kernel))
}

func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}

	r, err := NewRoot(0)
	require.NoError(t, err)

	children := make([]*Lock, 3)
	for i, id := range []string{"a", "b", "c"} {
		children[i], err = r.NewChild(id, 0)
		require.NoError(t, err)
	}

	// counter is deliberately unsynchronized: Exclusive on the root
	// excludes every other holder in the tree, so if the final total
	// is right, mutual exclusion held.
	counter := 0
	const workers = 8
	const iters = 200
	exclusives := make([]int, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		rnd := rand.New(rand.NewSource(int64(w)))
		g.Go(func() error {
			for i := 0; i < iters; i++ {
				switch rnd.Intn(4) {
				case 0:
					mg, err := r.LockExclusive()
					if err != nil {
						return err
					}
					counter++
					exclusives[w]++
					mg.Unlock()
				case 1:
					gd, err := r.Lock(IntentionShared)
					if err != nil {
						return err
					}
					gd.Unlock()
				default:
					c := children[rnd.Intn(len(children))]
					mode := Shared
					if rnd.Intn(2) == 0 {
						mode = IntentionExclusive
					}
					gd, err := c.Lock(mode)
					if err != nil {
						return err
					}
					gd.Unlock()
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	want := 0
	for _, n := range exclusives {
		want += n
	}
	assert.Equal(t, want, counter, "exclusive holders raced on the counter")

	// Balanced workload: every count returned to zero, the whole
	// tree is acquirable exclusively again.
	assert.Equal(t, [lockTypeCount]int{}, countsOf(r.kernel))
	for _, c := range children {
		assert.Equal(t, [lockTypeCount]int{}, countsOf(c.kernel))
	}
	mg, err := r.TryLockExclusive()
	require.NoError(t, err)
	mg.Unlock()
}
