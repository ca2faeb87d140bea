package compute

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestReleaserRunsInReverseOrder(t *testing.T) {
	var order []string
	var r releaser
	for _, name := range []string{"instance", "device", "buffer", "pipeline"} {
		name := name
		r.pushVoid(name, func() { order = append(order, name) })
	}
	assert.Equal(t, 4, r.len())

	require.NoError(t, r.release())
	assert.Equal(t, []string{"pipeline", "buffer", "device", "instance"}, order)
	assert.Equal(t, 0, r.len())

	// a second release is a no-op
	require.NoError(t, r.release())
	assert.Len(t, order, 4)
}

func TestReleaserContinuesPastFailures(t *testing.T) {
	var ran []string
	var r releaser
	r.pushVoid("first", func() { ran = append(ran, "first") })
	r.push("second", func() error {
		ran = append(ran, "second")
		return errors.New("boom")
	})
	r.push("third", func() error {
		ran = append(ran, "third")
		return errors.New("bang")
	})

	err := r.release()
	require.Error(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, ran)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "release second")
	assert.True(t, IsKind(err, KindCommandExecution))
}

func TestReleaseOnError(t *testing.T) {
	t.Run("success keeps resources", func(t *testing.T) {
		released := false
		var r releaser
		func() (err error) {
			defer r.releaseOnError(&err)
			r.pushVoid("buffer", func() { released = true })
			return nil
		}()
		assert.False(t, released)
		assert.Equal(t, 1, r.len())
	})

	t.Run("failure unwinds everything acquired", func(t *testing.T) {
		var released []string
		var r releaser
		err := func() (err error) {
			defer r.releaseOnError(&err)
			r.pushVoid("a", func() { released = append(released, "a") })
			r.pushVoid("b", func() { released = append(released, "b") })
			return errors.New("step 3 failed")
		}()
		require.Error(t, err)
		assert.Equal(t, []string{"b", "a"}, released)
		assert.Equal(t, 0, r.len())
	})
}

func TestReleaserTransfer(t *testing.T) {
	var order []string
	var owner, local releaser
	owner.pushVoid("device", func() { order = append(order, "device") })
	local.pushVoid("layout", func() { order = append(order, "layout") })
	local.pushVoid("pipeline", func() { order = append(order, "pipeline") })

	local.transfer(&owner)
	assert.Equal(t, 0, local.len())
	assert.Equal(t, 3, owner.len())

	require.NoError(t, owner.release())
	assert.Equal(t, []string{"pipeline", "layout", "device"}, order)
}
