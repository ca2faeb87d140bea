package compute

import (
	"go.uber.org/multierr"
)

// releaser is a LIFO stack of cleanup functions. Every native object is
// pushed right after it is created, so unwinding the stack destroys objects
// in reverse acquisition order whether a sequence fails halfway or runs to
// completion.
type releaser struct {
	names []string
	fns   []func() error
}

// push registers fn to run on release. name labels the object in errors.
func (r *releaser) push(name string, fn func() error) {
	r.names = append(r.names, name)
	r.fns = append(r.fns, fn)
}

// pushVoid registers a cleanup that cannot fail.
func (r *releaser) pushVoid(name string, fn func()) {
	r.push(name, func() error {
		fn()
		return nil
	})
}

// len returns the number of pending cleanups.
func (r *releaser) len() int {
	return len(r.fns)
}

// release runs every pending cleanup, newest first, and empties the stack.
// All cleanups run even if some fail; their errors are combined.
func (r *releaser) release() error {
	var err error
	for i := len(r.fns) - 1; i >= 0; i-- {
		if ferr := r.fns[i](); ferr != nil {
			err = multierr.Append(err, newError(KindCommandExecution, "release "+r.names[i], ferr))
		}
	}
	r.names = nil
	r.fns = nil
	return err
}

// releaseOnError releases the stack if *errp is non-nil, folding release
// failures into *errp. Use with defer.
func (r *releaser) releaseOnError(errp *error) {
	if *errp == nil {
		return
	}
	*errp = multierr.Append(*errp, r.release())
}

// transfer moves all pending cleanups into dst, leaving r empty. Used when a
// sequence succeeds and ownership passes to a longer-lived owner.
func (r *releaser) transfer(dst *releaser) {
	dst.names = append(dst.names, r.names...)
	dst.fns = append(dst.fns, r.fns...)
	r.names = nil
	r.fns = nil
}
