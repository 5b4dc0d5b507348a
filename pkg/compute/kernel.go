package compute

import "github.com/cuemby/keyforge/pkg/types"

// KernelCache tracks which kernel source is currently compiled on a backend
// so each distinct source is built exactly once in a row
type KernelCache struct {
	source   string
	compiled bool
}

// Resolve decides whether the job needs a build.
// It returns the source to compile, or "" with needBuild=false to reuse the current kernel
func (c *KernelCache) Resolve(job *types.Job) (source string, needBuild bool, err error) {
	if job.ReuseKernel || job.KernelSource == "" {
		if !c.compiled {
			return "", false, ErrNoKernel
		}
		return "", false, nil
	}
	if c.compiled && job.KernelSource == c.source {
		return "", false, nil
	}
	return job.KernelSource, true, nil
}

// Commit records a successful build of source
func (c *KernelCache) Commit(source string) {
	c.source = source
	c.compiled = true
}

// Invalidate forgets the compiled kernel, e.g. after a failed rebuild released it
func (c *KernelCache) Invalidate() {
	c.source = ""
	c.compiled = false
}

// Compiled reports whether a kernel is available for reuse
func (c *KernelCache) Compiled() bool {
	return c.compiled
}
