/*
Package workers provides utilities for determining optimal worker pool sizes
in containerized environments.

When running in containers, the number of available CPUs may be limited by
cgroup constraints. While Go 1.19+ automatically sets GOMAXPROCS based on
container CPU limits, runtime.NumCPU() still returns the host machine's CPU
count. This package uses GOMAXPROCS so worker counts respect container
resource limits.

Basic usage:

	// For CPU-intensive tasks (image decoding, hashing)
	numWorkers := workers.ForCPU(8) // max 8 workers

	// For I/O-bound tasks (file operations, network calls)
	numWorkers := workers.ForIO(16) // max 16 workers

	// For mixed workloads (the per-file import pipeline)
	numWorkers := workers.ForMixed(12) // max 12 workers

All functions respect the IMPORT_WORKERS environment variable, allowing
operators to override the automatic calculation:

	env:
	- name: IMPORT_WORKERS
	  value: "4"
*/
package workers
