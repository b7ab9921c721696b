// Package benchmark provides performance benchmarks for notehub's request
// hot paths: session verification, gate decisions and catalog reads over
// the Badger overlay.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Compare results:
//
//	go test -bench=. -benchmem -count=5 ./internal/tests/benchmark/... | tee new.txt
//	benchstat old.txt new.txt
package benchmark
