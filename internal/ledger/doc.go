// Package ledger groups the idempotency stores that answer whether an advisory was
// already processed. Implementations live in sub-packages:
//   - workdir: the downloaded image file itself is the marker (default)
//   - file: a YAML list of processed keys
//   - redis: a Redis set
//   - postgres: a table keyed by entry
//   - memory: a process-local set for tests and dry runs
package ledger
