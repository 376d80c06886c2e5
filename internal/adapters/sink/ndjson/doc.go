// Package ndjson is the durable handoff between extraction and load.
//
// Layout under the sink root, one directory per run:
//   - <run>/records.ndjson[.gz] holds one record per line with ordered keys
//   - <run>/manifest.json is written last and marks the sink committed
//
// Data is written to a .part file, fsynced and renamed before the manifest
// lands, so a crashed or aborted extraction never leaves a committed sink.
// Creating a sink for an existing run id starts over from an empty file.
package ndjson
