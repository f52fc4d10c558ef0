// Package exporting orchestrates the export pipeline.
//
// A single worker goroutine drains the persisted job queue strictly in
// submission order. Each job waits for the external editor to be free, then
// runs the fixed stage sequence: persist the input image, render the
// print-ready file, composite the photographic mockup, and read both
// artifacts back as transferable payloads. Progress is persisted on the job
// row and broadcast through the progress hub at every transition. A failing
// job settles as failed and never stalls the jobs behind it.
package exporting
