// Package reaper reconciles the task queue against reality on a fixed
// interval: uploads that never arrived are failed, queued tasks nobody
// claims are flagged, and tasks held by silent workers are returned to the
// queue. Every pass is idempotent and safe to run concurrently with live
// workers because all mutations go through guarded store transitions.
package reaper
