// Package timesync maps capture timestamps onto wall-clock time.
//
// The capture program stamps events with the kernel monotonic clock
// (nanoseconds since boot). Adding that offset to the boot time recorded in
// /proc/stat gives the absolute time used when exporting cycles as spans.
package timesync
