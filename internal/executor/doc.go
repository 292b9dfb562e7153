// Package executor runs a single job end to end: it probes the source,
// builds and runs the ffmpeg invocation against a temporary output, feeds
// progress into the job store, and publishes the finished file with an
// atomic rename so readers never observe a partial output.
package executor
